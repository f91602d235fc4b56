// Package config provides configuration management for the device monitor.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a single validation error with user-friendly message.
type ValidationError struct {
	Field   string      // Field path (e.g., "openrouter.endpoint")
	Tag     string      // Validation tag that failed (e.g., "required", "url")
	Value   interface{} // Actual value that failed validation
	Message string      // User-friendly error message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []*ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("config validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
	}
	return sb.String()
}

// validate is the package-level validator instance.
var validate = validator.New()

// Validate validates the configuration and returns user-friendly error messages.
func Validate(cfg *Config) error {
	var validationErrors ValidationErrors

	// Run struct validation
	if err := validate.Struct(cfg); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrors {
				validationErrors = append(validationErrors, &ValidationError{
					Field:   formatFieldName(fe.Namespace()),
					Tag:     fe.Tag(),
					Value:   fe.Value(),
					Message: translateError(fe),
				})
			}
		}
	}

	// Run custom business logic validations
	if errs := validateIntervals(cfg); len(errs) > 0 {
		validationErrors = append(validationErrors, errs...)
	}

	if errs := validateCache(cfg); len(errs) > 0 {
		validationErrors = append(validationErrors, errs...)
	}

	if len(validationErrors) > 0 {
		return validationErrors
	}

	return nil
}

// validateIntervals checks that the pipeline cadences are sane: every
// interval positive, and samples strictly more frequent than aggregation
// so each window contains data.
func validateIntervals(cfg *Config) ValidationErrors {
	var errors ValidationErrors

	intervals := []struct {
		name  string
		value interface{ Seconds() float64 }
	}{
		{"pipeline.sample_interval", cfg.Pipeline.SampleInterval},
		{"pipeline.aggregate_interval", cfg.Pipeline.AggregateInterval},
		{"pipeline.detect_interval", cfg.Pipeline.DetectInterval},
		{"pipeline.broadcast_interval", cfg.Pipeline.BroadcastInterval},
	}
	for _, iv := range intervals {
		if iv.value.Seconds() <= 0 {
			errors = append(errors, &ValidationError{
				Field:   iv.name,
				Tag:     "positive_interval",
				Value:   iv.value,
				Message: "interval must be positive",
			})
		}
	}

	if cfg.Pipeline.SampleInterval >= cfg.Pipeline.AggregateInterval {
		errors = append(errors, &ValidationError{
			Field:   "pipeline.sample_interval",
			Tag:     "interval_order",
			Value:   fmt.Sprintf("sample=%v, aggregate=%v", cfg.Pipeline.SampleInterval, cfg.Pipeline.AggregateInterval),
			Message: fmt.Sprintf("sample interval (%v) must be shorter than aggregate interval (%v)", cfg.Pipeline.SampleInterval, cfg.Pipeline.AggregateInterval),
		})
	}

	return errors
}

// validateCache checks that an enabled cache has an address to dial.
func validateCache(cfg *Config) ValidationErrors {
	var errors ValidationErrors

	if cfg.Cache.Enabled && cfg.Cache.Addr == "" {
		errors = append(errors, &ValidationError{
			Field:   "cache.addr",
			Tag:     "required_when_enabled",
			Value:   "",
			Message: "addr is required when the cache is enabled",
		})
	}

	return errors
}

// formatFieldName converts the validator field namespace to a user-friendly format.
// Example: "Config.OpenRouter.Endpoint" -> "openrouter.endpoint"
func formatFieldName(namespace string) string {
	// Remove the root struct name (e.g., "Config.")
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:] // Remove "Config"
	}

	// Convert to lowercase and join
	for i, part := range parts {
		parts[i] = strings.ToLower(part)
	}

	return strings.Join(parts, ".")
}

// translateError converts a validator.FieldError to a user-friendly message.
func translateError(fe validator.FieldError) string {
	field := formatFieldName(fe.Namespace())

	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "url":
		return fmt.Sprintf("invalid URL format: %v", fe.Value())
	case "gte":
		return fmt.Sprintf("value must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("value must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("value must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("validation failed on '%s' tag for field '%s'", fe.Tag(), field)
	}
}
