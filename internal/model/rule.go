// Package model provides data models for the device monitor.
package model

import "fmt"

// Severity represents the severity tag of a rule or anomaly.
type Severity string

const (
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
)

// Valid reports whether s is one of the known severity tags.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityCritical, SeverityWarning:
		return true
	}
	return false
}

// Comparison is the enumerated comparison kind of a rule condition.
type Comparison string

const (
	ComparisonGT Comparison = "gt"
	ComparisonGE Comparison = "ge"
	ComparisonLT Comparison = "lt"
	ComparisonLE Comparison = "le"
)

// Compare applies the comparison to value and threshold. An unknown
// comparison kind behaves like gt, the historical default.
func (c Comparison) Compare(value, threshold float64) bool {
	switch c {
	case ComparisonGE:
		return value >= threshold
	case ComparisonLT:
		return value < threshold
	case ComparisonLE:
		return value <= threshold
	default:
		return value > threshold
	}
}

// Rule is a named, declarative anomaly condition: a metric field to read
// off an Aggregate, a comparison against a threshold, and a severity tag.
type Rule struct {
	ID         int64      `json:"id,omitempty"`
	Name       string     `json:"name"`
	Condition  string     `json:"condition"` // aggregate field name, e.g. "cpu_percent"
	Comparison Comparison `json:"comparison,omitempty"`
	Threshold  float64    `json:"threshold"`
	Severity   Severity   `json:"severity"`
	Enabled    bool       `json:"enabled"`
	DeviceID   string     `json:"device_id,omitempty"`
}

// Matches evaluates the rule against the aggregate. Fields the aggregate
// does not carry read as 0.
func (r *Rule) Matches(agg *Aggregate) bool {
	return r.Comparison.Compare(agg.Field(r.Condition), r.Threshold)
}

// Describe builds the human-readable violation description embedding the
// observed value and the threshold.
func (r *Rule) Describe(value float64) string {
	return fmt.Sprintf("%s: %s at %.1f%% exceeds threshold %.1f%%", r.Name, r.Condition, value, r.Threshold)
}

// DefaultRules is the hardcoded fallback rule set, consulted only when a
// device has zero enabled rules configured.
func DefaultRules() []*Rule {
	return []*Rule{
		{Name: "cpu_overload", Condition: "cpu_percent", Threshold: 80, Severity: SeverityHigh, Enabled: true},
		{Name: "memory_critical", Condition: "memory_percent", Threshold: 90, Severity: SeverityCritical, Enabled: true},
		{Name: "high_disk_usage", Condition: "disk_percent", Threshold: 90, Severity: SeverityWarning, Enabled: true},
		{Name: "high_latency", Condition: "p95_latency", Threshold: 500, Severity: SeverityHigh, Enabled: true},
		{Name: "high_error_rate", Condition: "error_rate", Threshold: 5, Severity: SeverityWarning, Enabled: true},
	}
}
