// Package config provides configuration management for the device monitor.
package config

import "time"

// Config is the root configuration structure for the device monitor.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Device     DeviceConfig     `mapstructure:"device"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	HTTP       HTTPConfig       `mapstructure:"http"`
}

// ServerConfig contains the HTTP server configuration.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen" validate:"required"`
	FrontendOrigin  string        `mapstructure:"frontend_origin"` // CORS allow origin; "*" when empty
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DeviceConfig identifies the monitored device.
type DeviceConfig struct {
	// ID scopes every persisted row. Generated at startup when empty.
	ID string `mapstructure:"id"`
}

// DatabaseConfig contains the SQLite store configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// CacheConfig contains the optional Redis cache configuration. The cache
// only accelerates reads; the pipeline works unchanged without it.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Addr    string        `mapstructure:"addr"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// OpenRouterConfig contains the AI analysis client configuration.
// An empty APIKey disables analysis; anomalies are still recorded.
type OpenRouterConfig struct {
	Endpoint string        `mapstructure:"endpoint" validate:"omitempty,url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Referer  string        `mapstructure:"referer"`
	Title    string        `mapstructure:"title"`
}

// PipelineConfig tunes the sampling/aggregation/detection pipeline.
type PipelineConfig struct {
	SampleInterval    time.Duration `mapstructure:"sample_interval"`
	AggregateInterval time.Duration `mapstructure:"aggregate_interval"`
	DetectInterval    time.Duration `mapstructure:"detect_interval"`
	BroadcastInterval time.Duration `mapstructure:"broadcast_interval"`

	// BufferCap bounds the sample buffer under sustained persistence
	// failure; the oldest samples are evicted past it.
	BufferCap    int `mapstructure:"buffer_cap" validate:"gte=60"`
	StatusLogCap int `mapstructure:"status_log_cap" validate:"gte=1"`

	// DiskPath is the mount point measured for disk usage.
	DiskPath string `mapstructure:"disk_path"`

	// RulesFile optionally seeds additional rules from a YAML pack.
	RulesFile string `mapstructure:"rules_file"`

	// SynthesizeAppMetrics fills the latency/error-rate aggregate fields
	// with placeholder values so latency/error rules evaluate end to end.
	SynthesizeAppMetrics bool `mapstructure:"synthesize_app_metrics"`
}

// LoggingConfig contains configurations for logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// HTTPConfig contains outbound HTTP client configurations.
type HTTPConfig struct {
	Retry RetryConfig `mapstructure:"retry"`
}

// RetryConfig defines retry behavior for HTTP requests.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}
