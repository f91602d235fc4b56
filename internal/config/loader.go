// Package config provides configuration management for the device monitor.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Load reads configuration from the specified YAML file and environment
// variables. Environment variables take precedence over file values.
// Environment variable format: MONITOR_<SECTION>_<KEY>
// (e.g., MONITOR_OPENROUTER_API_KEY).
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults first
	setDefaults(v)

	// Configure environment variable binding
	v.SetEnvPrefix("MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The config file is optional for a daemon: defaults plus environment
	// variables are a complete configuration.
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}

		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Each device needs a stable-for-the-process identity even when none
	// is configured.
	if cfg.Device.ID == "" {
		cfg.Device.ID = "device-" + uuid.NewString()[:8]
	}

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.listen", ":3001")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "monitor.db")

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.ttl", time.Hour)

	// OpenRouter defaults
	v.SetDefault("openrouter.endpoint", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "mistralai/devstral-2512:free")
	v.SetDefault("openrouter.timeout", 30*time.Second)
	v.SetDefault("openrouter.title", "Device Monitor")

	// Pipeline defaults - 1s samples reduced every 60s, checked every 60s
	v.SetDefault("pipeline.sample_interval", time.Second)
	v.SetDefault("pipeline.aggregate_interval", 60*time.Second)
	v.SetDefault("pipeline.detect_interval", 60*time.Second)
	v.SetDefault("pipeline.broadcast_interval", 2*time.Second)
	v.SetDefault("pipeline.buffer_cap", 3600)
	v.SetDefault("pipeline.status_log_cap", 60)
	v.SetDefault("pipeline.disk_path", "/")
	v.SetDefault("pipeline.synthesize_app_metrics", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// HTTP retry defaults
	v.SetDefault("http.retry.max_retries", 3)
	v.SetDefault("http.retry.base_delay", 1*time.Second)
}
