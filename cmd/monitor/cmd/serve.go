// Package cmd provides CLI commands for the device monitor.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"device-monitor/internal/cache"
	"device-monitor/internal/client/openrouter"
	"device-monitor/internal/config"
	"device-monitor/internal/model"
	"device-monitor/internal/server"
	"device-monitor/internal/service"
	"device-monitor/internal/store"
	"device-monitor/internal/sysinfo"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring pipeline and HTTP server",
	Long: `Start the full monitor: the sampling/aggregation/detection
pipeline and the HTTP server with the REST API, the WebSocket feed,
and Prometheus metrics.

Examples:
  # Run with the default config file
  monitor serve -c config.yaml

  # Override via environment (MONITOR_ prefix)
  MONITOR_SERVER_LISTEN=:8080 monitor serve

  # Debug logging to the console
  monitor serve -c config.yaml --log-level debug`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	configPath := GetConfigFile()
	cfg, err := config.Load(configPath)
	if err != nil {
		tmpLogger := setupLogger("error", "console")
		tmpLogger.Error().Err(err).Str("path", configPath).Msg("failed to load config")
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Command line --log-level overrides the config file setting.
	level := cfg.Logging.Level
	if GetLogLevel() != "info" {
		level = GetLogLevel()
	}
	logger := setupLogger(level, cfg.Logging.Format)
	logger.Info().
		Str("version", Version).
		Str("config_path", configPath).
		Str("device_id", cfg.Device.ID).
		Msg("device monitor starting")

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("monitor exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("monitor stopped")
}

// run wires the pipeline and serves until SIGINT or SIGTERM.
func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	seedRules(ctx, st, cfg, logger)

	var aggCache *cache.Cache
	if cfg.Cache.Enabled {
		aggCache, err = cache.New(cfg.Cache.Addr, cfg.Cache.TTL, logger)
		if err != nil {
			// The cache only accelerates reads; run without it.
			logger.Warn().Err(err).Str("addr", cfg.Cache.Addr).Msg("Redis unavailable, running without cache")
			aggCache = nil
		} else {
			defer aggCache.Close()
		}
	}

	var analyzer service.Analyzer
	var assistant server.Assistant
	ai := openrouter.NewClient(&cfg.OpenRouter, &cfg.HTTP.Retry, logger)
	if ai.Enabled() {
		analyzer = ai
		assistant = ai
		logger.Info().Str("model", cfg.OpenRouter.Model).Msg("AI analysis enabled")
	} else {
		logger.Info().Msg("no OpenRouter API key, AI analysis disabled")
	}

	host := sysinfo.New(sysinfo.WithDiskPath(cfg.Pipeline.DiskPath))
	buffer := service.NewSampleBuffer(cfg.Pipeline.BufferCap)
	statusLog := service.NewStatusLog(cfg.Pipeline.StatusLogCap)

	sampler := service.NewSampler(host, buffer, cfg.Device.ID, logger)
	aggregator := service.NewAggregator(buffer, st, cacheOrNil(aggCache), host, cfg.Device.ID, cfg.Pipeline.SynthesizeAppMetrics, logger)
	detector := service.NewDetector(st, analyzer, statusLog, cfg.Device.ID, logger)
	scheduler := service.NewScheduler(
		sampler, aggregator, detector,
		cfg.Pipeline.SampleInterval, cfg.Pipeline.AggregateInterval, cfg.Pipeline.DetectInterval,
		logger,
	)

	srv := server.NewServer(
		cfg.Server, st, aggCache, statusLog, host, assistant,
		cfg.Device.ID, cfg.Pipeline.BroadcastInterval, logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })
	return g.Wait()
}

// seedRules inserts the default rule set plus any configured rule pack,
// skipping names the device already has. A seeding failure is logged
// and tolerated; the detector falls back to the built-in rules.
func seedRules(ctx context.Context, st store.Store, cfg *config.Config, logger zerolog.Logger) {
	rules := model.DefaultRules()

	if cfg.Pipeline.RulesFile != "" {
		extra, err := config.LoadRules(cfg.Pipeline.RulesFile)
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.Pipeline.RulesFile).Msg("failed to load rules file")
		} else {
			rules = append(rules, extra...)
		}
	}

	inserted, err := st.SeedRules(ctx, cfg.Device.ID, rules)
	if err != nil {
		logger.Error().Err(err).Msg("failed to seed rules")
		return
	}
	if inserted > 0 {
		logger.Info().Int("inserted", inserted).Msg("rules seeded")
	}
}

// cacheOrNil avoids handing the aggregator a typed-nil interface value.
func cacheOrNil(c *cache.Cache) service.AggregateCache {
	if c == nil {
		return nil
	}
	return c
}

// setupLogger configures zerolog with the given level and format.
func setupLogger(level string, format string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	var output io.Writer
	if format == "json" {
		// JSON format - structured logging for log aggregation systems
		output = os.Stderr
	} else {
		// Console format - human-readable output for development
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
