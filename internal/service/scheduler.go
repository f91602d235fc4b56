package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Scheduler drives the pipeline timers: sampling, aggregation, and
// detection. The aggregation and detection timers are independent and
// deliberately unsynchronized, matching the tolerated one-interval
// staleness documented on Detector.
type Scheduler struct {
	sampler    *Sampler
	aggregator *Aggregator
	detector   *Detector

	sampleInterval    time.Duration
	aggregateInterval time.Duration
	detectInterval    time.Duration

	logger zerolog.Logger
}

// NewScheduler wires the pipeline components to their cadences.
func NewScheduler(
	sampler *Sampler,
	aggregator *Aggregator,
	detector *Detector,
	sampleInterval, aggregateInterval, detectInterval time.Duration,
	logger zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		sampler:           sampler,
		aggregator:        aggregator,
		detector:          detector,
		sampleInterval:    sampleInterval,
		aggregateInterval: aggregateInterval,
		detectInterval:    detectInterval,
		logger:            logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run blocks until ctx is cancelled, executing each timer loop in its
// own goroutine. A failed or panicking tick produces nothing for that
// interval; the next tick proceeds normally.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.loop(ctx, s.sampleInterval, func(tickCtx context.Context) {
			s.sampler.Sample()
			samplesCollected.Inc()
			bufferedSamples.Set(float64(s.sampler.buffer.Len()))
		})
	})

	g.Go(func() error {
		return s.loop(ctx, s.aggregateInterval, func(tickCtx context.Context) {
			if _, err := s.aggregator.AggregateAndStore(tickCtx); err != nil {
				s.logger.Error().Err(err).Msg("aggregation tick failed")
			}
		})
	})

	g.Go(func() error {
		return s.loop(ctx, s.detectInterval, func(tickCtx context.Context) {
			outcome := s.detector.CheckAnomalies(tickCtx)
			s.logger.Debug().Str("outcome", string(outcome)).Msg("detection tick completed")
		})
	})

	s.logger.Info().
		Dur("sample_interval", s.sampleInterval).
		Dur("aggregate_interval", s.aggregateInterval).
		Dur("detect_interval", s.detectInterval).
		Msg("pipeline started")

	return g.Wait()
}

// loop runs tick on every interval until ctx is cancelled.
func (s *Scheduler) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runTick(ctx, tick)
		}
	}
}

// runTick contains a tick so that a panic in one callback abandons only
// that tick, never the timer loop.
func (s *Scheduler) runTick(ctx context.Context, tick func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("tick panicked, abandoned")
		}
	}()
	tick(ctx)
}
