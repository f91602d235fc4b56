package service

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"device-monitor/internal/model"
	"device-monitor/internal/store"
)

// AggregateCache receives freshly persisted aggregates. Implementations
// are best-effort; errors are logged and ignored.
type AggregateCache interface {
	StoreLatestAggregate(ctx context.Context, agg *model.Aggregate) error
}

// Aggregator reduces the buffered samples into one periodic aggregate
// and persists it. The buffer is flushed only after a successful
// persist, so a failed cycle carries its samples into the next window
// instead of dropping them.
type Aggregator struct {
	buffer   *SampleBuffer
	store    store.Store
	cache    AggregateCache // may be nil
	host     HostReader
	deviceID string

	// synthesizeAppMetrics fills latency percentiles and error rate with
	// placeholder values so latency/error-rate rules evaluate end to end
	// without an application exporter.
	synthesizeAppMetrics bool

	logger zerolog.Logger
}

// NewAggregator creates an Aggregator. cache may be nil.
func NewAggregator(
	buffer *SampleBuffer,
	st store.Store,
	cache AggregateCache,
	host HostReader,
	deviceID string,
	synthesizeAppMetrics bool,
	logger zerolog.Logger,
) *Aggregator {
	return &Aggregator{
		buffer:               buffer,
		store:                st,
		cache:                cache,
		host:                 host,
		deviceID:             deviceID,
		synthesizeAppMetrics: synthesizeAppMetrics,
		logger:               logger.With().Str("component", "aggregator").Logger(),
	}
}

// AggregateAndStore reduces the current buffer window into one aggregate
// and persists it. An empty buffer is a no-op returning (nil, nil). On
// persistence failure the aggregate is returned alongside the error and
// the buffer keeps its samples for the next cycle.
func (a *Aggregator) AggregateAndStore(ctx context.Context) (*model.Aggregate, error) {
	window := a.buffer.Snapshot()
	if len(window) == 0 {
		a.logger.Debug().Msg("empty sample window, skipping aggregation")
		return nil, nil
	}

	agg := a.reduce(window)
	a.snapshotExtras(agg)
	if a.synthesizeAppMetrics {
		synthesizeAppMetrics(agg, len(window))
	}

	if err := a.store.InsertAggregate(ctx, agg); err != nil {
		a.logger.Error().Err(err).Int("window", len(window)).Msg("failed to persist aggregate, keeping samples buffered")
		return agg, err
	}

	a.buffer.Flush(len(window))
	aggregatesStored.Inc()

	if a.cache != nil {
		if err := a.cache.StoreLatestAggregate(ctx, agg); err != nil {
			a.logger.Warn().Err(err).Msg("failed to cache aggregate")
		}
	}

	a.logger.Debug().
		Int("window", len(window)).
		Float64("cpu_percent", agg.CPUPercent).
		Float64("memory_percent", agg.MemoryPercent).
		Msg("aggregate stored")

	return agg, nil
}

// reduce computes the arithmetic means of the averaged fields and takes
// uptime and memory totals from the latest sample, since those are
// monotonic or slow-moving.
func (a *Aggregator) reduce(window []model.Sample) *model.Aggregate {
	agg := &model.Aggregate{
		CreatedAt: time.Now().UTC(),
		DeviceID:  a.deviceID,
	}

	n := float64(len(window))
	for _, s := range window {
		agg.CPUPercent += s.CPUPercent
		agg.MemoryPercent += s.MemoryPercent
		agg.MemoryMB += s.MemoryMB
		agg.DiskPercent += s.DiskPercent
		agg.NetworkInMbps += s.NetworkInMbps
		agg.NetworkOutMbps += s.NetworkOutMbps
		agg.LoadAvg1Min += s.LoadAvg1Min
		agg.LoadAvg5Min += s.LoadAvg5Min
		agg.LoadAvg15Min += s.LoadAvg15Min
	}
	agg.CPUPercent /= n
	agg.MemoryPercent /= n
	agg.MemoryMB /= n
	agg.DiskPercent /= n
	agg.NetworkInMbps /= n
	agg.NetworkOutMbps /= n
	agg.LoadAvg1Min /= n
	agg.LoadAvg5Min /= n
	agg.LoadAvg15Min /= n

	latest := window[len(window)-1]
	agg.UptimeHours = latest.UptimeHours
	agg.FreeMemoryMB = latest.FreeMemoryMB
	agg.TotalMemoryMB = latest.TotalMemoryMB

	return agg
}

// snapshotExtras fills the fields the per-second samples do not carry:
// a real swap reading and the process summary, both taken fresh at
// aggregation time. Failures leave the fields zero.
func (a *Aggregator) snapshotExtras(agg *model.Aggregate) {
	if mem, err := a.host.Memory(); err == nil {
		agg.SwapPercent = mem.SwapPercent
	} else {
		a.logger.Warn().Err(err).Msg("swap snapshot failed")
	}

	procs, err := a.host.Processes()
	if err != nil {
		a.logger.Warn().Err(err).Msg("process snapshot failed")
		return
	}
	agg.TotalProcesses = len(procs)

	var top *model.ProcessInfo
	for i := range procs {
		if top == nil || procs[i].CPUPercent > top.CPUPercent {
			top = &procs[i]
		}
	}
	if top != nil {
		agg.TopProcessName = top.Name
		agg.TopProcessCPU = top.CPUPercent
		agg.TopProcessMemoryMB = top.MemoryMB
	}
}

// synthesizeAppMetrics derives placeholder latency percentiles from the
// window size and a small random error rate, mirroring what an
// application exporter would feed in.
func synthesizeAppMetrics(agg *model.Aggregate, windowLen int) {
	latencies := make([]float64, windowLen)
	for i := range latencies {
		latencies[i] = float64((i*10 + 150) % 1000)
	}
	sort.Float64s(latencies)

	percentile := func(p float64) float64 {
		idx := int(float64(len(latencies)) * p)
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}

	agg.P50Latency = percentile(0.5)
	agg.P95Latency = percentile(0.95)
	agg.P99Latency = percentile(0.99)
	agg.ErrorRate = rand.Float64() * 5
}
