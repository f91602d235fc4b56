package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"device-monitor/internal/model"
	"device-monitor/internal/sysinfo"
)

func TestAggregator_EmptyWindowIsNoop(t *testing.T) {
	buf := NewSampleBuffer(10)
	st := newFakeStore()
	agg := NewAggregator(buf, st, nil, &fakeHost{}, "dev-1", false, zerolog.Nop())

	result, err := agg.AggregateAndStore(context.Background())
	if err != nil {
		t.Fatalf("AggregateAndStore() error = %v", err)
	}
	if result != nil {
		t.Errorf("result = %+v, want nil for empty window", result)
	}
	if len(st.aggregates) != 0 {
		t.Error("aggregate persisted for empty window")
	}
}

func TestAggregator_ComputesWindowMeans(t *testing.T) {
	buf := NewSampleBuffer(10)
	buf.Append(model.Sample{CPUPercent: 10, MemoryPercent: 40, UptimeHours: 1, TotalMemoryMB: 8000})
	buf.Append(model.Sample{CPUPercent: 20, MemoryPercent: 60, UptimeHours: 2, TotalMemoryMB: 8000})
	buf.Append(model.Sample{CPUPercent: 30, MemoryPercent: 80, UptimeHours: 3, TotalMemoryMB: 8000})

	host := &fakeHost{
		mem: sysinfo.MemoryStats{SwapPercent: 12},
		procs: []model.ProcessInfo{
			{Name: "postgres", CPUPercent: 5, MemoryMB: 300},
			{Name: "nginx", CPUPercent: 9, MemoryMB: 100},
		},
	}
	st := newFakeStore()
	agg := NewAggregator(buf, st, nil, host, "dev-1", false, zerolog.Nop())

	result, err := agg.AggregateAndStore(context.Background())
	if err != nil {
		t.Fatalf("AggregateAndStore() error = %v", err)
	}

	if result.CPUPercent != 20 {
		t.Errorf("CPUPercent = %v, want mean 20", result.CPUPercent)
	}
	if result.MemoryPercent != 60 {
		t.Errorf("MemoryPercent = %v, want mean 60", result.MemoryPercent)
	}
	// Monotonic fields come from the latest sample, not the mean.
	if result.UptimeHours != 3 {
		t.Errorf("UptimeHours = %v, want latest value 3", result.UptimeHours)
	}
	// Swap and the process summary are fresh aggregation-time snapshots.
	if result.SwapPercent != 12 {
		t.Errorf("SwapPercent = %v, want 12", result.SwapPercent)
	}
	if result.TopProcessName != "nginx" || result.TopProcessCPU != 9 {
		t.Errorf("top process = %s/%v, want nginx/9", result.TopProcessName, result.TopProcessCPU)
	}
	if result.TotalProcesses != 2 {
		t.Errorf("TotalProcesses = %d, want 2", result.TotalProcesses)
	}
	if result.DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q, want dev-1", result.DeviceID)
	}

	if buf.Len() != 0 {
		t.Errorf("buffer Len() = %d, want 0 after successful persist", buf.Len())
	}
}

func TestAggregator_PersistFailureKeepsSamples(t *testing.T) {
	buf := NewSampleBuffer(10)
	buf.Append(model.Sample{CPUPercent: 50})
	buf.Append(model.Sample{CPUPercent: 70})

	st := newFakeStore()
	st.insertAggErr = errors.New("disk full")
	agg := NewAggregator(buf, st, nil, &fakeHost{}, "dev-1", false, zerolog.Nop())

	result, err := agg.AggregateAndStore(context.Background())
	if err == nil {
		t.Fatal("AggregateAndStore() error = nil, want persist failure")
	}
	if result == nil {
		t.Fatal("result = nil, want the computed aggregate alongside the error")
	}
	if buf.Len() != 2 {
		t.Errorf("buffer Len() = %d, want 2 (samples carried into next window)", buf.Len())
	}

	// The next cycle covers the carried samples plus new ones.
	st.insertAggErr = nil
	buf.Append(model.Sample{CPUPercent: 90})

	result, err = agg.AggregateAndStore(context.Background())
	if err != nil {
		t.Fatalf("second AggregateAndStore() error = %v", err)
	}
	if result.CPUPercent != 70 {
		t.Errorf("CPUPercent = %v, want mean 70 over carried and new samples", result.CPUPercent)
	}
	if buf.Len() != 0 {
		t.Errorf("buffer Len() = %d, want 0", buf.Len())
	}
}

func TestAggregator_SynthesizedAppMetrics(t *testing.T) {
	buf := NewSampleBuffer(200)
	for i := 0; i < 60; i++ {
		buf.Append(model.Sample{CPUPercent: 10})
	}

	st := newFakeStore()
	agg := NewAggregator(buf, st, nil, &fakeHost{}, "dev-1", true, zerolog.Nop())

	result, err := agg.AggregateAndStore(context.Background())
	if err != nil {
		t.Fatalf("AggregateAndStore() error = %v", err)
	}

	if result.P50Latency <= 0 || result.P95Latency <= 0 || result.P99Latency <= 0 {
		t.Errorf("latency percentiles not synthesized: p50=%v p95=%v p99=%v",
			result.P50Latency, result.P95Latency, result.P99Latency)
	}
	if result.P50Latency > result.P95Latency || result.P95Latency > result.P99Latency {
		t.Errorf("percentiles not ordered: p50=%v p95=%v p99=%v",
			result.P50Latency, result.P95Latency, result.P99Latency)
	}
	if result.ErrorRate < 0 || result.ErrorRate >= 5 {
		t.Errorf("ErrorRate = %v, want [0, 5)", result.ErrorRate)
	}
}

type recordingCache struct {
	stored []*model.Aggregate
	err    error
}

func (c *recordingCache) StoreLatestAggregate(ctx context.Context, agg *model.Aggregate) error {
	if c.err != nil {
		return c.err
	}
	c.stored = append(c.stored, agg)
	return nil
}

func TestAggregator_CacheIsBestEffort(t *testing.T) {
	buf := NewSampleBuffer(10)
	buf.Append(model.Sample{CPUPercent: 5})

	st := newFakeStore()
	c := &recordingCache{err: errors.New("redis down")}
	agg := NewAggregator(buf, st, c, &fakeHost{}, "dev-1", false, zerolog.Nop())

	if _, err := agg.AggregateAndStore(context.Background()); err != nil {
		t.Fatalf("AggregateAndStore() error = %v, cache failure must not propagate", err)
	}
	if len(st.aggregates) != 1 {
		t.Error("aggregate not persisted despite cache failure")
	}
}
