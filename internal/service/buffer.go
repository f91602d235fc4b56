// Package service implements the metrics pipeline: sampling,
// aggregation, anomaly detection, and the rolling status log.
package service

import (
	"sync"

	"device-monitor/internal/model"
)

// DefaultBufferCap bounds the sample buffer to roughly one hour of
// one-second samples.
const DefaultBufferCap = 3600

// SampleBuffer accumulates samples between aggregation runs. The sampler
// appends; the aggregator snapshots and flushes. The buffer is bounded:
// under sustained persistence failure the oldest samples are evicted
// rather than growing without limit.
type SampleBuffer struct {
	mu      sync.Mutex
	samples []model.Sample
	cap     int
	evicted uint64
}

// NewSampleBuffer creates a buffer holding at most capacity samples.
// A non-positive capacity falls back to DefaultBufferCap.
func NewSampleBuffer(capacity int) *SampleBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCap
	}
	return &SampleBuffer{
		samples: make([]model.Sample, 0, capacity),
		cap:     capacity,
	}
}

// Append adds a sample, evicting the oldest when full.
func (b *SampleBuffer) Append(sample model.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, sample)
	if len(b.samples) > b.cap {
		over := len(b.samples) - b.cap
		b.samples = b.samples[over:]
		b.evicted += uint64(over)
	}
}

// Snapshot returns a copy of the buffered samples in append order.
func (b *SampleBuffer) Snapshot() []model.Sample {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]model.Sample, len(b.samples))
	copy(out, b.samples)
	return out
}

// Len returns the number of buffered samples.
func (b *SampleBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Evicted returns how many samples have been dropped to the capacity
// bound since creation.
func (b *SampleBuffer) Evicted() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.evicted
}

// Flush drops the first n samples, those covered by a successfully
// persisted aggregate. Samples appended after the snapshot was taken
// remain for the next window.
func (b *SampleBuffer) Flush(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n >= len(b.samples) {
		b.samples = b.samples[:0]
		return
	}
	b.samples = append(b.samples[:0], b.samples[n:]...)
}
