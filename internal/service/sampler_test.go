package service

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"device-monitor/internal/sysinfo"
)

func TestSampler_Sample(t *testing.T) {
	host := &fakeHost{
		cpu:   42.5,
		cores: 8,
		mem: sysinfo.MemoryStats{
			TotalMB:     16000,
			FreeMB:      4000,
			UsedMB:      12000,
			UsedPercent: 75,
		},
		load:   sysinfo.LoadStats{Load1: 1.5, Load5: 1.2, Load15: 0.9},
		uptime: 100,
		disk:   60,
		net:    sysinfo.NetworkStats{InMbps: 10, OutMbps: 5},
	}
	buf := NewSampleBuffer(10)
	sampler := NewSampler(host, buf, "dev-1", zerolog.Nop())

	sample := sampler.Sample()

	if sample.CPUPercent != 42.5 {
		t.Errorf("CPUPercent = %v, want 42.5", sample.CPUPercent)
	}
	if sample.MemoryPercent != 75 {
		t.Errorf("MemoryPercent = %v, want 75", sample.MemoryPercent)
	}
	if sample.FreeMemoryMB != 4000 || sample.TotalMemoryMB != 16000 {
		t.Errorf("memory fields = %v/%v, want 4000/16000", sample.FreeMemoryMB, sample.TotalMemoryMB)
	}
	if sample.LoadAvg1Min != 1.5 || sample.DiskPercent != 60 {
		t.Errorf("extended fields not populated: load=%v disk=%v", sample.LoadAvg1Min, sample.DiskPercent)
	}
	if sample.DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q, want dev-1", sample.DeviceID)
	}
	if sample.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
	if buf.Len() != 1 {
		t.Errorf("buffer Len() = %d, want 1", buf.Len())
	}
}

func TestSampler_CoreReadFailureYieldsZeroSample(t *testing.T) {
	host := &fakeHost{
		cpuErr: errors.New("proc unreadable"),
		mem:    sysinfo.MemoryStats{UsedPercent: 50},
		disk:   70,
	}
	buf := NewSampleBuffer(10)
	sampler := NewSampler(host, buf, "dev-1", zerolog.Nop())

	sample := sampler.Sample()

	// A failed core reading produces a zero-valued sample, extended
	// fields included, but the sample is still appended.
	if sample.CPUPercent != 0 || sample.MemoryPercent != 0 || sample.DiskPercent != 0 {
		t.Errorf("zero sample expected, got cpu=%v mem=%v disk=%v",
			sample.CPUPercent, sample.MemoryPercent, sample.DiskPercent)
	}
	if buf.Len() != 1 {
		t.Errorf("buffer Len() = %d, want 1 (zero sample still buffered)", buf.Len())
	}
}

func TestSampler_ExtendedFieldFailureIsIsolated(t *testing.T) {
	host := &fakeHost{
		cpu:     10,
		mem:     sysinfo.MemoryStats{UsedPercent: 20},
		diskErr: errors.New("statfs failed"),
		load:    sysinfo.LoadStats{Load1: 2},
	}
	buf := NewSampleBuffer(10)
	sampler := NewSampler(host, buf, "dev-1", zerolog.Nop())

	sample := sampler.Sample()

	if sample.CPUPercent != 10 {
		t.Errorf("CPUPercent = %v, want 10", sample.CPUPercent)
	}
	if sample.DiskPercent != 0 {
		t.Errorf("DiskPercent = %v, want 0 on read failure", sample.DiskPercent)
	}
	if sample.LoadAvg1Min != 2 {
		t.Errorf("LoadAvg1Min = %v, want 2 (other fields unaffected)", sample.LoadAvg1Min)
	}
}
