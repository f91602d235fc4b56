package service

import (
	"time"

	"github.com/rs/zerolog"

	"device-monitor/internal/model"
	"device-monitor/internal/sysinfo"
)

// HostReader is the subset of host statistics the pipeline reads.
// *sysinfo.Reader implements it; tests substitute fakes.
type HostReader interface {
	CPUPercent() (float64, error)
	Cores() (int, error)
	Memory() (sysinfo.MemoryStats, error)
	LoadAvg() (sysinfo.LoadStats, error)
	UptimeHours() (float64, error)
	DiskPercent() (float64, error)
	Network() (sysinfo.NetworkStats, error)
	Processes() ([]model.ProcessInfo, error)
}

// Sampler takes one host measurement per tick and appends it to the
// sample buffer. It never fails past its boundary: an unreadable host
// yields a zero-valued sample so the buffer always receives a
// well-formed value.
type Sampler struct {
	host     HostReader
	buffer   *SampleBuffer
	deviceID string
	logger   zerolog.Logger
}

// NewSampler creates a Sampler writing into the given buffer.
func NewSampler(host HostReader, buffer *SampleBuffer, deviceID string, logger zerolog.Logger) *Sampler {
	return &Sampler{
		host:     host,
		buffer:   buffer,
		deviceID: deviceID,
		logger:   logger.With().Str("component", "sampler").Logger(),
	}
}

// Sample measures the host once and appends the result to the buffer.
// CPU and memory are the core reading; if either fails the sample is
// zero-valued. The extended fields are best-effort and zero
// individually on failure.
func (s *Sampler) Sample() model.Sample {
	sample := model.Sample{
		Timestamp: time.Now(),
		DeviceID:  s.deviceID,
	}

	cpu, cpuErr := s.host.CPUPercent()
	mem, memErr := s.host.Memory()
	if cpuErr != nil || memErr != nil {
		if cpuErr != nil {
			s.logger.Error().Err(cpuErr).Msg("cpu read failed, recording zero sample")
		}
		if memErr != nil {
			s.logger.Error().Err(memErr).Msg("memory read failed, recording zero sample")
		}
		s.buffer.Append(sample)
		return sample
	}

	sample.CPUPercent = cpu
	sample.MemoryPercent = mem.UsedPercent
	sample.MemoryMB = mem.UsedMB
	sample.FreeMemoryMB = mem.FreeMB
	sample.TotalMemoryMB = mem.TotalMB

	if cores, err := s.host.Cores(); err == nil {
		sample.Cores = cores
	}
	if disk, err := s.host.DiskPercent(); err == nil {
		sample.DiskPercent = disk
	}
	if net, err := s.host.Network(); err == nil {
		sample.NetworkInMbps = net.InMbps
		sample.NetworkOutMbps = net.OutMbps
	}
	if load, err := s.host.LoadAvg(); err == nil {
		sample.LoadAvg1Min = load.Load1
		sample.LoadAvg5Min = load.Load5
		sample.LoadAvg15Min = load.Load15
	}
	if uptime, err := s.host.UptimeHours(); err == nil {
		sample.UptimeHours = uptime
	}

	s.buffer.Append(sample)
	return sample
}
