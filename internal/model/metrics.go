// Package model provides data models for the device monitor.
package model

import "time"

// Sample is a single point-in-time host measurement taken by the Sampler.
// Samples are immutable once created and live only in the sample buffer.
type Sample struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryMB      float64   `json:"memory_mb"`
	DiskPercent   float64   `json:"disk_percent"`
	NetworkInMbps float64   `json:"network_in_mbps"`
	NetworkOutMbps float64  `json:"network_out_mbps"`
	LoadAvg1Min   float64   `json:"load_avg_1min"`
	LoadAvg5Min   float64   `json:"load_avg_5min"`
	LoadAvg15Min  float64   `json:"load_avg_15min"`
	UptimeHours   float64   `json:"uptime_hours"`
	FreeMemoryMB  float64   `json:"free_memory_mb"`
	TotalMemoryMB float64   `json:"total_memory_mb"`
	Cores         int       `json:"cores"`
	DeviceID      string    `json:"device_id"`
}

// Aggregate is one periodic reduction of buffered samples plus
// point-in-time extras (swap, process snapshot). It is the unit the
// detector evaluates rules against.
type Aggregate struct {
	ID        int64     `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	DeviceID  string    `json:"device_id"`

	// Averaged over the sample window.
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	MemoryMB       float64 `json:"memory_mb"`
	DiskPercent    float64 `json:"disk_percent"`
	NetworkInMbps  float64 `json:"network_in_mbps"`
	NetworkOutMbps float64 `json:"network_out_mbps"`
	LoadAvg1Min    float64 `json:"load_avg_1min"`
	LoadAvg5Min    float64 `json:"load_avg_5min"`
	LoadAvg15Min   float64 `json:"load_avg_15min"`

	// Latest-observed values (monotonic or slow-moving, not averaged).
	UptimeHours   float64 `json:"uptime_hours"`
	FreeMemoryMB  float64 `json:"free_memory_mb"`
	TotalMemoryMB float64 `json:"total_memory_mb"`

	// Real-time snapshot taken at aggregation time, not from the buffer.
	SwapPercent float64 `json:"swap_percent"`

	// Top-process summary from the aggregation-time process snapshot.
	TopProcessName     string  `json:"top_process_name,omitempty"`
	TopProcessCPU      float64 `json:"top_process_cpu,omitempty"`
	TopProcessMemoryMB float64 `json:"top_process_memory_mb,omitempty"`
	TotalProcesses     int     `json:"total_processes"`

	// Application-level metrics (synthesized unless an exporter feeds them).
	P50Latency float64 `json:"p50_latency"`
	P95Latency float64 `json:"p95_latency"`
	P99Latency float64 `json:"p99_latency"`
	ErrorRate  float64 `json:"error_rate"`
}

// Field returns the named metric field off the aggregate for rule
// evaluation. Unknown fields evaluate as 0.
func (a *Aggregate) Field(name string) float64 {
	switch name {
	case "cpu_percent":
		return a.CPUPercent
	case "memory_percent":
		return a.MemoryPercent
	case "memory_mb":
		return a.MemoryMB
	case "disk_percent":
		return a.DiskPercent
	case "network_in_mbps":
		return a.NetworkInMbps
	case "network_out_mbps":
		return a.NetworkOutMbps
	case "load_avg_1min":
		return a.LoadAvg1Min
	case "load_avg_5min":
		return a.LoadAvg5Min
	case "load_avg_15min":
		return a.LoadAvg15Min
	case "uptime_hours":
		return a.UptimeHours
	case "free_memory_mb":
		return a.FreeMemoryMB
	case "total_memory_mb":
		return a.TotalMemoryMB
	case "swap_percent":
		return a.SwapPercent
	case "total_processes":
		return float64(a.TotalProcesses)
	case "p50_latency":
		return a.P50Latency
	case "p95_latency":
		return a.P95Latency
	case "p99_latency":
		return a.P99Latency
	case "error_rate":
		return a.ErrorRate
	default:
		return 0
	}
}

// ProcessInfo describes one running process in a process snapshot.
type ProcessInfo struct {
	PID           int     `json:"pid"`
	Name          string  `json:"name"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryMB      float64 `json:"memory_mb"`
	MemoryPercent float64 `json:"memory_percent"`
	Status        string  `json:"status"`
}
