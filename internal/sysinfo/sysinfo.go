// Package sysinfo reads raw host statistics from the operating system.
// All readers are best-effort: callers substitute zero values on error.
package sysinfo

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// MemoryStats holds a point-in-time memory snapshot in megabytes and
// percentages.
type MemoryStats struct {
	TotalMB     float64
	FreeMB      float64
	UsedMB      float64
	UsedPercent float64
	SwapPercent float64
}

// LoadStats holds the 1/5/15 minute load averages.
type LoadStats struct {
	Load1  float64
	Load5  float64
	Load15 float64
}

// NetworkStats holds the measured network throughput since the previous
// read, in megabits per second.
type NetworkStats struct {
	InMbps  float64
	OutMbps float64
}

// Reader reads host statistics from procfs and the filesystem. The proc
// root and disk mount point are configurable so tests can point the
// reader at fixture files.
type Reader struct {
	procRoot string
	diskPath string

	mu          sync.Mutex
	lastNetAt   time.Time
	lastNetIn   uint64
	lastNetOut  uint64
	haveLastNet bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithProcRoot overrides the procfs mount point (default /proc).
func WithProcRoot(root string) Option {
	return func(r *Reader) { r.procRoot = root }
}

// WithDiskPath overrides the path whose filesystem is measured for disk
// usage (default /).
func WithDiskPath(path string) Option {
	return func(r *Reader) { r.diskPath = path }
}

// New creates a Reader for the local host.
func New(opts ...Option) *Reader {
	r := &Reader{
		procRoot: "/proc",
		diskPath: "/",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CPUPercent returns the overall CPU utilization derived from the
// idle/total tick ratio of a single /proc/stat snapshot, clamped to
// [0, 100]. Each call is a fresh best-effort reading, not a delta from
// the previous call.
func (r *Reader) CPUPercent() (float64, error) {
	data, err := os.ReadFile(filepath.Join(r.procRoot, "stat"))
	if err != nil {
		return 0, err
	}
	return parseCPUStat(data)
}

// Cores returns the number of logical CPUs reported by /proc/stat.
func (r *Reader) Cores() (int, error) {
	data, err := os.ReadFile(filepath.Join(r.procRoot, "stat"))
	if err != nil {
		return 0, err
	}
	return countCores(data), nil
}

// Memory returns the current memory and swap usage from /proc/meminfo.
func (r *Reader) Memory() (MemoryStats, error) {
	data, err := os.ReadFile(filepath.Join(r.procRoot, "meminfo"))
	if err != nil {
		return MemoryStats{}, err
	}
	return parseMemInfo(data)
}

// LoadAvg returns the load averages from /proc/loadavg.
func (r *Reader) LoadAvg() (LoadStats, error) {
	data, err := os.ReadFile(filepath.Join(r.procRoot, "loadavg"))
	if err != nil {
		return LoadStats{}, err
	}
	return parseLoadAvg(data)
}

// UptimeHours returns the host uptime in hours from /proc/uptime.
func (r *Reader) UptimeHours() (float64, error) {
	data, err := os.ReadFile(filepath.Join(r.procRoot, "uptime"))
	if err != nil {
		return 0, err
	}
	seconds, err := parseUptime(data)
	if err != nil {
		return 0, err
	}
	return seconds / 3600, nil
}

// DiskPercent returns the used percentage of the filesystem holding the
// configured disk path.
func (r *Reader) DiskPercent() (float64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(r.diskPath, &st); err != nil {
		return 0, err
	}
	total := st.Blocks
	if total == 0 {
		return 0, nil
	}
	used := st.Blocks - st.Bfree
	// Percentage relative to space available to unprivileged users,
	// matching what df reports.
	avail := used + st.Bavail
	if avail == 0 {
		return 0, nil
	}
	return float64(used) / float64(avail) * 100, nil
}

// Network returns the throughput since the previous call, computed from
// /proc/net/dev counter deltas. The first call primes the counters and
// reports zero.
func (r *Reader) Network() (NetworkStats, error) {
	data, err := os.ReadFile(filepath.Join(r.procRoot, "net", "dev"))
	if err != nil {
		return NetworkStats{}, err
	}
	in, out := parseNetDev(data)

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	stats := NetworkStats{}
	if r.haveLastNet {
		elapsed := now.Sub(r.lastNetAt).Seconds()
		if elapsed > 0 && in >= r.lastNetIn && out >= r.lastNetOut {
			stats.InMbps = float64(in-r.lastNetIn) * 8 / 1e6 / elapsed
			stats.OutMbps = float64(out-r.lastNetOut) * 8 / 1e6 / elapsed
		}
	}
	r.lastNetAt = now
	r.lastNetIn = in
	r.lastNetOut = out
	r.haveLastNet = true
	return stats, nil
}
