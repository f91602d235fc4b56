package sysinfo

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// parseCPUStat derives CPU utilization from the aggregate "cpu" line of
// /proc/stat: 100 - 100*idle/total, where idle includes iowait. The
// result is clamped to [0, 100].
func parseCPUStat(data []byte) (float64, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		fields := strings.Fields(line)[1:]
		if len(fields) < 4 {
			return 0, fmt.Errorf("malformed cpu line: %q", line)
		}
		var total, idle uint64
		for i, f := range fields {
			v, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("malformed cpu tick %q: %w", f, err)
			}
			total += v
			// Fields 3 and 4 are idle and iowait.
			if i == 3 || i == 4 {
				idle += v
			}
		}
		if total == 0 {
			return 0, nil
		}
		pct := 100 - 100*float64(idle)/float64(total)
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		return pct, nil
	}
	return 0, fmt.Errorf("no cpu line in stat data")
}

// countCores counts the per-core "cpuN" lines of /proc/stat.
func countCores(data []byte) int {
	count := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "cpu") && len(line) > 3 && line[3] >= '0' && line[3] <= '9' {
			count++
		}
	}
	return count
}

// parseMemInfo extracts memory and swap usage from /proc/meminfo.
// MemAvailable is preferred over MemFree when the kernel provides it.
func parseMemInfo(data []byte) (MemoryStats, error) {
	values := map[string]uint64{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		v, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		values[name] = v // kB
	}

	total := values["MemTotal"]
	if total == 0 {
		return MemoryStats{}, fmt.Errorf("meminfo missing MemTotal")
	}
	free, ok := values["MemAvailable"]
	if !ok {
		free = values["MemFree"]
	}
	used := total - free

	stats := MemoryStats{
		TotalMB:     float64(total) / 1024,
		FreeMB:      float64(free) / 1024,
		UsedMB:      float64(used) / 1024,
		UsedPercent: float64(used) / float64(total) * 100,
	}
	if swapTotal := values["SwapTotal"]; swapTotal > 0 {
		swapUsed := swapTotal - values["SwapFree"]
		stats.SwapPercent = float64(swapUsed) / float64(swapTotal) * 100
	}
	return stats, nil
}

// parseLoadAvg extracts the three load averages from /proc/loadavg.
func parseLoadAvg(data []byte) (LoadStats, error) {
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return LoadStats{}, fmt.Errorf("malformed loadavg data: %q", string(data))
	}
	var stats LoadStats
	var err error
	if stats.Load1, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return LoadStats{}, err
	}
	if stats.Load5, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return LoadStats{}, err
	}
	if stats.Load15, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return LoadStats{}, err
	}
	return stats, nil
}

// parseUptime extracts the uptime in seconds from /proc/uptime.
func parseUptime(data []byte) (float64, error) {
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty uptime data")
	}
	return strconv.ParseFloat(fields[0], 64)
}

// parseNetDev sums received and transmitted byte counters across all
// non-loopback interfaces in /proc/net/dev.
func parseNetDev(data []byte) (in, out uint64) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "lo" {
			continue
		}
		fields := strings.Fields(rest)
		// Column 0 is rx bytes, column 8 is tx bytes.
		if len(fields) < 9 {
			continue
		}
		rx, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		tx, err := strconv.ParseUint(fields[8], 10, 64)
		if err != nil {
			continue
		}
		in += rx
		out += tx
	}
	return in, out
}
