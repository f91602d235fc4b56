package sysinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"device-monitor/internal/model"
)

// clockTicksPerSecond is the kernel USER_HZ value. Linux has reported
// 100 on every mainstream architecture for decades.
const clockTicksPerSecond = 100

// Process snapshot tuning, matching the dashboard's process panel: only
// processes above the memory floor, ordered by CPU, top N.
const (
	processMemoryFloorMB = 10
	processSnapshotLimit = 15
)

// pidStat holds the fields of one /proc/<pid>/stat line used here.
type pidStat struct {
	comm      string
	state     string
	utime     uint64
	stime     uint64
	starttime uint64
	rssPages  uint64
}

// Processes returns a snapshot of the heaviest running processes: those
// holding more than 10 MB of resident memory, ordered by CPU descending,
// capped at 15 entries.
func (r *Reader) Processes() ([]model.ProcessInfo, error) {
	entries, err := os.ReadDir(r.procRoot)
	if err != nil {
		return nil, err
	}

	uptimeData, err := os.ReadFile(filepath.Join(r.procRoot, "uptime"))
	if err != nil {
		return nil, err
	}
	uptimeSec, err := parseUptime(uptimeData)
	if err != nil {
		return nil, err
	}

	mem, err := r.Memory()
	if err != nil {
		return nil, err
	}

	pageSizeMB := float64(os.Getpagesize()) / 1024 / 1024

	var procs []model.ProcessInfo
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.procRoot, entry.Name(), "stat"))
		if err != nil {
			// Process exited between ReadDir and ReadFile.
			continue
		}
		st, err := parsePIDStat(data)
		if err != nil {
			continue
		}

		memMB := float64(st.rssPages) * pageSizeMB
		if memMB <= processMemoryFloorMB {
			continue
		}

		// Average CPU over the process lifetime; a per-interval delta
		// would need two snapshots per process.
		aliveSec := uptimeSec - float64(st.starttime)/clockTicksPerSecond
		var cpuPct float64
		if aliveSec > 0 {
			cpuPct = float64(st.utime+st.stime) / clockTicksPerSecond / aliveSec * 100
		}

		info := model.ProcessInfo{
			PID:        pid,
			Name:       st.comm,
			CPUPercent: cpuPct,
			MemoryMB:   memMB,
			Status:     st.state,
		}
		if mem.TotalMB > 0 {
			info.MemoryPercent = memMB / mem.TotalMB * 100
		}
		procs = append(procs, info)
	}

	sort.Slice(procs, func(i, j int) bool {
		return procs[i].CPUPercent > procs[j].CPUPercent
	})
	if len(procs) > processSnapshotLimit {
		procs = procs[:processSnapshotLimit]
	}
	return procs, nil
}

// parsePIDStat parses one /proc/<pid>/stat line. The comm field is
// parenthesized and may contain spaces, so fields are split after the
// closing paren.
func parsePIDStat(data []byte) (*pidStat, error) {
	s := string(data)
	open := strings.IndexByte(s, '(')
	close := strings.LastIndexByte(s, ')')
	if open < 0 || close < 0 || close < open {
		return nil, fmt.Errorf("malformed stat line: %q", s)
	}

	st := &pidStat{comm: s[open+1 : close]}

	// Fields after comm, 0-indexed: [0]=state, [11]=utime, [12]=stime,
	// [19]=starttime, [21]=rss.
	fields := strings.Fields(s[close+1:])
	if len(fields) < 22 {
		return nil, fmt.Errorf("stat line has %d fields, want >= 22", len(fields))
	}
	st.state = fields[0]

	var err error
	if st.utime, err = strconv.ParseUint(fields[11], 10, 64); err != nil {
		return nil, err
	}
	if st.stime, err = strconv.ParseUint(fields[12], 10, 64); err != nil {
		return nil, err
	}
	if st.starttime, err = strconv.ParseUint(fields[19], 10, 64); err != nil {
		return nil, err
	}
	if st.rssPages, err = strconv.ParseUint(fields[21], 10, 64); err != nil {
		return nil, err
	}
	return st, nil
}
