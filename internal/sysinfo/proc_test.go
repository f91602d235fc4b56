package sysinfo

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestParseCPUStat(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    float64
		wantErr bool
	}{
		{
			// user nice system idle iowait: total 1000, idle+iowait 500
			name: "half busy",
			data: "cpu  300 100 100 400 100 0 0 0\ncpu0 150 50 50 200 50 0 0 0\n",
			want: 50,
		},
		{
			name: "fully idle",
			data: "cpu  0 0 0 1000 0\n",
			want: 0,
		},
		{
			name: "fully busy",
			data: "cpu  1000 0 0 0 0\n",
			want: 100,
		},
		{
			name: "zero ticks",
			data: "cpu  0 0 0 0\n",
			want: 0,
		},
		{
			name:    "missing cpu line",
			data:    "intr 12345\n",
			wantErr: true,
		},
		{
			name:    "malformed tick",
			data:    "cpu  100 abc 100 100\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCPUStat([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCPUStat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && !almostEqual(got, tt.want) {
				t.Errorf("parseCPUStat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCountCores(t *testing.T) {
	data := "cpu  1 2 3 4\ncpu0 1 1 1 1\ncpu1 1 1 1 1\ncpu2 1 1 1 1\nintr 5\n"
	if got := countCores([]byte(data)); got != 3 {
		t.Errorf("countCores() = %d, want 3", got)
	}
}

func TestParseMemInfo(t *testing.T) {
	data := `MemTotal:       16384000 kB
MemFree:         2048000 kB
MemAvailable:    8192000 kB
SwapTotal:       4096000 kB
SwapFree:        3072000 kB
`
	stats, err := parseMemInfo([]byte(data))
	if err != nil {
		t.Fatalf("parseMemInfo() error = %v", err)
	}

	if !almostEqual(stats.TotalMB, 16000) {
		t.Errorf("TotalMB = %v, want 16000", stats.TotalMB)
	}
	// MemAvailable preferred over MemFree.
	if !almostEqual(stats.FreeMB, 8000) {
		t.Errorf("FreeMB = %v, want 8000 from MemAvailable", stats.FreeMB)
	}
	if !almostEqual(stats.UsedPercent, 50) {
		t.Errorf("UsedPercent = %v, want 50", stats.UsedPercent)
	}
	if !almostEqual(stats.SwapPercent, 25) {
		t.Errorf("SwapPercent = %v, want 25", stats.SwapPercent)
	}
}

func TestParseMemInfo_NoMemAvailable(t *testing.T) {
	data := "MemTotal: 1000 kB\nMemFree: 400 kB\n"
	stats, err := parseMemInfo([]byte(data))
	if err != nil {
		t.Fatalf("parseMemInfo() error = %v", err)
	}
	if !almostEqual(stats.UsedPercent, 60) {
		t.Errorf("UsedPercent = %v, want 60 from MemFree fallback", stats.UsedPercent)
	}
	if stats.SwapPercent != 0 {
		t.Errorf("SwapPercent = %v, want 0 without swap", stats.SwapPercent)
	}
}

func TestParseMemInfo_MissingTotal(t *testing.T) {
	if _, err := parseMemInfo([]byte("MemFree: 100 kB\n")); err == nil {
		t.Error("parseMemInfo() error = nil, want missing MemTotal error")
	}
}

func TestParseLoadAvg(t *testing.T) {
	stats, err := parseLoadAvg([]byte("1.25 0.50 0.10 2/345 6789\n"))
	if err != nil {
		t.Fatalf("parseLoadAvg() error = %v", err)
	}
	if stats.Load1 != 1.25 || stats.Load5 != 0.5 || stats.Load15 != 0.1 {
		t.Errorf("parseLoadAvg() = %+v, want 1.25/0.50/0.10", stats)
	}

	if _, err := parseLoadAvg([]byte("1.0 2.0")); err == nil {
		t.Error("parseLoadAvg() error = nil for truncated data")
	}
}

func TestParseUptime(t *testing.T) {
	sec, err := parseUptime([]byte("7200.50 14000.00\n"))
	if err != nil {
		t.Fatalf("parseUptime() error = %v", err)
	}
	if sec != 7200.5 {
		t.Errorf("parseUptime() = %v, want 7200.5", sec)
	}
}

func TestParseNetDev(t *testing.T) {
	data := `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
    lo: 9999999    100    0    0    0     0          0         0  9999999     100    0    0    0     0       0          0
  eth0: 1000000    500    0    0    0     0          0         0   500000     400    0    0    0     0       0          0
 wlan0: 2000000    600    0    0    0     0          0         0   250000     300    0    0    0     0       0          0
`
	in, out := parseNetDev([]byte(data))
	// Loopback is excluded from both directions.
	if in != 3000000 {
		t.Errorf("rx bytes = %d, want 3000000", in)
	}
	if out != 750000 {
		t.Errorf("tx bytes = %d, want 750000", out)
	}
}

func TestParsePIDStat(t *testing.T) {
	// comm contains spaces and parens; fields after ')' follow the
	// kernel layout.
	line := "1234 (my (odd) proc) S 1 1234 1234 0 -1 4194560 100 0 0 0 250 150 0 0 20 0 4 0 12345 104857600 2560 18446744073709551615 0 0 0 0 0 0 0 0 0 0 0 0 17 3 0 0 0 0 0"
	st, err := parsePIDStat([]byte(line))
	if err != nil {
		t.Fatalf("parsePIDStat() error = %v", err)
	}
	if st.comm != "my (odd) proc" {
		t.Errorf("comm = %q, want the full parenthesized name", st.comm)
	}
	if st.state != "S" {
		t.Errorf("state = %q, want S", st.state)
	}
	if st.utime != 250 || st.stime != 150 {
		t.Errorf("utime/stime = %d/%d, want 250/150", st.utime, st.stime)
	}
	if st.starttime != 12345 {
		t.Errorf("starttime = %d, want 12345", st.starttime)
	}
	if st.rssPages != 2560 {
		t.Errorf("rss = %d, want 2560", st.rssPages)
	}
}

func TestParsePIDStat_Malformed(t *testing.T) {
	if _, err := parsePIDStat([]byte("1234 no-parens S 1")); err == nil {
		t.Error("parsePIDStat() error = nil for a line without parens")
	}
	if _, err := parsePIDStat([]byte("1234 (x) S 1 2 3")); err == nil {
		t.Error("parsePIDStat() error = nil for a truncated line")
	}
}
