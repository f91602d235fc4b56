package service

import (
	"context"
	"sync"

	"device-monitor/internal/model"
	"device-monitor/internal/sysinfo"
)

// fakeHost is a HostReader returning canned values.
type fakeHost struct {
	cpu     float64
	cpuErr  error
	cores   int
	mem     sysinfo.MemoryStats
	memErr  error
	load    sysinfo.LoadStats
	loadErr error
	uptime  float64
	disk    float64
	diskErr error
	net     sysinfo.NetworkStats
	netErr  error
	procs   []model.ProcessInfo
	procErr error
}

func (f *fakeHost) CPUPercent() (float64, error)            { return f.cpu, f.cpuErr }
func (f *fakeHost) Cores() (int, error)                     { return f.cores, nil }
func (f *fakeHost) Memory() (sysinfo.MemoryStats, error)    { return f.mem, f.memErr }
func (f *fakeHost) LoadAvg() (sysinfo.LoadStats, error)     { return f.load, f.loadErr }
func (f *fakeHost) UptimeHours() (float64, error)           { return f.uptime, nil }
func (f *fakeHost) DiskPercent() (float64, error)           { return f.disk, f.diskErr }
func (f *fakeHost) Network() (sysinfo.NetworkStats, error)  { return f.net, f.netErr }
func (f *fakeHost) Processes() ([]model.ProcessInfo, error) { return f.procs, f.procErr }

// fakeStore is an in-memory store.Store with injectable failures.
type fakeStore struct {
	mu sync.Mutex

	aggregates   []*model.Aggregate
	insertAggErr error

	latest    *model.Aggregate
	latestErr error

	rules    []*model.Rule
	rulesErr error

	anomalies  []*model.Anomaly
	anomalyErr error
	nextID     int64

	insights   map[int64]*model.Insight
	insightErr error

	chat []*model.ChatMessage
}

func newFakeStore() *fakeStore {
	return &fakeStore{insights: make(map[int64]*model.Insight)}
}

func (s *fakeStore) InsertAggregate(ctx context.Context, agg *model.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertAggErr != nil {
		return s.insertAggErr
	}
	s.aggregates = append(s.aggregates, agg)
	s.latest = agg
	return nil
}

func (s *fakeStore) LatestAggregate(ctx context.Context, deviceID string) (*model.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latestErr != nil {
		return nil, s.latestErr
	}
	return s.latest, nil
}

func (s *fakeStore) AggregateHistory(ctx context.Context, deviceID string, hours int) ([]*model.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggregates, nil
}

func (s *fakeStore) EnabledRules(ctx context.Context, deviceID string) ([]*model.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rulesErr != nil {
		return nil, s.rulesErr
	}
	return s.rules, nil
}

func (s *fakeStore) InsertRule(ctx context.Context, rule *model.Rule) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rule.ID = s.nextID
	s.rules = append(s.rules, rule)
	return rule.ID, nil
}

func (s *fakeStore) SeedRules(ctx context.Context, deviceID string, rules []*model.Rule) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rules...)
	return len(rules), nil
}

func (s *fakeStore) InsertAnomaly(ctx context.Context, anomaly *model.Anomaly) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.anomalyErr != nil {
		return 0, s.anomalyErr
	}
	s.nextID++
	anomaly.ID = s.nextID
	s.anomalies = append(s.anomalies, anomaly)
	return anomaly.ID, nil
}

func (s *fakeStore) InsertInsight(ctx context.Context, anomalyID int64, insight *model.Insight, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insightErr != nil {
		return s.insightErr
	}
	s.insights[anomalyID] = insight
	return nil
}

func (s *fakeStore) RecentAnomalies(ctx context.Context, deviceID string, limit int) ([]*model.Anomaly, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anomalies, nil
}

func (s *fakeStore) InsertChatMessage(ctx context.Context, msg *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = append(s.chat, msg)
	return nil
}

func (s *fakeStore) ChatHistory(ctx context.Context, deviceID string, limit int) ([]*model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat, nil
}

func (s *fakeStore) Close() error { return nil }

// fakeAnalyzer returns a canned insight and records calls.
type fakeAnalyzer struct {
	insight *model.Insight
	calls   int
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, ruleName string, agg *model.Aggregate) *model.Insight {
	a.calls++
	return a.insight
}
