package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"device-monitor/internal/model"
)

// OpenDB opens (creating if needed) the SQLite database at path and
// applies migrations.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at INTEGER NOT NULL,
			device_id TEXT NOT NULL,
			cpu_percent REAL NOT NULL,
			memory_percent REAL NOT NULL,
			memory_mb REAL NOT NULL DEFAULT 0,
			disk_percent REAL NOT NULL DEFAULT 0,
			network_in_mbps REAL NOT NULL DEFAULT 0,
			network_out_mbps REAL NOT NULL DEFAULT 0,
			load_avg_1min REAL NOT NULL DEFAULT 0,
			load_avg_5min REAL NOT NULL DEFAULT 0,
			load_avg_15min REAL NOT NULL DEFAULT 0,
			uptime_hours REAL NOT NULL DEFAULT 0,
			free_memory_mb REAL NOT NULL DEFAULT 0,
			total_memory_mb REAL NOT NULL DEFAULT 0,
			swap_percent REAL NOT NULL DEFAULT 0,
			top_process_name TEXT NOT NULL DEFAULT '',
			top_process_cpu REAL NOT NULL DEFAULT 0,
			top_process_memory_mb REAL NOT NULL DEFAULT 0,
			total_processes INTEGER NOT NULL DEFAULT 0,
			p50_latency REAL NOT NULL DEFAULT 0,
			p95_latency REAL NOT NULL DEFAULT 0,
			p99_latency REAL NOT NULL DEFAULT 0,
			error_rate REAL NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_device_created ON metrics(device_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			condition TEXT NOT NULL,
			comparison TEXT NOT NULL DEFAULT 'gt',
			threshold REAL NOT NULL,
			severity TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			device_id TEXT NOT NULL,
			UNIQUE(device_id, name)
		);`,
		`CREATE TABLE IF NOT EXISTS anomalies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at INTEGER NOT NULL,
			rule_name TEXT NOT NULL,
			severity TEXT NOT NULL,
			description TEXT NOT NULL,
			metric_value REAL NOT NULL,
			device_id TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_anomalies_device_created ON anomalies(device_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS insights (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			anomaly_id INTEGER NOT NULL,
			root_cause TEXT NOT NULL,
			recommendations TEXT NOT NULL,
			status TEXT NOT NULL,
			device_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			FOREIGN KEY(anomaly_id) REFERENCES anomalies(id)
		);`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at INTEGER NOT NULL,
			device_id TEXT NOT NULL,
			message TEXT NOT NULL,
			response TEXT NOT NULL,
			cpu_percent REAL NOT NULL DEFAULT 0,
			memory_percent REAL NOT NULL DEFAULT 0
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an opened database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Open opens the database at path and returns a ready store.
func Open(path string) (*SQLiteStore, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewSQLiteStore(db), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const aggregateColumns = `created_at, device_id, cpu_percent, memory_percent, memory_mb,
	disk_percent, network_in_mbps, network_out_mbps,
	load_avg_1min, load_avg_5min, load_avg_15min,
	uptime_hours, free_memory_mb, total_memory_mb, swap_percent,
	top_process_name, top_process_cpu, top_process_memory_mb, total_processes,
	p50_latency, p95_latency, p99_latency, error_rate`

func (s *SQLiteStore) InsertAggregate(ctx context.Context, agg *model.Aggregate) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metrics (`+aggregateColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		agg.CreatedAt.Unix(), agg.DeviceID, agg.CPUPercent, agg.MemoryPercent, agg.MemoryMB,
		agg.DiskPercent, agg.NetworkInMbps, agg.NetworkOutMbps,
		agg.LoadAvg1Min, agg.LoadAvg5Min, agg.LoadAvg15Min,
		agg.UptimeHours, agg.FreeMemoryMB, agg.TotalMemoryMB, agg.SwapPercent,
		agg.TopProcessName, agg.TopProcessCPU, agg.TopProcessMemoryMB, agg.TotalProcesses,
		agg.P50Latency, agg.P95Latency, agg.P99Latency, agg.ErrorRate,
	)
	return err
}

func scanAggregate(row interface{ Scan(...any) error }) (*model.Aggregate, error) {
	var agg model.Aggregate
	var createdAt int64
	err := row.Scan(
		&agg.ID, &createdAt, &agg.DeviceID, &agg.CPUPercent, &agg.MemoryPercent, &agg.MemoryMB,
		&agg.DiskPercent, &agg.NetworkInMbps, &agg.NetworkOutMbps,
		&agg.LoadAvg1Min, &agg.LoadAvg5Min, &agg.LoadAvg15Min,
		&agg.UptimeHours, &agg.FreeMemoryMB, &agg.TotalMemoryMB, &agg.SwapPercent,
		&agg.TopProcessName, &agg.TopProcessCPU, &agg.TopProcessMemoryMB, &agg.TotalProcesses,
		&agg.P50Latency, &agg.P95Latency, &agg.P99Latency, &agg.ErrorRate,
	)
	if err != nil {
		return nil, err
	}
	agg.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &agg, nil
}

func (s *SQLiteStore) LatestAggregate(ctx context.Context, deviceID string) (*model.Aggregate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, `+aggregateColumns+`
		 FROM metrics WHERE device_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`, deviceID,
	)
	agg, err := scanAggregate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return agg, err
}

func (s *SQLiteStore) AggregateHistory(ctx context.Context, deviceID string, hours int) ([]*model.Aggregate, error) {
	if hours <= 0 {
		hours = 1
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, `+aggregateColumns+`
		 FROM metrics WHERE device_id = ? AND created_at >= ?
		 ORDER BY created_at DESC, id DESC`, deviceID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*model.Aggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, agg)
	}
	return history, rows.Err()
}

func (s *SQLiteStore) EnabledRules(ctx context.Context, deviceID string) ([]*model.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, condition, comparison, threshold, severity, enabled, device_id
		 FROM rules WHERE device_id = ? AND enabled = 1
		 ORDER BY id`, deviceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*model.Rule
	for rows.Next() {
		var r model.Rule
		if err := rows.Scan(&r.ID, &r.Name, &r.Condition, &r.Comparison, &r.Threshold, &r.Severity, &r.Enabled, &r.DeviceID); err != nil {
			return nil, err
		}
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}

func (s *SQLiteStore) InsertRule(ctx context.Context, rule *model.Rule) (int64, error) {
	comparison := rule.Comparison
	if comparison == "" {
		comparison = model.ComparisonGT
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rules (name, condition, comparison, threshold, severity, enabled, device_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.Name, rule.Condition, comparison, rule.Threshold, rule.Severity, rule.Enabled, rule.DeviceID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SeedRules inserts the given rules for the device, skipping names that
// already exist, and returns how many were inserted.
func (s *SQLiteStore) SeedRules(ctx context.Context, deviceID string, rules []*model.Rule) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM rules WHERE device_id = ?`, deviceID)
	if err != nil {
		return 0, err
	}
	existing := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return 0, err
		}
		existing[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	inserted := 0
	for _, rule := range rules {
		if existing[rule.Name] {
			continue
		}
		seeded := *rule
		seeded.DeviceID = deviceID
		if _, err := s.InsertRule(ctx, &seeded); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func (s *SQLiteStore) InsertAnomaly(ctx context.Context, anomaly *model.Anomaly) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO anomalies (created_at, rule_name, severity, description, metric_value, device_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		anomaly.CreatedAt.Unix(), anomaly.RuleName, anomaly.Severity, anomaly.Description, anomaly.MetricValue, anomaly.DeviceID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) InsertInsight(ctx context.Context, anomalyID int64, insight *model.Insight, deviceID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO insights (anomaly_id, root_cause, recommendations, status, device_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		anomalyID, insight.RootCause, insight.Recommendations, insight.Status, deviceID, time.Now().Unix(),
	)
	return err
}

func (s *SQLiteStore) RecentAnomalies(ctx context.Context, deviceID string, limit int) ([]*model.Anomaly, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.created_at, a.rule_name, a.severity, a.description, a.metric_value, a.device_id,
		        i.root_cause, i.recommendations, i.status
		 FROM anomalies a
		 LEFT JOIN insights i ON i.anomaly_id = a.id
		 WHERE a.device_id = ?
		 ORDER BY a.created_at DESC, a.id DESC
		 LIMIT ?`, deviceID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var anomalies []*model.Anomaly
	for rows.Next() {
		var a model.Anomaly
		var createdAt int64
		var rootCause, recommendations, status sql.NullString
		if err := rows.Scan(&a.ID, &createdAt, &a.RuleName, &a.Severity, &a.Description, &a.MetricValue, &a.DeviceID,
			&rootCause, &recommendations, &status); err != nil {
			return nil, err
		}
		a.CreatedAt = time.Unix(createdAt, 0).UTC()
		if rootCause.Valid {
			a.Insight = &model.Insight{
				RootCause:       rootCause.String,
				Recommendations: recommendations.String,
				Status:          model.InsightStatus(status.String),
			}
		}
		anomalies = append(anomalies, &a)
	}
	return anomalies, rows.Err()
}

func (s *SQLiteStore) InsertChatMessage(ctx context.Context, msg *model.ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (created_at, device_id, message, response, cpu_percent, memory_percent)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.CreatedAt.Unix(), msg.DeviceID, msg.Message, msg.Response, msg.CPUPercent, msg.MemoryPercent,
	)
	return err
}

func (s *SQLiteStore) ChatHistory(ctx context.Context, deviceID string, limit int) ([]*model.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, device_id, message, response, cpu_percent, memory_percent
		 FROM chat_messages WHERE device_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`, deviceID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		var createdAt int64
		if err := rows.Scan(&m.ID, &createdAt, &m.DeviceID, &m.Message, &m.Response, &m.CPUPercent, &m.MemoryPercent); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(createdAt, 0).UTC()
		history = append(history, &m)
	}
	return history, rows.Err()
}
