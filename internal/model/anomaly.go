// Package model provides data models for the device monitor.
package model

import "time"

// Anomaly records one rule violation. It is persisted before any AI
// analysis is attempted and never mutated afterwards.
type Anomaly struct {
	ID          int64     `json:"id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	RuleName    string    `json:"rule_id"` // the triggering rule's identifying name
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	MetricValue float64   `json:"metric_value"`
	DeviceID    string    `json:"device_id"`

	// Insight is attached on reads when one exists; absence is normal.
	Insight *Insight `json:"insight,omitempty"`
}

// InsightStatus classifies an AI insight.
type InsightStatus string

const (
	InsightStatusCritical InsightStatus = "CRITICAL"
	InsightStatusWarning  InsightStatus = "WARNING"
	InsightStatusInfo     InsightStatus = "INFO"
)

// Valid reports whether s is a known insight status.
func (s InsightStatus) Valid() bool {
	switch s {
	case InsightStatusCritical, InsightStatusWarning, InsightStatusInfo:
		return true
	}
	return false
}

// Insight is an optional AI-generated annotation attached to an anomaly
// after the fact. Best-effort: readers must tolerate its absence.
type Insight struct {
	RootCause       string        `json:"root_cause"`
	Recommendations string        `json:"recommendations"`
	Status          InsightStatus `json:"status"`
}
