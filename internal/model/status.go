// Package model provides data models for the device monitor.
package model

import "time"

// StatusOK is the status tag of a check that found no anomaly. Checks
// that did find one carry the matched rule's severity as their tag.
const StatusOK = "OK"

// StatusCheck is one per-tick summary entry in the rolling status log.
// Entries are volatile process state and do not survive a restart.
type StatusCheck struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	HasError      bool      `json:"hasError"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
}

// ChatMessage is one stored chat exchange with the assistant, together
// with the metrics context the response was grounded on.
type ChatMessage struct {
	ID         int64     `json:"id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	DeviceID   string    `json:"device_id"`
	Message    string    `json:"message"`
	Response   string    `json:"response"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}
