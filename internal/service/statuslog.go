package service

import (
	"sync"
	"time"

	"device-monitor/internal/model"
)

// DefaultStatusLogCap keeps roughly one hour of per-minute checks.
const DefaultStatusLogCap = 60

// StatusLog is the bounded, newest-first rolling log of status checks.
// It is volatile process state: a restart empties it and restarts the
// id sequence.
type StatusLog struct {
	mu      sync.Mutex
	entries []model.StatusCheck
	cap     int
	nextID  int64
}

// NewStatusLog creates a log holding at most capacity entries. A
// non-positive capacity falls back to DefaultStatusLogCap.
func NewStatusLog(capacity int) *StatusLog {
	if capacity <= 0 {
		capacity = DefaultStatusLogCap
	}
	return &StatusLog{
		entries: make([]model.StatusCheck, 0, capacity),
		cap:     capacity,
	}
}

// Append records one status check at the head of the log, assigns it the
// next sequence id, and truncates the oldest entries past capacity.
func (l *StatusLog) Append(check model.StatusCheck) model.StatusCheck {
	l.mu.Lock()
	defer l.mu.Unlock()

	check.ID = l.nextID
	l.nextID++
	if check.Timestamp.IsZero() {
		check.Timestamp = time.Now()
	}

	l.entries = append([]model.StatusCheck{check}, l.entries...)
	if len(l.entries) > l.cap {
		l.entries = l.entries[:l.cap]
	}
	return check
}

// Entries returns the full log, newest first. The returned slice is a
// copy; repeated calls without intervening appends return identical
// sequences.
func (l *StatusLog) Entries() []model.StatusCheck {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.StatusCheck, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of logged entries.
func (l *StatusLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
