package service

import (
	"fmt"
	"testing"

	"device-monitor/internal/model"
)

func TestStatusLog_NewestFirst(t *testing.T) {
	log := NewStatusLog(10)

	for i := 0; i < 3; i++ {
		log.Append(model.StatusCheck{Message: fmt.Sprintf("check %d", i)})
	}

	entries := log.Entries()
	if len(entries) != 3 {
		t.Fatalf("Entries() returned %d, want 3", len(entries))
	}
	if entries[0].Message != "check 2" {
		t.Errorf("entries[0].Message = %q, want newest first", entries[0].Message)
	}
	if entries[2].Message != "check 0" {
		t.Errorf("entries[2].Message = %q, want oldest last", entries[2].Message)
	}
}

func TestStatusLog_BoundedCapacity(t *testing.T) {
	log := NewStatusLog(60)

	for i := 0; i < 75; i++ {
		log.Append(model.StatusCheck{Message: fmt.Sprintf("check %d", i)})
	}

	entries := log.Entries()
	if len(entries) != 60 {
		t.Fatalf("Entries() returned %d, want 60", len(entries))
	}
	if entries[0].Message != "check 74" {
		t.Errorf("head = %q, want the newest entry", entries[0].Message)
	}
	if entries[59].Message != "check 15" {
		t.Errorf("tail = %q, want check 15 (oldest 15 truncated)", entries[59].Message)
	}
}

func TestStatusLog_AssignsSequentialIDs(t *testing.T) {
	log := NewStatusLog(2)

	a := log.Append(model.StatusCheck{})
	b := log.Append(model.StatusCheck{})
	c := log.Append(model.StatusCheck{})

	if a.ID != 0 || b.ID != 1 || c.ID != 2 {
		t.Errorf("ids = %d, %d, %d, want 0, 1, 2 (sequence survives truncation)", a.ID, b.ID, c.ID)
	}
}

func TestStatusLog_ReadsAreIdempotent(t *testing.T) {
	log := NewStatusLog(5)
	log.Append(model.StatusCheck{Message: "only"})

	first := log.Entries()
	second := log.Entries()

	if len(first) != len(second) || first[0] != second[0] {
		t.Error("repeated Entries() calls returned different sequences")
	}

	// Mutating a returned slice must not touch the log.
	first[0].Message = "mutated"
	if log.Entries()[0].Message != "only" {
		t.Error("mutating a returned slice leaked into the log")
	}
}
