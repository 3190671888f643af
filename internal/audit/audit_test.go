/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func waitForFlush(m *Manager) {
	m.Close()
}

func TestLogEventWritesAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	cfg := DefaultConfig()
	cfg.FlushIntervalSec = 3600 // rely on Close's drain, not the ticker
	m := NewManager(path, cfg)

	m.LogEvent(Event{EventType: EventTypeRoleTransition, Identifier: "node-1", Term: 3, Detail: "Follower -> Candidate"})
	m.LogEvent(Event{EventType: EventTypeVoteGranted, Identifier: "node-1", Term: 3, Detail: "granted to node-2"})
	waitForFlush(m)

	events, err := m.QueryLogs(QueryOptions{})
	if err != nil {
		t.Fatalf("QueryLogs failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
}

func TestShouldLogRespectsConfigFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	cfg := DefaultConfig()
	cfg.LogVotes = false
	cfg.FlushIntervalSec = 3600
	m := NewManager(path, cfg)

	m.LogEvent(Event{EventType: EventTypeVoteGranted, Identifier: "node-1"})
	m.LogEvent(Event{EventType: EventTypeRoleTransition, Identifier: "node-1"})
	waitForFlush(m)

	events, err := m.QueryLogs(QueryOptions{})
	if err != nil {
		t.Fatalf("QueryLogs failed: %v", err)
	}
	if len(events) != 1 || events[0].EventType != EventTypeRoleTransition {
		t.Fatalf("expected only the role transition event to be logged, got %+v", events)
	}
}

func TestQueryLogsFiltersByIdentifierAndTimeRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	cfg := DefaultConfig()
	cfg.FlushIntervalSec = 3600
	m := NewManager(path, cfg)

	past := time.Now().Add(-time.Hour)
	m.LogEvent(Event{EventType: EventTypeEntryCommitted, Identifier: "node-1", Timestamp: past})
	m.LogEvent(Event{EventType: EventTypeEntryCommitted, Identifier: "node-2", Timestamp: time.Now()})
	waitForFlush(m)

	events, err := m.QueryLogs(QueryOptions{Identifier: "node-2"})
	if err != nil {
		t.Fatalf("QueryLogs failed: %v", err)
	}
	if len(events) != 1 || events[0].Identifier != "node-2" {
		t.Fatalf("expected only node-2's event, got %+v", events)
	}

	events, err = m.QueryLogs(QueryOptions{StartTime: time.Now().Add(-time.Minute)})
	if err != nil {
		t.Fatalf("QueryLogs failed: %v", err)
	}
	if len(events) != 1 || events[0].Identifier != "node-2" {
		t.Fatalf("expected StartTime filter to exclude the stale event, got %+v", events)
	}
}

func TestExportLogsWritesJSONAndCSV(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.FlushIntervalSec = 3600
	m := NewManager(filepath.Join(dir, "audit.log"), cfg)

	m.LogEvent(Event{EventType: EventTypeRoleTransition, Identifier: "node-1", Term: 2, Detail: "FOLLOWER -> CANDIDATE"})
	m.LogEvent(Event{EventType: EventTypeEntryCommitted, Identifier: "node-1", Term: 2, Detail: "commit_index=0"})
	waitForFlush(m)

	jsonPath := filepath.Join(dir, "out.json")
	if err := m.ExportLogs(jsonPath, FormatJSON, QueryOptions{}); err != nil {
		t.Fatalf("ExportLogs(JSON) failed: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("reading JSON export: %v", err)
	}
	var exported []Event
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatalf("JSON export did not parse: %v", err)
	}
	if len(exported) != 2 {
		t.Fatalf("expected 2 exported events, got %d", len(exported))
	}

	csvPath := filepath.Join(dir, "out.csv")
	if err := m.ExportLogs(csvPath, FormatCSV, QueryOptions{EventType: EventTypeEntryCommitted}); err != nil {
		t.Fatalf("ExportLogs(CSV) failed: %v", err)
	}
	raw, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("reading CSV export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 { // header + the one filtered event
		t.Fatalf("expected header plus one CSV row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "ENTRY_COMMITTED") {
		t.Fatalf("CSV row missing event type: %q", lines[1])
	}
}

func TestQueryLogsOnMissingFileReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-written.log")
	cfg := DefaultConfig()
	m := NewManager(path, cfg)
	defer m.Close()

	events, err := m.QueryLogs(QueryOptions{})
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if events != nil {
		t.Fatalf("expected nil events, got %+v", events)
	}
}
