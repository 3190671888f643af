/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

/*
Package audit provides the cluster audit trail for raftkit.

Every role transition, vote, commit, and membership change a node
experiences is worth a durable record independent of the raft log
itself — an operator diagnosing a bad election wants to see "node-3
became Candidate at term 9, then stepped down" even though that
sequence never appears as a committed log entry. The audit manager
batches these events and appends them, newline-delimited JSON, to a
local file, asynchronously so that logging an event never blocks the
raft state machine that raised it.

Event Types:

  - RoleTransition: a node's role changed (role table output)
  - VoteGranted / VoteDenied: a RequestVoteResponse was produced
  - EntryCommitted: commit_index advanced
  - NodeJoin / NodeLeave: a node appeared or disappeared from mDNS
    discovery (internal/discovery)
  - Failover: a leader was judged unreachable and a new election began
*/
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fireflyoss/raftkit/internal/logging"
)

// EventType represents the type of audit event.
type EventType string

const (
	EventTypeRoleTransition EventType = "ROLE_TRANSITION"
	EventTypeVoteGranted    EventType = "VOTE_GRANTED"
	EventTypeVoteDenied     EventType = "VOTE_DENIED"
	EventTypeEntryCommitted EventType = "ENTRY_COMMITTED"
	EventTypeNodeJoin       EventType = "NODE_JOIN"
	EventTypeNodeLeave      EventType = "NODE_LEAVE"
	EventTypeFailover       EventType = "FAILOVER"
)

// Event represents a single audit log entry.
type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  EventType         `json:"event_type"`
	Identifier string            `json:"identifier"` // node this event concerns
	Term       uint64            `json:"term"`
	Detail     string            `json:"detail"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Config holds audit configuration.
type Config struct {
	Enabled          bool
	LogRoleChanges   bool
	LogVotes         bool
	LogCommits       bool
	LogMembership    bool
	BufferSize       int
	FlushIntervalSec int
}

// DefaultConfig returns default audit configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		LogRoleChanges:   true,
		LogVotes:         true,
		LogCommits:       true,
		LogMembership:    true,
		BufferSize:       1000,
		FlushIntervalSec: 5,
	}
}

// Manager manages audit logging for one node.
type Manager struct {
	config  Config
	path    string
	logger  *logging.Logger
	buffer  chan Event
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.RWMutex
	enabled bool
}

// NewManager creates an audit Manager appending to path. If
// config.Enabled is true it starts a background worker immediately.
func NewManager(path string, config Config) *Manager {
	m := &Manager{
		config:  config,
		path:    path,
		logger:  logging.NewLogger("audit"),
		buffer:  make(chan Event, config.BufferSize),
		stopCh:  make(chan struct{}),
		enabled: config.Enabled,
	}
	if config.Enabled {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

// Close stops the background worker, flushing any buffered events first.
func (m *Manager) Close() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Manager) worker() {
	defer m.wg.Done()

	ticker := time.NewTicker(time.Duration(m.config.FlushIntervalSec) * time.Second)
	defer ticker.Stop()

	batch := make([]Event, 0, 100)

	for {
		select {
		case event := <-m.buffer:
			batch = append(batch, event)
			if len(batch) >= 100 {
				m.flushBatch(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				m.flushBatch(batch)
				batch = batch[:0]
			}

		case <-m.stopCh:
			for len(m.buffer) > 0 {
				batch = append(batch, <-m.buffer)
			}
			if len(batch) > 0 {
				m.flushBatch(batch)
			}
			return
		}
	}
}

func (m *Manager) flushBatch(events []Event) {
	f, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		m.logger.Error("failed to open audit log", "error", err.Error())
		return
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, event := range events {
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now()
		}
		if err := enc.Encode(event); err != nil {
			m.logger.Error("failed to write audit event", "error", err.Error(), "event_type", string(event.EventType))
		}
	}
}

// LogEvent logs an audit event asynchronously; it never blocks the
// caller, dropping the event (with a warning) if the buffer is full.
func (m *Manager) LogEvent(event Event) {
	m.mu.RLock()
	enabled := m.enabled
	m.mu.RUnlock()

	if !enabled || !m.shouldLog(event.EventType) {
		return
	}

	select {
	case m.buffer <- event:
	default:
		m.logger.Warn("audit buffer full, dropping event", "event_type", string(event.EventType))
	}
}

func (m *Manager) shouldLog(eventType EventType) bool {
	switch eventType {
	case EventTypeRoleTransition:
		return m.config.LogRoleChanges
	case EventTypeVoteGranted, EventTypeVoteDenied:
		return m.config.LogVotes
	case EventTypeEntryCommitted:
		return m.config.LogCommits
	case EventTypeNodeJoin, EventTypeNodeLeave, EventTypeFailover:
		return m.config.LogMembership
	default:
		return true
	}
}

// QueryOptions specifies options for querying audit logs.
type QueryOptions struct {
	StartTime  time.Time
	EndTime    time.Time
	Identifier string
	EventType  EventType
	Limit      int
}

// QueryLogs retrieves audit logs matching opts by scanning the
// append-only file, most recent match last.
func (m *Manager) QueryLogs(opts QueryOptions) ([]Event, error) {
	f, err := os.Open(m.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: failed to open log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			m.logger.Warn("failed to unmarshal audit event", "error", err.Error())
			continue
		}
		if !opts.StartTime.IsZero() && event.Timestamp.Before(opts.StartTime) {
			continue
		}
		if !opts.EndTime.IsZero() && event.Timestamp.After(opts.EndTime) {
			continue
		}
		if opts.Identifier != "" && event.Identifier != opts.Identifier {
			continue
		}
		if opts.EventType != "" && event.EventType != opts.EventType {
			continue
		}
		events = append(events, event)
		if opts.Limit > 0 && len(events) > opts.Limit {
			events = events[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to scan log: %w", err)
	}
	return events, nil
}
