/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package storage

import (
	"os"
	"testing"

	"github.com/fireflyoss/raftkit/internal/compression"
)

func TestLoadEmptyDirReturnsZeroSnapshot(t *testing.T) {
	dir := t.TempDir()
	p := NewPersister(dir)
	snap, err := p.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.CurrentTerm != 0 || snap.VotedFor != "" || len(snap.Entries) != 0 {
		t.Fatalf("expected zero-value snapshot, got %+v", snap)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := NewPersister(dir)
	want := Snapshot{
		CurrentTerm: 7,
		VotedFor:    "node-2",
		Entries: []LogEntry{
			{Term: 1, Command: []byte("set x 1")},
			{Term: 3, Command: []byte("set y 2")},
		},
	}
	if err := p.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := p.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.CurrentTerm != want.CurrentTerm || got.VotedFor != want.VotedFor || len(got.Entries) != len(want.Entries) {
		t.Fatalf("round trip mismatch: want %+v, got %+v", want, got)
	}
	for i := range want.Entries {
		if got.Entries[i].Term != want.Entries[i].Term || string(got.Entries[i].Command) != string(want.Entries[i].Command) {
			t.Fatalf("entry %d mismatch: want %+v, got %+v", i, want.Entries[i], got.Entries[i])
		}
	}
}

func TestSaveOverwritesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	p := NewPersister(dir)
	if err := p.Save(Snapshot{CurrentTerm: 1, VotedFor: "a"}); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if err := p.Save(Snapshot{CurrentTerm: 2, VotedFor: "b"}); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	got, err := p.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.CurrentTerm != 2 || got.VotedFor != "b" {
		t.Fatalf("expected latest snapshot to win, got %+v", got)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if e.Name() == "snapshot.raft.tmp" {
			t.Fatalf("temp file left behind after successful save")
		}
	}
}

func TestSaveLoadRoundTripCompressed(t *testing.T) {
	dir := t.TempDir()
	p := NewPersisterWithCompression(dir, compression.AlgorithmZstd)
	want := Snapshot{
		CurrentTerm: 12,
		VotedFor:    "node-3",
		Entries: []LogEntry{
			{Term: 1, Command: []byte("set x 1")},
			{Term: 4, Command: []byte("set y 2")},
			{Term: 4, Command: []byte("set z 3")},
		},
	}
	if err := p.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := p.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.CurrentTerm != want.CurrentTerm || got.VotedFor != want.VotedFor || len(got.Entries) != len(want.Entries) {
		t.Fatalf("round trip mismatch: want %+v, got %+v", want, got)
	}
	for i := range want.Entries {
		if got.Entries[i].Term != want.Entries[i].Term || string(got.Entries[i].Command) != string(want.Entries[i].Command) {
			t.Fatalf("entry %d mismatch: want %+v, got %+v", i, want.Entries[i], got.Entries[i])
		}
	}

	raw, err := os.ReadFile(p.path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if raw[0] != formatVersionCompressed || compression.Algorithm(raw[1]) != compression.AlgorithmZstd {
		t.Fatalf("expected compressed header, got %v", raw[:2])
	}
}

func TestLoadRejectsCorruptFormatVersion(t *testing.T) {
	dir := t.TempDir()
	p := NewPersister(dir)
	if err := os.WriteFile(p.path, []byte{0xFF, 'i', '1', 'e'}, 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := p.Load(); err == nil {
		t.Fatalf("expected error for unknown format version")
	}
}
