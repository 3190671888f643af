/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

/*
Package raftlog implements the replicated log and the AppendEntries
conflict-resolution primitive that forces a follower's log to match the
leader's (Raft paper §5.3).
*/
package raftlog

// Entry is a single replicated log record. Entries are immutable once
// committed; AppendEntries may overwrite uncommitted entries.
type Entry struct {
	Term    uint64
	Command []byte
}

// Log is a dense, zero-based sequence of Entry. The zero value is an
// empty log.
type Log struct {
	entries []Entry
}

// Len returns the number of entries in the log.
func (l *Log) Len() int { return len(l.entries) }

// LastIndex returns the index of the last entry, or -1 if the log is
// empty.
func (l *Log) LastIndex() int { return len(l.entries) - 1 }

// LastTerm returns the term of the last entry, or 0 if the log is
// empty.
func (l *Log) LastTerm() uint64 {
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[len(l.entries)-1].Term
}

// At returns the entry at index i. The caller must ensure 0 <= i <
// Len().
func (l *Log) At(i int) Entry { return l.entries[i] }

// TermAt returns the term of the entry at index i, or ok=false if i is
// out of range.
func (l *Log) TermAt(i int) (uint64, bool) {
	if i < 0 || i >= len(l.entries) {
		return 0, false
	}
	return l.entries[i].Term, true
}

// Slice returns a copy of entries[from:], for serialization. from may
// equal Len(), yielding an empty slice.
func (l *Log) Slice(from int) []Entry {
	if from >= len(l.entries) {
		return nil
	}
	out := make([]Entry, len(l.entries)-from)
	copy(out, l.entries[from:])
	return out
}

// All returns a copy of every entry, for persistence.
func (l *Log) All() []Entry { return l.Slice(0) }

// Append appends entry to the end of the log unconditionally. Used by a
// Leader appending a freshly client-submitted command, the one place a
// log may grow without going through AppendEntries.
func (l *Log) Append(e Entry) {
	l.entries = append(l.entries, e)
}

// Restore replaces the log wholesale, for loading a persisted snapshot.
func (l *Log) Restore(entries []Entry) {
	l.entries = append([]Entry(nil), entries...)
}

// Majority returns floor(n/2) + 1, the number of nodes required for a
// quorum in a cluster of n.
func Majority(n int) int { return n/2 + 1 }

// AppendEntries is the follower's single point of truth for grafting a
// prospective batch of entries onto the log. prevIndex == -1
// denotes "before the log begins" and skips the continuity check. It
// returns false (and leaves the log untouched) on a bounds or continuity
// failure; otherwise it truncates any conflicting suffix, grafts the
// offered entries idempotently, and returns true.
func AppendEntries(l *Log, prevIndex int, prevTerm uint64, entries []Entry) bool {
	// 1. Bounds check: prevIndex must name an existing entry (or -1).
	if prevIndex >= l.Len() {
		return false
	}
	// 2. Continuity check.
	if prevIndex >= 0 {
		term, ok := l.TermAt(prevIndex)
		if !ok || term != prevTerm {
			return false
		}
	}

	// 3. Conflict scan: truncate at the first position whose term
	// disagrees with the offered entry.
	insertAt := prevIndex + 1
	matched := 0
	for i, e := range entries {
		n := insertAt + i
		if n < l.Len() {
			existingTerm, _ := l.TermAt(n)
			if existingTerm != e.Term {
				l.entries = l.entries[:n]
				break
			}
			matched++
			continue
		}
		break
	}

	// 4. Idempotent graft: append whatever of entries wasn't already
	// present (retain longest common prefix, append the remainder). By
	// construction l.Len() == insertAt+matched here, whether the scan
	// stopped on a conflict (truncated exactly to that point) or ran
	// past the existing log's end (nothing to truncate).
	if matched < len(entries) {
		l.entries = append(l.entries, entries[matched:]...)
	}

	return true
}
