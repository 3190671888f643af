/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package raft

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fireflyoss/raftkit/internal/audit"
	"github.com/fireflyoss/raftkit/internal/errors"
	"github.com/fireflyoss/raftkit/internal/logging"
	"github.com/fireflyoss/raftkit/internal/raftlog"
	"github.com/fireflyoss/raftkit/internal/roletable"
	"github.com/fireflyoss/raftkit/internal/storage"
)

// noVote is the empty-string sentinel for "no vote cast this term".
const noVote = ""

// State owns one node's log, durable term/vote, volatile indices and
// per-follower bookkeeping, and is the sole mutator of all of it: the
// network and timer threads communicate with it only through Handle
// and HandleTimeout. A single mutex
// over the whole struct is sufficient and intended — this is not a
// contended data structure.
type State struct {
	mu sync.Mutex

	identifier string
	config     map[string]string // identifier -> address, immutable for the process lifetime

	currentTerm uint64
	votedFor    string
	log         *raftlog.Log
	commitIndex int // -1 = none
	role        roletable.Role

	nextIndex    map[string]int
	matchIndex   map[string]int // -1 = none
	currentVotes map[string]bool

	hasFollowers bool

	// pendingPrevIndex records the previous_index an in-flight
	// APPEND_REQUEST to a follower was sent with, so the matching
	// APPEND_RESPONSE, which carries only entries_length and not
	// previous_index, can be reconciled against it.
	pendingPrevIndex map[string]int

	persister *storage.Persister
	auditor   *audit.Manager
	logger    *logging.Logger

	// experimentalMode bypasses the current-term commit requirement,
	// a deliberate negative-test fixture (Raft paper §5.4.2's unsafe
	// counterexample); off unless raftd is started with
	// --experimental-unsafe-commit.
	experimentalMode bool
}

// New constructs a State for identifier within the given static
// cluster config (identifier -> address), starting as a Follower at
// term 0 with no vote cast. persister and auditor may be nil in
// tests that don't care about durability or the audit trail.
func New(identifier string, config map[string]string, persister *storage.Persister, auditor *audit.Manager) *State {
	return &State{
		identifier:       identifier,
		config:           config,
		votedFor:         noVote,
		log:              &raftlog.Log{},
		commitIndex:      -1,
		role:             roletable.Follower,
		nextIndex:        make(map[string]int),
		matchIndex:       make(map[string]int),
		currentVotes:     make(map[string]bool),
		pendingPrevIndex: make(map[string]int),
		persister:        persister,
		auditor:          auditor,
		logger:           logging.NewLogger("raft").With("identifier", identifier),
	}
}

// WithExperimentalMode enables the unsafe-commit negative-test
// fixture. Outside tests, raftd calls it only when started with
// --experimental-unsafe-commit.
func (s *State) WithExperimentalMode() *State {
	s.experimentalMode = true
	return s
}

// Role returns the node's current role.
func (s *State) Role() roletable.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// CurrentTerm returns the node's current term.
func (s *State) CurrentTerm() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTerm
}

// CommitIndex returns the node's commit index (-1 if none).
func (s *State) CommitIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitIndex
}

// DebugSnapshot is a JSON-friendly, point-in-time rendering of this
// node's state for an operator's inspection tool (cmd/raftctl). It is
// never consulted by the core itself.
type DebugSnapshot struct {
	Identifier  string `json:"identifier"`
	Role        string `json:"role"`
	CurrentTerm uint64 `json:"current_term"`
	CommitIndex int    `json:"commit_index"`
	LogLength   int    `json:"log_length"`
	VotedFor    string `json:"voted_for,omitempty"`
}

// Debug returns a DebugSnapshot of the current state.
func (s *State) Debug() DebugSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DebugSnapshot{
		Identifier:  s.identifier,
		Role:        s.role.String(),
		CurrentTerm: s.currentTerm,
		CommitIndex: s.commitIndex,
		LogLength:   s.log.Len(),
		VotedFor:    s.votedFor,
	}
}

// majority is floor(N/2)+1 over the full cluster, self included.
func (s *State) majority() int {
	return raftlog.Majority(len(s.config) + 1)
}

// peers returns every cluster member other than self.
func (s *State) peers() []string {
	out := make([]string, 0, len(s.config))
	for id := range s.config {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// persist flushes the durable fields to stable storage. It must
// complete before any outgoing message reflecting the decision is
// emitted; callers invoke it before returning from Handle, never
// after.
func (s *State) persist() error {
	if s.persister == nil {
		return nil
	}
	entries := s.log.All()
	snapEntries := make([]storage.LogEntry, len(entries))
	for i, e := range entries {
		snapEntries[i] = storage.LogEntry{Term: e.Term, Command: e.Command}
	}
	if err := s.persister.Save(storage.Snapshot{
		CurrentTerm: s.currentTerm,
		VotedFor:    s.votedFor,
		Entries:     snapEntries,
	}); err != nil {
		return errors.PersistFailed(err)
	}
	return nil
}

// Restore seeds current_term, voted_for, and the log from a snapshot
// loaded off stable storage (internal/storage.Persister.Load), so a
// restarted node resumes exactly where it left off rather than
// re-running the election from a blank slate. Call it once, before
// the State is handed to a Server Shell and before any message is
// handled.
func (s *State) Restore(snap storage.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentTerm = snap.CurrentTerm
	s.votedFor = snap.VotedFor
	entries := make([]raftlog.Entry, len(snap.Entries))
	for i, e := range snap.Entries {
		entries[i] = raftlog.Entry{Term: e.Term, Command: e.Command}
	}
	s.log.Restore(entries)
}

// applyStateChange applies a roletable.StateChange to the volatile
// fields; every role change goes through here. Handlers also update
// these fields directly during ordinary handling (votes, next/match
// index), and HandleTimeout bumps a Candidate's term in place.
func (s *State) applyStateChange(sc roletable.StateChange) {
	s.currentTerm = sc.CurrentTerm

	if sc.RoleChange != nil {
		from := s.role
		s.role = sc.RoleChange.To
		if s.auditor != nil {
			s.auditor.LogEvent(audit.Event{
				EventType:  audit.EventTypeRoleTransition,
				Identifier: s.identifier,
				Term:       s.currentTerm,
				Detail:     fmt.Sprintf("%s -> %s", from, sc.RoleChange.To),
			})
		}
	}

	switch sc.VotedFor {
	case roletable.ResetToNone:
		s.votedFor = noVote
	case roletable.Initialize:
		s.votedFor = s.identifier
	}

	switch sc.CurrentVotes {
	case roletable.ResetToNone:
		s.currentVotes = make(map[string]bool)
	case roletable.Initialize:
		s.currentVotes = map[string]bool{s.identifier: true}
	}

	switch sc.NextIndex {
	case roletable.ResetToNone:
		s.nextIndex = make(map[string]int)
	case roletable.Initialize:
		s.nextIndex = make(map[string]int)
		for _, p := range s.peers() {
			s.nextIndex[p] = s.log.Len()
		}
	}

	switch sc.MatchIndex {
	case roletable.ResetToNone:
		s.matchIndex = make(map[string]int)
	case roletable.Initialize:
		s.matchIndex = make(map[string]int)
		for _, p := range s.peers() {
			s.matchIndex[p] = -1
		}
		s.matchIndex[s.identifier] = s.log.Len() - 1
	}

	switch sc.HasFollowers {
	case roletable.ResetToNone:
		s.hasFollowers = false
	case roletable.Initialize:
		s.hasFollowers = false
	}

	// sc.CommitIndex is always Leave: commit_index is monotone and
	// never resets on a role change.
}

// Handle is the single entry point for every Message, dispatching on
// Kind with an exhaustive switch.
func (s *State) Handle(m Message) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m.Kind {
	case KindClientLogAppend:
		return s.handleClientLogAppend(m)
	case KindAppendRequest:
		return s.handleAppendRequest(m)
	case KindAppendResponse:
		return s.handleAppendResponse(m)
	case KindRequestVoteRequest:
		return s.handleRequestVoteRequest(m)
	case KindRequestVoteResponse:
		return s.handleRequestVoteResponse(m)
	case KindRoleChange:
		return s.handleRoleChange(m)
	case KindRunElection:
		return s.handleRunElection(m)
	case KindUpdateFollowers:
		return s.handleUpdateFollowers(m)
	case KindText:
		s.logger.Info("text message", "source", m.Source, "text", m.Text)
		return nil, nil
	default:
		return nil, errors.UnsupportedTransition(fmt.Sprintf("Handle does not accept inbound Kind %v", m.Kind))
	}
}

// handleRoleChange processes the internal ROLE_CHANGE event the server
// shell loops back to the handler when a follower's election timeout
// fires. The only pair modeled is Follower -> Candidate via the role
// table's Timer event; any other pair is a programming error per the
// error taxonomy.
func (s *State) handleRoleChange(m Message) ([]Message, error) {
	if m.FromRole != roletable.Follower.String() || m.ToRole != roletable.Candidate.String() {
		return nil, errors.UnsupportedTransition(fmt.Sprintf("%s -> %s", m.FromRole, m.ToRole))
	}
	if s.role != roletable.Follower {
		// The timeout raced a transition that already happened; stale.
		return nil, nil
	}
	sc := roletable.EnumerateStateChange(roletable.Timer, 0, s.role, s.currentTerm)
	s.applyStateChange(sc)
	if err := s.persist(); err != nil {
		return nil, err
	}
	return []Message{{
		Kind:      KindRunElection,
		Source:    s.identifier,
		Target:    s.identifier,
		Followers: s.peers(),
	}}, nil
}

// handleRunElection solicits votes from the listed followers. Dropped
// unless the node is currently a Candidate: the trigger may arrive
// after a vote response or higher-term message already moved us on.
func (s *State) handleRunElection(m Message) ([]Message, error) {
	if s.role != roletable.Candidate {
		return nil, nil
	}
	votes := make([]Message, 0, len(m.Followers))
	for _, p := range m.Followers {
		votes = append(votes, Message{
			Kind:         KindRequestVoteRequest,
			Source:       s.identifier,
			Target:       p,
			CurrentTerm:  s.currentTerm,
			LastLogIndex: s.log.LastIndex(),
			LastLogTerm:  s.log.LastTerm(),
		})
	}
	return votes, nil
}

// handleUpdateFollowers sends an AppendRequest to each listed follower,
// the heartbeat-or-replication trigger. Dropped if the node is no
// longer the Leader.
func (s *State) handleUpdateFollowers(m Message) ([]Message, error) {
	if s.role != roletable.Leader {
		return nil, nil
	}
	out := make([]Message, 0, len(m.Followers))
	for _, p := range m.Followers {
		out = append(out, s.buildAppendRequest(p))
	}
	return out, nil
}

func (s *State) handleClientLogAppend(m Message) ([]Message, error) {
	if s.role != roletable.Leader {
		return nil, errors.NotLeader()
	}
	s.log.Append(raftlog.Entry{Term: s.currentTerm, Command: m.Item})
	s.nextIndex[s.identifier] = s.log.Len()
	s.matchIndex[s.identifier] = s.log.Len() - 1
	if err := s.persist(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *State) handleAppendRequest(m Message) ([]Message, error) {
	sc := roletable.EnumerateStateChange(roletable.ObservedLeader, m.CurrentTerm, s.role, s.currentTerm)
	s.applyStateChange(sc)

	// Reject if the request was stale (term below ours, so the table
	// left us wherever we already were) as well as if the table moved
	// us somewhere other than Follower.
	if s.role != roletable.Follower || m.CurrentTerm < s.currentTerm {
		return []Message{{
			Kind:        KindAppendResponse,
			Source:      s.identifier,
			Target:      m.Source,
			CurrentTerm: s.currentTerm,
			Success:     false,
		}}, nil
	}

	ok := raftlog.AppendEntries(s.log, m.PreviousIndex, m.PreviousTerm, m.Entries)
	if ok && m.CommitIndex > s.commitIndex {
		newCommit := m.CommitIndex
		if maxIdx := s.log.Len() - 1; newCommit > maxIdx {
			newCommit = maxIdx
		}
		if newCommit > s.commitIndex {
			s.commitIndex = newCommit
			if s.auditor != nil {
				s.auditor.LogEvent(audit.Event{
					EventType:  audit.EventTypeEntryCommitted,
					Identifier: s.identifier,
					Term:       s.currentTerm,
					Detail:     fmt.Sprintf("commit_index=%d", s.commitIndex),
				})
			}
		}
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return []Message{{
		Kind:          KindAppendResponse,
		Source:        s.identifier,
		Target:        m.Source,
		CurrentTerm:   s.currentTerm,
		Success:       ok,
		EntriesLength: len(m.Entries),
	}}, nil
}

func (s *State) handleAppendResponse(m Message) ([]Message, error) {
	sc := roletable.EnumerateStateChange(roletable.ObservedFollower, m.CurrentTerm, s.role, s.currentTerm)
	s.applyStateChange(sc)

	if s.role != roletable.Leader || m.CurrentTerm < s.currentTerm {
		return nil, nil
	}

	if m.Success {
		i, ok := s.pendingPrevIndex[m.Source]
		if !ok {
			i = s.nextIndex[m.Source] - 1
		}
		newNext := i + 1 + m.EntriesLength
		newMatch := i + m.EntriesLength
		if newNext > s.nextIndex[m.Source] {
			s.nextIndex[m.Source] = newNext
		}
		if newMatch > s.matchIndex[m.Source] {
			s.matchIndex[m.Source] = newMatch
		}
		s.hasFollowers = true
		s.advanceCommitIndex()
		if err := s.persist(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if s.nextIndex[m.Source] > 0 {
		s.nextIndex[m.Source]--
	}
	req := s.buildAppendRequest(m.Source)
	return []Message{req}, nil
}

// advanceCommitIndex recomputes commit_index from match_index: sort
// the non-null match_index values (self included) ascending, take the
// one at position majority-1-null_count, and advance commit_index to
// it only if that entry belongs to the leader's current term (Raft
// paper §5.4.2). experimentalMode deliberately bypasses that guard to
// reproduce the paper's unsafe counterexample.
func (s *State) advanceCommitIndex() {
	values := make([]int, 0, len(s.config)+1)
	nullCount := 0
	for _, id := range append(s.peers(), s.identifier) {
		mi, ok := s.matchIndex[id]
		if !ok || mi < 0 {
			nullCount++
			continue
		}
		values = append(values, mi)
	}
	sort.Ints(values)

	idx := s.majority() - 1 - nullCount
	if idx < 0 || idx >= len(values) {
		return
	}
	m := values[idx]
	if m <= s.commitIndex {
		return
	}
	term, ok := s.log.TermAt(m)
	if !ok {
		return
	}
	if term == s.currentTerm || s.experimentalMode {
		s.commitIndex = m
		if s.auditor != nil {
			s.auditor.LogEvent(audit.Event{
				EventType:  audit.EventTypeEntryCommitted,
				Identifier: s.identifier,
				Term:       s.currentTerm,
				Detail:     fmt.Sprintf("commit_index=%d", s.commitIndex),
			})
		}
	}
}

// buildAppendRequest constructs the AppendRequest a Leader sends
// target given the leader's current bookkeeping for it, recording
// the previous_index used so the eventual response can be
// reconciled.
func (s *State) buildAppendRequest(target string) Message {
	next := s.nextIndex[target]
	prevIndex := next - 1
	var prevTerm uint64
	if prevIndex >= 0 {
		prevTerm, _ = s.log.TermAt(prevIndex)
	}
	s.pendingPrevIndex[target] = prevIndex
	return Message{
		Kind:          KindAppendRequest,
		Source:        s.identifier,
		Target:        target,
		CurrentTerm:   s.currentTerm,
		PreviousIndex: prevIndex,
		PreviousTerm:  prevTerm,
		Entries:       s.log.Slice(next),
		CommitIndex:   s.commitIndex,
	}
}

func (s *State) handleRequestVoteRequest(m Message) ([]Message, error) {
	sc := roletable.EnumerateStateChange(roletable.ObservedCandidate, m.CurrentTerm, s.role, s.currentTerm)
	s.applyStateChange(sc)

	reply := Message{
		Kind:        KindRequestVoteResponse,
		Source:      s.identifier,
		Target:      m.Source,
		CurrentTerm: s.currentTerm,
	}

	if s.role != roletable.Follower {
		reply.Success = false
		return []Message{reply}, nil
	}

	if m.CurrentTerm >= s.currentTerm {
		upToDate := m.LastLogTerm > s.log.LastTerm() ||
			(m.LastLogTerm == s.log.LastTerm() && m.LastLogIndex >= s.log.LastIndex())
		if upToDate && (s.votedFor == noVote || s.votedFor == m.Source) {
			s.votedFor = m.Source
			reply.Success = true
		}
	}

	if err := s.persist(); err != nil {
		return nil, err
	}
	if s.auditor != nil {
		eventType := audit.EventTypeVoteDenied
		if reply.Success {
			eventType = audit.EventTypeVoteGranted
		}
		s.auditor.LogEvent(audit.Event{
			EventType:  eventType,
			Identifier: s.identifier,
			Term:       s.currentTerm,
			Detail:     fmt.Sprintf("candidate=%s", m.Source),
		})
	}
	return []Message{reply}, nil
}

func (s *State) handleRequestVoteResponse(m Message) ([]Message, error) {
	sc := roletable.EnumerateStateChange(roletable.ObservedFollower, m.CurrentTerm, s.role, s.currentTerm)
	s.applyStateChange(sc)

	if s.role != roletable.Candidate || m.CurrentTerm < s.currentTerm {
		return nil, nil
	}
	if !m.Success {
		return nil, nil
	}

	s.currentVotes[m.Source] = true
	granted := 0
	for _, v := range s.currentVotes {
		if v {
			granted++
		}
	}
	if granted < s.majority() {
		return nil, nil
	}

	sc2 := roletable.EnumerateStateChange(roletable.ElectionCommission, 0, s.role, s.currentTerm)
	s.applyStateChange(sc2)

	heartbeats := make([]Message, 0, len(s.config))
	for _, p := range s.peers() {
		heartbeats = append(heartbeats, s.buildAppendRequest(p))
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return heartbeats, nil
}

// HandleTimeout is driven by the server shell's election timer. It
// emits the internal trigger message for the
// current role — ROLE_CHANGE, RUN_ELECTION, or UPDATE_FOLLOWERS, all
// addressed to self — which the shell loops back into Handle like any
// other message. It also returns the role the node now holds so the
// shell can re-arm its timer at the right interval.
func (s *State) HandleTimeout() ([]Message, roletable.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.role {
	case roletable.Follower:
		return []Message{{
			Kind:     KindRoleChange,
			Source:   s.identifier,
			Target:   s.identifier,
			FromRole: roletable.Follower.String(),
			ToRole:   roletable.Candidate.String(),
		}}, s.role, nil

	case roletable.Candidate:
		// A Candidate's own timeout isn't modeled by the role table's
		// Timer event (that event is specifically the Follower ->
		// Candidate transition); it re-runs the election in place:
		// bump the term again and re-solicit votes.
		s.currentTerm++
		s.votedFor = s.identifier
		s.currentVotes = map[string]bool{s.identifier: true}
		if err := s.persist(); err != nil {
			return nil, s.role, err
		}
		return []Message{{
			Kind:      KindRunElection,
			Source:    s.identifier,
			Target:    s.identifier,
			Followers: s.peers(),
		}}, s.role, nil

	case roletable.Leader:
		if !s.hasFollowers {
			sc := roletable.EnumerateStateChange(roletable.Constitution, 0, s.role, s.currentTerm)
			s.applyStateChange(sc)
			return nil, s.role, nil
		}
		s.hasFollowers = false
		return []Message{{
			Kind:      KindUpdateFollowers,
			Source:    s.identifier,
			Target:    s.identifier,
			Followers: s.peers(),
		}}, s.role, nil
	}
	return nil, s.role, nil
}
