/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

/*
Package raft implements the State component: the owner of the log,
durable term/vote, volatile indices, and per-follower bookkeeping,
exposed through the single Handle(message) entry point described in
the component design. Message is the tagged union every RPC and
internal event is modeled as; Handle dispatches on Kind with an
exhaustive switch so a new Kind added to the enum but missed in
Handle fails loudly rather than silently doing nothing.
*/
package raft

import (
	"fmt"

	"github.com/fireflyoss/raftkit/internal/raftlog"
	"github.com/fireflyoss/raftkit/internal/wire"
)

// Kind identifies the variant of a Message.
type Kind int

const (
	KindClientLogAppend Kind = iota
	KindAppendRequest
	KindAppendResponse
	KindRequestVoteRequest
	KindRequestVoteResponse
	KindUpdateFollowers
	KindRunElection
	KindRoleChange
	KindText
)

// String renders k using its wire name, for logging.
func (k Kind) String() string { return k.wireName() }

func (k Kind) wireName() string {
	switch k {
	case KindClientLogAppend:
		return "CLIENT_LOG_APPEND"
	case KindAppendRequest:
		return "APPEND_REQUEST"
	case KindAppendResponse:
		return "APPEND_RESPONSE"
	case KindRequestVoteRequest:
		return "REQUEST_VOTE_REQUEST"
	case KindRequestVoteResponse:
		return "REQUEST_VOTE_RESPONSE"
	case KindUpdateFollowers:
		return "UPDATE_FOLLOWERS"
	case KindRunElection:
		return "RUN_ELECTION"
	case KindRoleChange:
		return "ROLE_CHANGE"
	case KindText:
		return "TEXT"
	default:
		return "UNKNOWN"
	}
}

func kindFromWireName(s string) (Kind, bool) {
	switch s {
	case "CLIENT_LOG_APPEND":
		return KindClientLogAppend, true
	case "APPEND_REQUEST":
		return KindAppendRequest, true
	case "APPEND_RESPONSE":
		return KindAppendResponse, true
	case "REQUEST_VOTE_REQUEST":
		return KindRequestVoteRequest, true
	case "REQUEST_VOTE_RESPONSE":
		return KindRequestVoteResponse, true
	case "UPDATE_FOLLOWERS":
		return KindUpdateFollowers, true
	case "RUN_ELECTION":
		return KindRunElection, true
	case "ROLE_CHANGE":
		return KindRoleChange, true
	case "TEXT":
		return KindText, true
	default:
		return 0, false
	}
}

// Message is every RPC and internal event raftkit's handler exchanges,
// flattened into one struct: only the fields relevant to
// Kind are meaningful, mirroring the flat wire dict each kind encodes
// to.
type Message struct {
	Kind   Kind
	Source string
	Target string

	// CLIENT_LOG_APPEND
	Item []byte

	// APPEND_REQUEST / APPEND_RESPONSE / REQUEST_VOTE_REQUEST / REQUEST_VOTE_RESPONSE
	CurrentTerm uint64

	// APPEND_REQUEST
	PreviousIndex int
	PreviousTerm  uint64
	Entries       []raftlog.Entry
	CommitIndex   int

	// APPEND_RESPONSE
	Success       bool
	EntriesLength int

	// REQUEST_VOTE_REQUEST
	LastLogIndex int
	LastLogTerm  uint64

	// REQUEST_VOTE_RESPONSE reuses Success and CurrentTerm above.

	// UPDATE_FOLLOWERS / RUN_ELECTION
	Followers []string

	// ROLE_CHANGE
	FromRole string
	ToRole   string

	// TEXT
	Text string
}

// Encode renders m as a wire.Value dict keyed by field name, with a
// message_type discriminator and booleans written as ints 1/0.
func Encode(m Message) wire.Value {
	fields := map[string]wire.Value{
		"message_type": wire.StrOf(m.Kind.wireName()),
		"source":       wire.StrOf(m.Source),
		"target":       wire.StrOf(m.Target),
	}
	switch m.Kind {
	case KindClientLogAppend:
		fields["item"] = wire.Str(m.Item)
	case KindAppendRequest:
		fields["current_term"] = wire.Int(int64(m.CurrentTerm))
		fields["previous_index"] = wire.Int(int64(m.PreviousIndex))
		fields["previous_term"] = wire.Int(int64(m.PreviousTerm))
		fields["commit_index"] = wire.Int(int64(m.CommitIndex))
		entries := make([]wire.Value, len(m.Entries))
		for i, e := range m.Entries {
			entries[i] = wire.Dict(map[string]wire.Value{
				"term": wire.Int(int64(e.Term)),
				"item": wire.Str(e.Command),
			})
		}
		fields["entries"] = wire.List(entries...)
	case KindAppendResponse:
		fields["current_term"] = wire.Int(int64(m.CurrentTerm))
		fields["success"] = boolValue(m.Success)
		fields["entries_length"] = wire.Int(int64(m.EntriesLength))
	case KindRequestVoteRequest:
		fields["current_term"] = wire.Int(int64(m.CurrentTerm))
		fields["last_log_index"] = wire.Int(int64(m.LastLogIndex))
		fields["last_log_term"] = wire.Int(int64(m.LastLogTerm))
	case KindRequestVoteResponse:
		fields["success"] = boolValue(m.Success)
		fields["current_term"] = wire.Int(int64(m.CurrentTerm))
	case KindUpdateFollowers, KindRunElection:
		ids := make([]wire.Value, len(m.Followers))
		for i, f := range m.Followers {
			ids[i] = wire.StrOf(f)
		}
		fields["followers"] = wire.List(ids...)
	case KindRoleChange:
		fields["from_role"] = wire.StrOf(m.FromRole)
		fields["to_role"] = wire.StrOf(m.ToRole)
	case KindText:
		fields["text"] = wire.StrOf(m.Text)
	}
	return wire.Dict(fields)
}

func boolValue(b bool) wire.Value {
	if b {
		return wire.Int(1)
	}
	return wire.Int(0)
}

// Decode parses a wire.Value dict back into a Message.
func Decode(v wire.Value) (Message, error) {
	d, ok := v.AsDict()
	if !ok {
		return Message{}, fmt.Errorf("raft: message is not a dict")
	}
	typeName, ok := d["message_type"].AsString()
	if !ok {
		return Message{}, fmt.Errorf("raft: message missing message_type")
	}
	kind, ok := kindFromWireName(typeName)
	if !ok {
		return Message{}, fmt.Errorf("raft: unknown message_type %q", typeName)
	}
	source, _ := d["source"].AsString()
	target, _ := d["target"].AsString()
	m := Message{Kind: kind, Source: source, Target: target}

	switch kind {
	case KindClientLogAppend:
		m.Item, _ = d["item"].AsStr()
	case KindAppendRequest:
		term, _ := d["current_term"].AsInt()
		m.CurrentTerm = uint64(term)
		prevIdx, _ := d["previous_index"].AsInt()
		m.PreviousIndex = int(prevIdx)
		prevTerm, _ := d["previous_term"].AsInt()
		m.PreviousTerm = uint64(prevTerm)
		commitIdx, _ := d["commit_index"].AsInt()
		m.CommitIndex = int(commitIdx)
		list, _ := d["entries"].AsList()
		m.Entries = make([]raftlog.Entry, len(list))
		for i, item := range list {
			ed, ok := item.AsDict()
			if !ok {
				return Message{}, fmt.Errorf("raft: entry %d is not a dict", i)
			}
			t, _ := ed["term"].AsInt()
			cmd, _ := ed["item"].AsStr()
			m.Entries[i] = raftlog.Entry{Term: uint64(t), Command: cmd}
		}
	case KindAppendResponse:
		term, _ := d["current_term"].AsInt()
		m.CurrentTerm = uint64(term)
		succ, _ := d["success"].AsInt()
		m.Success = succ != 0
		n, _ := d["entries_length"].AsInt()
		m.EntriesLength = int(n)
	case KindRequestVoteRequest:
		term, _ := d["current_term"].AsInt()
		m.CurrentTerm = uint64(term)
		idx, _ := d["last_log_index"].AsInt()
		m.LastLogIndex = int(idx)
		lt, _ := d["last_log_term"].AsInt()
		m.LastLogTerm = uint64(lt)
	case KindRequestVoteResponse:
		succ, _ := d["success"].AsInt()
		m.Success = succ != 0
		term, _ := d["current_term"].AsInt()
		m.CurrentTerm = uint64(term)
	case KindUpdateFollowers, KindRunElection:
		list, _ := d["followers"].AsList()
		m.Followers = make([]string, len(list))
		for i, item := range list {
			m.Followers[i], _ = item.AsString()
		}
	case KindRoleChange:
		m.FromRole, _ = d["from_role"].AsString()
		m.ToRole, _ = d["to_role"].AsString()
	case KindText:
		m.Text, _ = d["text"].AsString()
	}
	return m, nil
}
