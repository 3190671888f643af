/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

/*
Package roletable implements the pure role-transition function that is
the single place a role change's volatile-field bookkeeping lives.
Every role change — real or synthetic — is computed by
EnumerateStateChange, so the reset/initialize logic for next_index,
match_index, voted_for, current_votes, has_followers, and
commit_index that goes with a role change lives here. Handlers still
update those fields during ordinary message handling, and a Candidate
whose election times out starts a new term without this table.
*/
package roletable

// Role is a node's real Raft role.
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "FOLLOWER"
	case Candidate:
		return "CANDIDATE"
	case Leader:
		return "LEADER"
	default:
		return "UNKNOWN"
	}
}

// ObservedRole is the role table's event vocabulary: the three real
// roles plus three synthetic injection points that are not
// roles a node ever holds, only events fed to the table.
type ObservedRole int

const (
	ObservedFollower ObservedRole = iota
	ObservedCandidate
	ObservedLeader
	// Timer: the follower's election timeout fired.
	Timer
	// ElectionCommission: the candidate collected a majority of votes.
	ElectionCommission
	// Constitution: the leader lost quorum and must step down.
	Constitution
)

// FieldOp is the action to take on one volatile field during a
// transition.
type FieldOp int

const (
	Leave FieldOp = iota
	ResetToNone
	Initialize
)

// StateChange is the complete, centralized record of what a handler
// must do to its volatile fields in response to one event.
type StateChange struct {
	// RoleChange is non-nil when the transition changes role.
	RoleChange *RoleTransition
	// CurrentTerm is max(observed_term, own_term) for a real observed
	// role, own_term+1 for Timer, and own_term for ElectionCommission
	// and Constitution.
	CurrentTerm uint64

	NextIndex    FieldOp
	MatchIndex   FieldOp
	VotedFor     FieldOp
	CurrentVotes FieldOp
	HasFollowers FieldOp
	CommitIndex  FieldOp
}

// RoleTransition names the From/To roles of a role change.
type RoleTransition struct {
	From Role
	To   Role
}

// EnumerateStateChange maps an observed role and term against the
// node's own to the complete set of field operations the transition
// requires. It never mutates anything; callers apply the returned
// StateChange to their own State.
func EnumerateStateChange(observedRole ObservedRole, observedTerm uint64, ownRole Role, ownTerm uint64) StateChange {
	switch observedRole {
	case Timer:
		return enterCandidate(ownTerm)
	case ElectionCommission:
		return enterLeader(ownTerm)
	case Constitution:
		return enterFollower(ownRole, ownTerm, ownTerm)
	}

	// Real observed role: a message carrying a term arrived.
	if observedTerm > ownTerm {
		// Adopt the higher term; any non-Follower role demotes.
		return enterFollower(ownRole, observedTerm, ownTerm)
	}
	if observedTerm == ownTerm && observedRole == ObservedLeader && ownRole == Candidate {
		return enterFollower(ownRole, ownTerm, ownTerm)
	}
	// observedTerm < ownTerm, or no transition condition matched: stale
	// or no-op. No role change; current term is unaffected.
	return StateChange{
		CurrentTerm:  ownTerm,
		NextIndex:    Leave,
		MatchIndex:   Leave,
		VotedFor:     Leave,
		CurrentVotes: Leave,
		HasFollowers: Leave,
		CommitIndex:  Leave,
	}
}

// enterFollower builds the StateChange for transitioning (from
// anywhere) into Follower, discovering a new term along the way. All
// leader-only and candidate-only fields reset to None; commit_index is
// monotone and never resets.
func enterFollower(from Role, newTerm uint64, ownTerm uint64) StateChange {
	var rc *RoleTransition
	if from != Follower {
		rc = &RoleTransition{From: from, To: Follower}
	}
	votedFor := Leave
	if newTerm > ownTerm {
		votedFor = ResetToNone
	}
	return StateChange{
		RoleChange:   rc,
		CurrentTerm:  newTerm,
		NextIndex:    ResetToNone,
		MatchIndex:   ResetToNone,
		VotedFor:     votedFor,
		CurrentVotes: ResetToNone,
		HasFollowers: ResetToNone,
		CommitIndex:  Leave,
	}
}

// enterCandidate builds the StateChange for Follower -> Candidate on
// election timeout: increment term, vote for self, initialize
// current_votes with a self-vote.
func enterCandidate(ownTerm uint64) StateChange {
	return StateChange{
		RoleChange:   &RoleTransition{From: Follower, To: Candidate},
		CurrentTerm:  ownTerm + 1,
		NextIndex:    Leave,
		MatchIndex:   Leave,
		VotedFor:     Initialize, // vote for self
		CurrentVotes: Initialize, // self-vote recorded
		HasFollowers: Leave,
		CommitIndex:  Leave,
	}
}

// enterLeader builds the StateChange for Candidate -> Leader on
// collecting a majority: initialize per-follower bookkeeping, clear
// candidate-only fields.
func enterLeader(ownTerm uint64) StateChange {
	return StateChange{
		RoleChange:   &RoleTransition{From: Candidate, To: Leader},
		CurrentTerm:  ownTerm,
		NextIndex:    Initialize,
		MatchIndex:   Initialize,
		VotedFor:     Leave,
		CurrentVotes: ResetToNone,
		HasFollowers: Initialize,
		CommitIndex:  Leave,
	}
}
