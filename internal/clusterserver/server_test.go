/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package clusterserver

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/fireflyoss/raftkit/internal/config"
	"github.com/fireflyoss/raftkit/internal/raft"
	"github.com/fireflyoss/raftkit/internal/roletable"
)

func freePort(t *testing.T) int {
	t.Helper()
	return 20000 + int(time.Now().UnixNano()%5000)
}

func twoNodeConfigs(t *testing.T) (*config.Config, *config.Config) {
	t.Helper()
	p1, p2 := freePort(t), freePort(t)+1
	c1 := &config.Config{
		Identifier:           "n1",
		Port:                 p1,
		Peers:                []config.Peer{{Identifier: "n2", Address: "localhost:" + strconv.Itoa(p2)}},
		ProtocolVersion:      config.ProtocolVersion,
		ElectionTimeoutMinMS: 40,
		ElectionTimeoutMaxMS: 80,
		HeartbeatIntervalMS:  10,
	}
	c2 := &config.Config{
		Identifier:           "n2",
		Port:                 p2,
		Peers:                []config.Peer{{Identifier: "n1", Address: "localhost:" + strconv.Itoa(p1)}},
		ProtocolVersion:      config.ProtocolVersion,
		ElectionTimeoutMinMS: 2000, // never fires first; n1 always wins the race
		ElectionTimeoutMaxMS: 3000,
		HeartbeatIntervalMS:  500,
	}
	return c1, c2
}

// TestTwoNodeElectionConverges drives a full RequestVote round trip
// over real TCP sockets: n1's short election timer fires first, it
// solicits n2's vote, and within the timeout window n1 must become
// leader.
func TestTwoNodeElectionConverges(t *testing.T) {
	c1, c2 := twoNodeConfigs(t)

	s1 := raft.New(c1.Identifier, map[string]string{"n2": ""}, nil, nil)
	s2 := raft.New(c2.Identifier, map[string]string{"n1": ""}, nil, nil)

	srv1, err := New(c1, s1)
	if err != nil {
		t.Fatalf("New(c1) failed: %v", err)
	}
	srv2, err := New(c2, s2)
	if err != nil {
		t.Fatalf("New(c2) failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go srv1.Run(ctx)
	go srv2.Run(ctx)

	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			if s1.Role() == roletable.Leader {
				return
			}
		case <-deadline:
			t.Fatalf("n1 never became leader; role=%v term=%d", s1.Role(), s1.CurrentTerm())
		}
	}
}

// TestClientAppendToFollowerGetsTextReply dials a node that is still a
// Follower the way raft-repl would and submits a CLIENT_LOG_APPEND; the
// node must answer with a TEXT diagnostic over the same connection
// rather than dropping the message silently.
func TestClientAppendToFollowerGetsTextReply(t *testing.T) {
	_, c2 := twoNodeConfigs(t)

	// n2's election timers are seconds long, so it stays Follower for
	// the duration of the test.
	s2 := raft.New(c2.Identifier, map[string]string{"n1": ""}, nil, nil)
	srv2, err := New(c2, s2)
	if err != nil {
		t.Fatalf("New(c2) failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go srv2.Run(ctx)

	addr := "localhost:" + strconv.Itoa(c2.Port)
	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("could not dial %s: %v", addr, err)
	}
	defer conn.Close()

	m := raft.Message{Kind: raft.KindClientLogAppend, Source: "test-client", Item: []byte("x")}
	if err := WriteFrame(conn, raft.Encode(m)); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	v, err := ReadFrame(bufio.NewReader(conn))
	if err != nil {
		t.Fatalf("expected a reply frame, got %v", err)
	}
	reply, err := raft.Decode(v)
	if err != nil {
		t.Fatalf("reply did not decode: %v", err)
	}
	if reply.Kind != raft.KindText {
		t.Fatalf("expected a TEXT reply from a non-leader, got %v", reply.Kind)
	}
}
