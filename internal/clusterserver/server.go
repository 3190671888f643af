/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

/*
Package clusterserver is the Server Shell: the pump that drives a
internal/raft.State. It owns no consensus logic of its own — it reads
bytes off the network, decodes them into raft.Message values, feeds
them to State.Handle one at a time, and writes whatever messages come
back to the wire. It also owns the election/heartbeat timer, the one
piece of real time the core itself never touches.

Three conceptual threads run concurrently, matching the component
design: a network reader per inbound connection, a single handler
goroutine that is the only thing ever allowed to call into the State,
and a timer goroutine. golang.org/x/sync/errgroup supervises the
accept loop, the handler and the timer, so an error returned by one
(a closed listener, say) tears the rest down instead of leaving a
half-running node. The per-connection readers are plain goroutines
outside the group, and panics are not recovered.
*/
package clusterserver

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fireflyoss/raftkit/internal/config"
	raftkiterrors "github.com/fireflyoss/raftkit/internal/errors"
	"github.com/fireflyoss/raftkit/internal/logging"
	"github.com/fireflyoss/raftkit/internal/raft"
	"github.com/fireflyoss/raftkit/internal/roletable"
	"github.com/fireflyoss/raftkit/internal/transportsec"
)

// event is what the handler goroutine's queue actually carries: either
// a decoded Message off the network, or a synthetic timer firing. This
// is the "synthetic Timeout message into the same queue" the timer
// thread enqueues, kept as a small sum type rather than stretching
// raft.Message.Kind to cover something that never crosses the wire.
// replyTo carries the inbound connection the message arrived on, so a
// response addressed to a source that is not a configured peer (a
// client like raft-repl) can be written straight back instead of
// being dropped for want of a link.
type event struct {
	msg     *raft.Message
	timeout bool
	replyTo *clientConn
}

// clientConn serializes frame writes back to one inbound connection.
type clientConn struct {
	mu   sync.Mutex
	conn net.Conn
}

func (c *clientConn) send(m raft.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeFrame(c.conn, raft.Encode(m))
}

// Server is the Server Shell for one node.
type Server struct {
	id     string
	addr   string
	state  *raft.State
	logger *logging.Logger

	electionMin time.Duration
	electionMax time.Duration
	heartbeat   time.Duration

	links map[string]*peerLink

	tlsConfig *tls.Config

	queue   chan event
	resetCh chan struct{}
}

// New builds a Server Shell around an already-constructed State. If
// cfg.TLSEnabled is set, a self-signed certificate is minted for this
// node (internal/transportsec) and every peer link, inbound and
// outbound, is wrapped in TLS; otherwise links are plain TCP, matching
// the same frame layout either way.
func New(cfg *config.Config, state *raft.State) (*Server, error) {
	var tlsConfig *tls.Config
	if cfg.TLSEnabled {
		sans := make([]string, 0, len(cfg.Peers)+1)
		sans = append(sans, "localhost", "127.0.0.1")
		cert, err := transportsec.GenerateSelfSignedCert(transportsec.DefaultCertConfig(cfg.Identifier, sans))
		if err != nil {
			return nil, fmt.Errorf("clusterserver: mint tls cert: %w", err)
		}
		tlsConfig = transportsec.ServerConfig(cert)
	}

	links := make(map[string]*peerLink, len(cfg.Peers))
	for _, p := range cfg.Peers {
		var dialTLS *tls.Config
		if cfg.TLSEnabled {
			dialTLS = transportsec.DialConfig(tlsConfig.Certificates[0])
		}
		links[p.Identifier] = newPeerLink(p.Address, dialTLS)
	}
	return &Server{
		id:          cfg.Identifier,
		addr:        fmt.Sprintf(":%d", cfg.Port),
		state:       state,
		logger:      logging.NewLogger("clusterserver").With("node", cfg.Identifier),
		electionMin: time.Duration(cfg.ElectionTimeoutMinMS) * time.Millisecond,
		electionMax: time.Duration(cfg.ElectionTimeoutMaxMS) * time.Millisecond,
		heartbeat:   time.Duration(cfg.HeartbeatIntervalMS) * time.Millisecond,
		links:       links,
		tlsConfig:   tlsConfig,
		queue:       make(chan event, 256),
		resetCh:     make(chan struct{}, 1),
	}, nil
}

// Run starts the listener and all three threads, and blocks until ctx
// is canceled or one of them fails.
func (s *Server) Run(ctx context.Context) error {
	var ln net.Listener
	var err error
	if s.tlsConfig != nil {
		ln, err = tls.Listen("tcp", s.addr, s.tlsConfig)
	} else {
		ln, err = net.Listen("tcp", s.addr)
	}
	if err != nil {
		return fmt.Errorf("clusterserver: listen on %s: %w", s.addr, err)
	}
	s.logger.Info("listening", "addr", s.addr, "tls", fmt.Sprintf("%v", s.tlsConfig != nil))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.acceptLoop(gctx, ln) })
	g.Go(func() error { return s.handleLoop(gctx) })
	g.Go(func() error { return s.timerLoop(gctx) })

	<-gctx.Done()
	ln.Close()
	for _, l := range s.links {
		l.close()
	}
	return g.Wait()
}

// acceptLoop is the network reader thread: one goroutine accepts
// connections, one goroutine per connection decodes frames and
// enqueues them. The reader never touches State directly.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("clusterserver: accept: %w", err)
			}
		}
		go s.readConn(ctx, conn)
	}
}

func (s *Server) readConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	cc := &clientConn{conn: conn}
	r := bufio.NewReader(conn)
	for {
		v, err := readFrame(r)
		if err != nil {
			return
		}
		m, err := raft.Decode(v)
		if err != nil {
			s.logger.Warn("dropping malformed message", "error", err.Error())
			continue
		}
		select {
		case s.queue <- event{msg: &m, replyTo: cc}:
		case <-ctx.Done():
			return
		}
	}
}

// handleLoop is the handler thread: the only goroutine that ever
// touches s.state.
func (s *Server) handleLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.queue:
			if ev.timeout {
				s.onTimeout()
				continue
			}
			s.onMessage(*ev.msg, ev.replyTo)
		}
	}
}

func (s *Server) onMessage(m raft.Message, replyTo *clientConn) {
	if s.disablesRoleChangeThisCycle(m) {
		select {
		case s.resetCh <- struct{}{}:
		default:
		}
	}
	out, err := s.state.Handle(m)
	if err != nil {
		s.logger.Warn("handle failed", "kind", fmt.Sprint(m.Kind), "source", m.Source, "error", err.Error())
		if raftkiterrors.IsNotLeader(err) && replyTo != nil {
			reply := raft.Message{
				Kind:   raft.KindText,
				Source: s.id,
				Target: m.Source,
				Text:   fmt.Sprintf("not leader: node %s is %s", s.id, s.state.Role()),
			}
			if err := replyTo.send(reply); err != nil {
				s.logger.Warn("client reply failed", "error", err.Error())
			}
		}
		return
	}
	s.dispatch(out, replyTo)
}

// disablesRoleChangeThisCycle identifies the messages that reset the
// election timer: a Follower hearing from a leader or candidate, or a
// Candidate hearing a vote response. The role check happens before
// Handle mutates state.
func (s *Server) disablesRoleChangeThisCycle(m raft.Message) bool {
	switch s.state.Role() {
	case roletable.Follower:
		return m.Kind == raft.KindAppendRequest || m.Kind == raft.KindRequestVoteRequest
	case roletable.Candidate:
		return m.Kind == raft.KindRequestVoteResponse
	default:
		return false
	}
}

func (s *Server) onTimeout() {
	out, _, err := s.state.HandleTimeout()
	if err != nil {
		s.logger.Warn("timeout handling failed", "error", err.Error())
		return
	}
	s.dispatch(out, nil)
}

// dispatch routes each outgoing message: self-addressed internal
// triggers (ROLE_CHANGE, RUN_ELECTION, UPDATE_FOLLOWERS) loop straight
// back into the handler — still on the handler goroutine, so the
// one-message-at-a-time discipline holds — peer-addressed messages go
// out their link, and anything else falls back to the inbound
// connection it arrived on, if any.
func (s *Server) dispatch(out []raft.Message, replyTo *clientConn) {
	for _, m := range out {
		if m.Target == s.id {
			s.onMessage(m, nil)
			continue
		}
		if m.Target == "" {
			s.logger.Debug("dropping reply with no target", "kind", fmt.Sprint(m.Kind))
			continue
		}
		if link, ok := s.links[m.Target]; ok {
			if err := link.send(m); err != nil {
				s.logger.Warn("send failed", "target", m.Target, "error", err.Error())
			}
			continue
		}
		if replyTo != nil {
			if err := replyTo.send(m); err != nil {
				s.logger.Warn("client reply failed", "target", m.Target, "error", err.Error())
			}
			continue
		}
		s.logger.Warn("no link to target", "target", m.Target)
	}
}

// timerLoop is the timer thread: at most one outstanding timeout,
// randomized in [T, 2T] for followers/candidates, fixed T for leaders,
// reset whenever resetCh fires.
func (s *Server) timerLoop(ctx context.Context) error {
	t := time.NewTimer(s.nextInterval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.resetCh:
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
			t.Reset(s.nextInterval())
		case <-t.C:
			select {
			case s.queue <- event{timeout: true}:
			case <-ctx.Done():
				return nil
			}
			t.Reset(s.nextInterval())
		}
	}
}

func (s *Server) nextInterval() time.Duration {
	if s.state.Role() == roletable.Leader {
		return s.heartbeat
	}
	spread := s.electionMax - s.electionMin
	if spread <= 0 {
		return s.electionMin
	}
	return s.electionMin + time.Duration(rand.Int63n(int64(spread)))
}
