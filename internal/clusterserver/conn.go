/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package clusterserver

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/fireflyoss/raftkit/internal/raft"
)

// peerLink is a lazily-dialed, auto-reconnecting outbound connection to
// one peer. A send failure just drops the connection; the next send
// redials. Raft's own retry (the leader keeps resending AppendRequest
// until next_index converges) makes a dropped message harmless, so this
// stays deliberately dumb rather than growing a reconnect backoff.
type peerLink struct {
	mu        sync.Mutex
	addr      string
	conn      net.Conn
	tlsConfig *tls.Config
}

func newPeerLink(addr string, tlsConfig *tls.Config) *peerLink {
	return &peerLink{addr: addr, tlsConfig: tlsConfig}
}

func (p *peerLink) send(m raft.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		dialer := net.Dialer{Timeout: 2 * time.Second}
		var c net.Conn
		var err error
		if p.tlsConfig != nil {
			c, err = tls.DialWithDialer(&dialer, "tcp", p.addr, p.tlsConfig)
		} else {
			c, err = dialer.DialContext(context.Background(), "tcp", p.addr)
		}
		if err != nil {
			return err
		}
		p.conn = c
	}
	if err := writeFrame(p.conn, raft.Encode(m)); err != nil {
		p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

func (p *peerLink) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}
