/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package clusterserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/fireflyoss/raftkit/internal/raft"
)

// DebugServer serves /debug/state for cmd/raftctl to poll. It is a
// pure operator convenience, a surface outside the consensus core with
// no path back into it beyond calling State.Debug, which takes the
// same mutex every Handle call does.
//
// It answers over cleartext HTTP/2 (h2c), using
// golang.org/x/net/http2/h2c since Go's stdlib net/http server only
// upgrades to h2c when told to. raftctl builds a new client for every
// poll, so each poll opens its own connection.
type DebugServer struct {
	srv *http.Server
}

// NewDebugServer builds (but does not start) a debug server over
// state, listening on addr (e.g. ":9091").
func NewDebugServer(addr string, state *raft.State) *DebugServer {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(state.Debug())
	})

	h2s := &http2.Server{}
	handler := h2c.NewHandler(mux, h2s)

	return &DebugServer{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Run serves until ctx is canceled.
func (d *DebugServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.srv.Addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.srv.Shutdown(shutdownCtx)
	}()
	if err := d.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
