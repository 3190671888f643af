/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
raftd is the node daemon: it loads a cluster config, restores durable
state from the last snapshot, and runs the Server Shell until
interrupted. Everything it does is plumbing around internal/raft's
core; the surrounding loop is plumbing.

Usage:

	raftd --config node.conf
	raftd --config node.conf --experimental-unsafe-commit
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/fireflyoss/raftkit/internal/audit"
	"github.com/fireflyoss/raftkit/internal/clusterserver"
	"github.com/fireflyoss/raftkit/internal/compression"
	"github.com/fireflyoss/raftkit/internal/config"
	"github.com/fireflyoss/raftkit/internal/logging"
	"github.com/fireflyoss/raftkit/internal/raft"
	"github.com/fireflyoss/raftkit/internal/storage"
)

func main() {
	configPath := flag.String("config", "raftd.conf", "path to the node configuration file")
	experimental := flag.Bool("experimental-unsafe-commit", false,
		"disable the current-term commit-safety check (negative-test fixture; never use in production)")
	flag.Parse()

	if err := run(*configPath, *experimental); err != nil {
		fmt.Fprintf(os.Stderr, "raftd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, experimental bool) error {
	mgr := config.NewManager()
	if err := mgr.LoadFromFile(configPath); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := mgr.Get()

	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetJSONMode(cfg.LogJSON)
	logger := logging.NewLogger("raftd").With("identifier", cfg.Identifier)
	logger.Info("starting", "config", cfg.String())

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	var persister *storage.Persister
	if algo, err := compression.ParseAlgorithm(cfg.SnapshotCompression); err == nil && algo != compression.AlgorithmNone {
		persister = storage.NewPersisterWithCompression(cfg.DataDir, algo)
	} else {
		persister = storage.NewPersister(cfg.DataDir)
	}

	snap, err := persister.Load()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	auditor := audit.NewManager(filepath.Join(cfg.DataDir, "audit.jsonl"), audit.DefaultConfig())
	defer auditor.Close()

	peerMap := make(map[string]string, len(cfg.Peers))
	for _, p := range cfg.Peers {
		peerMap[p.Identifier] = p.Address
	}

	state := raft.New(cfg.Identifier, peerMap, persister, auditor)
	state.Restore(snap)
	if experimental {
		logger.Warn("experimental unsafe-commit mode enabled; this node may commit entries unsafely")
		state = state.WithExperimentalMode()
	}

	server, err := clusterserver.New(cfg, state)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Run(gctx); err != nil && gctx.Err() == nil {
			return fmt.Errorf("server shell: %w", err)
		}
		return nil
	})
	if cfg.DebugAddr != "" {
		debugSrv := clusterserver.NewDebugServer(cfg.DebugAddr, state)
		logger.Info("debug endpoint listening", "addr", cfg.DebugAddr)
		g.Go(func() error { return debugSrv.Run(gctx) })
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("shut down cleanly")
	return nil
}
