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
Package config loads and validates raftkit's cluster configuration:
the static identifier -> (host, port) membership map the cluster
requires every node start from, plus the timing and protocol
parameters that govern a running node.

Configuration lives in a flat "key = value" file, one assignment per
line, reloadable at runtime via Manager.Reload. Peer addresses use a
repeated "peer = id@host:port" line rather than a nested format,
keeping the parser a single pass with no grammar beyond key/value.
*/
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/fireflyoss/raftkit/internal/compression"
)

// ProtocolVersion is the wire/role-table semantics version this
// build implements. Validate refuses a config whose protocol_version
// has a different major version; peers do not exchange versions.
const ProtocolVersion = "v1.0.0"

// Peer is one entry in the static cluster membership map.
type Peer struct {
	Identifier string
	Address    string // host:port
}

// Config is a fully validated node configuration.
type Config struct {
	Identifier      string
	Port            int
	Peers           []Peer
	ProtocolVersion string
	DataDir         string
	LogLevel        string
	LogJSON         bool
	ElectionTimeoutMinMS int
	ElectionTimeoutMaxMS int
	HeartbeatIntervalMS  int
	TLSEnabled           bool
	SnapshotCompression  string // "" or "none" disables; else gzip/lz4/snappy/zstd
	DebugAddr            string // "" disables the /debug/state endpoint
}

// DefaultConfig returns a single-node config with the timing
// constants used throughout the test suite.
func DefaultConfig() *Config {
	return &Config{
		Identifier:           "node-1",
		Port:                 8888,
		ProtocolVersion:      ProtocolVersion,
		DataDir:              "raftkit.data",
		LogLevel:             "info",
		LogJSON:              false,
		ElectionTimeoutMinMS: 150,
		ElectionTimeoutMaxMS: 300,
		HeartbeatIntervalMS:  50,
		TLSEnabled:           false,
	}
}

// Validate checks that cfg is internally consistent.
func (c *Config) Validate() error {
	if c.Identifier == "" {
		return fmt.Errorf("config: identifier must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	for _, p := range c.Peers {
		if p.Identifier == c.Identifier {
			return fmt.Errorf("config: peer list must not include self (%s)", c.Identifier)
		}
		if p.Address == "" {
			return fmt.Errorf("config: peer %s has empty address", p.Identifier)
		}
	}
	if !semver.IsValid(c.ProtocolVersion) {
		return fmt.Errorf("config: invalid protocol_version %q", c.ProtocolVersion)
	}
	if semver.Major(c.ProtocolVersion) != semver.Major(ProtocolVersion) {
		return fmt.Errorf("config: protocol_version %q incompatible with this build's %q", c.ProtocolVersion, ProtocolVersion)
	}
	if c.ElectionTimeoutMinMS <= 0 || c.ElectionTimeoutMaxMS <= c.ElectionTimeoutMinMS {
		return fmt.Errorf("config: election_timeout_min_ms/max_ms must satisfy 0 < min < max")
	}
	if c.HeartbeatIntervalMS <= 0 {
		return fmt.Errorf("config: heartbeat_interval_ms must be positive")
	}
	if time.Duration(c.HeartbeatIntervalMS)*time.Millisecond >= time.Duration(c.ElectionTimeoutMinMS)*time.Millisecond {
		return fmt.Errorf("config: heartbeat_interval_ms must be well below election_timeout_min_ms")
	}
	if _, err := compression.ParseAlgorithm(c.SnapshotCompression); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// String renders a summary suitable for startup logs.
func (c *Config) String() string {
	return fmt.Sprintf("Identifier: %s, Port: %d, Peers: %d, ProtocolVersion: %s, LogLevel: %s",
		c.Identifier, c.Port, len(c.Peers), c.ProtocolVersion, c.LogLevel)
}

// parseFile parses the "key = value" / "peer = id@host:port" format
// described on the package doc into cfg, starting from DefaultConfig.
func parseFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := DefaultConfig()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("config: malformed line %q", line)
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"`)

		switch key {
		case "identifier":
			cfg.Identifier = val
		case "port":
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("config: invalid port %q: %w", val, err)
			}
			cfg.Port = n
		case "peer":
			id, addr, ok := strings.Cut(val, "@")
			if !ok {
				return nil, fmt.Errorf("config: malformed peer entry %q, want id@host:port", val)
			}
			cfg.Peers = append(cfg.Peers, Peer{Identifier: id, Address: addr})
		case "protocol_version":
			cfg.ProtocolVersion = val
		case "data_dir":
			cfg.DataDir = val
		case "log_level":
			cfg.LogLevel = val
		case "log_json":
			cfg.LogJSON = val == "true"
		case "tls_enabled":
			cfg.TLSEnabled = val == "true"
		case "snapshot_compression":
			cfg.SnapshotCompression = val
		case "debug_addr":
			cfg.DebugAddr = val
		case "election_timeout_min_ms":
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("config: invalid election_timeout_min_ms %q: %w", val, err)
			}
			cfg.ElectionTimeoutMinMS = n
		case "election_timeout_max_ms":
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("config: invalid election_timeout_max_ms %q: %w", val, err)
			}
			cfg.ElectionTimeoutMaxMS = n
		case "heartbeat_interval_ms":
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("config: invalid heartbeat_interval_ms %q: %w", val, err)
			}
			cfg.HeartbeatIntervalMS = n
		default:
			return nil, fmt.Errorf("config: unknown key %q", key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Manager holds a live, reloadable Config and notifies the callbacks
// registered with OnReload on Reload. Nothing in raftkit registers
// one: a running node keeps the membership it started with.
type Manager struct {
	mu       sync.RWMutex
	path     string
	cfg      *Config
	onReload []func(*Config)
}

// NewManager returns a Manager holding DefaultConfig until LoadFromFile
// is called.
func NewManager() *Manager {
	return &Manager{cfg: DefaultConfig()}
}

// LoadFromFile parses path and validates the result before adopting it.
func (m *Manager) LoadFromFile(path string) error {
	cfg, err := parseFile(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.path = path
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

// Get returns the current Config.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// OnReload registers fn to run after every successful Reload.
func (m *Manager) OnReload(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = append(m.onReload, fn)
}

// Reload re-reads the file passed to LoadFromFile and notifies
// subscribers if the new config validates.
func (m *Manager) Reload() error {
	m.mu.RLock()
	path := m.path
	m.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("config: Reload called before LoadFromFile")
	}
	cfg, err := parseFile(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = cfg
	callbacks := append([]func(*Config){}, m.onReload...)
	m.mu.Unlock()
	for _, cb := range callbacks {
		cb(cfg)
	}
	return nil
}

var (
	globalOnce sync.Once
	global     *Manager
)

// Global returns the process-wide Manager singleton.
func Global() *Manager {
	globalOnce.Do(func() {
		global = NewManager()
	})
	return global
}
