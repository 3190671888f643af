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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Port != 8888 {
		t.Errorf("Expected default port 8888, got %d", cfg.Port)
	}
	if cfg.Identifier != "node-1" {
		t.Errorf("Expected default identifier 'node-1', got '%s'", cfg.Identifier)
	}
	if cfg.ProtocolVersion != ProtocolVersion {
		t.Errorf("Expected default protocol_version %s, got %s", ProtocolVersion, cfg.ProtocolVersion)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log_level 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.LogJSON != false {
		t.Errorf("Expected default log_json false, got %v", cfg.LogJSON)
	}
	if cfg.ElectionTimeoutMinMS != 150 || cfg.ElectionTimeoutMaxMS != 300 {
		t.Errorf("Expected default election timeout bounds 150/300, got %d/%d", cfg.ElectionTimeoutMinMS, cfg.ElectionTimeoutMaxMS)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should validate, got: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	base := func() *Config {
		cfg := DefaultConfig()
		cfg.Peers = []Peer{{Identifier: "node-2", Address: "localhost:8889"}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid with one peer", func(c *Config) {}, false},
		{"invalid port - zero", func(c *Config) { c.Port = 0 }, true},
		{"invalid port - too high", func(c *Config) { c.Port = 70000 }, true},
		{"empty identifier", func(c *Config) { c.Identifier = "" }, true},
		{"self in peer list", func(c *Config) {
			c.Peers = append(c.Peers, Peer{Identifier: c.Identifier, Address: "localhost:1"})
		}, true},
		{"peer with empty address", func(c *Config) {
			c.Peers = append(c.Peers, Peer{Identifier: "node-3", Address: ""})
		}, true},
		{"invalid protocol version", func(c *Config) { c.ProtocolVersion = "not-semver" }, true},
		{"incompatible major protocol version", func(c *Config) { c.ProtocolVersion = "v2.0.0" }, true},
		{"inverted election timeout bounds", func(c *Config) { c.ElectionTimeoutMinMS, c.ElectionTimeoutMaxMS = 300, 150 }, true},
		{"heartbeat not below election timeout", func(c *Config) { c.HeartbeatIntervalMS = 200 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestManagerLoadAndReload(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "raftkit-config-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configContent := `identifier = node-1
port = 9000
peer = node-2@localhost:9001
log_level = info
`
	configPath := filepath.Join(tmpDir, "raftkit.conf")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	mgr := NewManager()
	if err := mgr.LoadFromFile(configPath); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	cfg := mgr.Get()
	if cfg.Port != 9000 {
		t.Errorf("Expected initial port 9000, got %d", cfg.Port)
	}
	if len(cfg.Peers) != 1 || cfg.Peers[0].Identifier != "node-2" {
		t.Errorf("Expected one peer node-2, got %+v", cfg.Peers)
	}

	reloadCalled := false
	mgr.OnReload(func(c *Config) {
		reloadCalled = true
	})

	newContent := `identifier = node-1
port = 8000
peer = node-2@localhost:9001
log_level = debug
`
	if err := os.WriteFile(configPath, []byte(newContent), 0644); err != nil {
		t.Fatalf("Failed to update config file: %v", err)
	}

	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	cfg = mgr.Get()
	if cfg.Port != 8000 {
		t.Errorf("Expected reloaded port 8000, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected reloaded log_level 'debug', got '%s'", cfg.LogLevel)
	}
	if !reloadCalled {
		t.Error("Reload callback was not called")
	}
}

func TestGlobalManager(t *testing.T) {
	mgr := Global()
	if mgr == nil {
		t.Error("Global() returned nil")
	}
	mgr2 := Global()
	if mgr != mgr2 {
		t.Error("Global() returned different instances")
	}
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	str := cfg.String()

	if !strings.Contains(str, "Identifier:") {
		t.Error("String() missing Identifier")
	}
	if !strings.Contains(str, "Port:") {
		t.Error("String() missing Port")
	}
	if !strings.Contains(str, "node-1") {
		t.Error("String() missing identifier value")
	}
}
