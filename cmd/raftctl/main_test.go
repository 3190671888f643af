/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package main

import "testing"

func TestParseHosts(t *testing.T) {
	tests := []struct {
		name     string
		hostStr  string
		portStr  string
		expected []string
	}{
		{
			name:     "single host without port",
			hostStr:  "localhost",
			portStr:  "9091",
			expected: []string{"localhost:9091"},
		},
		{
			name:     "single host with port",
			hostStr:  "localhost:9999",
			portStr:  "9091",
			expected: []string{"localhost:9999"},
		},
		{
			name:     "multiple hosts without ports",
			hostStr:  "node1,node2,node3",
			portStr:  "9091",
			expected: []string{"node1:9091", "node2:9091", "node3:9091"},
		},
		{
			name:     "multiple hosts with mixed ports",
			hostStr:  "node1:9091,node2,node3:9999",
			portStr:  "9091",
			expected: []string{"node1:9091", "node2:9091", "node3:9999"},
		},
		{
			name:     "hosts with spaces",
			hostStr:  " node1 , node2 , node3 ",
			portStr:  "9091",
			expected: []string{"node1:9091", "node2:9091", "node3:9091"},
		},
		{
			name:     "empty string",
			hostStr:  "",
			portStr:  "9091",
			expected: []string{},
		},
		{
			name:     "only commas",
			hostStr:  ",,",
			portStr:  "9091",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseHosts(tt.hostStr, tt.portStr)
			if len(result) != len(tt.expected) {
				t.Fatalf("parseHosts(%q, %q) = %v, want %v", tt.hostStr, tt.portStr, result, tt.expected)
			}
			for i, host := range result {
				if host != tt.expected[i] {
					t.Errorf("parseHosts(%q, %q)[%d] = %q, want %q", tt.hostStr, tt.portStr, i, host, tt.expected[i])
				}
			}
		})
	}
}
