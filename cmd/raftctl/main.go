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
raftctl is an operator inspection tool: it polls one or more raftd
nodes' /debug/state endpoints (internal/clusterserver.DebugServer) and
renders the cluster's role/term/commit_index picture in one table. It
never writes to a node — append is raft-repl's job — so raftctl has
no path back into the consensus core at all.

Usage:

	raftctl status --hosts node1:9091,node2:9091,node3:9091
	raftctl status --hosts node1,node2,node3 --port 9091 --format json
*/
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/fireflyoss/raftkit/internal/raft"
	"github.com/fireflyoss/raftkit/pkg/cli"
)

func main() {
	hostsFlag := flag.String("hosts", "", "comma-separated list of host or host:port debug addresses")
	portFlag := flag.String("port", "9091", "default debug port for hosts given without one")
	formatFlag := flag.String("format", "table", "output format: table, json, plain")
	timeout := flag.Duration("timeout", 3*time.Second, "per-node request timeout")
	flag.Parse()

	hosts := parseHosts(*hostsFlag, *portFlag)
	if len(hosts) == 0 {
		fmt.Fprintln(os.Stderr, "raftctl: --hosts is required, e.g. --hosts node1:9091,node2:9091")
		os.Exit(2)
	}

	snapshots := fetchAll(hosts, *timeout)

	t := cli.NewTable("HOST", "IDENTIFIER", "ROLE", "TERM", "COMMIT_INDEX", "LOG_LENGTH", "ERROR")
	t.SetFormat(cli.ParseOutputFormat(*formatFlag))
	for _, r := range snapshots {
		if r.err != nil {
			t.AddRow(r.host, "-", "-", "-", "-", "-", r.err.Error())
			continue
		}
		s := r.snapshot
		t.AddRow(r.host, s.Identifier, s.Role, fmt.Sprint(s.CurrentTerm), fmt.Sprint(s.CommitIndex), fmt.Sprint(s.LogLength), "")
	}
	t.Print()
}

// parseHosts splits a comma-separated host list into "host:port"
// entries, defaulting any bare host to defaultPort. Entries are
// trimmed of surrounding whitespace and empty entries are dropped,
// the same forgiving parsing raftd's sibling CLI tools have always
// applied to operator-typed host lists.
func parseHosts(hostStr, defaultPort string) []string {
	result := make([]string, 0)
	for _, h := range strings.Split(hostStr, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(h); err != nil {
			h = net.JoinHostPort(h, defaultPort)
		}
		result = append(result, h)
	}
	return result
}

type fetchResult struct {
	host     string
	snapshot raft.DebugSnapshot
	err      error
}

// fetchAll polls every host concurrently and returns results in the
// same order hosts were given, regardless of which responds first.
func fetchAll(hosts []string, timeout time.Duration) []fetchResult {
	results := make([]fetchResult, len(hosts))
	done := make(chan struct{}, len(hosts))
	for i, h := range hosts {
		go func(i int, host string) {
			snap, err := fetchOne(host, timeout)
			results[i] = fetchResult{host: host, snapshot: snap, err: err}
			done <- struct{}{}
		}(i, h)
	}
	for range hosts {
		<-done
	}
	return results
}

func fetchOne(host string, timeout time.Duration) (raft.DebugSnapshot, error) {
	client := &http.Client{
		Timeout: timeout,
		// h2c: raftd's debug endpoint speaks cleartext HTTP/2; without
		// this transport net/http would never attempt the upgrade. The
		// client is built per call, so every poll dials a new connection.
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				d := net.Dialer{}
				return d.DialContext(ctx, network, addr)
			},
		},
	}
	req, err := http.NewRequest(http.MethodGet, "http://"+host+"/debug/state", nil)
	if err != nil {
		return raft.DebugSnapshot{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return raft.DebugSnapshot{}, err
	}
	defer resp.Body.Close()
	var snap raft.DebugSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return raft.DebugSnapshot{}, err
	}
	return snap, nil
}
