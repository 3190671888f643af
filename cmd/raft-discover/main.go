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
raft-discover finds raftkit nodes advertising themselves on the local
network over mDNS, for seeding a new node's static peer list
without hand-copying host:port pairs. It never joins or advertises
itself — it only browses.

Usage:

	raft-discover                  # discover nodes (5 second timeout)
	raft-discover --timeout 10     # custom timeout in seconds
	raft-discover --json           # output as JSON
	raft-discover --quiet          # only output "id@host:port" pairs, for scripting
*/
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fireflyoss/raftkit/internal/discovery"
	"github.com/fireflyoss/raftkit/pkg/cli"
)

func main() {
	timeout := flag.Int("timeout", 5, "discovery timeout in seconds")
	jsonOutput := flag.Bool("json", false, "output as JSON")
	quiet := flag.Bool("quiet", false, "only output id@host:port pairs (for scripting)")
	flag.Parse()

	nodes, err := discovery.Discover(time.Duration(*timeout) * time.Second)
	if err != nil {
		cli.PrintError("discovery failed: %v", err)
		os.Exit(1)
	}

	if len(nodes) == 0 {
		if !*quiet && !*jsonOutput {
			cli.PrintWarning("no raftkit nodes found on the network")
		}
		return
	}

	switch {
	case *jsonOutput:
		printJSON(nodes)
	case *quiet:
		printQuiet(nodes)
	default:
		printHuman(nodes)
	}
}

func printJSON(nodes []discovery.Node) {
	data, _ := json.MarshalIndent(nodes, "", "  ")
	fmt.Println(string(data))
}

func printQuiet(nodes []discovery.Node) {
	pairs := make([]string, len(nodes))
	for i, n := range nodes {
		pairs[i] = fmt.Sprintf("%s@%s", n.Identifier, n.Address())
	}
	fmt.Println(strings.Join(pairs, ","))
}

func printHuman(nodes []discovery.Node) {
	cli.PrintSuccess("found %d raftkit node(s)", len(nodes))
	t := cli.NewTable("IDENTIFIER", "ADDRESS")
	for _, n := range nodes {
		t.AddRow(n.Identifier, n.Address())
	}
	t.Print()
	fmt.Println()
	cli.KeyValue("Tip", "use --quiet to paste directly into a peer = id@host:port config line", 6)
}
