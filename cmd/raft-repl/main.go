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
raft-repl is an interactive client: it dials one node directly and
issues CLIENT_LOG_APPEND messages typed at a readline prompt, printing
whatever comes back: a leader emits no reply, a non-leader answers
with a TEXT diagnostic naming its actual role. It speaks the wire
codec and framing directly rather than going through a Server, the
same way a client library would.

Usage:

	raft-repl --addr node1:8888 --as repl-client
*/
package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/fireflyoss/raftkit/internal/clusterserver"
	"github.com/fireflyoss/raftkit/internal/raft"
	"github.com/fireflyoss/raftkit/pkg/cli"
)

func main() {
	addr := flagString("--addr", "localhost:8888")
	as := flagString("--as", "repl-client")

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		cli.PrintError("could not connect to %s: %v", addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	rl, err := readline.New(cli.Highlight("raft> "))
	if err != nil {
		cli.PrintError("readline init failed: %v", err)
		os.Exit(1)
	}
	defer rl.Close()

	reader := bufio.NewReader(conn)
	cli.PrintInfo("connected to %s as %s; type an item and press enter to CLIENT_LOG_APPEND it", addr, as)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return
		}
		if err != nil {
			cli.PrintError("%v", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "\\q" || line == "\\quit" {
			return
		}

		m := raft.Message{
			Kind:   raft.KindClientLogAppend,
			Source: as,
			Target: "",
			Item:   []byte(line),
		}
		if err := clusterserver.WriteFrame(conn, raft.Encode(m)); err != nil {
			cli.PrintError("send failed: %v", err)
			return
		}

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		v, err := clusterserver.ReadFrame(reader)
		conn.SetReadDeadline(time.Time{})
		if err != nil {
			// A leader emits no reply to CLIENT_LOG_APPEND; a read
			// timeout here means the append was almost certainly
			// accepted, not that anything went wrong.
			cli.PrintSuccess("appended (no reply expected from a leader)")
			continue
		}
		resp, err := raft.Decode(v)
		if err != nil {
			cli.PrintWarning("malformed reply: %v", err)
			continue
		}
		if resp.Kind == raft.KindText {
			cli.PrintError("%v", cli.ErrNotLeader(resp.Source))
			continue
		}
		fmt.Printf("%s\n", cli.Info(fmt.Sprintf("reply: %s", resp.Kind)))
	}
}

// flagString is a tiny manual parser for raft-repl's two named flags,
// since the interactive loop below needs readline's own line editing
// and has no other use for the flag package's os.Args consumption.
func flagString(name, def string) string {
	args := os.Args[1:]
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(a, name+"=") {
			return strings.TrimPrefix(a, name+"=")
		}
	}
	return def
}
