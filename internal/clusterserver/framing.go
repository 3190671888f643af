/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package clusterserver

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fireflyoss/raftkit/internal/wire"
)

// maxFrameSize bounds a single decoded message, a guard against a
// hostile or corrupt peer.
const maxFrameSize = 16 << 20

// WriteFrame is the exported form of writeFrame, for clients outside
// this package (cmd/raft-repl) that speak the same length-prefixed
// framing to dial a node directly rather than through a Server.
func WriteFrame(w io.Writer, v wire.Value) error { return writeFrame(w, v) }

// ReadFrame is the exported form of readFrame.
func ReadFrame(r *bufio.Reader) (wire.Value, error) { return readFrame(r) }

// writeFrame writes v as a 4-byte big-endian length prefix followed by
// its wire encoding. The codec itself is self-delimiting; the length
// prefix exists purely so a stream reader knows how many bytes to
// buffer before handing them to wire.Decode.
func writeFrame(w io.Writer, v wire.Value) error {
	body := wire.Encode(v)
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// readFrame reads one length-prefixed frame and decodes it.
func readFrame(r *bufio.Reader) (wire.Value, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return wire.Value{}, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxFrameSize {
		return wire.Value{}, fmt.Errorf("clusterserver: frame of %d bytes exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return wire.Value{}, err
	}
	v, consumed, err := wire.Decode(body)
	if err != nil {
		return wire.Value{}, err
	}
	if consumed != len(body) {
		return wire.Value{}, fmt.Errorf("clusterserver: frame had %d trailing bytes", len(body)-consumed)
	}
	return v, nil
}
