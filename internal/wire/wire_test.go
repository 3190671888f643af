/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package wire

import (
	"errors"
	"testing"
)

func TestEncodeCanonicalExample(t *testing.T) {
	v := Dict(map[string]Value{
		"a": List(Int(1), StrOf("two")),
		"b": Int(-3),
	})
	got := string(Encode(v))
	want := "d1:ali1e3:twoe1:bi-3ee"
	if got != want {
		t.Fatalf("Encode() = %q, want %q", got, want)
	}

	decoded, n, err := Decode([]byte(got))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if n != len(got) {
		t.Fatalf("Decode() consumed %d bytes, want %d", n, len(got))
	}
	if !decoded.Equal(v) {
		t.Fatalf("Decode(Encode(v)) = %v, want %v", decoded, v)
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Value
	}{
		{"zero", Int(0)},
		{"negative", Int(-42)},
		{"positive", Int(1 << 40)},
		{"empty string", StrOf("")},
		{"string", StrOf("hello world")},
		{"empty list", List()},
		{"nested list", List(Int(1), List(Int(2), Int(3)), StrOf("x"))},
		{"empty dict", Dict(map[string]Value{})},
		{"nested dict", Dict(map[string]Value{
			"x": List(Int(1), Int(2)),
			"y": Dict(map[string]Value{"z": Int(9)}),
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := Encode(tt.v)
			dec, n, err := Decode(enc)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if n != len(enc) {
				t.Fatalf("Decode() consumed %d of %d bytes", n, len(enc))
			}
			if !dec.Equal(tt.v) {
				t.Fatalf("round trip mismatch: got %v, want %v", dec, tt.v)
			}
			// encode(decode(b)) == b
			reenc := Encode(dec)
			if string(reenc) != string(enc) {
				t.Fatalf("re-encode mismatch: got %q, want %q", reenc, enc)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []string{
		"",
		"x",
		"i e",
		"ie",
		"i-e",
		"i01e",
		"01:x",
		"3:ab",
		"l",
		"l e",
		"d1:ae",
		"d1:bi1e1:ai2ee", // keys out of order
		"d1:ai1e1:ai2ee", // duplicate key
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, _, err := Decode([]byte(in))
			if err == nil {
				t.Fatalf("Decode(%q) succeeded, want ErrMalformed", in)
			}
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("Decode(%q) error = %v, want ErrMalformed", in, err)
			}
		})
	}
}

func TestDictKeysSortedOnEncode(t *testing.T) {
	v := Dict(map[string]Value{
		"z": Int(1),
		"a": Int(2),
		"m": Int(3),
	})
	got := string(Encode(v))
	want := "d1:ai2e1:mi3e1:zi1ee"
	if got != want {
		t.Fatalf("Encode() = %q, want %q", got, want)
	}
}
