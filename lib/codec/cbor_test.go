// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
	"time"
)

type record struct {
	Kind    string    `cbor:"kind"`
	Count   int       `cbor:"count,omitempty"`
	Payload []byte    `cbor:"payload,omitempty"`
	At      time.Time `cbor:"at"`
}

func TestMarshalDeterministic(t *testing.T) {
	first, err := Marshal(map[string]int{"b": 2, "a": 1, "c": 3})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Marshal(map[string]int{"c": 3, "a": 1, "b": 2})
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding not deterministic: %x vs %x", first, again)
		}
	}
}

func TestStreamRoundtrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, kind := range []string{"start", "line", "end"} {
		if err := encoder.Encode(record{Kind: kind, At: at}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for _, want := range []string{"start", "line", "end"} {
		var got record
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.Kind != want || !got.At.Equal(at) {
			t.Fatalf("got %+v, want kind %q at %v", got, want, at)
		}
	}
}

func TestUnmarshalAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"outer": map[string]any{"inner": 1}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("top level decoded as %T", decoded)
	}
	if _, ok := outer["outer"].(map[string]any); !ok {
		t.Fatalf("nested map decoded as %T", outer["outer"])
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	var target record
	if err := Unmarshal([]byte{0xff, 0x00}, &target); err == nil {
		t.Fatal("expected error for invalid CBOR")
	}
}
