// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hostflow/hostflow/lib/clock"
	"github.com/hostflow/hostflow/lib/compress"
)

var payload = []byte(`{"jsonrpc":"2.0","result":[{"enabled":true,"sampleRate":1048576,"pollingInterval":30.0,` +
	strings.Repeat(`"ipv4Destinations":[{"ipv4Address":"10.0.0.160","port":6343,"vrfName":"default"}],`, 8) +
	`"polling":true}],"id":"hostflow-1"}`)

func TestDigestPayload(t *testing.T) {
	first := DigestPayload(payload)
	if first != DigestPayload(append([]byte(nil), payload...)) {
		t.Fatal("digest is not deterministic")
	}
	if first == DigestPayload([]byte("{}")) {
		t.Fatal("different payloads share a digest")
	}
	if first.IsZero() || len(first.String()) != 64 || len(first.Short()) != 12 {
		t.Fatalf("unexpected digest form %s", first)
	}
}

func TestStoreRecordsOnlyChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "sflow.snap")
	fake := clock.Fake(time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC))
	store := Open(path, compress.Zstd, fake, slog.Default())
	if !store.Last().IsZero() {
		t.Fatal("fresh store should have no digest")
	}

	changed, digest, err := store.Record([]string{"show sflow"}, payload)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !changed || digest != DigestPayload(payload) {
		t.Fatalf("first Record = (%v, %s)", changed, digest.Short())
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	modified := info.ModTime()

	changed, _, err = store.Record([]string{"show sflow"}, payload)
	if err != nil || changed {
		t.Fatalf("identical Record = (%v, %v), want unchanged", changed, err)
	}
	if info, _ := os.Stat(path); !info.ModTime().Equal(modified) {
		t.Fatal("identical payload rewrote the snapshot")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(loaded.Payload, payload) {
		t.Fatal("loaded payload differs")
	}
	if !loaded.CapturedAt.Equal(fake.Now()) {
		t.Fatalf("captured_at = %v, want %v", loaded.CapturedAt, fake.Now())
	}
	if len(loaded.Commands) != 1 || loaded.Commands[0] != "show sflow" {
		t.Fatalf("commands = %v", loaded.Commands)
	}
}

func TestOpenSeedsFromExistingSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sflow.snap")
	fake := clock.Fake(time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC))

	first := Open(path, compress.LZ4, fake, slog.Default())
	if _, _, err := first.Record(nil, payload); err != nil {
		t.Fatalf("Record: %v", err)
	}

	second := Open(path, compress.LZ4, fake, slog.Default())
	if second.Last() != DigestPayload(payload) {
		t.Fatal("reopened store did not load the previous digest")
	}
	changed, _, err := second.Record(nil, payload)
	if err != nil || changed {
		t.Fatalf("Record after restart = (%v, %v), want unchanged", changed, err)
	}
}

func TestOpenIgnoresCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sflow.snap")
	if err := os.WriteFile(path, []byte("not cbor at all"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	store := Open(path, compress.None, clock.Fake(time.Unix(0, 0)), slog.Default())
	if !store.Last().IsZero() {
		t.Fatal("corrupt snapshot should not seed a digest")
	}
	changed, _, err := store.Record(nil, payload)
	if err != nil || !changed {
		t.Fatalf("Record over corrupt file = (%v, %v)", changed, err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load after rewrite: %v", err)
	}
}
