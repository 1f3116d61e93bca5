// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hostflow/hostflow/lib/clock"
	"github.com/hostflow/hostflow/lib/codec"
	"github.com/hostflow/hostflow/lib/compress"
)

// recordVersion is written into every record. Records with another
// version are ignored on load.
const recordVersion = 1

// record is the on-disk format.
type record struct {
	Version     int          `cbor:"version"`
	Digest      Digest       `cbor:"digest"`
	CapturedAt  time.Time    `cbor:"captured_at"`
	Commands    []string     `cbor:"commands"`
	Compression compress.Tag `cbor:"compression"`
	Size        int          `cbor:"size"`
	Payload     []byte       `cbor:"payload"`
}

// Snapshot is a decoded record.
type Snapshot struct {
	Digest     Digest
	CapturedAt time.Time
	Commands   []string
	Payload    []byte
}

// Store keeps the latest snapshot on disk. It is not safe for
// concurrent use; the collector calls it from its event loop only.
type Store struct {
	path        string
	compression compress.Tag
	clock       clock.Clock
	logger      *slog.Logger
	last        Digest
}

// Open returns a Store writing to path. An existing snapshot seeds
// change detection; a missing file is not an error, and an unreadable
// one is logged and replaced on the next change.
func Open(path string, compression compress.Tag, clk clock.Clock, logger *slog.Logger) *Store {
	store := &Store{
		path:        path,
		compression: compression,
		clock:       clk,
		logger:      logger,
	}

	previous, err := Load(path)
	switch {
	case err == nil:
		store.last = previous.Digest
		logger.Info("loaded configuration snapshot",
			"path", path,
			"digest", previous.Digest.Short(),
			"captured_at", previous.CapturedAt,
		)
	case errors.Is(err, os.ErrNotExist):
	default:
		logger.Warn("ignoring unreadable configuration snapshot", "path", path, "error", err)
	}
	return store
}

// Last returns the digest of the stored snapshot, or the zero digest.
func (s *Store) Last() Digest {
	return s.last
}

// Record stores raw if it differs from the last stored payload. It
// returns whether the payload changed and its digest. When writing
// fails the in-memory digest is not advanced, so the next identical
// payload is written again.
func (s *Store) Record(commands []string, raw []byte) (bool, Digest, error) {
	digest := DigestPayload(raw)
	if digest == s.last {
		return false, digest, nil
	}

	payload, used, err := compress.Compress(raw, s.compression)
	if err != nil {
		return true, digest, fmt.Errorf("compressing snapshot: %w", err)
	}
	data, err := codec.Marshal(record{
		Version:     recordVersion,
		Digest:      digest,
		CapturedAt:  s.clock.Now().UTC(),
		Commands:    commands,
		Compression: used,
		Size:        len(raw),
		Payload:     payload,
	})
	if err != nil {
		return true, digest, fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return true, digest, err
	}

	s.last = digest
	return true, digest, nil
}

// Load reads and verifies the snapshot at path.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var stored record
	if err := codec.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", path, err)
	}
	if stored.Version != recordVersion {
		return nil, fmt.Errorf("snapshot %s: unsupported version %d", path, stored.Version)
	}

	payload, err := compress.Decompress(stored.Payload, stored.Compression, stored.Size)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	if DigestPayload(payload) != stored.Digest {
		return nil, fmt.Errorf("snapshot %s: digest mismatch", path)
	}

	return &Snapshot{
		Digest:     stored.Digest,
		CapturedAt: stored.CapturedAt,
		Commands:   stored.Commands,
		Payload:    payload,
	}, nil
}

// writeAtomic writes data to a temporary file beside path, syncs it,
// and renames it into place.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary snapshot: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary snapshot: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary snapshot: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}
	return nil
}
