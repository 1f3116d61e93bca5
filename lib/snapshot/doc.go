// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot persists the most recent management-API response so
// that configuration changes can be detected across poll cycles and
// across restarts.
//
// Every decoded payload is digested with a keyed BLAKE3 hash. When the
// digest differs from the stored one, the payload is compressed and
// written as a single CBOR [record], atomically (temporary file, fsync,
// rename). Identical payloads cost one hash and no I/O.
package snapshot
