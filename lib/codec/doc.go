// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds hostflow's shared CBOR configuration.
//
// JSON is what the switch management API speaks; hostflow's own
// surfaces (the notification stream on the event socket and the
// on-disk configuration snapshot) are CBOR. Encoding uses Core
// Deterministic Encoding (RFC 8949 §4.2) so a given value always
// produces the same bytes.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
package codec
