// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify carries configuration notifications from the
// collector to the rest of the daemon.
//
// A poll cycle produces one [ConfigStart] event, zero or more
// [ConfigLine] events (one per discovered setting), and at most one
// [ConfigEnd] event carrying the number of collectors found. Events
// from one cycle share a Cycle identifier.
//
// [Bus] fans events out to in-process subscribers without ever
// blocking the publisher: a subscriber whose queue is full loses the
// event and the drop is counted. [SocketPublisher] exposes the same
// stream on a unix socket, one CBOR value per event, for consumers in
// other processes.
package notify
