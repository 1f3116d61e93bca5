// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] returns a short directory under /tmp for unix sockets,
// since sun_path is limited to 108 bytes and t.TempDir() paths can
// exceed it. [RequireReceive] and [RequireClosed] bound channel waits
// with a wall-clock timeout so a broken test fails instead of hanging;
// they are the only place tests use real time.
package testutil
