// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds entrypoint helpers for hostflow binaries: the
// stderr report for errors returned by run() before or after the
// structured logger exists.
package process
