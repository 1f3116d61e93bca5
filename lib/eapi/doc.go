// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package eapi polls a switch management API over its local unix
// socket and turns the answer into configuration notifications.
//
// Each poll cycle sends one JSON-RPC runCmds request framed as an
// HTTP/1.0 POST and decodes the response line by line. The response is
// a block of headers, a blank line, and then either a single body of
// the length given by Content-Length or a chunked body: a hex length
// line, that many bytes on one line, a blank line, repeated until a
// zero length. The decoder assumes payload bytes never contain a line
// separator, so each body chunk arrives as exactly one line.
//
// Data flow:
//
//	tick → Scheduler → BuildRequest → dial + write → Ledger.Begin
//	     → reader goroutine → Collector loop → Decoder.Feed ...
//	     → EOF → Dispatch → Handler → notify.Publisher
//	     → terminal status → Ledger.Finish
//
// [Collector.Run] owns every piece of mutable state. Ticks, lines from
// each connection's reader goroutine, and drain requests are serialized
// through its select loop, so none of the types here lock.
//
// Failures never leave the package. A connect or write failure, a
// framing error, or a payload that is not JSON is logged, counted in
// [metrics.Collector], and costs that cycle's refresh; the next cycle
// starts on schedule.
package eapi
