// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

// Hostflow-eapi polls a switch management API for its sFlow settings
// and publishes them as configuration notifications.
//
// Every retry interval it sends "show sflow" (or the commands given
// with --command) as a JSON-RPC runCmds request over the management
// unix socket, decodes the response, and emits a config_start,
// config_line, config_end sequence. Notifications are logged and, when
// --events-socket is set, streamed as CBOR to every reader of that
// socket.
//
// Configuration comes from the file named by --config or
// HOSTFLOW_CONFIG; flags override file values. On SIGINT or SIGTERM
// the collector stops decoding, waits up to drain_timeout for
// in-flight requests to finish, and exits.
//
// Usage:
//
//	hostflow-eapi [--config FILE] [--socket PATH] [--command CMD]...
//	              [--events-socket PATH] [--metrics-address ADDR]
//	              [--snapshot PATH] [--log-level LEVEL] [--log-format json|text]
package main
