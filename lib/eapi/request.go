// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package eapi

import (
	"encoding/json"
	"fmt"
)

// SessionID is the JSON-RPC id sent with every request.
const SessionID = "hostflow-1"

// requestPreamble is the HTTP/1.0 request line and headers that
// precede the content headers.
const requestPreamble = "POST / HTTP/1.0\nHost: localhost\n"

// rpcRequest is the runCmds envelope. Field order matches the wire
// order the management API documents.
type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      string    `json:"id"`
}

type rpcParams struct {
	Version    int      `json:"version"`
	Cmds       []string `json:"cmds"`
	Format     string   `json:"format"`
	Timestamps bool     `json:"timestamps"`
}

// BuildRequest returns the complete wire bytes asking the management
// API to run command.
func BuildRequest(command string) ([]byte, error) {
	return BuildRequestCommands(command)
}

// BuildRequestCommands is BuildRequest for several commands run in one
// request. The response's result list has one entry per command.
func BuildRequestCommands(commands ...string) ([]byte, error) {
	if len(commands) == 0 {
		return nil, fmt.Errorf("building request: no commands")
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "runCmds",
		Params: rpcParams{
			Version:    1,
			Cmds:       commands,
			Format:     "json",
			Timestamps: false,
		},
		ID: SessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	header := fmt.Sprintf("%sContent-Type: application/json\nContent-Length: %d\n\n", requestPreamble, len(body))
	wire := make([]byte, 0, len(header)+len(body))
	wire = append(wire, header...)
	return append(wire, body...), nil
}
