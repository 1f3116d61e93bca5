// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package eapitest

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hostflow/hostflow/lib/testutil"
)

func TestResponseEncodeFixed(t *testing.T) {
	got := string(Response{Body: []byte(`{"a":1}`)}.Encode())
	want := "HTTP/1.0 200 OK\nContent-Type: application/json\nContent-Length: 7\n\n{\"a\":1}"
	if got != want {
		t.Fatalf("Encode() = %q, want %q", got, want)
	}
}

func TestResponseEncodeChunked(t *testing.T) {
	got := string(Response{Body: []byte("abcdefghij"), Chunked: true, ChunkSize: 4, CRLF: true}.Encode())
	want := "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nabcd\r\n\r\n" +
		"4\r\nefgh\r\n\r\n" +
		"2\r\nij\r\n\r\n" +
		"0\r\n\r\n"
	if got != want {
		t.Fatalf("Encode() = %q, want %q", got, want)
	}
}

func TestServerReadsRequestAndResponds(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "api.sock")
	server, err := Listen(socketPath, Respond(Response{Body: []byte(ShowSFlowEnabled)}), slog.Default())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer server.Close()

	conn, err := net.Dial("unix", server.SocketPath())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	body := `{"method":"runCmds"}`
	io.WriteString(conn, "POST / HTTP/1.0\nHost: localhost\nContent-Length: 20\n\n"+body)

	received := testutil.RequireReceive(t, server.Requests(), 5*time.Second, "waiting for request")
	if string(received) != body {
		t.Fatalf("server received %q", received)
	}

	reply, err := io.ReadAll(bufio.NewReader(conn))
	if err != nil {
		t.Fatalf("reading reply: %v", err)
	}
	if !strings.HasSuffix(string(reply), ShowSFlowEnabled) {
		t.Fatalf("reply = %q", reply)
	}
}

func TestHoldReleasesOnClose(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "api.sock")
	server, err := Listen(socketPath, Hold(make(chan struct{}), nil), slog.Default())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	io.WriteString(conn, "POST / HTTP/1.0\nContent-Length: 0\n\n")
	testutil.RequireReceive(t, server.Requests(), 5*time.Second, "waiting for request")

	closed := make(chan struct{})
	go func() {
		server.Close()
		close(closed)
	}()
	testutil.RequireClosed(t, closed, 5*time.Second, "Close blocked on a held connection")
}
