// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package eapitest serves a fake switch management API on a unix
// socket. Each connection carries one request; the server reads it,
// lets a Handler answer, and closes the connection.
//
// Tests use it in-process; cmd/hostflow-eapi-mock wraps it for manual
// runs against a real collector.
package eapitest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ShowSFlowEnabled is a "show sflow" reply from a switch exporting to
// one IPv4 collector.
const ShowSFlowEnabled = `{"jsonrpc": "2.0", "result": [{"ipv6Destinations": [], "pollingInterval": 30.0, "ipv4Destinations": [{"ipv4Address": "10.0.0.160", "vrfName": "default", "hostname": "10.0.0.160", "port": 6343}], "samplingEnabled": true, "enabled": true, "sampleRate": 1048576, "polling": true, "ipv6Sources": [{"vrfName": "default", "ipv6Address": "::", "sourceInterface": "Management1"}], "ipv4Sources": [{"ipv4Address": "10.0.0.2", "vrfName": "default", "sourceInterface": "Management1"}]}], "id": "hostflow-1"}`

// ShowSFlowDisabled is a "show sflow" reply from a switch with sFlow
// turned off.
const ShowSFlowDisabled = `{"jsonrpc": "2.0", "result": [{"ipv6Destinations": [], "pollingInterval": 30.0, "ipv4Destinations": [{"ipv4Address": "10.0.0.160", "vrfName": "default", "hostname": "10.0.0.160", "port": 6343}], "samplingEnabled": true, "enabled": false, "sampleRate": 1048576, "polling": false, "ipv6Sources": [{"vrfName": "default", "ipv6Address": "::", "sourceInterface": "Management1"}], "ipv4Sources": [{"ipv4Address": "0.0.0.0", "vrfName": "default", "sourceInterface": "Management1"}]}], "id": "hostflow-1"}`

// Response is an HTTP response with its body framed either by
// Content-Length or as chunks.
type Response struct {
	Body []byte

	// Chunked selects chunked framing with chunks of ChunkSize bytes.
	// ChunkSize <= 0 sends the body as one chunk.
	Chunked   bool
	ChunkSize int

	// CRLF terminates every line with "\r\n" instead of "\n".
	CRLF bool
}

// Encode returns the response's wire bytes.
func (r Response) Encode() []byte {
	eol := "\n"
	if r.CRLF {
		eol = "\r\n"
	}
	var b strings.Builder
	if !r.Chunked {
		b.WriteString("HTTP/1.0 200 OK" + eol)
		b.WriteString("Content-Type: application/json" + eol)
		b.WriteString("Content-Length: " + strconv.Itoa(len(r.Body)) + eol)
		b.WriteString(eol)
		b.Write(r.Body)
		return []byte(b.String())
	}

	b.WriteString("HTTP/1.1 200 OK" + eol)
	b.WriteString("Content-Type: application/json" + eol)
	b.WriteString("Transfer-Encoding: chunked" + eol)
	b.WriteString(eol)
	size := r.ChunkSize
	if size <= 0 {
		size = len(r.Body)
	}
	for body := r.Body; len(body) > 0; {
		n := min(size, len(body))
		fmt.Fprintf(&b, "%x%s", n, eol)
		b.Write(body[:n])
		b.WriteString(eol + eol)
		body = body[n:]
	}
	b.WriteString("0" + eol + eol)
	return []byte(b.String())
}

// Handler answers one request on conn. The server closes conn when the
// Handler returns.
type Handler func(ctx context.Context, conn net.Conn, request []byte)

// Respond answers every request with response.
func Respond(response Response) Handler {
	return Raw(response.Encode())
}

// Raw answers every request with data verbatim.
func Raw(data []byte) Handler {
	return func(_ context.Context, conn net.Conn, _ []byte) {
		_, _ = conn.Write(data)
	}
}

// Hold sends nothing until release is closed, then runs next. A nil
// next closes the connection without a response.
func Hold(release <-chan struct{}, next Handler) Handler {
	return func(ctx context.Context, conn net.Conn, request []byte) {
		select {
		case <-release:
		case <-ctx.Done():
			return
		}
		if next != nil {
			next(ctx, conn, request)
		}
	}
}

// Server is a fake management API listening on a unix socket.
type Server struct {
	socketPath string
	listener   net.Listener
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	handler Handler

	requests chan []byte
}

// requestBuffer is how many received requests Requests holds before
// new ones are dropped.
const requestBuffer = 64

// Listen starts a Server on socketPath. A stale socket file is
// replaced.
func Listen(socketPath string, handler Handler, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale socket %s: %w", socketPath, err)
	}
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", socketPath, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	server := &Server{
		socketPath: socketPath,
		listener:   listener,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		handler:    handler,
		requests:   make(chan []byte, requestBuffer),
	}
	server.wg.Add(1)
	go server.acceptLoop()
	return server, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// SetHandler replaces the Handler for subsequent connections.
func (s *Server) SetHandler(handler Handler) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// Requests receives the body of every request read, in arrival order.
func (s *Server) Requests() <-chan []byte {
	return s.requests
}

// Close stops accepting, cancels running handlers, and waits for them.
func (s *Server) Close() error {
	s.cancel()
	err := s.listener.Close()
	s.wg.Wait()
	_ = os.Remove(s.socketPath)
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() == nil {
				s.logger.Error("accept failed", "error", err)
			}
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn)
		}()
	}
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(s.ctx, func() { conn.Close() })
	defer stop()

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	body, err := readRequest(bufio.NewReader(conn))
	if err != nil {
		s.logger.Warn("reading request", "error", err)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	select {
	case s.requests <- body:
	default:
	}

	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(s.ctx, conn, body)
	}
}

// readRequest reads a request's headers and returns its body.
func readRequest(reader *bufio.Reader) ([]byte, error) {
	length := -1
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading headers: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, found := strings.Cut(line, ":")
		if found && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			length, err = strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("parsing Content-Length %q: %w", value, err)
			}
		}
	}
	if length < 0 {
		return nil, errors.New("request has no Content-Length")
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(reader, body); err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}
