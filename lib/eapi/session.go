// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package eapi

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/hostflow/hostflow/lib/netutil"
)

// Dialer opens connections to the management socket. *net.Dialer
// satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Status is how a response stream ended.
type Status uint8

const (
	// StatusEOF is an orderly end of stream.
	StatusEOF Status = iota
	// StatusBadDescriptor means the connection was closed underneath
	// the reader.
	StatusBadDescriptor
	// StatusError is any other read failure, including the request
	// deadline expiring.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusEOF:
		return "eof"
	case StatusBadDescriptor:
		return "bad_descriptor"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// classifyReadError maps a reader error to its terminal status.
func classifyReadError(err error) Status {
	switch {
	case errors.Is(err, io.EOF):
		return StatusEOF
	case netutil.IsBadDescriptor(err):
		return StatusBadDescriptor
	default:
		return StatusError
	}
}

// sessionEvent is one line or the terminal status of a session,
// delivered to the collector loop.
type sessionEvent struct {
	session *session

	// line is set for non-terminal events, without its terminator.
	line []byte

	terminal bool
	status   Status
	err      error
}

// readBufferSize is the bufio buffer each reader uses. Lines longer
// than the buffer are assembled from several reads.
const readBufferSize = 64 << 10

// session is one request's connection.
type session struct {
	conn    net.Conn
	cycle   *Cycle
	decoder *Decoder
	started time.Time
}

// dialSession connects to socketPath and applies the request
// deadline.
func dialSession(ctx context.Context, dialer Dialer, socketPath string, dialTimeout, requestTimeout time.Duration) (net.Conn, error) {
	dialContext, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, err := dialer.DialContext(dialContext, "unix", socketPath)
	if err != nil {
		return nil, &OpenError{SocketPath: socketPath, Err: err}
	}
	if err := conn.SetDeadline(time.Now().Add(requestTimeout)); err != nil {
		conn.Close()
		return nil, &OpenError{SocketPath: socketPath, Err: err}
	}
	return conn, nil
}

// writeRequest writes all of data, retrying writes interrupted by a
// signal.
func writeRequest(conn net.Conn, data []byte) error {
	written := 0
	for written < len(data) {
		n, err := conn.Write(data[written:])
		written += n
		if err != nil {
			if netutil.IsInterrupted(err) {
				continue
			}
			return &SendError{Written: written, Length: len(data), Err: err}
		}
		if n == 0 {
			return &SendError{Written: written, Length: len(data), Err: io.ErrShortWrite}
		}
	}
	return nil
}

// read delivers each line of the response and then exactly one
// terminal event. Lines longer than maxLine end the session with
// ErrResponseTooLarge. read returns early if ctx ends, since nothing
// is left to receive its events.
func (s *session) read(ctx context.Context, events chan<- sessionEvent, maxLine int) {
	send := func(event sessionEvent) bool {
		select {
		case events <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	reader := bufio.NewReaderSize(s.conn, readBufferSize)
	var line []byte
	for {
		fragment, err := reader.ReadSlice('\n')
		line = append(line, fragment...)

		if errors.Is(err, bufio.ErrBufferFull) {
			if len(line) > maxLine {
				send(sessionEvent{session: s, terminal: true, status: StatusError, err: ErrResponseTooLarge})
				return
			}
			continue
		}
		if err == nil {
			if !send(sessionEvent{session: s, line: line[:len(line)-1]}) {
				return
			}
			line = nil
			continue
		}

		if len(line) > 0 {
			if !send(sessionEvent{session: s, line: line}) {
				return
			}
		}
		status := classifyReadError(err)
		if status == StatusEOF {
			err = nil
		}
		send(sessionEvent{session: s, terminal: true, status: status, err: err})
		return
	}
}
