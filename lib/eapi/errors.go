// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package eapi

import (
	"errors"
	"fmt"
)

// Framing failures. A *FramingError wraps exactly one of these.
var (
	// ErrChunkLength is a chunk-length line that is not a hex number.
	ErrChunkLength = errors.New("malformed chunk length")

	// ErrContentLength is a payload line whose length differs from
	// the declared chunk or content length. It usually means the
	// payload contained a line separator.
	ErrContentLength = errors.New("payload line length does not match declared length")

	// ErrTrailer is a non-blank line where the blank line ending a
	// chunk was expected.
	ErrTrailer = errors.New("unexpected data after chunk")

	// ErrResponseTooLarge means the declared or accumulated payload
	// exceeds the configured limit.
	ErrResponseTooLarge = errors.New("response exceeds size limit")
)

// ErrPayloadParse reports a response payload that is not one JSON
// document.
var ErrPayloadParse = errors.New("payload is not valid JSON")

// ErrLedgerUnderflow reports a terminal status with no outstanding
// request to account it against.
var ErrLedgerUnderflow = errors.New("request ledger underflow")

// OpenError is a failure to connect to the management socket.
type OpenError struct {
	SocketPath string
	Err        error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("cannot open management socket %s: %v", e.SocketPath, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// SendError is a failed or short request write.
type SendError struct {
	Written int
	Length  int
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("request write sent %d of %d bytes: %v", e.Written, e.Length, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// maxQuotedLine bounds how much of an offending line a FramingError
// carries.
const maxQuotedLine = 64

// FramingError is a response that violated the framing rules. The
// decoder that produced it ignores every later line.
type FramingError struct {
	// State is the decoder state that rejected the line.
	State State
	// Line is the start of the rejected line.
	Line string
	Err  error
}

func newFramingError(state State, line []byte, err error) *FramingError {
	if len(line) > maxQuotedLine {
		line = line[:maxQuotedLine]
	}
	return &FramingError{State: state, Line: string(line), Err: err}
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing error in %s state: %v (line %q)", e.State, e.Err, e.Line)
}

func (e *FramingError) Unwrap() error { return e.Err }
