// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package eapi

import (
	"regexp"
	"strconv"
)

// State is the decoder's position in the response framing.
type State uint8

const (
	// StateHeaders reads response headers until the blank line.
	StateHeaders State = iota
	// StateLength expects a hex chunk-length line.
	StateLength
	// StateContent expects one payload line of a known length.
	StateContent
	// StateEndContent expects the blank line that closes a chunk.
	StateEndContent
	// StateError ignores everything until end of stream.
	StateError
)

func (s State) String() string {
	switch s {
	case StateHeaders:
		return "headers"
	case StateLength:
		return "length"
	case StateContent:
		return "content"
	case StateEndContent:
		return "end_content"
	case StateError:
		return "error"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// DefaultMaxResponseBytes caps the accumulated payload when the
// caller does not choose a limit.
const DefaultMaxResponseBytes = 4 << 20

// maxChunkLength bounds a single chunk-length line's value before the
// payload cap is consulted.
const maxChunkLength = 1 << 31

var contentLengthPattern = regexp.MustCompile(`(?i)^content-length:\s*([0-9]+)$`)

// phase carries the fields that exist only in one decoder state.
type phase interface {
	state() State
}

type headersPhase struct {
	// contentLength is the last Content-Length seen, 0 if none.
	contentLength int
}

type lengthPhase struct{}

type contentPhase struct {
	length int
}

type endContentPhase struct{}

type errorPhase struct {
	cause *FramingError
}

func (headersPhase) state() State    { return StateHeaders }
func (lengthPhase) state() State     { return StateLength }
func (contentPhase) state() State    { return StateContent }
func (endContentPhase) state() State { return StateEndContent }
func (errorPhase) state() State      { return StateError }

// Decoder reassembles one response payload from its lines. A Decoder
// handles exactly one response and is not safe for concurrent use.
type Decoder struct {
	phase      phase
	payload    []byte
	maxPayload int
}

// NewDecoder returns a Decoder in StateHeaders. maxPayload <= 0
// selects DefaultMaxResponseBytes.
func NewDecoder(maxPayload int) *Decoder {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxResponseBytes
	}
	return &Decoder{phase: headersPhase{}, maxPayload: maxPayload}
}

// State returns the current state.
func (d *Decoder) State() State {
	return d.phase.state()
}

// Payload returns the bytes accumulated so far. The slice is owned by
// the Decoder and must not be modified.
func (d *Decoder) Payload() []byte {
	return d.payload
}

// Err returns the framing error that moved the decoder to StateError,
// or nil.
func (d *Decoder) Err() error {
	if p, ok := d.phase.(errorPhase); ok {
		return p.cause
	}
	return nil
}

// Feed consumes one line with its "\n" terminator already removed. It
// returns a *FramingError on the line that moves the decoder to
// StateError and nil for every other line, including the lines ignored
// afterwards.
func (d *Decoder) Feed(line []byte) error {
	switch p := d.phase.(type) {
	case headersPhase:
		line = trimCR(line)
		if match := contentLengthPattern.FindSubmatch(line); match != nil {
			length, err := strconv.Atoi(string(match[1]))
			if err != nil || length > d.maxPayload {
				return d.fail(StateHeaders, line, ErrResponseTooLarge)
			}
			d.phase = headersPhase{contentLength: length}
			return nil
		}
		if len(line) == 0 {
			if p.contentLength > 0 {
				d.phase = contentPhase{length: p.contentLength}
			} else {
				d.phase = lengthPhase{}
			}
		}
		return nil

	case lengthPhase:
		line = trimCR(line)
		length, ok := parseChunkLength(line)
		if !ok {
			return d.fail(StateLength, line, ErrChunkLength)
		}
		if length == 0 {
			d.phase = endContentPhase{}
			return nil
		}
		if len(d.payload)+length > d.maxPayload {
			return d.fail(StateLength, line, ErrResponseTooLarge)
		}
		d.phase = contentPhase{length: length}
		return nil

	case contentPhase:
		if len(line) == p.length+1 && line[p.length] == '\r' {
			line = line[:p.length]
		}
		if len(line) != p.length {
			return d.fail(StateContent, line, ErrContentLength)
		}
		d.payload = append(d.payload, line...)
		d.phase = endContentPhase{}
		return nil

	case endContentPhase:
		line = trimCR(line)
		if len(line) != 0 {
			return d.fail(StateEndContent, line, ErrTrailer)
		}
		d.phase = lengthPhase{}
		return nil

	case errorPhase:
		return nil
	}
	return nil
}

func (d *Decoder) fail(state State, line []byte, err error) error {
	cause := newFramingError(state, line, err)
	d.phase = errorPhase{cause: cause}
	return cause
}

func trimCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}

// parseChunkLength parses a hex chunk length. Leading blanks are
// skipped and an empty line is zero. Anything after the digits, a
// sign, or a value above maxChunkLength is rejected.
func parseChunkLength(line []byte) (int, bool) {
	start := 0
	for start < len(line) && (line[start] == ' ' || line[start] == '\t') {
		start++
	}
	length := 0
	for _, c := range line[start:] {
		var digit int
		switch {
		case c >= '0' && c <= '9':
			digit = int(c - '0')
		case c >= 'a' && c <= 'f':
			digit = int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			digit = int(c-'A') + 10
		default:
			return 0, false
		}
		length = length<<4 | digit
		if length > maxChunkLength {
			return 0, false
		}
	}
	return length, true
}
