// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies socket errors for the collector's
// management-API sessions and the event socket.
package netutil

import (
	"errors"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// IsExpectedCloseError reports whether err is a normal termination of
// a stream: EOF, a closed connection, a broken pipe, or a reset. Event
// socket subscribers that disconnect produce these and they are not
// logged as failures.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET)
}

// IsBadDescriptor reports whether err means the descriptor is no
// longer usable: EBADF from the kernel, or the connection was closed
// locally while a read was pending.
func IsBadDescriptor(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, unix.EBADF) || errors.Is(err, net.ErrClosed)
}

// IsInterrupted reports whether err is EINTR. Writes that fail this
// way are retried.
func IsInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}
