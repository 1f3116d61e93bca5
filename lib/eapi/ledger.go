// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package eapi

// Ledger counts requests that have been written but not yet reached a
// terminal status, and holds the flush flag used while draining.
type Ledger struct {
	outstanding int
	flushing    bool
}

// Begin records a fully written request.
func (l *Ledger) Begin() {
	l.outstanding++
}

// Finish records a request's terminal status. It returns true when
// this call ended flush mode. Finishing with nothing outstanding
// returns ErrLedgerUnderflow and leaves the count at zero.
func (l *Ledger) Finish() (bool, error) {
	if l.outstanding == 0 {
		return false, ErrLedgerUnderflow
	}
	l.outstanding--
	if l.outstanding == 0 && l.flushing {
		l.flushing = false
		return true, nil
	}
	return false, nil
}

// BeginFlush enters flush mode if any request is outstanding and
// reports whether flush mode is active. With nothing outstanding there
// is nothing to wait for and the flag stays clear.
func (l *Ledger) BeginFlush() bool {
	if l.outstanding > 0 {
		l.flushing = true
	}
	return l.flushing
}

// Flushing reports whether responses are being suppressed.
func (l *Ledger) Flushing() bool {
	return l.flushing
}

// Outstanding returns the number of unfinished requests.
func (l *Ledger) Outstanding() int {
	return l.outstanding
}
