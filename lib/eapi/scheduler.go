// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package eapi

// Default schedule, in ticks.
const (
	DefaultStartDelayTicks    = 2
	DefaultRetryIntervalTicks = 300
)

// Scheduler counts ticks down to the next poll cycle.
type Scheduler struct {
	countdown int
	retry     int
}

// NewScheduler returns a Scheduler whose first cycle is due after
// startDelay ticks and every retry ticks thereafter. Non-positive
// values select the defaults.
func NewScheduler(startDelay, retry int) *Scheduler {
	if startDelay <= 0 {
		startDelay = DefaultStartDelayTicks
	}
	if retry <= 0 {
		retry = DefaultRetryIntervalTicks
	}
	return &Scheduler{countdown: startDelay, retry: retry}
}

// Tick advances one tick and reports whether a cycle is due. When it
// is, the countdown restarts at the retry interval.
func (s *Scheduler) Tick() bool {
	s.countdown--
	if s.countdown > 0 {
		return false
	}
	s.countdown = s.retry
	return true
}

// Countdown returns the ticks remaining until the next cycle.
func (s *Scheduler) Countdown() int {
	return s.countdown
}
