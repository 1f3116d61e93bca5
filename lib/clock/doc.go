// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that code which
// waits on tickers and timers can be driven deterministically in tests.
//
// Production code holds a [Clock] field set to [Real]. Tests construct
// a [FakeClock] with [Fake], start the code under test, call
// [FakeClock.WaitForTimers] until the code has registered its ticker,
// then call [FakeClock.Advance] to fire it:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go collector.Run(ctx)
//	fake.WaitForTimers(1)
//	fake.Advance(time.Second)
package clock
