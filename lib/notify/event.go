// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import "time"

// Kind distinguishes the three notification types.
type Kind string

const (
	// ConfigStart opens a poll cycle. It carries no payload.
	ConfigStart Kind = "config_start"

	// ConfigLine carries one configuration setting in "key=value"
	// form, for example "collector=10.0.0.160 6343".
	ConfigLine Kind = "config_line"

	// ConfigEnd closes a cycle whose response was decoded. Count is
	// the number of collectors discovered.
	ConfigEnd Kind = "config_end"
)

// Event is one notification.
type Event struct {
	Kind  Kind      `cbor:"kind"`
	Cycle string    `cbor:"cycle"`
	Line  string    `cbor:"line,omitempty"`
	Count int       `cbor:"count,omitempty"`
	Time  time.Time `cbor:"time"`
}

// Publisher accepts notifications. Implementations must not block.
type Publisher interface {
	Publish(event Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(event Event)

// Publish calls f(event).
func (f PublisherFunc) Publish(event Event) { f(event) }

// Discard is a Publisher that drops everything.
var Discard Publisher = PublisherFunc(func(Event) {})
