// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package eapi

import (
	"log/slog"

	"github.com/hostflow/hostflow/lib/clock"
	"github.com/hostflow/hostflow/lib/notify"
)

// Handler consumes the decoded response of one cycle. HandleResult runs
// on the collector's event loop and must not block.
type Handler interface {
	HandleResult(cycle *Cycle, raw []byte, document Document)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(cycle *Cycle, raw []byte, document Document)

// HandleResult calls f.
func (f HandlerFunc) HandleResult(cycle *Cycle, raw []byte, document Document) {
	f(cycle, raw, document)
}

// Cycle identifies one poll cycle and publishes its notifications.
type Cycle struct {
	// ID is a random UUID shared by every notification of the cycle.
	ID string
	// Commands are the commands the request ran.
	Commands []string

	publisher notify.Publisher
	clock     clock.Clock
}

func newCycle(id string, commands []string, publisher notify.Publisher, clk clock.Clock) *Cycle {
	return &Cycle{ID: id, Commands: commands, publisher: publisher, clock: clk}
}

func (c *Cycle) publish(kind notify.Kind, line string, count int) {
	c.publisher.Publish(notify.Event{
		Kind:  kind,
		Cycle: c.ID,
		Line:  line,
		Count: count,
		Time:  c.clock.Now(),
	})
}

func (c *Cycle) start() {
	c.publish(notify.ConfigStart, "", 0)
}

// Line publishes one configuration line.
func (c *Cycle) Line(line string) {
	c.publish(notify.ConfigLine, line, 0)
}

// End publishes the end of the cycle's configuration with the number
// of collectors found.
func (c *Cycle) End(count int) {
	c.publish(notify.ConfigEnd, "", count)
}

// Dispatch parses raw and hands the result to handler. A payload that
// is not JSON is logged at debug level and dropped; Dispatch reports
// whether the handler ran.
func Dispatch(logger *slog.Logger, handler Handler, cycle *Cycle, raw []byte) bool {
	document, err := ParseDocument(raw)
	if err != nil {
		logger.Debug("dropping unparseable response",
			"cycle", cycle.ID,
			"bytes", len(raw),
			"error", err,
		)
		return false
	}
	handler.HandleResult(cycle, raw, document)
	return true
}
