// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package eapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/hostflow/hostflow/lib/clock"
	"github.com/hostflow/hostflow/lib/metrics"
	"github.com/hostflow/hostflow/lib/notify"
	"github.com/hostflow/hostflow/lib/snapshot"
)

// Defaults for Options fields left at zero.
const (
	DefaultTickInterval   = time.Second
	DefaultDialTimeout    = 5 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// maxLineSlack is how far a single line may exceed the payload cap
// before the reader gives up. It covers a CR and header lines.
const maxLineSlack = 4096

// Options configures a Collector. SocketPath and Commands are required.
type Options struct {
	SocketPath string
	Commands   []string

	// Handler receives each decoded response. Defaults to ShowSFlow.
	Handler Handler

	TickInterval       time.Duration
	StartDelayTicks    int
	RetryIntervalTicks int
	DialTimeout        time.Duration
	RequestTimeout     time.Duration
	MaxResponseBytes   int

	// Publisher receives cycle notifications. Defaults to
	// notify.Discard.
	Publisher notify.Publisher

	// Snapshots, when set, records each dispatched payload that
	// differs from the previous one.
	Snapshots *snapshot.Store

	// Metrics, when set, is updated as cycles run. The caller
	// registers it.
	Metrics *metrics.Collector

	Clock  clock.Clock
	Dialer Dialer
	Logger *slog.Logger
}

// Collector runs poll cycles against the management API. All of its
// state belongs to the goroutine running Run.
type Collector struct {
	socketPath     string
	commands       []string
	handler        Handler
	tickInterval   time.Duration
	dialTimeout    time.Duration
	requestTimeout time.Duration
	maxPayload     int
	publisher      notify.Publisher
	snapshots      *snapshot.Store
	metrics        *metrics.Collector
	clock          clock.Clock
	dialer         Dialer
	logger         *slog.Logger
	newCycleID     func() string

	scheduler *Scheduler
	ledger    Ledger
	sessions  map[*session]struct{}

	events chan sessionEvent
	drains chan chan struct{}

	// drainWaiters are closed when flush mode ends.
	drainWaiters []chan struct{}

	// stopped is closed when Run returns.
	stopped chan struct{}
}

// New validates options and returns a Collector ready to Run.
func New(options Options) (*Collector, error) {
	if options.SocketPath == "" {
		return nil, errors.New("eapi: socket path is required")
	}
	if len(options.Commands) == 0 {
		return nil, errors.New("eapi: at least one command is required")
	}
	for i, command := range options.Commands {
		if command == "" {
			return nil, fmt.Errorf("eapi: command %d is empty", i)
		}
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	handler := options.Handler
	if handler == nil {
		handler = ShowSFlow{Logger: logger}
	}
	publisher := options.Publisher
	if publisher == nil {
		publisher = notify.Discard
	}
	collectorMetrics := options.Metrics
	if collectorMetrics == nil {
		collectorMetrics = metrics.NewCollector()
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	dialer := options.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	return &Collector{
		socketPath:     options.SocketPath,
		commands:       append([]string(nil), options.Commands...),
		handler:        handler,
		tickInterval:   positiveOr(options.TickInterval, DefaultTickInterval),
		dialTimeout:    positiveOr(options.DialTimeout, DefaultDialTimeout),
		requestTimeout: positiveOr(options.RequestTimeout, DefaultRequestTimeout),
		maxPayload:     positiveOr(options.MaxResponseBytes, DefaultMaxResponseBytes),
		publisher:      publisher,
		snapshots:      options.Snapshots,
		metrics:        collectorMetrics,
		clock:          clk,
		dialer:         dialer,
		logger:         logger.With("socket", options.SocketPath),
		newCycleID:     uuid.NewString,
		scheduler:      NewScheduler(options.StartDelayTicks, options.RetryIntervalTicks),
		sessions:       make(map[*session]struct{}),
		events:         make(chan sessionEvent),
		drains:         make(chan chan struct{}),
		stopped:        make(chan struct{}),
	}, nil
}

func positiveOr[T time.Duration | int](value, fallback T) T {
	if value > 0 {
		return value
	}
	return fallback
}

// Run ticks the scheduler and processes responses until ctx is done.
// Open connections are closed on return. Run always returns nil; every
// failure inside a cycle is logged and counted. Run must be called at
// most once.
func (c *Collector) Run(ctx context.Context) error {
	defer close(c.stopped)

	ticker := c.clock.NewTicker(c.tickInterval)
	defer ticker.Stop()

	c.logger.Info("management API collector started",
		"commands", c.commands,
		"tick_interval", c.tickInterval,
		"first_cycle_ticks", c.scheduler.Countdown(),
	)

	for {
		select {
		case <-ctx.Done():
			c.closeSessions()
			c.logger.Info("management API collector stopped", "outstanding", c.ledger.Outstanding())
			return nil
		case <-ticker.C:
			c.tick(ctx)
		case event := <-c.events:
			c.handleEvent(event)
		case done := <-c.drains:
			c.beginDrain(done)
		}
	}
}

// Drain stops decoding responses and waits until every outstanding
// request has reached a terminal status. It returns ctx.Err() if ctx
// ends first. Cycles are not started while a drain is active; callers
// cancel Run once Drain returns. Once Run has returned there is
// nothing left to wait for and Drain returns nil.
func (c *Collector) Drain(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case c.drains <- done:
	case <-c.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-c.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Collector) tick(ctx context.Context) {
	if !c.scheduler.Tick() {
		return
	}
	if c.ledger.Flushing() {
		c.metrics.CyclesSkipped.Inc()
		c.logger.Info("skipping poll cycle while draining", "outstanding", c.ledger.Outstanding())
		return
	}
	if outstanding := c.ledger.Outstanding(); outstanding > 0 {
		c.metrics.CyclesSkipped.Inc()
		c.logger.Warn("skipping poll cycle, previous request still outstanding", "outstanding", outstanding)
		return
	}
	c.startCycle(ctx)
}

// startCycle publishes the cycle start and sends one request. On
// success the request is outstanding and its reader is running.
func (c *Collector) startCycle(ctx context.Context) {
	cycle := newCycle(c.newCycleID(), c.commands, c.publisher, c.clock)
	cycle.start()
	logger := c.logger.With("cycle", cycle.ID)

	wire, err := BuildRequestCommands(c.commands...)
	if err != nil {
		logger.Error("cannot build request", "error", err)
		return
	}

	conn, err := dialSession(ctx, c.dialer, c.socketPath, c.dialTimeout, c.requestTimeout)
	if err != nil {
		c.metrics.OpenErrors.Inc()
		logger.Warn("cannot reach management API", "error", err)
		return
	}
	if err := writeRequest(conn, wire); err != nil {
		c.metrics.SendErrors.Inc()
		logger.Warn("request write failed", "error", err)
		conn.Close()
		return
	}

	s := &session{
		conn:    conn,
		cycle:   cycle,
		decoder: NewDecoder(c.maxPayload),
		started: c.clock.Now(),
	}
	c.sessions[s] = struct{}{}
	c.ledger.Begin()
	c.metrics.CyclesStarted.Inc()
	c.metrics.Outstanding.Set(float64(c.ledger.Outstanding()))
	logger.Debug("request sent", "bytes", len(wire))

	go s.read(ctx, c.events, c.maxPayload+maxLineSlack)
}

func (c *Collector) handleEvent(event sessionEvent) {
	s := event.session
	if _, live := c.sessions[s]; !live {
		return
	}
	if event.terminal {
		c.finishSession(s, event)
		return
	}
	if c.ledger.Flushing() {
		return
	}

	c.logger.Debug("response line",
		"cycle", s.cycle.ID,
		"state", s.decoder.State(),
		"bytes", len(event.line),
	)
	err := s.decoder.Feed(event.line)
	if err == nil {
		return
	}
	var framing *FramingError
	if errors.As(err, &framing) {
		c.metrics.FramingErrors.WithLabelValues(framingReason(framing.Err)).Inc()
	}
	c.logger.Warn("abandoning malformed response", "cycle", s.cycle.ID, "error", err)
}

// finishSession handles a terminal status: dispatch on a clean end of
// stream, then ledger bookkeeping and release.
func (c *Collector) finishSession(s *session, event sessionEvent) {
	logger := c.logger.With("cycle", s.cycle.ID)

	switch {
	case c.ledger.Flushing():
		logger.Debug("discarding response during drain", "status", event.status)
	case event.status == StatusEOF:
		c.complete(s, logger)
	default:
		if errors.Is(event.err, ErrResponseTooLarge) {
			c.metrics.FramingErrors.WithLabelValues(metrics.ReasonTooLarge).Inc()
		}
		logger.Warn("management API response failed", "status", event.status, "error", event.err)
	}

	c.release(s)

	cleared, err := c.ledger.Finish()
	if err != nil {
		logger.Error("request bookkeeping out of step", "error", err)
	}
	c.metrics.Outstanding.Set(float64(c.ledger.Outstanding()))
	if cleared {
		c.endDrain()
	}
}

func (c *Collector) complete(s *session, logger *slog.Logger) {
	if s.decoder.State() == StateError {
		logger.Debug("dropping errored response", "error", s.decoder.Err())
		return
	}
	payload := s.decoder.Payload()
	if len(payload) == 0 {
		logger.Debug("empty response")
		return
	}

	if !Dispatch(logger, c.handler, s.cycle, payload) {
		c.metrics.PayloadParseErrors.Inc()
		return
	}
	c.metrics.Dispatches.Inc()

	if c.snapshots == nil {
		return
	}
	changed, digest, err := c.snapshots.Record(c.commands, payload)
	if err != nil {
		logger.Error("cannot record configuration snapshot", "digest", digest.Short(), "error", err)
		return
	}
	if changed {
		c.metrics.ConfigChanges.Inc()
		logger.Info("management API configuration changed", "digest", digest.Short(), "bytes", len(payload))
	}
}

func (c *Collector) release(s *session) {
	delete(c.sessions, s)
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Debug("closing management socket", "cycle", s.cycle.ID, "error", err)
	}
	c.metrics.ResponseDuration.Observe(c.clock.Now().Sub(s.started).Seconds())
}

func (c *Collector) beginDrain(done chan struct{}) {
	if !c.ledger.BeginFlush() {
		close(done)
		return
	}
	c.drainWaiters = append(c.drainWaiters, done)
	c.metrics.Flushing.Set(1)
	c.logger.Info("draining management API requests", "outstanding", c.ledger.Outstanding())
}

func (c *Collector) endDrain() {
	for _, done := range c.drainWaiters {
		close(done)
	}
	c.drainWaiters = nil
	c.metrics.Flushing.Set(0)
	c.logger.Info("management API requests drained")
}

func (c *Collector) closeSessions() {
	for s := range c.sessions {
		s.conn.Close()
		delete(c.sessions, s)
	}
}

func framingReason(err error) string {
	switch {
	case errors.Is(err, ErrChunkLength):
		return metrics.ReasonChunkLength
	case errors.Is(err, ErrContentLength):
		return metrics.ReasonContentLength
	case errors.Is(err, ErrTrailer):
		return metrics.ReasonTrailer
	default:
		return metrics.ReasonTooLarge
	}
}
