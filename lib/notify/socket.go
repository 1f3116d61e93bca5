// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/hostflow/hostflow/lib/codec"
	"github.com/hostflow/hostflow/lib/netutil"
)

// writeTimeout bounds one event write to a subscriber. A reader that
// stalls longer is disconnected.
const writeTimeout = 5 * time.Second

// SocketPublisher streams bus events to every client connected to a
// unix socket. Each connection receives a CBOR sequence of [Event]
// values starting with the first event published after it connected.
// Clients never send anything; anything they do send is ignored.
type SocketPublisher struct {
	socketPath string
	bus        *Bus
	buffer     int
	logger     *slog.Logger

	activeConnections sync.WaitGroup
	ready             chan struct{}
}

// NewSocketPublisher creates a publisher for socketPath. buffer is the
// queue depth of each connection's bus subscription.
func NewSocketPublisher(socketPath string, bus *Bus, buffer int, logger *slog.Logger) *SocketPublisher {
	return &SocketPublisher{
		socketPath: socketPath,
		bus:        bus,
		buffer:     buffer,
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// Ready is closed once the socket is listening.
func (p *SocketPublisher) Ready() <-chan struct{} {
	return p.ready
}

// Serve listens on the socket until ctx is cancelled, then closes the
// listener, disconnects clients, and removes the socket file. A stale
// socket file left by a previous run is removed first.
func (p *SocketPublisher) Serve(ctx context.Context) error {
	if err := os.Remove(p.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", p.socketPath, err)
	}

	listener, err := net.Listen("unix", p.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", p.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(p.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	p.logger.Info("event socket listening", "path", p.socketPath)
	close(p.ready)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			p.logger.Error("accept failed", "error", err)
			continue
		}

		p.activeConnections.Add(1)
		go func() {
			defer p.activeConnections.Done()
			p.stream(ctx, conn)
		}()
	}

	p.activeConnections.Wait()
	return nil
}

// stream forwards events to one client until the client goes away,
// the bus closes, or ctx ends.
func (p *SocketPublisher) stream(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	subscription := p.bus.Subscribe(p.buffer)
	defer subscription.Close()

	// A client hanging up is only visible to a read; watch for it so
	// idle clients do not hold a subscription forever.
	hangup := make(chan struct{})
	go func() {
		defer close(hangup)
		scratch := make([]byte, 64)
		for {
			if _, err := conn.Read(scratch); err != nil {
				return
			}
		}
	}()

	encoder := codec.NewEncoder(conn)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hangup:
			return
		case event, ok := <-subscription.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := encoder.Encode(event); err != nil {
				if !netutil.IsExpectedCloseError(err) {
					p.logger.Warn("event write failed", "error", err)
				}
				return
			}
		}
	}
}
