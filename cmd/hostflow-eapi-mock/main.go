// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

// Hostflow-eapi-mock serves a canned management API reply on a unix
// socket so hostflow-eapi can be run on a machine without a switch.
//
// Every request gets the same response: the built-in "show sflow"
// reply (enabled, or disabled with --disabled) or the contents of
// --body. --chunked selects chunked framing and --crlf CRLF line
// endings.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/hostflow/hostflow/lib/eapi/eapitest"
	"github.com/hostflow/hostflow/lib/process"
	"github.com/hostflow/hostflow/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var (
		socketPath  string
		bodyPath    string
		disabled    bool
		chunked     bool
		chunkSize   int
		crlf        bool
		showVersion bool
	)
	flags := pflag.NewFlagSet("hostflow-eapi-mock", pflag.ContinueOnError)
	flags.StringVar(&socketPath, "socket", "/tmp/command-api.sock", "socket to listen on")
	flags.StringVar(&bodyPath, "body", "", "file holding the JSON reply (default: built-in show sflow reply)")
	flags.BoolVar(&disabled, "disabled", false, "reply as a switch with sFlow disabled")
	flags.BoolVar(&chunked, "chunked", false, "use chunked framing")
	flags.IntVar(&chunkSize, "chunk-size", 256, "bytes per chunk with --chunked")
	flags.BoolVar(&crlf, "crlf", false, "terminate lines with CRLF")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		version.Print("hostflow-eapi-mock")
		return nil
	}

	body := []byte(eapitest.ShowSFlowEnabled)
	if disabled {
		body = []byte(eapitest.ShowSFlowDisabled)
	}
	if bodyPath != "" {
		data, err := os.ReadFile(bodyPath)
		if err != nil {
			return fmt.Errorf("reading reply body: %w", err)
		}
		body = bytes.TrimSpace(data)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	response := eapitest.Response{Body: body, Chunked: chunked, ChunkSize: chunkSize, CRLF: crlf}
	server, err := eapitest.Listen(socketPath, eapitest.Respond(response), logger)
	if err != nil {
		return err
	}
	logger.Info("mock management API listening",
		"socket", server.SocketPath(),
		"chunked", chunked,
		"bytes", len(body),
	)

	<-ctx.Done()
	logger.Info("shutting down")
	return server.Close()
}
