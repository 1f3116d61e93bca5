// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hostflow/hostflow/lib/config"
	"github.com/hostflow/hostflow/lib/notify"
)

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := writeConfig(t, "hostflow.yaml", `
socket_path: /run/file.sock
commands: ["show sflow"]
log:
  level: warn
`)
	o, err := parseFlags([]string{
		"--config", path,
		"--socket", "/run/flag.sock",
		"--command", "show sflow",
		"--command", "show version",
		"--log-format", "text",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	cfg, err := o.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.SocketPath != "/run/flag.sock" {
		t.Errorf("SocketPath = %q, want the flag value", cfg.SocketPath)
	}
	if strings.Join(cfg.Commands, ",") != "show sflow,show version" {
		t.Errorf("Commands = %v", cfg.Commands)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want the file value", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want the flag value", cfg.Log.Format)
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	path := writeConfig(t, "hostflow.jsonc", `{
		// poll every minute
		"retry_interval_ticks": 60,
	}`)
	t.Setenv(config.EnvironmentVariable, path)

	o, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	cfg, err := o.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.RetryIntervalTicks != 60 {
		t.Fatalf("RetryIntervalTicks = %d, want 60", cfg.RetryIntervalTicks)
	}
	if cfg.SocketPath != config.DefaultSocketPath {
		t.Fatalf("SocketPath = %q, want default", cfg.SocketPath)
	}
}

func TestInvalidOverrideRejected(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	o, err := parseFlags([]string{"--log-level", "loud"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if _, err := o.loadConfig(); err == nil {
		t.Fatal("loadConfig accepted an unknown log level")
	}
}

func TestUnexpectedArgument(t *testing.T) {
	if _, err := parseFlags([]string{"extra"}); err == nil {
		t.Fatal("parseFlags accepted a positional argument")
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var output bytes.Buffer
	logger, err := newLogger(config.LogConfig{Level: "debug", Format: "json"}, &output)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Debug("probe", "cycle", "c1")
	var record map[string]any
	if err := json.Unmarshal(output.Bytes(), &record); err != nil {
		t.Fatalf("json handler output %q: %v", output.String(), err)
	}
	if record["msg"] != "probe" || record["cycle"] != "c1" {
		t.Fatalf("record = %v", record)
	}

	output.Reset()
	logger, err = newLogger(config.LogConfig{Level: "warn", Format: "text"}, &output)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(output.String(), "hidden") || !strings.Contains(output.String(), "msg=shown") {
		t.Fatalf("text output = %q", output.String())
	}
}

func TestLogNotificationsStopsWhenBusCloses(t *testing.T) {
	var output bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&output, nil))
	bus := notify.NewBus(logger)
	subscription := bus.Subscribe(4)

	bus.Publish(notify.Event{Kind: notify.ConfigLine, Cycle: "c1", Line: "sampling=4096"})
	bus.Publish(notify.Event{Kind: notify.ConfigEnd, Cycle: "c1", Count: 1})

	done := make(chan struct{})
	go func() {
		logNotifications(context.Background(), subscription, logger)
		close(done)
	}()
	// Publishing happened before the reader started, so both events
	// are queued ahead of the close.
	bus.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("logNotifications did not return after the bus closed")
	}
	if !strings.Contains(output.String(), `line="sampling=4096"`) || !strings.Contains(output.String(), "collectors=1") {
		t.Fatalf("log output = %q", output.String())
	}
}
