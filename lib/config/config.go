// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/hostflow/hostflow/lib/compress"
)

// EnvironmentVariable names the configuration file when --config is
// not given.
const EnvironmentVariable = "HOSTFLOW_CONFIG"

// DefaultSocketPath is where the switch exposes its management API.
const DefaultSocketPath = "/var/run/command-api.sock"

// Config is the collector configuration.
type Config struct {
	// SocketPath is the management API unix socket.
	SocketPath string `yaml:"socket_path" json:"socket_path"`

	// Commands are sent in one runCmds request each poll cycle. The
	// handler reads the first result.
	Commands []string `yaml:"commands" json:"commands"`

	// TickInterval is the period of the scheduler tick.
	TickInterval Duration `yaml:"tick_interval" json:"tick_interval"`

	// StartDelayTicks is the number of ticks before the first poll.
	StartDelayTicks int `yaml:"start_delay_ticks" json:"start_delay_ticks"`

	// RetryIntervalTicks is the number of ticks between polls.
	RetryIntervalTicks int `yaml:"retry_interval_ticks" json:"retry_interval_ticks"`

	// DialTimeout bounds connecting to the management socket.
	DialTimeout Duration `yaml:"dial_timeout" json:"dial_timeout"`

	// RequestTimeout bounds one request from write to end of stream.
	RequestTimeout Duration `yaml:"request_timeout" json:"request_timeout"`

	// MaxResponseBytes caps the decoded payload of one response.
	MaxResponseBytes int `yaml:"max_response_bytes" json:"max_response_bytes"`

	// DrainTimeout bounds how long shutdown waits for in-flight
	// requests.
	DrainTimeout Duration `yaml:"drain_timeout" json:"drain_timeout"`

	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`
	Events   EventsConfig   `yaml:"events" json:"events"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

// SnapshotConfig configures persistence of the last configuration.
type SnapshotConfig struct {
	// Path is the snapshot file. Empty disables persistence.
	Path string `yaml:"path" json:"path"`

	// Compression is "none", "lz4", or "zstd".
	Compression string `yaml:"compression" json:"compression"`
}

// EventsConfig configures the notification event socket.
type EventsConfig struct {
	// SocketPath is where configuration notifications are streamed.
	// Empty disables the socket.
	SocketPath string `yaml:"socket_path" json:"socket_path"`

	// SubscriberBuffer is the per-subscriber queue depth.
	SubscriberBuffer int `yaml:"subscriber_buffer" json:"subscriber_buffer"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Address is a TCP host:port or a unix:/path address for /metrics.
	// Empty disables the endpoint.
	Address string `yaml:"address" json:"address"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level" json:"level"`

	// Format is json or text.
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		SocketPath:         DefaultSocketPath,
		Commands:           []string{"show sflow"},
		TickInterval:       Duration(time.Second),
		StartDelayTicks:    2,
		RetryIntervalTicks: 300,
		DialTimeout:        Duration(5 * time.Second),
		RequestTimeout:     Duration(30 * time.Second),
		MaxResponseBytes:   4 << 20,
		DrainTimeout:       Duration(10 * time.Second),
		Snapshot: SnapshotConfig{
			Compression: "zstd",
		},
		Events: EventsConfig{
			SubscriberBuffer: 64,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads the file named by HOSTFLOW_CONFIG, or returns Default
// when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads path over Default and expands path variables. It
// does not validate; call Validate after applying flag overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	switch extension := strings.ToLower(filepath.Ext(path)); extension {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config %s: unsupported extension %q (want .yaml, .yml, .json, or .jsonc)", path, extension)
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.SocketPath = expandVars(c.SocketPath)
	c.Snapshot.Path = expandVars(c.Snapshot.Path)
	c.Events.SocketPath = expandVars(c.Events.SocketPath)
	c.Metrics.Address = expandVars(c.Metrics.Address)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${NAME} and ${NAME:-default} with environment
// values.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate reports every problem in the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.SocketPath == "" {
		errs = append(errs, errors.New("socket_path is required"))
	}
	if len(c.Commands) == 0 {
		errs = append(errs, errors.New("commands must list at least one command"))
	}
	for i, command := range c.Commands {
		if strings.TrimSpace(command) == "" {
			errs = append(errs, fmt.Errorf("commands[%d] is empty", i))
		}
	}
	if c.TickInterval <= 0 {
		errs = append(errs, errors.New("tick_interval must be positive"))
	}
	if c.StartDelayTicks <= 0 {
		errs = append(errs, errors.New("start_delay_ticks must be positive"))
	}
	if c.RetryIntervalTicks <= 0 {
		errs = append(errs, errors.New("retry_interval_ticks must be positive"))
	}
	if c.DialTimeout <= 0 {
		errs = append(errs, errors.New("dial_timeout must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if c.MaxResponseBytes <= 0 {
		errs = append(errs, errors.New("max_response_bytes must be positive"))
	}
	if c.DrainTimeout < 0 {
		errs = append(errs, errors.New("drain_timeout must not be negative"))
	}
	if _, err := compress.ParseTag(c.Snapshot.Compression); err != nil {
		errs = append(errs, fmt.Errorf("snapshot.compression: %w", err))
	}
	if c.Events.SubscriberBuffer <= 0 {
		errs = append(errs, errors.New("events.subscriber_buffer must be positive"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("unknown level %q", name)
	}
	return level, nil
}
