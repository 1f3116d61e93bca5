// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/hostflow/hostflow/lib/clock"
	"github.com/hostflow/hostflow/lib/compress"
	"github.com/hostflow/hostflow/lib/config"
	"github.com/hostflow/hostflow/lib/eapi"
	"github.com/hostflow/hostflow/lib/metrics"
	"github.com/hostflow/hostflow/lib/notify"
	"github.com/hostflow/hostflow/lib/process"
	"github.com/hostflow/hostflow/lib/snapshot"
	"github.com/hostflow/hostflow/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

// options holds the command line. Only flags the user set override the
// configuration file.
type options struct {
	flagSet *pflag.FlagSet

	configPath     string
	socketPath     string
	commands       []string
	eventsSocket   string
	metricsAddress string
	snapshotPath   string
	logLevel       string
	logFormat      string
	showVersion    bool
}

func parseFlags(args []string) (*options, error) {
	o := &options{flagSet: pflag.NewFlagSet("hostflow-eapi", pflag.ContinueOnError)}
	flags := o.flagSet
	flags.StringVar(&o.configPath, "config", "", "configuration file (default: $"+config.EnvironmentVariable+")")
	flags.StringVar(&o.socketPath, "socket", "", "management API socket (default "+config.DefaultSocketPath+")")
	flags.StringArrayVar(&o.commands, "command", nil, "command to run each cycle; repeat for several")
	flags.StringVar(&o.eventsSocket, "events-socket", "", "unix socket streaming configuration notifications")
	flags.StringVar(&o.metricsAddress, "metrics-address", "", "host:port or unix:/path serving /metrics")
	flags.StringVar(&o.snapshotPath, "snapshot", "", "file holding the last configuration seen")
	flags.StringVar(&o.logLevel, "log-level", "", "debug, info, warn, or error")
	flags.StringVar(&o.logFormat, "log-format", "", "json or text")
	flags.BoolVar(&o.showVersion, "version", false, "print version information and exit")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}
	return o, nil
}

// loadConfig reads the configuration file, applies flag overrides, and
// validates the result.
func (o *options) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	changed := o.flagSet.Changed
	if changed("socket") {
		cfg.SocketPath = o.socketPath
	}
	if changed("command") {
		cfg.Commands = o.commands
	}
	if changed("events-socket") {
		cfg.Events.SocketPath = o.eventsSocket
	}
	if changed("metrics-address") {
		cfg.Metrics.Address = o.metricsAddress
	}
	if changed("snapshot") {
		cfg.Snapshot.Path = o.snapshotPath
	}
	if changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = o.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, output io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	handlerOptions := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(output, handlerOptions)), nil
	}
	return slog.New(slog.NewJSONHandler(output, handlerOptions)), nil
}

func run(args []string) error {
	o, err := parseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if o.showVersion {
		version.Print("hostflow-eapi")
		return nil
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	signalContext, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := notify.NewBus(logger)
	defer bus.Close()

	collectorMetrics := metrics.NewCollector()
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectorMetrics)

	var store *snapshot.Store
	if cfg.Snapshot.Path != "" {
		tag, err := compress.ParseTag(cfg.Snapshot.Compression)
		if err != nil {
			return err
		}
		store = snapshot.Open(cfg.Snapshot.Path, tag, clock.Real(), logger)
	}

	collector, err := eapi.New(eapi.Options{
		SocketPath:         cfg.SocketPath,
		Commands:           cfg.Commands,
		TickInterval:       cfg.TickInterval.Std(),
		StartDelayTicks:    cfg.StartDelayTicks,
		RetryIntervalTicks: cfg.RetryIntervalTicks,
		DialTimeout:        cfg.DialTimeout.Std(),
		RequestTimeout:     cfg.RequestTimeout.Std(),
		MaxResponseBytes:   cfg.MaxResponseBytes,
		Publisher:          bus,
		Snapshots:          store,
		Metrics:            collectorMetrics,
		Clock:              clock.Real(),
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	// The run context outlives the signal so that Drain can finish
	// in-flight requests before the collector loop stops.
	runContext, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	group, groupContext := errgroup.WithContext(runContext)

	events := bus.Subscribe(cfg.Events.SubscriberBuffer)
	group.Go(func() error {
		logNotifications(groupContext, events, logger)
		return nil
	})
	group.Go(func() error {
		return collector.Run(groupContext)
	})
	if cfg.Events.SocketPath != "" {
		publisher := notify.NewSocketPublisher(cfg.Events.SocketPath, bus, cfg.Events.SubscriberBuffer, logger)
		group.Go(func() error {
			return publisher.Serve(groupContext)
		})
	}
	if cfg.Metrics.Address != "" {
		listener, err := metrics.Listen(cfg.Metrics.Address)
		if err != nil {
			return fmt.Errorf("metrics endpoint: %w", err)
		}
		group.Go(func() error {
			return metrics.Serve(groupContext, listener, registry, logger)
		})
	}

	logger.Info("hostflow-eapi running",
		"version", version.Info(),
		"socket", cfg.SocketPath,
		"retry_interval_ticks", cfg.RetryIntervalTicks,
	)

	select {
	case <-signalContext.Done():
		logger.Info("shutting down")
	case <-groupContext.Done():
	}

	drainContext, cancelDrain := context.WithTimeout(context.Background(), cfg.DrainTimeout.Std())
	if err := collector.Drain(drainContext); err != nil {
		logger.Warn("shutting down with requests in flight", "error", err)
	}
	cancelDrain()
	cancelRun()

	return group.Wait()
}

// logNotifications writes every configuration notification to the log
// until ctx ends or the bus closes.
func logNotifications(ctx context.Context, subscription *notify.Subscription, logger *slog.Logger) {
	defer subscription.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-subscription.C:
			if !ok {
				return
			}
			switch event.Kind {
			case notify.ConfigStart:
				logger.Debug("configuration cycle started", "cycle", event.Cycle)
			case notify.ConfigLine:
				logger.Info("configuration", "cycle", event.Cycle, "line", event.Line)
			case notify.ConfigEnd:
				logger.Info("configuration cycle complete", "cycle", event.Cycle, "collectors", event.Count)
			}
		}
	}
}
