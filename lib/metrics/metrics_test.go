// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	hostflowtest "github.com/hostflow/hostflow/lib/testutil"
)

func TestCollectorRegisters(t *testing.T) {
	collector := NewCollector()
	registry := prometheus.NewRegistry()
	if err := registry.Register(collector); err != nil {
		t.Fatalf("Register: %v", err)
	}

	collector.CyclesStarted.Inc()
	collector.FramingErrors.WithLabelValues(ReasonChunkLength).Inc()
	collector.Outstanding.Set(1)

	if got := testutil.ToFloat64(collector.CyclesStarted); got != 1 {
		t.Fatalf("cycles_started_total = %v", got)
	}
	if got := testutil.ToFloat64(collector.FramingErrors.WithLabelValues(ReasonChunkLength)); got != 1 {
		t.Fatalf("framing_errors_total{reason=chunk_length} = %v", got)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := make(map[string]bool)
	for _, family := range families {
		names[family.GetName()] = true
	}
	for _, name := range []string{
		"hostflow_eapi_cycles_started_total",
		"hostflow_eapi_framing_errors_total",
		"hostflow_eapi_outstanding_requests",
	} {
		if !names[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}
}

func TestServeExposesMetrics(t *testing.T) {
	collector := NewCollector()
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)
	collector.Dispatches.Add(3)

	listener, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- Serve(ctx, listener, registry, slog.Default()) }()

	response, err := http.Get("http://" + listener.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(response.Body)
	response.Body.Close()
	if !strings.Contains(string(body), "hostflow_eapi_dispatches_total 3") {
		t.Fatalf("metrics output missing dispatch count:\n%s", body)
	}

	cancel()
	if err := hostflowtest.RequireReceive(t, served, 10*time.Second, "metrics server shutdown"); err != nil {
		t.Fatalf("Serve: %v", err)
	}
}
