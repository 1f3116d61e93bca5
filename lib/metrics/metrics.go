// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes the management-API collector's counters to
// Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hostflow_eapi"

// Framing error reasons used as the "reason" label.
const (
	ReasonChunkLength   = "chunk_length"
	ReasonContentLength = "content_length"
	ReasonTrailer       = "trailer"
	ReasonTooLarge      = "too_large"
)

// Collector is a prometheus.Collector for one collector instance.
type Collector struct {
	CyclesStarted      prometheus.Counter
	CyclesSkipped      prometheus.Counter
	OpenErrors         prometheus.Counter
	SendErrors         prometheus.Counter
	FramingErrors      *prometheus.CounterVec
	PayloadParseErrors prometheus.Counter
	Dispatches         prometheus.Counter
	ConfigChanges      prometheus.Counter
	Outstanding        prometheus.Gauge
	Flushing           prometheus.Gauge
	ResponseDuration   prometheus.Histogram
}

// NewCollector returns a Collector with every metric at zero.
func NewCollector() *Collector {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}

	return &Collector{
		CyclesStarted:      counter("cycles_started_total", "Poll cycles that sent a request."),
		CyclesSkipped:      counter("cycles_skipped_total", "Scheduler expiries skipped because a request was in flight or a drain was active."),
		OpenErrors:         counter("open_errors_total", "Failures to connect to the management socket."),
		SendErrors:         counter("send_errors_total", "Failed or short request writes."),
		PayloadParseErrors: counter("payload_parse_errors_total", "Responses whose payload was not valid JSON."),
		Dispatches:         counter("dispatches_total", "Payloads delivered to a result handler."),
		ConfigChanges:      counter("config_changes_total", "Dispatched payloads that differed from the previous snapshot."),
		Outstanding:        gauge("outstanding_requests", "Requests written and not yet terminated."),
		Flushing:           gauge("flushing", "1 while a drain is suppressing response processing."),
		FramingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "framing_errors_total",
			Help:      "Responses abandoned because of a framing error.",
		}, []string{"reason"}),
		ResponseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_duration_seconds",
			Help:      "Time from request write to end of stream.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
	}
}

func (c *Collector) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.CyclesStarted,
		c.CyclesSkipped,
		c.OpenErrors,
		c.SendErrors,
		c.FramingErrors,
		c.PayloadParseErrors,
		c.Dispatches,
		c.ConfigChanges,
		c.Outstanding,
		c.Flushing,
		c.ResponseDuration,
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, metric := range c.all() {
		metric.Describe(ch)
	}
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, metric := range c.all() {
		metric.Collect(ch)
	}
}
