// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package eapi

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/hostflow/hostflow/lib/clock"
	"github.com/hostflow/hostflow/lib/eapi/eapitest"
	"github.com/hostflow/hostflow/lib/notify"
)

func runShowSFlow(t *testing.T, raw string) *recorder {
	t.Helper()
	document, err := ParseDocument([]byte(raw))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	r := &recorder{}
	cycle := newCycle("cycle", []string{"show sflow"}, r, clock.Fake(testEpoch))
	ShowSFlow{Logger: slog.Default()}.HandleResult(cycle, []byte(raw), document)
	return r
}

func TestShowSFlowEnabled(t *testing.T) {
	r := runShowSFlow(t, eapitest.ShowSFlowEnabled)
	if got := strings.Join(r.lines(), "|"); got != strings.Join(enabledLines, "|") {
		t.Fatalf("lines = %q", r.lines())
	}
	if end := r.events[len(r.events)-1]; end.Kind != notify.ConfigEnd || end.Count != 1 {
		t.Fatalf("last event = %+v", end)
	}
}

func TestShowSFlowDisabled(t *testing.T) {
	r := runShowSFlow(t, eapitest.ShowSFlowDisabled)
	if len(r.events) != 1 || r.events[0].Kind != notify.ConfigEnd || r.events[0].Count != 0 {
		t.Fatalf("events = %+v, want a single ConfigEnd{0}", r.events)
	}
}

func TestShowSFlowNoResult(t *testing.T) {
	r := runShowSFlow(t, `{"jsonrpc":"2.0","error":{"code":1002,"message":"invalid command"},"id":"hostflow-1"}`)
	if len(r.events) != 0 {
		t.Fatalf("events = %v, want none", r.kinds())
	}
}

func TestShowSFlowDestinations(t *testing.T) {
	r := runShowSFlow(t, `{"result":[{
		"enabled": true,
		"samplingEnabled": false,
		"sampleRate": 4096,
		"ipv4Sources": [{"ipv4Address": "0.0.0.0"}],
		"ipv6Sources": [{"ipv6Address": "2001:db8::2"}],
		"ipv4Destinations": [
			{"ipv4Address": "192.0.2.10", "vrfName": "default"},
			{"ipv4Address": "192.0.2.11", "vrfName": "mgmt", "port": 6343},
			{"hostname": "collector.example", "port": 9999}
		],
		"ipv6Destinations": [{"ipv6Address": "2001:db8::10", "port": 6344}]
	}]}`)

	want := []string{
		"agentIP=2001:db8::2",
		"collector=192.0.2.10 6343",
		"collector=collector.example 9999",
		"collector=2001:db8::10 6344",
	}
	if got := strings.Join(r.lines(), "|"); got != strings.Join(want, "|") {
		t.Fatalf("lines = %q, want %q", r.lines(), want)
	}
	if end := r.events[len(r.events)-1]; end.Count != 3 {
		t.Fatalf("ConfigEnd count = %d, want 3", end.Count)
	}
}
