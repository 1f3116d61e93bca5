// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package eapi

import (
	"fmt"
	"log/slog"
	"math"
)

// DefaultCollectorPort is the sFlow collector port used when a
// destination does not name one.
const DefaultCollectorPort = 6343

// defaultVRF is the only routing instance whose collectors are
// reachable without entering another network namespace.
const defaultVRF = "default"

// ShowSFlow turns a "show sflow" response into configuration lines:
//
//	sampling=<rate>
//	polling=<seconds>
//	agentIP=<address>
//	collector=<address> <port>
//
// followed by ConfigEnd carrying the number of collectors. A switch
// with sFlow disabled produces ConfigEnd with a count of zero and no
// lines. A response without a result, such as a JSON-RPC error,
// produces nothing.
type ShowSFlow struct {
	Logger *slog.Logger
}

// HandleResult implements Handler.
func (h ShowSFlow) HandleResult(cycle *Cycle, raw []byte, document Document) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sflow := document.Field("result").Index(0)
	if !sflow.Exists() {
		message, _ := document.Field("error").Field("message").Text()
		logger.Warn("show sflow response has no result", "cycle", cycle.ID, "message", message)
		return
	}

	if enabled, _ := sflow.Field("enabled").Bool(); !enabled {
		logger.Debug("sFlow disabled on switch", "cycle", cycle.ID)
		cycle.End(0)
		return
	}

	if sampling, ok := sflow.Field("samplingEnabled").Bool(); !ok || sampling {
		if rate, ok := wholeNumber(sflow.Field("sampleRate")); ok && rate > 0 {
			cycle.Line(fmt.Sprintf("sampling=%d", rate))
		}
	}
	if interval, ok := wholeNumber(sflow.Field("pollingInterval")); ok && interval > 0 {
		cycle.Line(fmt.Sprintf("polling=%d", interval))
	}

	if agent, ok := agentAddress(sflow); ok {
		cycle.Line("agentIP=" + agent)
	}

	collectors := 0
	for _, family := range []struct{ list, field string }{
		{"ipv4Destinations", "ipv4Address"},
		{"ipv6Destinations", "ipv6Address"},
	} {
		for _, destination := range sflow.Field(family.list).Items() {
			address, ok := destination.Field(family.field).Text()
			if !ok || address == "" {
				address, ok = destination.Field("hostname").Text()
			}
			if !ok || address == "" {
				continue
			}
			if vrf, ok := destination.Field("vrfName").Text(); ok && vrf != defaultVRF {
				logger.Debug("skipping collector outside default VRF",
					"cycle", cycle.ID,
					"collector", address,
					"vrf", vrf,
				)
				continue
			}
			port, ok := wholeNumber(destination.Field("port"))
			if !ok || port <= 0 || port > math.MaxUint16 {
				port = DefaultCollectorPort
			}
			cycle.Line(fmt.Sprintf("collector=%s %d", address, port))
			collectors++
		}
	}

	cycle.End(collectors)
}

// agentAddress returns the first configured source address that is
// not the unspecified address, preferring IPv4.
func agentAddress(sflow Document) (string, bool) {
	for _, family := range []struct{ list, field, unspecified string }{
		{"ipv4Sources", "ipv4Address", "0.0.0.0"},
		{"ipv6Sources", "ipv6Address", "::"},
	} {
		for _, source := range sflow.Field(family.list).Items() {
			address, ok := source.Field(family.field).Text()
			if ok && address != "" && address != family.unspecified {
				return address, true
			}
		}
	}
	return "", false
}

// wholeNumber reads a number such as 30 or 30.0 as an integer.
func wholeNumber(d Document) (int64, bool) {
	if value, ok := d.Int(); ok {
		return value, true
	}
	value, ok := d.Number()
	if !ok || value != math.Trunc(value) || math.Abs(value) > math.MaxInt32 {
		return 0, false
	}
	return int64(value), true
}
