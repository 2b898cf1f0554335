// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package aggregator

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the counters the Aggregator exposes on the Prometheus
// registry handed to it at construction, mirroring how jaeger's storage
// and processor packages take metrics.Factory / prometheus.Registerer at
// construction rather than reaching for package-level globals.
type Metrics struct {
	spansProcessed       prometheus.Counter
	placeholdersCreated  prometheus.Counter
	placeholdersResolved prometheus.Counter
	edgesCreated         prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		spansProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jaeger_discovery",
			Subsystem: "aggregator",
			Name:      "spans_processed_total",
			Help:      "Number of spans integrated into state.",
		}),
		placeholdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jaeger_discovery",
			Subsystem: "aggregator",
			Name:      "placeholders_created_total",
			Help:      "Number of placeholder SpanInfo entries created for unseen parents.",
		}),
		placeholdersResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jaeger_discovery",
			Subsystem: "aggregator",
			Name:      "placeholders_resolved_total",
			Help:      "Number of placeholder SpanInfo entries completed by their real span arriving.",
		}),
		edgesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jaeger_discovery",
			Subsystem: "aggregator",
			Name:      "edges_created_total",
			Help:      "Number of operation-level call edges recorded.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.spansProcessed, m.placeholdersCreated, m.placeholdersResolved, m.edgesCreated)
	}
	return m
}
