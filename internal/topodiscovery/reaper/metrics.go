// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package reaper

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the eviction counters the Reaper exposes.
type Metrics struct {
	tracesEvicted     prometheus.Counter
	operationsEvicted prometheus.Counter
	servicesEvicted   prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tracesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jaeger_discovery",
			Subsystem: "reaper",
			Name:      "traces_evicted_total",
			Help:      "Number of trace fragments evicted for exceeding the skew window.",
		}),
		operationsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jaeger_discovery",
			Subsystem: "reaper",
			Name:      "operations_evicted_total",
			Help:      "Number of operations evicted for exceeding the staleness window.",
		}),
		servicesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jaeger_discovery",
			Subsystem: "reaper",
			Name:      "services_evicted_total",
			Help:      "Number of services evicted for exceeding the staleness window.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.tracesEvicted, m.operationsEvicted, m.servicesEvicted)
	}
	return m
}
