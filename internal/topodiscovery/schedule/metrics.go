// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package schedule

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	tickDuration      prometheus.Histogram
	tickFailures      prometheus.Counter
	ticksTotal        prometheus.Counter
	cursorRegressions prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "jaeger_discovery",
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Duration of a single discovery tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		tickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jaeger_discovery",
			Subsystem: "scheduler",
			Name:      "tick_failures_total",
			Help:      "Number of ticks that aborted with an error.",
		}),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jaeger_discovery",
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Number of ticks attempted.",
		}),
		cursorRegressions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jaeger_discovery",
			Subsystem: "scheduler",
			Name:      "cursor_regressions_total",
			Help:      "Number of ticks in which a span source yielded at least one span out of cursor order (such spans are discarded).",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.tickDuration, m.tickFailures, m.ticksTotal, m.cursorRegressions)
	}
	return m
}
