// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

// Package reaper implements the periodic evictor of spec.md §4.4: the
// trace sweep (run after every ingested chunk) and the service/operation
// sweep (run once at end-of-tick).
package reaper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/model"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/state"
)

type Reaper struct {
	state           *state.State
	logger          *zap.Logger
	skewWindow      time.Duration
	stalenessWindow time.Duration
	metrics         *Metrics
}

func New(s *state.State, logger *zap.Logger, skewWindow, stalenessWindow time.Duration, reg prometheus.Registerer) *Reaper {
	return &Reaper{
		state:           s,
		logger:          logger,
		skewWindow:      skewWindow,
		stalenessWindow: stalenessWindow,
		metrics:         newMetrics(reg),
	}
}

// SetState rebinds the Reaper to a different State; see
// Aggregator.SetState for why this exists instead of reconstructing.
func (r *Reaper) SetState(s *state.State) {
	r.state = s
}

// SweepTraces evicts any TraceInfo whose LastSeen is older than
// now-skewWindow. A placeholder SpanInfo evicted this way represents a
// parent that never arrived in time; its queued ParentOf relations are
// lost — the explicit memory/completeness trade-off of spec.md §4.4.
func (r *Reaper) SweepTraces(now time.Time) int {
	cutoff := now.Add(-r.skewWindow)

	var stale []model.TraceId
	r.state.ForEachTrace(func(id model.TraceId, tr *state.TraceInfo) {
		if tr.LastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
	})
	for _, id := range stale {
		r.state.DeleteTrace(id)
	}
	if len(stale) > 0 {
		r.metrics.tracesEvicted.Add(float64(len(stale)))
		r.logger.Debug("evicted stale trace fragments", zap.Int("count", len(stale)), zap.Time("cutoff", cutoff))
	}
	return len(stale)
}

// SweepServicesAndOperations removes operations whose LastSeen predates
// now-stalenessWindow, then removes any service whose operations are all
// gone and whose own LastSeen also predates the cutoff (spec.md §3
// invariant 2, §4.4). It must only be called at end-of-tick.
func (r *Reaper) SweepServicesAndOperations(now time.Time) (evictedOps, evictedServices int) {
	cutoff := now.Add(-r.stalenessWindow)

	type staleOps struct {
		svc  *state.Service
		keys []model.OperationKey
	}
	var candidates []staleOps
	r.state.ForEachService(func(svc *state.Service) {
		var keys []model.OperationKey
		for opKey, op := range svc.Operations {
			if op.LastSeen.Before(cutoff) {
				keys = append(keys, opKey)
			}
		}
		if len(keys) > 0 {
			candidates = append(candidates, staleOps{svc: svc, keys: keys})
		}
	})
	for _, c := range candidates {
		for _, opKey := range c.keys {
			r.state.DeleteOperation(c.svc, opKey)
			evictedOps++
		}
	}

	var staleServices []model.ServiceKey
	r.state.ForEachService(func(svc *state.Service) {
		if len(svc.Operations) == 0 && svc.LastSeen.Before(cutoff) {
			staleServices = append(staleServices, svc.Key)
		}
	})
	for _, key := range staleServices {
		r.state.DeleteService(key)
		evictedServices++
	}

	if evictedOps > 0 || evictedServices > 0 {
		r.metrics.operationsEvicted.Add(float64(evictedOps))
		r.metrics.servicesEvicted.Add(float64(evictedServices))
		r.logger.Info("evicted stale services/operations",
			zap.Int("operations", evictedOps),
			zap.Int("services", evictedServices),
			zap.Time("cutoff", cutoff))
	}
	return evictedOps, evictedServices
}
