// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

// Package aggregator implements the Aggregator of spec.md §4.3: for each
// incoming span it upserts the owning service/operation, registers the
// span in the trace reassembly table, resolves ChildOf relations either
// immediately or by queuing a deferred edge on a placeholder, and drains
// any relations that were queued waiting for this span to arrive.
package aggregator

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/model"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/state"
)

// Aggregator owns no state of its own; it mutates the State it was
// constructed with. The Scheduler creates one Aggregator and reuses it
// across ticks — it is stateless besides the State pointer and metrics.
type Aggregator struct {
	state   *state.State
	logger  *zap.Logger
	metrics *Metrics
}

// New constructs an Aggregator over s. reg may be nil in tests that don't
// care about metrics.
func New(s *state.State, logger *zap.Logger, reg prometheus.Registerer) *Aggregator {
	return &Aggregator{
		state:   s,
		logger:  logger,
		metrics: newMetrics(reg),
	}
}

// SetState rebinds the Aggregator to a different State, e.g. after the
// Scheduler replaces its in-memory State with one freshly loaded from the
// StateStore. The Aggregator's metrics are left registered as-is.
func (a *Aggregator) SetState(s *state.State) {
	a.state = s
}

// Process integrates one span into State, per steps 1–4 of spec.md §4.3;
// the tentative cursor (step 5) is tracked by ingest.Ingestor.Run, not
// here. It is the SpanHandler passed to ingest.Ingestor.Run.
func (a *Aggregator) Process(_ context.Context, span model.Span) error {
	svcKey, opKey := span.Key()
	svc := a.state.UpsertService(svcKey, span.StartTime)
	op := a.state.UpsertOperation(svc, opKey, span.StartTime)

	// Step 2: span registration.
	a.state.TouchTrace(span.TraceId, span.StartTime)
	spanInfo := a.state.GetOrInsertSpan(span.TraceId, span.SpanId, span.StartTime)
	wasPlaceholderWithQueue := spanInfo.Key == nil && len(spanInfo.ParentOf) > 0
	spanInfo.Key = &state.SpanKey{ServiceId: svc.Id, OperationId: op.Id}

	// Step 3: parent resolution (this span as child).
	for _, ref := range span.References {
		parentInfo := a.state.GetOrInsertSpan(ref.TraceId, ref.SpanId, span.StartTime)
		if parentInfo.Key != nil {
			a.recordEdge(parentInfo.Key.ServiceId, parentInfo.Key.OperationId, svc.Id, op.Id)
			continue
		}
		// Parent unseen or itself a placeholder: queue the relation and
		// keep the placeholder alive for at least this span's start time
		// so it survives the skew window relative to when it's needed.
		if len(parentInfo.ParentOf) == 0 {
			// First relation queued on this placeholder: it was just created.
			a.metrics.placeholdersCreated.Inc()
		}
		parentInfo.ParentOf = append(parentInfo.ParentOf, state.SpanKey{ServiceId: svc.Id, OperationId: op.Id})
		a.state.TouchTrace(ref.TraceId, span.StartTime)
	}

	// Step 4: children resolution (this span as parent) — drain any
	// relations queued by children that arrived before this span did.
	for _, child := range spanInfo.ParentOf {
		a.recordEdge(svc.Id, op.Id, child.ServiceId, child.OperationId)
	}
	spanInfo.ParentOf = nil

	if wasPlaceholderWithQueue {
		a.metrics.placeholdersResolved.Inc()
	}
	a.metrics.spansProcessed.Inc()
	return nil
}

// recordEdge adds the operation-level edge parentOpId -> childOpId, and
// the denormalized service-level edge, per Open Question (b) of spec.md §9
// (the renderer emits both to be safe, so both are maintained
// incrementally here).
func (a *Aggregator) recordEdge(parentSvcId model.ServiceId, parentOpId model.OperationId, childSvcId model.ServiceId, childOpId model.OperationId) {
	parentOp, ok := a.state.OperationById(parentOpId)
	if !ok {
		return
	}
	childOp, ok := a.state.OperationById(childOpId)
	if !ok {
		return
	}
	before := len(parentOp.Calls)
	a.state.AddCall(parentOp, childOp)
	if len(parentOp.Calls) > before {
		a.metrics.edgesCreated.Inc()
	}

	parentSvc, ok1 := a.state.ServiceById(parentSvcId)
	childSvc, ok2 := a.state.ServiceById(childSvcId)
	if ok1 && ok2 {
		a.state.AddCallsOut(parentSvc, childSvc)
	}
}
