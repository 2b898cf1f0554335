// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

// Package state implements the single persisted in-memory model of
// spec.md §3–§4.1: the cursor, the service/operation maps, and the trace
// reassembly table. All mutation happens through the methods on State; the
// Aggregator and Reaper are the only callers.
package state

import (
	"sync"
	"time"

	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/model"
)

// SpanKey identifies the (service, operation) a span belongs to.
type SpanKey struct {
	ServiceId   model.ServiceId
	OperationId model.OperationId
}

// SpanInfo is the trace-reassembly-table entry for one span. A nil Key
// means this is a placeholder inserted because a child referenced the span
// before the span itself was observed (spec.md §3, invariant 4).
type SpanInfo struct {
	Key      *SpanKey
	ParentOf []SpanKey
}

// TraceInfo is the short-lived, skew-window-bounded reassembly state for
// one trace.
type TraceInfo struct {
	LastSeen time.Time
	Spans    map[model.SpanId]*SpanInfo
}

// Operation is a named unit of work performed by a Service. Calls records
// the set of operations this operation has been observed calling.
type Operation struct {
	Id       model.OperationId
	Key      model.OperationKey
	LastSeen time.Time
	Calls    map[model.OperationId]struct{}
}

// Service is a logical process identity. CallsOut is a denormalized,
// incrementally maintained projection of the operation-level Calls edges
// onto services, resolved per Open Question (b) of spec.md §9.
type Service struct {
	Id         model.ServiceId
	Key        model.ServiceKey
	LastSeen   time.Time
	Operations map[model.OperationKey]*Operation
	CallsOut   map[model.ServiceId]struct{}
}

// State is the single persisted object of spec.md §3. All map access must
// go through the exported methods so invariants 1–6 hold across every
// mutation site. The mutex guards each method call on its own; the
// *Service, *Operation and *SpanInfo values those methods return are read
// and written by callers (Aggregator, Renderer) without holding it, so
// State is not safe for mutation concurrent with rendering. The scheduler
// uses it from one goroutine at a time.
type State struct {
	mu sync.RWMutex

	cursor   *time.Time
	services map[model.ServiceKey]*Service
	traces   map[model.TraceId]*TraceInfo

	// servicesById and operationsById are id-indexed views of the same
	// entries held in services, kept in lock-step by the Upsert/Delete
	// methods below. They exist because edges are recorded by id (a
	// ChildOf reference only ever carries the referenced span's id, which
	// resolves to a (ServiceId, OperationId) pair, not a ServiceKey), so
	// the Aggregator needs O(1) id-to-object lookup to record a relation.
	servicesById   map[model.ServiceId]*Service
	operationsById map[model.OperationId]*Operation
}

// New returns an empty State, as created on first run (spec.md §3
// Lifecycle).
func New() *State {
	return &State{
		services:       make(map[model.ServiceKey]*Service),
		traces:         make(map[model.TraceId]*TraceInfo),
		servicesById:   make(map[model.ServiceId]*Service),
		operationsById: make(map[model.OperationId]*Operation),
	}
}

// Cursor returns the committed cursor, or nil if no tick has committed yet.
func (s *State) Cursor() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cursor == nil {
		return nil
	}
	t := *s.cursor
	return &t
}

// CommitCursor advances the committed cursor to max(cursor, t), enforcing
// monotonicity (spec.md §3 invariant 3).
func (s *State) CommitCursor(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil || t.After(*s.cursor) {
		s.cursor = &t
	}
}

// UpsertService returns the existing Service for key, or creates one with
// a freshly generated id. LastSeen is updated to max(existing, now).
func (s *State) UpsertService(key model.ServiceKey, now time.Time) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.services[key]
	if !ok {
		svc = &Service{
			Id:         model.NewServiceId(),
			Key:        key,
			LastSeen:   now,
			Operations: make(map[model.OperationKey]*Operation),
			CallsOut:   make(map[model.ServiceId]struct{}),
		}
		s.services[key] = svc
		s.servicesById[svc.Id] = svc
		return svc
	}
	if now.After(svc.LastSeen) {
		svc.LastSeen = now
	}
	return svc
}

// UpsertOperation returns the existing Operation under svc for opKey, or
// creates one with a freshly generated id. LastSeen is updated to
// max(existing, now). svc must have been returned by UpsertService on this
// same State (the caller holds no lock between the two calls, so this
// locks independently).
func (s *State) UpsertOperation(svc *Service, opKey model.OperationKey, now time.Time) *Operation {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := svc.Operations[opKey]
	if !ok {
		op = &Operation{
			Id:       model.NewOperationId(),
			Key:      opKey,
			LastSeen: now,
			Calls:    make(map[model.OperationId]struct{}),
		}
		svc.Operations[opKey] = op
		s.operationsById[op.Id] = op
		return op
	}
	if now.After(op.LastSeen) {
		op.LastSeen = now
	}
	return op
}

// ServiceById looks up a service by its stable id, used to resolve a
// ChildOf relation's parent service when only the parent's SpanInfo.Key is
// known.
func (s *State) ServiceById(id model.ServiceId) (*Service, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.servicesById[id]
	return svc, ok
}

// OperationById looks up an operation by its stable id.
func (s *State) OperationById(id model.OperationId) (*Operation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.operationsById[id]
	return op, ok
}

// AddCall records that caller calls callee (caller.Calls[callee] = {}).
// The set semantics make this naturally idempotent, satisfying the
// duplicate-span edge case of spec.md §4.3.
func (s *State) AddCall(caller, callee *Operation) {
	if caller.Id == callee.Id {
		// Self-edge from a span that is its own ancestor: ignored per
		// spec.md §4.3 edge cases, otherwise processed normally.
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	caller.Calls[callee.Id] = struct{}{}
}

// AddCallsOut records the denormalized service-level edge.
func (s *State) AddCallsOut(caller, callee *Service) {
	if caller.Id == callee.Id {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	caller.CallsOut[callee.Id] = struct{}{}
}

// TouchTrace updates the trace's LastSeen to max(existing, now), creating
// the TraceInfo entry if absent.
func (s *State) TouchTrace(traceId model.TraceId, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchTraceLocked(traceId, now)
}

func (s *State) touchTraceLocked(traceId model.TraceId, now time.Time) *TraceInfo {
	tr, ok := s.traces[traceId]
	if !ok {
		tr = &TraceInfo{
			LastSeen: now,
			Spans:    make(map[model.SpanId]*SpanInfo),
		}
		s.traces[traceId] = tr
		return tr
	}
	if now.After(tr.LastSeen) {
		tr.LastSeen = now
	}
	return tr
}

// GetOrInsertSpan returns the existing SpanInfo for (traceId, spanId), or
// inserts a placeholder (Key == nil) if absent. The trace is touched with
// now so a freshly-created placeholder survives at least until the next
// sweep relative to now.
func (s *State) GetOrInsertSpan(traceId model.TraceId, spanId model.SpanId, now time.Time) *SpanInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr := s.touchTraceLocked(traceId, now)
	sp, ok := tr.Spans[spanId]
	if !ok {
		sp = &SpanInfo{}
		tr.Spans[spanId] = sp
	}
	return sp
}

// Service looks up a service by key without creating it.
func (s *State) Service(key model.ServiceKey) (*Service, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[key]
	return svc, ok
}

// ForEachService calls fn for every live service. fn must not mutate the
// State; callers that need to mutate should use the Upsert* methods
// instead, or collect keys first.
func (s *State) ForEachService(fn func(*Service)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, svc := range s.services {
		fn(svc)
	}
}

// ForEachTrace calls fn for every in-flight trace fragment.
func (s *State) ForEachTrace(fn func(model.TraceId, *TraceInfo)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, tr := range s.traces {
		fn(id, tr)
	}
}

// DeleteTrace removes a trace fragment outright (used by the Reaper's
// trace sweep).
func (s *State) DeleteTrace(id model.TraceId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.traces, id)
}

// DeleteOperation removes a single operation from a service (used by the
// Reaper's service/operation sweep).
func (s *State) DeleteOperation(svc *Service, opKey model.OperationKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, ok := svc.Operations[opKey]; ok {
		delete(s.operationsById, op.Id)
	}
	delete(svc.Operations, opKey)
}

// DeleteService removes a service outright.
func (s *State) DeleteService(key model.ServiceKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc, ok := s.services[key]; ok {
		delete(s.servicesById, svc.Id)
	}
	delete(s.services, key)
}

// ServiceCount and TraceCount are small introspection helpers used by
// metrics and tests.
func (s *State) ServiceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.services)
}

func (s *State) TraceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.traces)
}
