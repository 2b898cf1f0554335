// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

// Package model holds the domain types shared by every component of the
// discovery daemon: identifiers, keys, and the wire-level Span the Ingestor
// hands to the Aggregator.
package model

import (
	"time"

	"github.com/google/uuid"
)

// TraceId and SpanId are opaque byte strings as sourced from the trace store.
// They are kept as strings (not [16]byte/[8]byte) because the span source
// may hand back IDs of varying width depending on backend (Jaeger v1 vs.
// OTLP-derived documents); callers must not assume a fixed length.
type TraceId string

type SpanId string

// ServiceId and OperationId are process-assigned stable identifiers. They
// are never reused for a different key within the lifetime of a State.
type ServiceId string

type OperationId string

// NewServiceId and NewOperationId mint a fresh 128-bit random identifier.
// Collisions are not checked for; uuid.New()'s collision probability is low
// enough that the caller (state.State.UpsertService/UpsertOperation) treats
// uniqueness as given, exactly like ServiceId/OperationId generation in any
// UUIDv4-keyed system.
func NewServiceId() ServiceId {
	return ServiceId(uuid.New().String())
}

func NewOperationId() OperationId {
	return OperationId(uuid.New().String())
}

// ServiceKey is the natural key of a Service: name, namespace and instance
// id together identify one logical process identity.
type ServiceKey struct {
	ServiceName       string
	ServiceNamespace  string
	ServiceInstanceId string
}

// OperationKey is an operation name scoped within a service; the owning
// ServiceId is implicit from context (the map it lives in).
type OperationKey string

// SpanRef is a ChildOf reference to another span, possibly in a different
// trace (cross-trace references do not occur in practice but are not
// rejected).
type SpanRef struct {
	TraceId TraceId
	SpanId  SpanId
}

// Span is what the Ingestor hands the Aggregator for each document read
// from the SpanSource, corresponding to spec.md §4.2.
type Span struct {
	TraceId           TraceId
	SpanId            SpanId
	StartTime         time.Time
	ParentSpanId      SpanId // empty if root
	ServiceName       string
	ServiceNamespace  string
	ServiceInstanceId string
	OperationName     string
	References        []SpanRef // kind ChildOf
}

// Key derives the ServiceKey and OperationKey this span belongs to.
func (s Span) Key() (ServiceKey, OperationKey) {
	return ServiceKey{
		ServiceName:       s.ServiceName,
		ServiceNamespace:  s.ServiceNamespace,
		ServiceInstanceId: s.ServiceInstanceId,
	}, OperationKey(s.OperationName)
}
