// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/model"
)

func TestUpsertService_IsIdempotentOnKey(t *testing.T) {
	s := New()
	key := model.ServiceKey{ServiceName: "svcA"}
	now := time.Now()

	svc1 := s.UpsertService(key, now)
	svc2 := s.UpsertService(key, now.Add(time.Minute))

	assert.Equal(t, svc1.Id, svc2.Id, "the same key must resolve to the same identity")
	assert.Equal(t, now.Add(time.Minute), svc2.LastSeen)
	assert.Equal(t, 1, s.ServiceCount())
}

func TestUpsertService_LastSeenNeverGoesBackwards(t *testing.T) {
	s := New()
	key := model.ServiceKey{ServiceName: "svcA"}
	now := time.Now()

	s.UpsertService(key, now)
	svc := s.UpsertService(key, now.Add(-time.Hour))

	assert.Equal(t, now, svc.LastSeen, "an older observation must not regress LastSeen")
}

func TestCommitCursor_IsMonotonic(t *testing.T) {
	s := New()
	now := time.Now()

	s.CommitCursor(now)
	s.CommitCursor(now.Add(-time.Hour))
	assert.Equal(t, now, *s.Cursor(), "an earlier cursor value must not regress the committed cursor")

	s.CommitCursor(now.Add(time.Hour))
	assert.Equal(t, now.Add(time.Hour), *s.Cursor())
}

func TestAddCall_SelfEdgeIgnored(t *testing.T) {
	s := New()
	svc := s.UpsertService(model.ServiceKey{ServiceName: "svcA"}, time.Now())
	op := s.UpsertOperation(svc, "opA", time.Now())

	s.AddCall(op, op)
	assert.Empty(t, op.Calls)
}

func TestDeleteService_RemovesIdIndex(t *testing.T) {
	s := New()
	key := model.ServiceKey{ServiceName: "svcA"}
	svc := s.UpsertService(key, time.Now())

	s.DeleteService(key)

	_, ok := s.Service(key)
	assert.False(t, ok)
	_, ok = s.ServiceById(svc.Id)
	assert.False(t, ok, "deleting a service must also drop it from the id index")
}

func TestDeleteOperation_RemovesIdIndex(t *testing.T) {
	s := New()
	svc := s.UpsertService(model.ServiceKey{ServiceName: "svcA"}, time.Now())
	op := s.UpsertOperation(svc, "opA", time.Now())

	s.DeleteOperation(svc, "opA")

	_, ok := s.OperationById(op.Id)
	assert.False(t, ok)
	assert.Empty(t, svc.Operations)
}

func TestGetOrInsertSpan_CreatesPlaceholderThenFillsIt(t *testing.T) {
	s := New()
	now := time.Now()

	sp := s.GetOrInsertSpan("t1", "child", now)
	assert.Nil(t, sp.Key, "a span observed only as a reference target starts as a placeholder")

	sp2 := s.GetOrInsertSpan("t1", "child", now.Add(time.Second))
	require.Same(t, sp, sp2, "a second lookup for the same (trace, span) must return the same entry")

	sp2.Key = &SpanKey{ServiceId: "svc", OperationId: "op"}
	sp3 := s.GetOrInsertSpan("t1", "child", now.Add(2*time.Second))
	require.NotNil(t, sp3.Key, "a filled placeholder must stay filled on later lookups")
	assert.Equal(t, SpanKey{ServiceId: "svc", OperationId: "op"}, *sp3.Key)
}

func TestEncodeDecode_RoundTrips(t *testing.T) {
	s := New()
	now := time.Now().Truncate(time.Millisecond).UTC()

	svcA := s.UpsertService(model.ServiceKey{ServiceName: "svcA", ServiceNamespace: "ns"}, now)
	opA := s.UpsertOperation(svcA, "opA", now)
	svcB := s.UpsertService(model.ServiceKey{ServiceName: "svcB"}, now)
	opB := s.UpsertOperation(svcB, "opB", now)
	s.AddCall(opA, opB)
	s.AddCallsOut(svcA, svcB)
	s.TouchTrace("t1", now)
	sp := s.GetOrInsertSpan("t1", "root", now)
	sp.Key = &SpanKey{ServiceId: svcA.Id, OperationId: opA.Id}
	s.CommitCursor(now)

	blob, err := Encode(s)
	require.NoError(t, err)

	decoded, err := Decode(blob)
	require.NoError(t, err)

	assert.Equal(t, s.ServiceCount(), decoded.ServiceCount())
	assert.Equal(t, s.TraceCount(), decoded.TraceCount())
	assert.True(t, now.Equal(*decoded.Cursor()))

	dSvcA, ok := decoded.Service(model.ServiceKey{ServiceName: "svcA", ServiceNamespace: "ns"})
	require.True(t, ok)
	assert.Equal(t, svcA.Id, dSvcA.Id, "decoded identities must match the encoded ones exactly")
	_, hasOut := dSvcA.CallsOut[svcB.Id]
	assert.True(t, hasOut)

	dOpA := dSvcA.Operations["opA"]
	require.NotNil(t, dOpA)
	_, hasCall := dOpA.Calls[opB.Id]
	assert.True(t, hasCall)

	// The id indexes must be rebuilt, not just the natural-key maps.
	_, ok = decoded.ServiceById(svcA.Id)
	assert.True(t, ok)
	_, ok = decoded.OperationById(opA.Id)
	assert.True(t, ok)
}

func TestDecode_RejectsNewerSchema(t *testing.T) {
	s := New()
	blob, err := Encode(s)
	require.NoError(t, err)

	// Sanity: current schema always decodes.
	_, err = Decode(blob)
	require.NoError(t, err)

	// A blob declaring a newer schema version must be refused.
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err = fmt.Fprintf(gw, `{"schema_version": %d}`, SchemaVersion+1)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	_, err = Decode(buf.Bytes())
	assert.Error(t, err)
}
