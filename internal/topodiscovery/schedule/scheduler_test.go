// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/config"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/ingest"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/model"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/render"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/state"
)

// MockSpanSource is a mock implementation of ingest.SpanSource.
type MockSpanSource struct {
	mock.Mock
}

func (m *MockSpanSource) Query(ctx context.Context, startInclusive time.Time, pageCursor string) (ingest.Page, error) {
	args := m.Called(ctx, startInclusive, pageCursor)
	return args.Get(0).(ingest.Page), args.Error(1)
}

// MockGraphSink is a mock implementation of render.GraphSink.
type MockGraphSink struct {
	mock.Mock
}

func (m *MockGraphSink) Submit(ctx context.Context, t render.Topology) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

// MockStateStore is a mock implementation of state.Store.
type MockStateStore struct {
	mock.Mock
}

func (m *MockStateStore) Load(ctx context.Context) (*state.State, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*state.State)
	return s, args.Error(1)
}

func (m *MockStateStore) Save(ctx context.Context, s *state.State) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func TestTick_IngestsRendersSubmitsAndPersists(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	lookbackStart := now.Add(-config.DefaultLookback)

	source := new(MockSpanSource)
	source.On("Query", mock.Anything, lookbackStart, "").Return(ingest.Page{
		Spans: []model.Span{{TraceId: "t1", SpanId: "s1", StartTime: now, ServiceName: "svcA", OperationName: "opA"}},
	}, nil)
	sink := new(MockGraphSink)
	sink.On("Submit", mock.Anything, mock.MatchedBy(func(topo render.Topology) bool { return len(topo.Items) == 2 })).Return(nil)
	store := new(MockStateStore)
	store.On("Load", mock.Anything).Return((*state.State)(nil), state.ErrNoState)
	store.On("Save", mock.Anything, mock.Anything).Return(nil)

	sched := New(config.Default(), source, sink, store, zap.NewNop(), nil).WithClock(func() time.Time { return now })

	require.NoError(t, sched.Run(contextThatCancelsAfterFirstTick()))

	sink.AssertNumberOfCalls(t, "Submit", 1)
	store.AssertNumberOfCalls(t, "Save", 1)
	require.NotNil(t, sched.State().Cursor())
	assert.True(t, sched.State().Cursor().Equal(now))
}

func TestRun_LoadsPriorStateAndContinuesFromCursor(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	prior := state.New()
	prior.CommitCursor(now.Add(-time.Minute))

	source := new(MockSpanSource)
	source.On("Query", mock.Anything, now.Add(-time.Minute), "").Return(ingest.Page{}, nil)
	sink := new(MockGraphSink)
	sink.On("Submit", mock.Anything, mock.Anything).Return(nil)
	store := new(MockStateStore)
	store.On("Load", mock.Anything).Return(prior, nil)
	store.On("Save", mock.Anything, mock.Anything).Return(nil)

	sched := New(config.Default(), source, sink, store, zap.NewNop(), nil).WithClock(func() time.Time { return now })
	require.NoError(t, sched.Run(contextThatCancelsAfterFirstTick()))

	source.AssertNumberOfCalls(t, "Query", 1)
	assert.Same(t, prior, sched.State(), "the loaded state must become the active state, not a fresh one")
}

func TestRun_StateIOErrorOnCorruptLoadAbortsBeforeAnyTick(t *testing.T) {
	source := new(MockSpanSource)
	store := new(MockStateStore)
	store.On("Load", mock.Anything).Return((*state.State)(nil), assertableErr{})

	sched := New(config.Default(), source, new(MockGraphSink), store, zap.NewNop(), nil)
	err := sched.Run(context.Background())

	require.Error(t, err)
	source.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}

func TestTick_CursorRegressionIsLoggedAndDoesNotAbortTheTick(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	lookbackStart := now.Add(-config.DefaultLookback)

	source := new(MockSpanSource)
	source.On("Query", mock.Anything, lookbackStart, "").Return(ingest.Page{
		Spans: []model.Span{
			{TraceId: "t1", SpanId: "s1", StartTime: now, ServiceName: "svcA", OperationName: "opA"},
			{TraceId: "t1", SpanId: "s-late", StartTime: now.Add(-time.Minute), ServiceName: "svcB", OperationName: "opB"},
		},
	}, nil)
	sink := new(MockGraphSink)
	sink.On("Submit", mock.Anything, mock.Anything).Return(nil)
	store := new(MockStateStore)
	store.On("Save", mock.Anything, mock.Anything).Return(nil)

	sched := New(config.Default(), source, sink, store, zap.NewNop(), nil).WithClock(func() time.Time { return now })

	err := sched.Tick(context.Background())

	require.NoError(t, err, "a cursor regression must be discarded by the tick, not returned as a failure")
	sink.AssertNumberOfCalls(t, "Submit", 1)
	store.AssertNumberOfCalls(t, "Save", 1)
}

type assertableErr struct{}

func (assertableErr) Error() string { return "corrupt state blob" }

func contextThatCancelsAfterFirstTick() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
