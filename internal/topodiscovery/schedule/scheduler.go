// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

// Package schedule implements the Scheduler of spec.md §4.6: it runs one
// discovery tick per poll period (ingest -> render -> publish -> persist),
// arming a context-aware sleep until the next tick, and aborts cleanly on
// cancellation without ever persisting a partial render.
package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/aggregator"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/config"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/errs"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/ingest"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/reaper"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/render"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/state"
)

// Clock abstracts time.Now for deterministic tests, the same seam jaeger's
// own time-bucketing code (cmd/es-index-cleaner's CalculateDeletionCutoff)
// takes as an explicit currTime parameter rather than calling time.Now()
// internally.
type Clock func() time.Time

// Scheduler drives the discovery tick loop. It is constructed once per
// daemon lifetime and its Run blocks until ctx is cancelled.
type Scheduler struct {
	cfg    config.Config
	source ingest.SpanSource
	sink   render.GraphSink
	store  state.Store
	logger *zap.Logger
	clock  Clock
	reg    prometheus.Registerer

	metrics *Metrics
	state   *state.State

	agg  *aggregator.Aggregator
	reap *reaper.Reaper
}

// New constructs a Scheduler. reg may be nil to disable metrics
// registration (used by tests that construct multiple schedulers in the
// same process, where re-registering the same collector would panic). The
// Aggregator and Reaper are created once here, not per tick: their metrics
// registration with reg would panic on a second MustRegister of the same
// counter names otherwise.
func New(cfg config.Config, source ingest.SpanSource, sink render.GraphSink, store state.Store, logger *zap.Logger, reg prometheus.Registerer) *Scheduler {
	s := state.New()
	return &Scheduler{
		cfg:     cfg,
		source:  source,
		sink:    sink,
		store:   store,
		logger:  logger,
		clock:   time.Now,
		reg:     reg,
		metrics: newMetrics(reg),
		state:   s,
		agg:     aggregator.New(s, logger, reg),
		reap:    reaper.New(s, logger, cfg.SkewWindow, cfg.StalenessWindow, reg),
	}
}

// WithClock overrides the clock used for tick timing and window
// calculations; used by tests to simulate skew/staleness eviction without
// real sleeps.
func (s *Scheduler) WithClock(c Clock) *Scheduler {
	s.clock = c
	return s
}

// Run loads prior state (if any) and then ticks once per poll period until
// ctx is cancelled. It returns nil on clean shutdown, or the error from a
// fatal startup condition (a corrupt state blob).
func (s *Scheduler) Run(ctx context.Context) error {
	loaded, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, state.ErrNoState):
		// s.state is already the empty State created in New.
	case err != nil:
		return &errs.StateIOError{Op: "load", Err: err}
	default:
		s.state = loaded
		s.agg.SetState(s.state)
		s.reap.SetState(s.state)
	}

	for {
		tickStart := s.clock()
		if err := s.Tick(ctx); err != nil {
			s.metrics.tickFailures.Inc()
			s.logger.Error("discovery tick failed", zap.Error(err))
		}
		s.metrics.ticksTotal.Inc()
		s.metrics.tickDuration.Observe(s.clock().Sub(tickStart).Seconds())

		elapsed := s.clock().Sub(tickStart)
		wait := s.cfg.PollPeriod - elapsed
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// Tick runs exactly one discovery cycle: ingest -> render -> publish ->
// commit cursor -> persist. It is exported so tests (and an operator
// wanting a single-shot "run once" mode) can drive individual ticks
// directly without the sleep loop.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.clock()

	in := ingest.New(s.source, s.logger)

	cursor := s.state.Cursor()
	tentative, err := in.Run(ctx, cursor, s.cfg.Lookback, now, s.agg.Process, func(context.Context) error {
		s.reap.SweepTraces(s.clock())
		return nil
	})
	var regressionErr *errs.CursorRegressionError
	if errors.As(err, &regressionErr) {
		s.metrics.cursorRegressions.Inc()
		s.logger.Warn("discarding cursor regression reported by span source; tick continues", zap.Error(err))
	} else if err != nil {
		return err
	}

	s.reap.SweepServicesAndOperations(s.clock())

	topology := render.Render(s.state)
	if err := s.sink.Submit(ctx, topology); err != nil {
		return &errs.TransportError{Op: "graph_sink.submit", Err: err}
	}

	if tentative != nil {
		s.state.CommitCursor(*tentative)
	}

	if err := s.store.Save(ctx, s.state); err != nil {
		return &errs.StateIOError{Op: "save", Err: err}
	}
	return nil
}

// State exposes the in-memory State for tests and for a "run once and
// print topology" debugging mode; it is not safe to mutate from outside
// the scheduler.
func (s *Scheduler) State() *state.State {
	return s.state
}
