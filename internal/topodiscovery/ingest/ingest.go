// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

// Package ingest implements the Span Ingestor of spec.md §4.2: it pulls
// spans from a SpanSource starting at the cursor, enforces non-decreasing
// delivery order, and drives per-span and per-chunk callbacks so the
// Aggregator and Reaper can be interleaved without the Ingestor knowing
// anything about State.
package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/errs"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/model"
)

// Page is one page of spans returned by a SpanSource, in non-decreasing
// start-time order, plus an opaque cursor for the next page (empty string
// means the source is exhausted for this query).
type Page struct {
	Spans          []model.Span
	NextPageCursor string
}

// SpanSource is the external collaborator of spec.md §6: a query taking
// (start_time_inclusive, optional page_cursor) and returning a page of
// spans. Concrete implementations (e.g. spansource/opensearch) depend only
// on this interface.
type SpanSource interface {
	Query(ctx context.Context, startInclusive time.Time, pageCursor string) (Page, error)
}

// SpanHandler integrates a single span into State (the Aggregator).
type SpanHandler func(ctx context.Context, s model.Span) error

// ChunkHandler runs after each page has been fully integrated (the
// Reaper's trace sweep, per spec.md §4.4).
type ChunkHandler func(ctx context.Context) error

// Ingestor drives one tick's worth of span ingestion.
type Ingestor struct {
	source SpanSource
	logger *zap.Logger
}

func New(source SpanSource, logger *zap.Logger) *Ingestor {
	return &Ingestor{source: source, logger: logger}
}

// Run queries the source starting at cursor (or now.Add(-lookback) if
// cursor is nil), feeds every span to onSpan in delivery order, and calls
// onChunk after each page. It returns the tentative next cursor: the
// maximum start_time of any span successfully integrated this tick. The
// caller (Scheduler) commits this value to State only at tick end.
//
// If the source ever yields a span older than the latest one already
// delivered this tick, that span is skipped and Run returns the last such
// occurrence as an *errs.CursorRegressionError once ingestion otherwise
// completes normally; the caller is expected to log and discard it rather
// than treat the tick as failed.
func (in *Ingestor) Run(
	ctx context.Context,
	cursor *time.Time,
	lookback time.Duration,
	now time.Time,
	onSpan SpanHandler,
	onChunk ChunkHandler,
) (*time.Time, error) {
	start := now.Add(-lookback)
	if cursor != nil {
		start = *cursor
	}

	tentative := cursor
	var lastSeen time.Time
	if cursor != nil {
		lastSeen = *cursor
	}

	var regression *errs.CursorRegressionError

	pageCursor := ""
	for {
		page, err := in.source.Query(ctx, start, pageCursor)
		if err != nil {
			return tentative, &errs.TransportError{Op: "span_source.query", Err: err}
		}

		for _, span := range page.Spans {
			if span.StartTime.Before(lastSeen) {
				regression = &errs.CursorRegressionError{
					TraceId:   string(span.TraceId),
					SpanId:    string(span.SpanId),
					StartTime: span.StartTime,
					Cursor:    lastSeen,
				}
				in.logger.Warn("span source yielded an out-of-order span; skipping", zap.Error(regression))
				continue
			}
			lastSeen = span.StartTime

			if err := onSpan(ctx, span); err != nil {
				var decodeErr *errs.DecodeError
				if asDecodeError(err, &decodeErr) {
					in.logger.Warn("skipping span that could not be decoded", zap.Error(err))
					continue
				}
				return tentative, err
			}

			if tentative == nil || span.StartTime.After(*tentative) {
				t := span.StartTime
				tentative = &t
			}
		}

		if onChunk != nil {
			if err := onChunk(ctx); err != nil {
				return tentative, err
			}
		}

		if page.NextPageCursor == "" {
			break
		}
		pageCursor = page.NextPageCursor
	}

	if regression != nil {
		return tentative, regression
	}
	return tentative, nil
}

func asDecodeError(err error, target **errs.DecodeError) bool {
	de, ok := err.(*errs.DecodeError)
	if ok {
		*target = de
	}
	return ok
}
