// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

// Package errs defines the error kinds of §7 of the discovery daemon
// design: distinct types so the scheduler can branch on kind with
// errors.As instead of string matching, the same way jaeger's storage
// packages define sentinel errors like spanstore.ErrServiceNameNotSet.
package errs

import (
	"fmt"
	"time"
)

// TransportError wraps a SpanSource or GraphSink failure. Policy: log,
// abort the current tick without advancing the cursor, retry next tick.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError means a span document could not be parsed. Policy: skip the
// span, log at warning, continue; do not abort the tick.
type DecodeError struct {
	DocId string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not decode span document %q: %v", e.DocId, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// InvariantError is an internal assertion failure. Policy: treat as a bug;
// log and abort tick; do not corrupt persisted state.
type InvariantError struct {
	What string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated: %s", e.What)
}

// StateIOError wraps a load/save failure of the state blob.
type StateIOError struct {
	Op  string
	Err error
}

func (e *StateIOError) Error() string {
	return fmt.Sprintf("state %s failed: %v", e.Op, e.Err)
}

func (e *StateIOError) Unwrap() error { return e.Err }

// CursorRegressionError means a SpanSource yielded a span older than a
// later span already delivered this tick (or older than the committed
// cursor on the first page). Policy: the offending span is skipped, the
// tick is not aborted, and the error is surfaced to the caller only so it
// can be logged and counted — a misbehaving SpanSource must not stall
// discovery.
type CursorRegressionError struct {
	TraceId   string
	SpanId    string
	StartTime time.Time
	Cursor    time.Time
}

func (e *CursorRegressionError) Error() string {
	return fmt.Sprintf("span %s/%s start_time %s precedes cursor %s", e.TraceId, e.SpanId, e.StartTime, e.Cursor)
}

// ConfigError is fatal at startup only.
type ConfigError struct {
	What string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.What)
}
