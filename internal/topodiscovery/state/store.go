// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"errors"
)

// ErrNoState is returned by Store.Load when no prior state blob exists
// (first run). It is not treated as an error by the scheduler, which
// starts from state.New() instead.
var ErrNoState = errors.New("no persisted state found")

// Store is the StateStore contract of spec.md §6: load the persisted
// State (if any) and save it back with atomic-replace semantics. A failed
// Save must leave the previous blob intact.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, s *State) error
}
