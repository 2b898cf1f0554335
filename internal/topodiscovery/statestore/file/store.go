// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

// Package file implements the state.Store contract with a single blob file
// in a state directory, written atomically via write-to-temp-then-rename.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/state"
)

const (
	stateFileName = "state.blob"
	lockFileName  = ".jaeger-discovery.lock"
)

// Store is a state.Store backed by a single file in dir.
type Store struct {
	dir    string
	logger *zap.Logger

	lockPath string
	locked   bool
}

// Open acquires the exclusive on-disk lock for dir (spec.md §5: "the
// StateStore file is exclusively owned by one running instance") and
// returns a Store ready for Load/Save. The lock is an O_EXCL sentinel
// file rather than flock(2), because the pack's dependency graph does not
// otherwise exercise a cross-platform syscall-locking library — see
// DESIGN.md for why this one component stays on the standard library.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir %q: %w", dir, err)
	}

	lockPath := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("state dir %q is locked by another running instance (remove %q if this is stale)", dir, lockPath)
		}
		return nil, fmt.Errorf("acquire state lock %q: %w", lockPath, err)
	}
	_ = f.Close()

	return &Store{dir: dir, logger: logger, lockPath: lockPath, locked: true}, nil
}

// Close releases the on-disk lock. It is safe to call more than once.
func (s *Store) Close() error {
	if !s.locked {
		return nil
	}
	s.locked = false
	if err := os.Remove(s.lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release state lock %q: %w", s.lockPath, err)
	}
	return nil
}

var _ state.Store = (*Store)(nil)

// Load implements state.Store. A missing blob is reported as
// state.ErrNoState, not an error.
func (s *Store) Load(_ context.Context) (*state.State, error) {
	path := filepath.Join(s.dir, stateFileName)
	blob, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, state.ErrNoState
		}
		return nil, fmt.Errorf("read state blob %q: %w", path, err)
	}

	st, err := state.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("decode state blob %q: %w", path, err)
	}
	return st, nil
}

// Save implements state.Store with write-to-temp-then-rename atomicity: a
// failed write leaves the previous blob intact because the rename, the
// only step that touches the final path, only happens after the temp file
// is fully written and fsynced.
func (s *Store) Save(_ context.Context, st *state.State) error {
	blob, err := state.Encode(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, stateFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	finalPath := filepath.Join(s.dir, stateFileName)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("rename temp state file into place: %w", err)
	}
	return nil
}
