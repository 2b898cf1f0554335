// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package file

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/model"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/state"
)

func TestOpen_AcquiresLockAndLoadReportsNoState(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, state.ErrNoState)
}

func TestOpen_SecondOpenOnSameDirFails(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	defer first.Close()

	_, err = Open(dir, zap.NewNop())
	assert.Error(t, err, "a second instance must not be able to acquire the same state dir")
}

func TestClose_ReleasesLockForReopen(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	defer second.Close()
}

func TestSaveLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	s := state.New()
	now := time.Now().Truncate(time.Millisecond).UTC()
	svc := s.UpsertService(model.ServiceKey{ServiceName: "svcA"}, now)
	s.UpsertOperation(svc, "opA", now)

	require.NoError(t, store.Save(context.Background(), s))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.ServiceCount())

	_, ok := loaded.ServiceById(svc.Id)
	assert.True(t, ok)
}

func TestSave_WritesToFinalPathViaRename(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	s1 := state.New()
	s1.UpsertService(model.ServiceKey{ServiceName: "svcA"}, time.Now())
	require.NoError(t, store.Save(context.Background(), s1))

	matches, err := filepath.Glob(filepath.Join(dir, stateFileName))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	leftoverTemps, err := filepath.Glob(filepath.Join(dir, stateFileName+".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftoverTemps, "no temp file should survive a successful save")
}
