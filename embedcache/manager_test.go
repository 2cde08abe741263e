// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package embedcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/refmatch/ai/mock"
	"github.com/poiesic/refmatch/core"
	"github.com/poiesic/refmatch/records"
	"github.com/poiesic/refmatch/storage"
	"github.com/poiesic/refmatch/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schoolPartition = core.Partition{Dataset: "school"}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.Workers = 2
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func schoolTable(t *testing.T, rows ...records.Row) *records.Table {
	t.Helper()
	if len(rows) == 0 {
		rows = []records.Row{
			{"name": "Delhi Public School", "address": "R. K. Puram"},
			{"name": "Delhi Public School", "address": "Noida Sector 30"},
			{"name": "St. Xavier's School", "address": "Civil Lines"},
			{"name": "Modern School", "address": "Barakhamba Road"},
			{"name": "Sanskriti School", "address": "Chanakyapuri"},
		}
	}
	table, err := records.Project(records.Schema{
		Dataset: "school",
		Columns: []string{"name", "address"},
	}, rows, nil)
	require.NoError(t, err)
	return table
}

func newTestManager(t *testing.T, store storage.EmbeddingStore, embedder *mock.MockEmbedder) *Manager {
	t.Helper()
	m, err := NewManager(store, embedder, WithConfig(testConfig()))
	require.NoError(t, err)
	t.Cleanup(m.Release)
	return m
}

func memoryStore(t *testing.T) storage.EmbeddingStore {
	t.Helper()
	store, queries, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		queries.Close()
		store.Close()
		backend.Close()
	})
	return store
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrStoreRequired)

	store := memoryStore(t)
	_, err = NewManager(store, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	bad := DefaultConfig()
	bad.Workers = 0
	_, err = NewManager(store, mock.NewMockEmbedder(), WithConfig(bad))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestReconcile_CreatesCache(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	embedder := mock.NewMockEmbedder()
	m := newTestManager(t, store, embedder)
	table := schoolTable(t)

	report, err := m.Reconcile(ctx, table, schoolPartition)
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, report.Action)
	assert.Equal(t, "school_embeddings", report.Cache)
	assert.Equal(t, 5, report.Keys)
	assert.Equal(t, 5, report.Added)

	persisted, err := store.Load(ctx, "school_embeddings")
	require.NoError(t, err)
	assert.Equal(t, table.Keys(), persisted.Keys())
	assert.Equal(t, embedder.ModelName, persisted.Model())
	assert.Equal(t, mock.DefaultDimension, persisted.Dimension())

	vec, ok := persisted.Vector("modern school barakhamba road")
	require.True(t, ok)
	assert.InDelta(t, 1.0, magnitude(vec), 1e-5)
}

func TestReconcile_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	embedder := mock.NewMockEmbedder()
	m := newTestManager(t, store, embedder)
	table := schoolTable(t)

	_, err := m.Reconcile(ctx, table, schoolPartition)
	require.NoError(t, err)
	calls := embedder.CallCount()
	first, err := store.Load(ctx, "school_embeddings")
	require.NoError(t, err)

	for pass := 2; pass <= 3; pass++ {
		report, err := m.Reconcile(ctx, table, schoolPartition)
		require.NoError(t, err)
		assert.Equal(t, ActionNone, report.Action, "pass %d", pass)
		assert.Equal(t, calls, embedder.CallCount(), "pass %d must not embed", pass)

		persisted, err := store.Load(ctx, "school_embeddings")
		require.NoError(t, err)
		assert.Equal(t, first.Manifest(), persisted.Manifest(), "pass %d", pass)
		require.Equal(t, first.Keys(), persisted.Keys(), "pass %d", pass)
		for _, k := range first.Keys() {
			want, _ := first.Vector(k)
			got, ok := persisted.Vector(k)
			require.True(t, ok, k)
			assert.Equal(t, want, got, "pass %d key %q", pass, k)
		}
	}
}

func TestReconcile_AddsMissingKeys(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	embedder := mock.NewMockEmbedder()
	m := newTestManager(t, store, embedder)

	small := schoolTable(t, records.Row{"name": "Modern School", "address": "Barakhamba Road"})
	_, err := m.Reconcile(ctx, small, schoolPartition)
	require.NoError(t, err)

	before := embedder.TextCount()
	full := schoolTable(t)
	report, err := m.Reconcile(ctx, full, schoolPartition)
	require.NoError(t, err)
	assert.Equal(t, ActionAdded, report.Action)
	assert.Equal(t, 4, report.Added)
	assert.Equal(t, 0, report.Stale)
	assert.Equal(t, 4, embedder.TextCount()-before, "only new keys are embedded")

	persisted, err := store.Load(ctx, "school_embeddings")
	require.NoError(t, err)
	assert.Equal(t, full.Keys(), persisted.Keys())
}

func TestReconcile_DeletesStaleKeys(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	embedder := mock.NewMockEmbedder()
	m := newTestManager(t, store, embedder)

	_, err := m.Reconcile(ctx, schoolTable(t), schoolPartition)
	require.NoError(t, err)

	calls := embedder.CallCount()
	smaller := schoolTable(t, records.Row{"name": "Modern School", "address": "Barakhamba Road"})
	report, err := m.Reconcile(ctx, smaller, schoolPartition)
	require.NoError(t, err)
	assert.Equal(t, ActionDeleted, report.Action)
	assert.Equal(t, 4, report.Deleted)
	assert.Equal(t, calls, embedder.CallCount())

	persisted, err := store.Load(ctx, "school_embeddings")
	require.NoError(t, err)
	assert.Equal(t, []string{"modern school barakhamba road"}, persisted.Keys())

	cache, err := m.Get(ctx, schoolPartition)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
}

func TestReconcile_AddLeavesStaleKeysForNextPass(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	m := newTestManager(t, store, mock.NewMockEmbedder())

	first := schoolTable(t,
		records.Row{"name": "Modern School", "address": "Barakhamba Road"},
		records.Row{"name": "Sanskriti School", "address": "Chanakyapuri"},
	)
	_, err := m.Reconcile(ctx, first, schoolPartition)
	require.NoError(t, err)

	second := schoolTable(t,
		records.Row{"name": "Modern School", "address": "Barakhamba Road"},
		records.Row{"name": "Mothers International School", "address": "Sri Aurobindo Marg"},
	)
	report, err := m.Reconcile(ctx, second, schoolPartition)
	require.NoError(t, err)
	assert.Equal(t, ActionAdded, report.Action)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.Stale)
	assert.Equal(t, 3, report.Keys)

	persisted, err := store.Load(ctx, "school_embeddings")
	require.NoError(t, err)
	assert.True(t, persisted.Contains("sanskriti school chanakyapuri"), "stale key survives an adding pass")

	report, err = m.Reconcile(ctx, second, schoolPartition)
	require.NoError(t, err)
	assert.Equal(t, ActionDeleted, report.Action)
	assert.Equal(t, 1, report.Deleted)

	persisted, err = store.Load(ctx, "school_embeddings")
	require.NoError(t, err)
	assert.Equal(t, second.Keys(), persisted.Keys())
}

type corruptStore struct {
	storage.EmbeddingStore
	mu      sync.Mutex
	corrupt bool
}

func (s *corruptStore) Load(ctx context.Context, name string) (*core.EmbeddingCache, error) {
	s.mu.Lock()
	corrupt := s.corrupt
	s.corrupt = false
	s.mu.Unlock()
	if corrupt {
		return nil, storage.ErrCorrupt
	}
	return s.EmbeddingStore.Load(ctx, name)
}

func TestReconcile_RegeneratesCorruptCache(t *testing.T) {
	ctx := context.Background()
	store := &corruptStore{EmbeddingStore: memoryStore(t)}
	embedder := mock.NewMockEmbedder()
	m := newTestManager(t, store, embedder)
	table := schoolTable(t)

	_, err := m.Reconcile(ctx, table, schoolPartition)
	require.NoError(t, err)

	store.corrupt = true
	before := embedder.TextCount()
	report, err := m.Reconcile(ctx, table, schoolPartition)
	require.NoError(t, err)
	assert.Equal(t, ActionRegenerated, report.Action)
	assert.Equal(t, table.Len(), embedder.TextCount()-before)

	persisted, err := store.Load(ctx, "school_embeddings")
	require.NoError(t, err)
	assert.Equal(t, table.Keys(), persisted.Keys())
}

func TestReconcile_RegeneratesOnModelChange(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	table := schoolTable(t)

	old := mock.NewMockEmbedder()
	old.ModelName = "old-model"
	_, err := newTestManager(t, store, old).Reconcile(ctx, table, schoolPartition)
	require.NoError(t, err)

	current := mock.NewMockEmbedder()
	current.ModelName = "new-model"
	current.Dimension = 8
	report, err := newTestManager(t, store, current).Reconcile(ctx, table, schoolPartition)
	require.NoError(t, err)
	assert.Equal(t, ActionRegenerated, report.Action)

	persisted, err := store.Load(ctx, "school_embeddings")
	require.NoError(t, err)
	assert.Equal(t, "new-model", persisted.Model())
	assert.Equal(t, 8, persisted.Dimension())
}

func TestReconcile_EmbedderFailure(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	boom := errors.New("model offline")
	embedder := mock.NewMockEmbedder().WithEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, boom
	})
	m := newTestManager(t, store, embedder)

	_, err := m.Reconcile(ctx, schoolTable(t), schoolPartition)
	assert.ErrorIs(t, err, boom)

	_, err = store.Load(ctx, "school_embeddings")
	assert.ErrorIs(t, err, storage.ErrNotFound, "nothing persisted on failure")
}

func TestReconcile_DimensionMismatch(t *testing.T) {
	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		if text == "modern school barakhamba road" {
			return []float32{1, 0}, nil
		}
		return []float32{1, 0, 0}, nil
	})
	m := newTestManager(t, memoryStore(t), embedder)

	_, err := m.Reconcile(context.Background(), schoolTable(t), schoolPartition)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestReconcile_RetriesTransientFailures(t *testing.T) {
	var mu sync.Mutex
	failures := 1
	embedder := mock.NewMockEmbedder()
	embedder.WithEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return nil, errors.New("transient")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.DeterministicVector(text, 4)
		}
		return out, nil
	})
	m := newTestManager(t, memoryStore(t), embedder)

	report, err := m.Reconcile(context.Background(), schoolTable(t), schoolPartition)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Keys)
}

func TestReconcile_RequiresTable(t *testing.T) {
	m := newTestManager(t, memoryStore(t), mock.NewMockEmbedder())
	_, err := m.Reconcile(context.Background(), nil, schoolPartition)
	assert.ErrorIs(t, err, ErrTableRequired)
}

func TestGet_LoadsFromStoreOnce(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	_, err := newTestManager(t, store, mock.NewMockEmbedder()).Reconcile(ctx, schoolTable(t), schoolPartition)
	require.NoError(t, err)

	m := newTestManager(t, store, mock.NewMockEmbedder())
	first, err := m.Get(ctx, schoolPartition)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Len())

	second, err := m.Get(ctx, schoolPartition)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestGet_Missing(t *testing.T) {
	m := newTestManager(t, memoryStore(t), mock.NewMockEmbedder())
	_, err := m.Get(context.Background(), core.Partition{Dataset: "college"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGet_ModelMismatch(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	_, err := newTestManager(t, store, mock.NewMockEmbedder()).Reconcile(ctx, schoolTable(t), schoolPartition)
	require.NoError(t, err)

	other := mock.NewMockEmbedder()
	other.ModelName = "other"
	_, err = newTestManager(t, store, other).Get(ctx, schoolPartition)
	assert.ErrorIs(t, err, storage.ErrModelMismatch)
}
