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
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/refmatch/ai"
	"github.com/poiesic/refmatch/core"
	"github.com/poiesic/refmatch/records"
	"github.com/poiesic/refmatch/storage"
	"golang.org/x/sync/singleflight"
)

// Action describes what a reconciliation pass did to a cache.
type Action string

const (
	ActionNone        Action = "unchanged"
	ActionCreated     Action = "created"
	ActionAdded       Action = "added"
	ActionDeleted     Action = "deleted"
	ActionRegenerated Action = "regenerated"
)

// Report summarizes one reconciliation pass.
type Report struct {
	Partition core.Partition
	Cache     string
	Action    Action
	Keys      int // keys in the cache after the pass
	Added     int
	Deleted   int
	Stale     int // stale keys left for the next pass
	Duration  time.Duration
}

// Manager reconciles, persists and serves embedding caches.
type Manager struct {
	store    storage.EmbeddingStore
	embedder ai.Embedder
	encoder  *batchEncoder
	config   Config
	logger   *slog.Logger
	progress io.Writer

	mu     sync.RWMutex
	caches map[string]*core.EmbeddingCache
	group  singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithConfig replaces the default batching and retry settings.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		m.config = cfg
	}
}

// WithProgress enables progress output while caches are embedded.
func WithProgress(w io.Writer) Option {
	return func(m *Manager) {
		m.progress = w
	}
}

// NewManager creates a Manager. Call Release when done with it.
func NewManager(store storage.EmbeddingStore, embedder ai.Embedder, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	m := &Manager{
		store:    store,
		embedder: embedder,
		config:   DefaultConfig(),
		logger:   slog.Default(),
		caches:   make(map[string]*core.EmbeddingCache),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.config.Validate(); err != nil {
		return nil, err
	}
	m.logger = m.logger.With("component", "embedcache")

	encoder, err := newBatchEncoder(embedder, m.config, m.logger)
	if err != nil {
		return nil, err
	}
	m.encoder = encoder
	return m, nil
}

// Embedder returns the embedder used for cache keys. Queries must be
// embedded with the same model.
func (m *Manager) Embedder() ai.Embedder {
	return m.embedder
}

// Release stops the worker pool.
func (m *Manager) Release() {
	m.encoder.release()
}

// Reconcile brings the cache for p in line with the keys of table.
func (m *Manager) Reconcile(ctx context.Context, table *records.Table, p core.Partition) (*Report, error) {
	if table == nil {
		return nil, ErrTableRequired
	}
	if err := core.ValidatePartition(p); err != nil {
		return nil, err
	}

	start := time.Now()
	name := p.CacheName()
	keys := table.Keys()
	logger := m.logger.With("cache", name)

	report := &Report{Partition: p, Cache: name}

	existing, err := m.store.Load(ctx, name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		logger.Info("no cache found, building", "keys", len(keys))
		report.Action = ActionCreated
		existing = nil
	case errors.Is(err, storage.ErrCorrupt):
		logger.Warn("cache is corrupt, regenerating", "error", err)
		report.Action = ActionRegenerated
		existing = nil
	case err != nil:
		return nil, fmt.Errorf("load cache %s: %w", name, err)
	case existing.Model() != m.embedder.Model():
		logger.Warn("cache built by a different model, regenerating",
			"cached", existing.Model(), "current", m.embedder.Model())
		report.Action = ActionRegenerated
		existing = nil
	}

	var cache *core.EmbeddingCache
	if existing == nil {
		cache, err = m.build(ctx, name, keys)
		if err != nil {
			return nil, err
		}
		report.Added = len(keys)
	} else {
		cache, err = m.update(ctx, existing, keys, report, logger)
		if errors.Is(err, storage.ErrModelMismatch) {
			logger.Warn("cache rejected patch, regenerating", "error", err)
			report.Action = ActionRegenerated
			report.Added, report.Deleted, report.Stale = len(keys), 0, 0
			cache, err = m.build(ctx, name, keys)
		}
		if err != nil {
			return nil, err
		}
	}

	m.publish(cache)
	report.Keys = cache.Len()
	report.Duration = time.Since(start)

	logger.Info("cache reconciled", "action", report.Action, "keys", report.Keys,
		"added", report.Added, "deleted", report.Deleted, "stale", report.Stale,
		"duration", report.Duration)
	return report, nil
}

// update diffs existing against keys. A pass that adds keys leaves stale
// keys in place; only a pass with nothing to add deletes.
func (m *Manager) update(ctx context.Context, existing *core.EmbeddingCache, keys []string, report *Report, logger *slog.Logger) (*core.EmbeddingCache, error) {
	current := make(map[string]struct{}, len(keys))
	var toAdd []string
	for _, k := range keys {
		current[k] = struct{}{}
		if !existing.Contains(k) {
			toAdd = append(toAdd, k)
		}
	}
	var toDelete []string
	for _, k := range existing.Keys() {
		if _, ok := current[k]; !ok {
			toDelete = append(toDelete, k)
		}
	}

	name := existing.Name()
	switch {
	case len(toAdd) > 0:
		vectors, err := m.encoder.encode(ctx, toAdd, m.tracker(name, len(toAdd)))
		if err != nil {
			return nil, fmt.Errorf("embed new keys for %s: %w", name, err)
		}
		patch := &storage.Patch{Model: m.embedder.Model(), Upserts: make(map[string][]float32, len(toAdd))}
		for i, k := range toAdd {
			patch.Upserts[k] = vectors[i]
		}
		if err := m.store.Patch(ctx, name, patch); err != nil {
			return nil, fmt.Errorf("patch cache %s: %w", name, err)
		}
		updated := existing.Clone()
		if err := storage.ApplyPatch(updated, patch); err != nil {
			return nil, err
		}
		updated.SetUpdatedAt(time.Now())

		report.Action = ActionAdded
		report.Added = len(toAdd)
		report.Stale = len(toDelete)
		if len(toDelete) > 0 {
			logger.Warn("stale keys kept until next reconciliation", "stale", len(toDelete))
		}
		return updated, nil

	case len(toDelete) > 0:
		patch := &storage.Patch{Model: m.embedder.Model(), Deletes: toDelete}
		if err := m.store.Patch(ctx, name, patch); err != nil {
			return nil, fmt.Errorf("patch cache %s: %w", name, err)
		}
		updated := existing.Clone()
		if err := storage.ApplyPatch(updated, patch); err != nil {
			return nil, err
		}
		updated.SetUpdatedAt(time.Now())

		report.Action = ActionDeleted
		report.Deleted = len(toDelete)
		return updated, nil

	default:
		report.Action = ActionNone
		return existing, nil
	}
}

// build embeds every key and replaces the persisted cache.
func (m *Manager) build(ctx context.Context, name string, keys []string) (*core.EmbeddingCache, error) {
	vectors, err := m.encoder.encode(ctx, keys, m.tracker(name, len(keys)))
	if err != nil {
		return nil, fmt.Errorf("embed keys for %s: %w", name, err)
	}

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	cache := core.NewEmbeddingCache(name, m.embedder.Model(), dim)
	for i, k := range keys {
		if !cache.Put(k, vectors[i]) {
			return nil, fmt.Errorf("%w: key %q", ErrDimensionMismatch, k)
		}
	}
	cache.SetUpdatedAt(time.Now())

	if err := m.store.Save(ctx, cache); err != nil {
		return nil, fmt.Errorf("save cache %s: %w", name, err)
	}
	return cache, nil
}

// Get returns the cache for p, loading it from the store on first use.
// Concurrent loads of the same cache are collapsed into one.
func (m *Manager) Get(ctx context.Context, p core.Partition) (*core.EmbeddingCache, error) {
	name := p.CacheName()

	m.mu.RLock()
	cache, ok := m.caches[name]
	m.mu.RUnlock()
	if ok {
		return cache, nil
	}

	v, err, _ := m.group.Do(name, func() (any, error) {
		cache, err := m.store.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load cache %s: %w", name, err)
		}
		if cache.Model() != m.embedder.Model() {
			return nil, fmt.Errorf("%w: cache %s has %q, embedder is %q",
				storage.ErrModelMismatch, name, cache.Model(), m.embedder.Model())
		}
		m.publish(cache)
		return cache, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.EmbeddingCache), nil
}

func (m *Manager) publish(cache *core.EmbeddingCache) {
	m.mu.Lock()
	m.caches[cache.Name()] = cache
	m.mu.Unlock()
}

func (m *Manager) tracker(name string, total int) *ProgressTracker {
	return NewProgressTracker(m.progress, name, total, m.config.ReportInterval)
}
