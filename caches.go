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

package refmatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/refmatch/config"
	"github.com/poiesic/refmatch/core"
	"github.com/poiesic/refmatch/storage"
	"github.com/poiesic/refmatch/storage/badger"
)

// CacheInfo describes one persisted embedding cache.
type CacheInfo struct {
	Name     string
	Manifest core.Manifest
	// Err is set when the cache cannot be loaded. Such caches are
	// regenerated by the next reconciliation.
	Err error
}

// Caches inspects and removes persisted embedding caches without loading
// datasets or an embedder.
type Caches struct {
	backend *badger.Backend
	store   storage.EmbeddingStore
	logger  *slog.Logger
}

// OpenCaches opens the embedding store described by cfg. Only the
// logger and in-memory options apply.
func OpenCaches(cfg *config.File, opts ...ServiceOption) (*Caches, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil configuration", config.ErrInvalidConfig)
	}
	options := &serviceOptions{}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}
	backend, store, err := openStorage(cfg.Storage, options.inMemory, logger)
	if err != nil {
		return nil, err
	}
	return &Caches{backend: backend, store: store, logger: logger.With("component", "caches")}, nil
}

// List returns every persisted cache in name order with its manifest.
func (c *Caches) List(ctx context.Context) ([]CacheInfo, error) {
	names, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	infos := make([]CacheInfo, 0, len(names))
	for _, name := range names {
		info := CacheInfo{Name: name}
		cache, err := c.store.Load(ctx, name)
		if err != nil {
			info.Err = err
		} else {
			info.Manifest = cache.Manifest()
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Drop removes the cache of dataset, narrowed to partition when it is not
// empty. The next reconciliation rebuilds it from scratch. It returns the
// name of the removed cache.
func (c *Caches) Drop(ctx context.Context, dataset, partition string) (string, error) {
	p := core.Partition{Dataset: dataset, Value: partition}
	if err := core.ValidatePartition(p); err != nil {
		return "", err
	}
	name := p.CacheName()

	names, err := c.store.List(ctx)
	if err != nil {
		return "", err
	}
	if !slices.Contains(names, name) {
		return "", fmt.Errorf("%w: cache %s", storage.ErrNotFound, name)
	}
	if err := c.store.Delete(ctx, name); err != nil {
		return "", fmt.Errorf("delete cache %s: %w", name, err)
	}
	c.logger.Info("dropped embedding cache", "cache", name)
	return name, nil
}

// Close releases the store and the database.
func (c *Caches) Close() error {
	return errors.Join(c.store.Close(), c.backend.Close())
}
