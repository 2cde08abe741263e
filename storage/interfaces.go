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

package storage

import (
	"context"
	"fmt"

	"github.com/poiesic/refmatch/core"
)

// EmbeddingStore persists embedding caches by name.
// Implementations must be thread-safe and support concurrent access to
// different caches. Writes to a single cache are expected from one
// reconciler at a time.
type EmbeddingStore interface {
	// Load reads the named cache.
	// Returns ErrNotFound if it was never saved and ErrCorrupt if it cannot
	// be decoded or its entries disagree with its manifest.
	Load(ctx context.Context, name string) (*core.EmbeddingCache, error)

	// Save replaces the named cache with cache in full.
	Save(ctx context.Context, cache *core.EmbeddingCache) error

	// Patch applies incremental upserts and deletions to an existing cache.
	// Returns ErrNotFound if the cache does not exist and ErrModelMismatch
	// if the patch model differs from the persisted one.
	Patch(ctx context.Context, name string, patch *Patch) error

	// Delete removes the named cache. Deleting a missing cache is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all persisted caches in sorted order.
	List(ctx context.Context) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}

// QueryLog records served searches.
type QueryLog interface {
	// Append stores entries. Entries with ID=0 receive a sequence ID.
	// Returns the entries with IDs populated.
	Append(ctx context.Context, entries ...*core.QueryEntry) ([]*core.QueryEntry, error)

	// Recent returns up to limit entries, most recent first.
	Recent(ctx context.Context, limit int) ([]*core.QueryEntry, error)
}

// Patch is an incremental change to a persisted cache.
type Patch struct {
	Model   string
	Upserts map[string][]float32
	Deletes []string
}

// Empty reports whether the patch changes nothing.
func (p *Patch) Empty() bool {
	return p == nil || (len(p.Upserts) == 0 && len(p.Deletes) == 0)
}

// ApplyPatch applies p to cache in place.
func ApplyPatch(cache *core.EmbeddingCache, p *Patch) error {
	if p.Empty() {
		return nil
	}
	if p.Model != "" && cache.Model() != "" && p.Model != cache.Model() {
		return fmt.Errorf("%w: cache %s has %q, patch has %q", ErrModelMismatch, cache.Name(), cache.Model(), p.Model)
	}
	for _, k := range p.Deletes {
		cache.Remove(k)
	}
	for k, v := range p.Upserts {
		if !cache.Put(k, v) {
			return fmt.Errorf("%w: cache %s expects dimension %d, got %d for %q",
				ErrModelMismatch, cache.Name(), cache.Dimension(), len(v), k)
		}
	}
	return nil
}
