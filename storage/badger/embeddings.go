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

package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/refmatch/core"
	"github.com/poiesic/refmatch/storage"
)

// EmbeddingStore keeps each cache as one manifest key plus one key per
// entry. The manifest is removed before entries change and written last,
// so an interrupted write reads back as a missing cache.
type EmbeddingStore struct {
	backend *Backend
}

var _ storage.EmbeddingStore = (*EmbeddingStore)(nil)

// NewEmbeddingStore creates an EmbeddingStore on backend.
// Closing the store does not close the backend.
func NewEmbeddingStore(backend *Backend) (storage.EmbeddingStore, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	return &EmbeddingStore{backend: backend}, nil
}

// Close is a no-op; the backend is owned by the caller.
func (s *EmbeddingStore) Close() error {
	return nil
}

// Load reads the named cache and verifies it against its manifest.
func (s *EmbeddingStore) Load(ctx context.Context, name string) (*core.EmbeddingCache, error) {
	if s.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var cache *core.EmbeddingCache
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		m, err := readManifest(tx, name)
		if err != nil {
			return err
		}

		cache = core.NewEmbeddingCache(name, m.Model, m.Dimension)
		cache.SetUpdatedAt(m.UpdatedAt)

		prefix := makeEntryPrefix(name)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			key := string(item.Key()[len(prefix):])

			var vec []float32
			if err := item.Value(func(val []byte) error {
				var err error
				vec, err = storage.UnmarshalVector(val)
				return err
			}); err != nil {
				return fmt.Errorf("entry %q: %w", key, err)
			}
			if !cache.Put(key, vec) {
				return fmt.Errorf("%w: entry %q has dimension %d, manifest says %d",
					storage.ErrCorrupt, key, len(vec), m.Dimension)
			}
		}
		return storage.VerifyManifest(cache, m)
	}, false)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return cache, nil
}

// Save replaces the named cache with cache.
func (s *EmbeddingStore) Save(ctx context.Context, cache *core.EmbeddingCache) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	name := cache.Name()

	if err := s.deleteManifest(name); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}

	existing, err := s.entryKeys(name)
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}

	err = s.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, k := range existing {
			if cache.Contains(k) {
				continue
			}
			if err := wb.Delete(makeEntryKey(name, k)); err != nil {
				return err
			}
		}
		var err error
		cache.Each(func(k string, vec []float32) bool {
			if err = ctx.Err(); err != nil {
				return false
			}
			err = wb.Set(makeEntryKey(name, k), storage.MarshalVector(vec))
			return err == nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}

	m := cache.Manifest()
	m.UpdatedAt = time.Now().UTC()
	if err := s.putManifest(m); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// Patch applies upserts and deletions to an existing cache.
func (s *EmbeddingStore) Patch(ctx context.Context, name string, patch *storage.Patch) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if patch.Empty() {
		return nil
	}

	var m core.Manifest
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		m, err = readManifest(tx, name)
		return err
	}, false)
	if err != nil {
		return fmt.Errorf("patch %s: %w", name, err)
	}

	if patch.Model != "" && patch.Model != m.Model {
		return fmt.Errorf("patch %s: %w: cache has %q, patch has %q", name, storage.ErrModelMismatch, m.Model, patch.Model)
	}
	for k, vec := range patch.Upserts {
		if m.Dimension == 0 {
			m.Dimension = len(vec)
		}
		if len(vec) != m.Dimension {
			return fmt.Errorf("patch %s: %w: %q has dimension %d, cache has %d",
				name, storage.ErrModelMismatch, k, len(vec), m.Dimension)
		}
	}

	if err := s.deleteManifest(name); err != nil {
		return fmt.Errorf("patch %s: %w", name, err)
	}

	err = s.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, k := range patch.Deletes {
			if err := wb.Delete(makeEntryKey(name, k)); err != nil {
				return err
			}
		}
		for k, vec := range patch.Upserts {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := wb.Set(makeEntryKey(name, k), storage.MarshalVector(vec)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("patch %s: %w", name, err)
	}

	keys, err := s.entryKeys(name)
	if err != nil {
		return fmt.Errorf("patch %s: %w", name, err)
	}
	m.Count = len(keys)
	m.Digest = core.KeySetDigest(keys)
	m.UpdatedAt = time.Now().UTC()
	if err := s.putManifest(m); err != nil {
		return fmt.Errorf("patch %s: %w", name, err)
	}
	return nil
}

// Delete removes the named cache and all of its entries.
func (s *EmbeddingStore) Delete(ctx context.Context, name string) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if err := s.deleteManifest(name); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	keys, err := s.entryKeys(name)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return s.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, k := range keys {
			if err := wb.Delete(makeEntryKey(name, k)); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns the names of all caches with a manifest.
func (s *EmbeddingStore) List(ctx context.Context) ([]string, error) {
	if s.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	prefix := []byte(embeddingCachePrefix + ":")
	suffix := []byte(":m")

	var names []string
	err := s.backend.ScanKeys(prefix, func(key []byte) error {
		rest := key[len(prefix):]
		i := bytes.IndexByte(rest, ':')
		if i < 0 || !bytes.Equal(rest[i:], suffix) {
			return nil
		}
		names = append(names, string(rest[:i]))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (s *EmbeddingStore) entryKeys(name string) ([]string, error) {
	prefix := makeEntryPrefix(name)
	var keys []string
	err := s.backend.ScanKeys(prefix, func(key []byte) error {
		keys = append(keys, string(key[len(prefix):]))
		return nil
	})
	return keys, err
}

func (s *EmbeddingStore) putManifest(m core.Manifest) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeManifestKey(m.Name), storage.MarshalManifest(m)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

func (s *EmbeddingStore) deleteManifest(name string) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeManifestKey(name)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// readManifest reads a cache manifest within a transaction.
// Returns storage.ErrNotFound if the cache has no manifest.
func readManifest(tx *badger.Txn, name string) (core.Manifest, error) {
	var m core.Manifest
	item, err := tx.Get(makeManifestKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return m, storage.ErrNotFound
	}
	if err != nil {
		return m, err
	}
	err = item.Value(func(val []byte) error {
		var err error
		m, err = storage.UnmarshalManifest(val)
		return err
	})
	return m, err
}
