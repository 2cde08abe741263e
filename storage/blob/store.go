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

package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/poiesic/refmatch/core"
	"github.com/poiesic/refmatch/storage"
)

// snapshotSuffix is appended to cache names to form object names.
const snapshotSuffix = ".snap.zst"

// Store implements storage.EmbeddingStore with one zstd-compressed
// snapshot object per cache.
type Store struct {
	bucket  Bucket
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu     sync.Mutex // serializes read-modify-write patches
	closed bool
}

var _ storage.EmbeddingStore = (*Store)(nil)

// NewStore creates a snapshot store on bucket.
func NewStore(bucket Bucket) (storage.EmbeddingStore, error) {
	if bucket == nil {
		return nil, errors.New("bucket is required")
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &Store{bucket: bucket, encoder: enc, decoder: dec}, nil
}

func objectName(cacheName string) string {
	return cacheName + snapshotSuffix
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the zstd coders.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.decoder.Close()
	return s.encoder.Close()
}

// Load fetches, decompresses and verifies the named snapshot.
func (s *Store) Load(ctx context.Context, name string) (*core.EmbeddingCache, error) {
	if s.isClosed() {
		return nil, storage.ErrStorageClosed
	}
	return s.load(ctx, name)
}

func (s *Store) load(ctx context.Context, name string) (*core.EmbeddingCache, error) {
	data, err := s.bucket.Get(ctx, objectName(name))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	raw, err := s.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w: %w", name, storage.ErrCorrupt, err)
	}
	cache, err := storage.UnmarshalSnapshot(raw)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	if cache.Name() != name {
		return nil, fmt.Errorf("load %s: %w: snapshot is named %q", name, storage.ErrCorrupt, cache.Name())
	}
	return cache, nil
}

// Save writes the whole cache as a new snapshot.
func (s *Store) Save(ctx context.Context, cache *core.EmbeddingCache) error {
	if s.isClosed() {
		return storage.ErrStorageClosed
	}
	return s.save(ctx, cache)
}

func (s *Store) save(ctx context.Context, cache *core.EmbeddingCache) error {
	stamped := cache.Clone()
	stamped.SetUpdatedAt(time.Now().UTC())
	data := s.encoder.EncodeAll(storage.MarshalSnapshot(stamped), nil)
	if err := s.bucket.Put(ctx, objectName(cache.Name()), data); err != nil {
		return fmt.Errorf("save %s: %w", cache.Name(), err)
	}
	return nil
}

// Patch loads the snapshot, applies patch and writes it back.
func (s *Store) Patch(ctx context.Context, name string, patch *storage.Patch) error {
	if s.isClosed() {
		return storage.ErrStorageClosed
	}
	if patch.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cache, err := s.load(ctx, name)
	if err != nil {
		return err
	}
	if err := storage.ApplyPatch(cache, patch); err != nil {
		return fmt.Errorf("patch %s: %w", name, err)
	}
	return s.save(ctx, cache)
}

// Delete removes the named snapshot.
func (s *Store) Delete(ctx context.Context, name string) error {
	if s.isClosed() {
		return storage.ErrStorageClosed
	}
	return s.bucket.Delete(ctx, objectName(name))
}

// List returns the names of all snapshots in the bucket.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if s.isClosed() {
		return nil, storage.ErrStorageClosed
	}
	objects, err := s.bucket.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, o := range objects {
		if name, ok := strings.CutSuffix(o, snapshotSuffix); ok {
			names = append(names, name)
		}
	}
	return names, nil
}
