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

// Package storage provides the storage abstraction layer for refmatch.
//
// This package defines the interfaces that decouple persistence from the
// embedding cache manager and the search service, so different backends
// (BadgerDB, local snapshot files, an S3-compatible bucket) can be used
// interchangeably.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return the interface:
//
//	store, err := badger.NewEmbeddingStore(backend)  // returns storage.EmbeddingStore
//
// Internal helpers may return concrete types.
//
// # Interfaces
//
//   - EmbeddingStore: named embedding caches with full and incremental writes
//   - QueryLog: an append-only log of served searches
//
// # Serialization
//
// Manifests, vectors, cache snapshots and query entries are encoded with
// mus-go serializers. Decoding failures are reported as ErrCorrupt so
// callers can rebuild the affected cache.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
