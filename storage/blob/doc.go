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

// Package blob stores embedding caches as single compressed snapshot
// objects in a Bucket.
//
// A snapshot is the mus-encoded cache (see storage.MarshalSnapshot)
// compressed with zstd. Buckets are flat name-addressed object stores:
// LocalBucket writes files with an atomic rename, MemoryBucket keeps
// objects in memory for tests, and the minio subpackage targets any
// S3-compatible service.
//
// Patches are applied by rewriting the whole snapshot, so this store
// suits caches that are reconciled rarely and read once per process.
package blob
