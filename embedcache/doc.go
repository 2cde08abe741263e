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

// Package embedcache keeps persisted embedding caches in step with the
// canonical records they index.
//
// A Manager reconciles one partition at a time: it loads the persisted
// cache, compares its key set with the current normalized keys, embeds
// whatever is missing and persists the result. Within one pass a
// reconciliation either adds missing keys or deletes stale ones, never
// both; stale keys left behind by an adding pass are removed by the next
// pass and are skipped by the fuzzy matcher in the meantime.
//
// A cache that cannot be decoded, or that was produced by a different
// model, is regenerated from scratch.
//
// Embedding runs in batches on an ants worker pool with retry and
// exponential backoff. Vectors are L2-normalized before they are stored.
package embedcache
