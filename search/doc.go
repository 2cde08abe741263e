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

// Package search routes free-text queries to the abbreviation and fuzzy
// matchers of one dataset.
//
// An Engine owns the dataset's record table and, through an
// embedcache.Manager, one embedding cache per partition. Caches are
// reconciled when the Engine is built, so searches never write.
//
// Routing looks only at token lengths:
//   - subject datasets always use the fuzzy matcher
//   - all tokens of at most AbbrCharLimit characters use abbreviations
//   - a single token of at most AbbrSingleWordThreshold characters uses abbreviations
//   - all tokens longer than AbbrCharLimit use the fuzzy matcher
//   - anything else runs both and boosts one side by HybridBonus
package search
