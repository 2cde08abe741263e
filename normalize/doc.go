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

// Package normalize turns free-form institution and subject text into the
// canonical forms used as embedding keys and abbreviation seeds.
//
// Clean produces a normalized key: lowercased, accent-folded, stripped of
// punctuation, whitespace-collapsed, with runs of single-letter tokens
// joined ("d p s" becomes "dps"). Abbreviate reduces multi-token text to
// its initials. Both are pure and deterministic.
package normalize
