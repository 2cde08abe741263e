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

package core

import (
	"encoding/binary"
	"slices"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// KeySetDigest returns an order-independent BLAKE2b digest of a set of keys.
// Duplicate keys are counted once.
func KeySetDigest(keys []string) uint64 {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	h, _ := blake2b.New(8, nil)
	for _, k := range sorted {
		h.Write([]byte(k))
		h.Write([]byte{0})
	}
	return binary.LittleEndian.Uint64(h.Sum(nil))
}

// SearchableRecord is a canonical row projected into matcher-ready form.
// Name, Address and Alias hold the raw column values; the remaining
// fields are derived by the projector.
type SearchableRecord struct {
	Id         ID
	Name       string
	Address    string
	Alias      string
	Attributes map[string]string // every schema column, raw

	NormalizedKey   string // cleaned "name address" or "name alias"
	CleanName       string // lowercased name with punctuation removed
	NameAbbr        string // initials of the name tokens, digits stripped
	AddressAbbr     string // initials of the address tokens, digits stripped
	FirstLetterCode rune   // first letter of the lowercased name, 0 if none
}

// Attribute returns the raw value of column and whether the record carries it.
func (r *SearchableRecord) Attribute(column string) (string, bool) {
	v, ok := r.Attributes[column]
	return v, ok
}

// Match is a single ranked search result.
type Match struct {
	Name    string  `json:"name"`
	Address string  `json:"address,omitempty"`
	Score   float64 `json:"score"`
}

// Complete reports whether the match carries a display name.
func (m Match) Complete() bool {
	return strings.TrimSpace(m.Name) != ""
}

// Partition identifies one embedding cache: a dataset optionally narrowed
// to a single value of its partition column (e.g. school/CBSE).
type Partition struct {
	Dataset string
	Value   string
}

// Option returns the lowercased partition value used in cache names.
func (p Partition) Option() string {
	return strings.ToLower(strings.TrimSpace(p.Value))
}

// IsDefault reports whether the partition spans the whole dataset.
func (p Partition) IsDefault() bool {
	return p.Option() == ""
}

// CacheName returns the persisted cache name, "{dataset}_{option}_embeddings"
// or "{dataset}_embeddings" for the default partition.
func (p Partition) CacheName() string {
	if p.IsDefault() {
		return p.Dataset + "_embeddings"
	}
	return p.Dataset + "_" + p.Option() + "_embeddings"
}

func (p Partition) String() string {
	if p.IsDefault() {
		return p.Dataset
	}
	return p.Dataset + "/" + p.Option()
}

// QueryEntry records one served search request.
type QueryEntry struct {
	Id        ID
	RequestID string
	Dataset   string
	Query     string
	Filters   map[string]string
	Subject   bool
	Strategy  string
	Results   int
	TopScore  float64
	Duration  time.Duration
	Timestamp time.Time
}
