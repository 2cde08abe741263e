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
	"slices"
	"time"
)

// Manifest describes a persisted embedding cache. Count and Digest cover
// the key set so a reader can detect a cache that no longer matches its
// entries.
type Manifest struct {
	Name      string
	Model     string
	Dimension int
	Count     int
	Digest    uint64
	UpdatedAt time.Time
}

// EmbeddingCache maps normalized keys to embedding vectors for one partition.
// All vectors share the same dimension and were produced by the same model.
//
// An EmbeddingCache is not safe for concurrent mutation. Caches handed out
// for searching are treated as read-only.
type EmbeddingCache struct {
	name      string
	model     string
	dimension int
	keys      []string
	vectors   [][]float32
	index     map[string]int
	updatedAt time.Time
}

// NewEmbeddingCache creates an empty cache. A zero dimension is fixed by
// the first vector stored.
func NewEmbeddingCache(name, model string, dimension int) *EmbeddingCache {
	return &EmbeddingCache{
		name:      name,
		model:     model,
		dimension: dimension,
		index:     make(map[string]int),
	}
}

func (c *EmbeddingCache) Name() string         { return c.name }
func (c *EmbeddingCache) Model() string        { return c.model }
func (c *EmbeddingCache) Dimension() int       { return c.dimension }
func (c *EmbeddingCache) Len() int             { return len(c.keys) }
func (c *EmbeddingCache) UpdatedAt() time.Time { return c.updatedAt }

// SetUpdatedAt stamps the cache with its last persisted modification time.
func (c *EmbeddingCache) SetUpdatedAt(t time.Time) { c.updatedAt = t }

// Put stores vec under key, replacing any previous vector. It returns false
// when the vector dimension disagrees with the cache.
func (c *EmbeddingCache) Put(key string, vec []float32) bool {
	if c.dimension == 0 {
		c.dimension = len(vec)
	}
	if len(vec) != c.dimension {
		return false
	}
	if i, ok := c.index[key]; ok {
		c.vectors[i] = vec
		return true
	}
	c.index[key] = len(c.keys)
	c.keys = append(c.keys, key)
	c.vectors = append(c.vectors, vec)
	return true
}

// Remove deletes key and reports whether it was present.
func (c *EmbeddingCache) Remove(key string) bool {
	i, ok := c.index[key]
	if !ok {
		return false
	}
	last := len(c.keys) - 1
	if i != last {
		c.keys[i] = c.keys[last]
		c.vectors[i] = c.vectors[last]
		c.index[c.keys[i]] = i
	}
	c.keys = c.keys[:last]
	c.vectors = c.vectors[:last]
	delete(c.index, key)
	return true
}

// Vector returns the vector stored under key.
func (c *EmbeddingCache) Vector(key string) ([]float32, bool) {
	i, ok := c.index[key]
	if !ok {
		return nil, false
	}
	return c.vectors[i], true
}

// Contains reports whether key is cached.
func (c *EmbeddingCache) Contains(key string) bool {
	_, ok := c.index[key]
	return ok
}

// Keys returns the cached keys in sorted order.
func (c *EmbeddingCache) Keys() []string {
	keys := slices.Clone(c.keys)
	slices.Sort(keys)
	return keys
}

// Each calls fn for every entry until fn returns false.
func (c *EmbeddingCache) Each(fn func(key string, vec []float32) bool) {
	for i, k := range c.keys {
		if !fn(k, c.vectors[i]) {
			return
		}
	}
}

// Clone returns a copy whose key set can be modified independently.
// Vectors are shared.
func (c *EmbeddingCache) Clone() *EmbeddingCache {
	out := NewEmbeddingCache(c.name, c.model, c.dimension)
	out.keys = slices.Clone(c.keys)
	out.vectors = slices.Clone(c.vectors)
	for k, v := range c.index {
		out.index[k] = v
	}
	out.updatedAt = c.updatedAt
	return out
}

// Manifest summarizes the cache for persistence.
func (c *EmbeddingCache) Manifest() Manifest {
	return Manifest{
		Name:      c.name,
		Model:     c.model,
		Dimension: c.dimension,
		Count:     len(c.keys),
		Digest:    KeySetDigest(c.keys),
		UpdatedAt: c.updatedAt,
	}
}

// MergeCaches combines caches sharing a model into one read-only view
// named name. Later caches win on duplicate keys. Caches whose dimension
// disagrees with the first non-empty cache are skipped.
func MergeCaches(name string, caches ...*EmbeddingCache) *EmbeddingCache {
	var out *EmbeddingCache
	for _, c := range caches {
		if c == nil {
			continue
		}
		if out == nil {
			out = NewEmbeddingCache(name, c.model, c.dimension)
		}
		if c.Len() > 0 && out.dimension != 0 && c.dimension != out.dimension {
			continue
		}
		c.Each(func(k string, v []float32) bool {
			out.Put(k, v)
			return true
		})
	}
	if out == nil {
		out = NewEmbeddingCache(name, "", 0)
	}
	return out
}
