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

package ai

import (
	"context"
	"errors"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingEmbedder memoizes single-text embeddings in an LRU.
// Search traffic repeats queries; cache reconciliation goes through
// EmbedTexts and is never cached.
type CachingEmbedder struct {
	next   Embedder
	cache  *lru.Cache[string, []float32]
	hits   atomic.Int64
	misses atomic.Int64
}

var _ Embedder = (*CachingEmbedder)(nil)

// NewCachingEmbedder wraps next with an LRU of size entries.
func NewCachingEmbedder(next Embedder, size int) (*CachingEmbedder, error) {
	if next == nil {
		return nil, errors.New("embedder is required")
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachingEmbedder{next: next, cache: cache}, nil
}

// EmbedText returns the cached vector for text or computes and caches it.
func (c *CachingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		c.hits.Add(1)
		return vec, nil
	}
	c.misses.Add(1)
	vec, err := c.next.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, vec)
	return vec, nil
}

// EmbedTexts delegates without caching.
func (c *CachingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedTexts(ctx, texts)
}

// Model returns the wrapped embedder's model.
func (c *CachingEmbedder) Model() string {
	return c.next.Model()
}

// Stats returns the cache hit and miss counts.
func (c *CachingEmbedder) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
