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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder returns a one-element vector holding the text length.
type countingEmbedder struct {
	calls atomic.Int64
}

func (c *countingEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return []float32{float32(len(text))}, nil
}

func (c *countingEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (c *countingEmbedder) Model() string { return "counting" }

func TestCachingEmbedder(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachingEmbedder(inner, 2)
	require.NoError(t, err)
	ctx := context.Background()

	v1, err := cached.EmbedText(ctx, "dps")
	require.NoError(t, err)
	v2, err := cached.EmbedText(ctx, "dps")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(1), inner.calls.Load())

	hits, misses := cached.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	// evict "dps"
	_, _ = cached.EmbedText(ctx, "a")
	_, _ = cached.EmbedText(ctx, "b")
	_, _ = cached.EmbedText(ctx, "dps")
	assert.Equal(t, int64(4), inner.calls.Load())

	// batches bypass the cache
	_, err = cached.EmbedTexts(ctx, []string{"dps", "dps"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), inner.calls.Load())
	assert.Equal(t, "counting", cached.Model())
}

func TestNewCachingEmbedder_Invalid(t *testing.T) {
	_, err := NewCachingEmbedder(nil, 10)
	assert.Error(t, err)
	_, err = NewCachingEmbedder(&countingEmbedder{}, 0)
	assert.Error(t, err)
}

func TestRateLimitedEmbedder(t *testing.T) {
	inner := &countingEmbedder{}
	limited := NewRateLimitedEmbedder(inner, 1000, 1)

	for range 3 {
		_, err := limited.EmbedText(context.Background(), "x")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), inner.calls.Load())
	assert.Equal(t, "counting", limited.Model())
}

func TestRateLimitedEmbedder_ContextCanceled(t *testing.T) {
	limited := NewRateLimitedEmbedder(&countingEmbedder{}, 0.001, 1)
	// drain the single token
	_, err := limited.EmbedTexts(context.Background(), []string{"x"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limited.EmbedText(ctx, "x")
	assert.Error(t, err)
}

func TestWrap(t *testing.T) {
	inner := &countingEmbedder{}

	e, err := Wrap(inner, &Config{})
	require.NoError(t, err)
	assert.Same(t, Embedder(inner), e)

	e, err = Wrap(inner, &Config{RequestsPerSecond: 10, Burst: 2, QueryCacheSize: 8})
	require.NoError(t, err)
	cached, ok := e.(*CachingEmbedder)
	require.True(t, ok)
	_, ok = cached.next.(*RateLimitedEmbedder)
	assert.True(t, ok)
}
