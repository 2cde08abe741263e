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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "same content produces same ID", content: "delhi public school r k puram"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, IDFromContent(tt.content), IDFromContent(tt.content))
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	assert.NotEqual(t, IDFromContent("content1"), IDFromContent("content2"))
}

func TestKeySetDigest(t *testing.T) {
	a := KeySetDigest([]string{"b", "a", "c"})
	b := KeySetDigest([]string{"c", "b", "a", "a"})
	assert.Equal(t, a, b, "digest must ignore order and duplicates")

	assert.NotEqual(t, a, KeySetDigest([]string{"a", "b"}))
	// separator keeps "ab"+"c" distinct from "a"+"bc"
	assert.NotEqual(t, KeySetDigest([]string{"ab", "c"}), KeySetDigest([]string{"a", "bc"}))
}

func TestPartition_CacheName(t *testing.T) {
	tests := []struct {
		name      string
		partition Partition
		want      string
		isDefault bool
	}{
		{name: "default", partition: Partition{Dataset: "college"}, want: "college_embeddings", isDefault: true},
		{name: "option lowercased", partition: Partition{Dataset: "school", Value: "CBSE"}, want: "school_cbse_embeddings"},
		{name: "blank option is default", partition: Partition{Dataset: "major", Value: "  "}, want: "major_embeddings", isDefault: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.partition.CacheName())
			assert.Equal(t, tt.isDefault, tt.partition.IsDefault())
		})
	}
}

func TestMatch_Complete(t *testing.T) {
	assert.True(t, Match{Name: "Delhi Public School"}.Complete())
	assert.False(t, Match{Name: "  ", Score: 90}.Complete())
}

func TestEmbeddingCache_PutRemove(t *testing.T) {
	c := NewEmbeddingCache("school_embeddings", "test-model", 0)

	require.True(t, c.Put("a", []float32{1, 0}))
	require.True(t, c.Put("b", []float32{0, 1}))
	require.True(t, c.Put("c", []float32{1, 1}))
	assert.Equal(t, 2, c.Dimension())
	assert.False(t, c.Put("d", []float32{1, 2, 3}), "dimension mismatch must be rejected")

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	assert.Equal(t, []string{"b", "c"}, c.Keys())

	vec, ok := c.Vector("c")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 1}, vec)

	// overwrite keeps the count
	require.True(t, c.Put("b", []float32{2, 2}))
	assert.Equal(t, 2, c.Len())
	vec, _ = c.Vector("b")
	assert.Equal(t, []float32{2, 2}, vec)
}

func TestEmbeddingCache_CloneIsIndependent(t *testing.T) {
	c := NewEmbeddingCache("n", "m", 2)
	c.Put("a", []float32{1, 0})

	clone := c.Clone()
	clone.Put("b", []float32{0, 1})
	clone.Remove("a")

	assert.Equal(t, []string{"a"}, c.Keys())
	assert.Equal(t, []string{"b"}, clone.Keys())
}

func TestEmbeddingCache_Manifest(t *testing.T) {
	c := NewEmbeddingCache("n", "m", 2)
	c.Put("x", []float32{1, 0})
	c.Put("y", []float32{0, 1})

	m := c.Manifest()
	assert.Equal(t, "n", m.Name)
	assert.Equal(t, "m", m.Model)
	assert.Equal(t, 2, m.Dimension)
	assert.Equal(t, 2, m.Count)
	assert.Equal(t, KeySetDigest([]string{"y", "x"}), m.Digest)
}

func TestMergeCaches(t *testing.T) {
	a := NewEmbeddingCache("a", "m", 2)
	a.Put("one", []float32{1, 0})
	b := NewEmbeddingCache("b", "m", 2)
	b.Put("two", []float32{0, 1})
	odd := NewEmbeddingCache("odd", "m", 3)
	odd.Put("three", []float32{1, 1, 1})

	merged := MergeCaches("all", a, nil, b, odd)
	assert.Equal(t, "all", merged.Name())
	assert.Equal(t, []string{"one", "two"}, merged.Keys())

	empty := MergeCaches("none")
	assert.Equal(t, 0, empty.Len())
}
