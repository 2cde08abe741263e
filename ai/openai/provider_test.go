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

package openai

import (
	"testing"

	"github.com/poiesic/refmatch/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	cfg := ai.NewConfig(
		ai.WithProvider(ai.ProviderOpenAI),
		ai.WithEmbeddingHost("http://localhost:11434"),
		ai.WithEmbeddingModel("nomic-embed-text"),
	)

	provider, err := NewProvider(cfg)
	require.NoError(t, err)
	defer provider.Close()

	assert.Equal(t, "nomic-embed-text", provider.Embedder().Model())
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost, "host is normalized")
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	cfg := ai.NewConfig(ai.WithProvider(ai.ProviderOpenAI), ai.WithEmbeddingModel(""))
	_, err := NewProvider(cfg)
	assert.Error(t, err)
}
