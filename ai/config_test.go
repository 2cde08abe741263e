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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ProviderONNX, cfg.Provider)
	assert.Equal(t, "all-MiniLM-L6-v2", cfg.EmbeddingModel)
	assert.Equal(t, "KnightsAnalytics/all-MiniLM-L6-v2", cfg.ModelRepo)
	assert.Equal(t, 1024, cfg.QueryCacheSize)
	require.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with openai provider", func(t *testing.T) {
		cfg := NewConfig(
			WithProvider("OpenAI"),
			WithEmbeddingHost("http://embed:8080"),
			WithEmbeddingModel("text-embedding-3-small"),
		)
		require.NoError(t, cfg.Validate())
		assert.Equal(t, ProviderOpenAI, cfg.Provider)
		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
	})

	t.Run("with rate limit and cache", func(t *testing.T) {
		cfg := NewConfig(WithRateLimit(5, 0), WithQueryCacheSize(10))
		require.NoError(t, cfg.Validate())
		assert.Equal(t, 5.0, cfg.RequestsPerSecond)
		assert.Equal(t, 1, cfg.Burst, "burst is raised to one")
		assert.Equal(t, 10, cfg.QueryCacheSize)
	})
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"http://localhost:11434", "http://localhost:11434/v1"},
		{"http://localhost:11434/", "http://localhost:11434/v1"},
		{"http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.EmbeddingHost)
			assert.Equal(t, "none", cfg.APIToken)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing model", mutate: func(c *Config) { c.EmbeddingModel = "" }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "cohere" }, wantErr: true},
		{name: "openai without host", mutate: func(c *Config) { c.Provider = ProviderOpenAI; c.EmbeddingHost = "" }, wantErr: true},
		{name: "onnx without model dir", mutate: func(c *Config) { c.ModelDir = "" }, wantErr: true},
		{name: "negative rate", mutate: func(c *Config) { c.RequestsPerSecond = -1 }, wantErr: true},
		{name: "negative cache", mutate: func(c *Config) { c.QueryCacheSize = -1 }, wantErr: true},
		{name: "negative threads", mutate: func(c *Config) { c.Threads = -2 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Provider = "cohere"
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownProvider)
}
