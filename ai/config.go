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
	"errors"
	"fmt"
	"strings"
)

// Supported providers.
const (
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
)

// Config holds configuration for embedding providers.
type Config struct {
	// Provider selects the backend: "onnx" runs a local sentence-transformer
	// through ONNX Runtime, "openai" calls an OpenAI-compatible API.
	Provider string `yaml:"provider"`

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string `yaml:"embedding_host"`

	// EmbeddingModel is the model identifier used for embeddings and
	// recorded in cache manifests.
	// Example: "all-MiniLM-L6-v2", "text-embedding-3-small"
	EmbeddingModel string `yaml:"embedding_model"`

	// APIToken authenticates against the embedding API. Local servers
	// accept "none".
	APIToken string `yaml:"api_token"`

	// ModelRepo is the HuggingFace repository downloaded when ModelDir
	// holds no model yet (onnx only).
	ModelRepo string `yaml:"model_repo"`

	// ModelDir caches downloaded ONNX models.
	ModelDir string `yaml:"model_dir"`

	// OnnxLibraryPath points at the onnxruntime shared library. Empty uses
	// the system default.
	OnnxLibraryPath string `yaml:"onnx_library_path"`

	// Threads bounds ONNX intra-op parallelism. Zero uses all CPUs.
	Threads int `yaml:"threads"`

	// RequestsPerSecond limits calls to the embedding backend. Zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the rate limiter's bucket size.
	// Default: 1
	Burst int `yaml:"burst"`

	// QueryCacheSize is the number of query embeddings kept in an LRU.
	// Zero disables the cache.
	QueryCacheSize int `yaml:"query_cache_size"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider selects the embedding backend.
func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithModelDir sets the local model cache directory.
func WithModelDir(dir string) ConfigOption {
	return func(c *Config) {
		c.ModelDir = dir
	}
}

// WithRateLimit limits backend calls to rps per second with the given burst.
func WithRateLimit(rps float64, burst int) ConfigOption {
	return func(c *Config) {
		c.RequestsPerSecond = rps
		c.Burst = burst
	}
}

// WithQueryCacheSize sets the number of cached query embeddings.
func WithQueryCacheSize(size int) ConfigOption {
	return func(c *Config) {
		c.QueryCacheSize = size
	}
}

// DefaultConfig returns a Config that runs all-MiniLM-L6-v2 locally.
func DefaultConfig() *Config {
	return &Config{
		Provider:       ProviderONNX,
		EmbeddingHost:  "http://localhost:11434/v1",
		EmbeddingModel: "all-MiniLM-L6-v2",
		APIToken:       "none",
		ModelRepo:      "KnightsAnalytics/all-MiniLM-L6-v2",
		ModelDir:       "./models",
		Burst:          1,
		QueryCacheSize: 1024,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithProvider(ProviderOpenAI),
//	    WithEmbeddingHost("http://localhost:11434"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It lowercases the provider and adds the /v1 suffix to the host if
// missing, which is required by most OpenAI-compatible APIs (Ollama,
// LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/") + "/v1"
	}
	if c.APIToken == "" {
		c.APIToken = "none"
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	switch c.Provider {
	case ProviderOpenAI:
		if c.EmbeddingHost == "" {
			return errors.New("ai config: EmbeddingHost is required")
		}
	case ProviderONNX:
		if c.ModelDir == "" {
			return errors.New("ai config: ModelDir is required")
		}
	default:
		return fmt.Errorf("ai config: %w: %q", ErrUnknownProvider, c.Provider)
	}
	if c.RequestsPerSecond < 0 {
		return errors.New("ai config: RequestsPerSecond cannot be negative")
	}
	if c.QueryCacheSize < 0 {
		return errors.New("ai config: QueryCacheSize cannot be negative")
	}
	if c.Threads < 0 {
		return errors.New("ai config: Threads cannot be negative")
	}
	return nil
}
