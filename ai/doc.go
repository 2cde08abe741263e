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

// Package ai provides the embedding abstractions used by refmatch.
//
// The Embedder interface turns normalized keys and queries into vectors.
// Everything that compares vectors (the cache manager, the fuzzy matcher)
// depends on this interface, never on a concrete backend.
//
// # Implementation Packages
//
//   - ai/onnx: local sentence-transformer inference through ONNX Runtime
//   - ai/openai: OpenAI-compatible embedding APIs (Ollama, vLLM, OpenAI)
//   - ai/mock: deterministic test doubles
//
// # Decorators
//
// CachingEmbedder keeps recent query embeddings in an LRU and
// RateLimitedEmbedder throttles calls to a remote backend. Wrap applies
// both according to a Config.
//
// # Constructor Return Type Pattern
//
// Public constructors in the implementation packages return interface
// types (ai.AIProvider, ai.Embedder). Test constructors in ai/mock return
// concrete types so tests can inject behavior and read call counts:
//
//	provider, err := onnx.NewProvider(config)  // returns ai.AIProvider
//	mockEmbed := mock.NewMockEmbedder()        // returns *mock.MockEmbedder
//
// # Thread Safety
//
// All Embedder implementations must be safe for concurrent use; the cache
// manager embeds batches from a worker pool.
package ai
