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

// Wrap layers the rate limiter and query cache described by config
// around e. The limiter sits inside the cache so cache hits are free.
func Wrap(e Embedder, config *Config) (Embedder, error) {
	if config.RequestsPerSecond > 0 {
		e = NewRateLimitedEmbedder(e, config.RequestsPerSecond, config.Burst)
	}
	if config.QueryCacheSize > 0 {
		cached, err := NewCachingEmbedder(e, config.QueryCacheSize)
		if err != nil {
			return nil, err
		}
		e = cached
	}
	return e, nil
}
