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

package embedcache

import "errors"

var (
	// ErrEmbedderRequired indicates a Manager was created without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrStoreRequired indicates a Manager was created without a store.
	ErrStoreRequired = errors.New("embedding store is required")

	// ErrTableRequired indicates Reconcile was called without records.
	ErrTableRequired = errors.New("record table is required")

	// ErrDimensionMismatch indicates the embedder returned vectors of
	// differing or zero dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidMaxAttempts indicates maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be positive")

	// ErrInvalidConfig indicates a Config failed validation.
	ErrInvalidConfig = errors.New("invalid cache config")
)
