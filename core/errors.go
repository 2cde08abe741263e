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

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates a SearchableRecord failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyName indicates the Name field is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrEmptyKey indicates the normalized key is empty.
	ErrEmptyKey = errors.New("normalized key cannot be empty")

	// ErrInvalidPartition indicates a Partition cannot be used to name a cache.
	ErrInvalidPartition = errors.New("invalid partition")

	// ErrInvalidQueryEntry indicates a QueryEntry failed validation.
	ErrInvalidQueryEntry = errors.New("invalid query entry")
)
