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
	"fmt"
	"strings"
)

// ValidateRecord validates a SearchableRecord according to domain rules.
//
// Validation rules:
//   - Name must not be blank
//   - NormalizedKey must not be empty
//
// NOT validated:
//   - Address and Alias (optional per dataset)
//   - Abbreviations (empty for names without letters)
func ValidateRecord(record *SearchableRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if strings.TrimSpace(record.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyName)
	}

	if record.NormalizedKey == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyKey)
	}

	return nil
}

// ValidatePartition checks that a partition yields a usable cache name.
// Cache names become storage keys and blob names, so separators are rejected.
func ValidatePartition(p Partition) error {
	if strings.TrimSpace(p.Dataset) == "" {
		return fmt.Errorf("%w: dataset is empty", ErrInvalidPartition)
	}
	if strings.ContainsAny(p.CacheName(), ":/\\") {
		return fmt.Errorf("%w: %q contains a separator", ErrInvalidPartition, p.CacheName())
	}
	return nil
}

// ValidateQueryEntry validates a QueryEntry before it is logged.
func ValidateQueryEntry(entry *QueryEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidQueryEntry)
	}
	if entry.Dataset == "" {
		return fmt.Errorf("%w: dataset is empty", ErrInvalidQueryEntry)
	}
	if entry.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is zero", ErrInvalidQueryEntry)
	}
	return nil
}
