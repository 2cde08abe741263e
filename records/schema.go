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

package records

import (
	"errors"
	"fmt"
	"slices"
)

// Default column names.
const (
	DefaultNameColumn    = "name"
	DefaultAddressColumn = "address"
	DefaultAliasColumn   = "alias"
)

// ErrInvalidSchema indicates a Schema cannot describe a dataset.
var ErrInvalidSchema = errors.New("invalid schema")

// Schema describes the columns of one searchable dataset.
type Schema struct {
	Dataset string
	// Columns lists the required columns of each row.
	Columns []string

	NameColumn    string
	AddressColumn string
	AliasColumn   string

	// PartitionColumn, when set, splits the dataset into one embedding
	// cache per distinct value (e.g. a school curriculum).
	PartitionColumn string

	// Subject marks datasets that are always matched semantically.
	Subject bool
}

// WithDefaults returns a copy of s with empty column names defaulted.
func (s Schema) WithDefaults() Schema {
	if s.NameColumn == "" {
		s.NameColumn = DefaultNameColumn
	}
	if s.AddressColumn == "" {
		s.AddressColumn = DefaultAddressColumn
	}
	if s.AliasColumn == "" {
		s.AliasColumn = DefaultAliasColumn
	}
	s.Columns = slices.Clone(s.Columns)
	return s
}

// Validate checks that the schema names a dataset and includes its name column.
func (s Schema) Validate() error {
	s = s.WithDefaults()
	if s.Dataset == "" {
		return fmt.Errorf("%w: dataset is empty", ErrInvalidSchema)
	}
	if !s.HasColumn(s.NameColumn) {
		return fmt.Errorf("%w: %s: columns must include %q", ErrInvalidSchema, s.Dataset, s.NameColumn)
	}
	if s.PartitionColumn != "" && !s.HasColumn(s.PartitionColumn) {
		return fmt.Errorf("%w: %s: partition column %q is not a column", ErrInvalidSchema, s.Dataset, s.PartitionColumn)
	}
	return nil
}

// HasColumn reports whether column is one of the schema's columns.
func (s Schema) HasColumn(column string) bool {
	return slices.Contains(s.Columns, column)
}

// HasAddress reports whether rows carry an address.
func (s Schema) HasAddress() bool {
	return s.HasColumn(s.WithDefaults().AddressColumn)
}

// HasAlias reports whether rows carry an alias.
func (s Schema) HasAlias() bool {
	return s.HasColumn(s.WithDefaults().AliasColumn)
}
