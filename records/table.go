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
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/poiesic/refmatch/core"
)

// Table is an immutable, filterable collection of projected records.
// Filtering returns a new Table sharing the underlying records.
type Table struct {
	schema  Schema
	records []*core.SearchableRecord
	byKey   map[string][]*core.SearchableRecord
}

func newTable(schema Schema, recs []*core.SearchableRecord) *Table {
	t := &Table{
		schema:  schema,
		records: recs,
		byKey:   make(map[string][]*core.SearchableRecord, len(recs)),
	}
	for _, r := range recs {
		t.byKey[r.NormalizedKey] = append(t.byKey[r.NormalizedKey], r)
	}
	return t
}

// Schema returns the table's schema.
func (t *Table) Schema() Schema { return t.schema }

// Len returns the number of records.
func (t *Table) Len() int { return len(t.records) }

// Records returns the records in load order. The slice must not be modified.
func (t *Table) Records() []*core.SearchableRecord { return t.records }

// HasAddress reports whether the table's records carry addresses.
func (t *Table) HasAddress() bool { return t.schema.HasAddress() }

// HasColumn reports whether column can be filtered on.
func (t *Table) HasColumn(column string) bool { return t.schema.HasColumn(column) }

// Keys returns the distinct normalized keys in sorted order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.byKey))
	for k := range t.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the first record whose normalized key is key.
func (t *Table) Lookup(key string) (*core.SearchableRecord, bool) {
	recs := t.byKey[key]
	if len(recs) == 0 {
		return nil, false
	}
	return recs[0], true
}

// WithFirstLetter returns the records whose first letter code is code.
func (t *Table) WithFirstLetter(code rune) []*core.SearchableRecord {
	var out []*core.SearchableRecord
	for _, r := range t.records {
		if r.FirstLetterCode == code {
			out = append(out, r)
		}
	}
	return out
}

// Filter keeps the records whose attributes equal every filter value,
// compared case-insensitively. Filters on unknown columns are logged and
// ignored. A nil or empty filter returns t itself.
func (t *Table) Filter(filters map[string]string, logger *slog.Logger) *Table {
	if len(filters) == 0 {
		return t
	}
	if logger == nil {
		logger = slog.Default()
	}

	columns := make([]string, 0, len(filters))
	for col := range filters {
		if !t.schema.HasColumn(col) {
			logger.Warn("ignoring filter on unknown column",
				"component", "table", "dataset", t.schema.Dataset, "column", col)
			continue
		}
		columns = append(columns, col)
	}
	if len(columns) == 0 {
		return t
	}
	sort.Strings(columns)

	var kept []*core.SearchableRecord
	for _, r := range t.records {
		match := true
		for _, col := range columns {
			v, _ := r.Attribute(col)
			if !strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(filters[col])) {
				match = false
				break
			}
		}
		if match {
			kept = append(kept, r)
		}
	}
	return newTable(t.schema, kept)
}

// PartitionValues returns the distinct non-empty values of the schema's
// partition column, in sorted order. It returns nil for unpartitioned schemas.
func (t *Table) PartitionValues() []string {
	col := t.schema.PartitionColumn
	if col == "" {
		return nil
	}
	seen := make(map[string]string)
	for _, r := range t.records {
		v, _ := r.Attribute(col)
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		lower := strings.ToLower(v)
		if _, ok := seen[lower]; !ok {
			seen[lower] = v
		}
	}
	out := make([]string, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return out
}
