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

package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/poiesic/refmatch/records"

	_ "modernc.org/sqlite"
)

// SQLite reads rows with a fixed query. Result columns are matched to the
// required columns by name; NULL reads as empty.
type SQLite struct {
	db    *sql.DB
	query string
}

var _ Source = (*SQLite)(nil)

// OpenSQLite opens the database at path.
func OpenSQLite(path, query string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return NewSQLite(db, query), nil
}

// NewSQLite wraps an open database. Close closes db.
func NewSQLite(db *sql.DB, query string) *SQLite {
	return &SQLite{db: db, query: query}
}

func (s *SQLite) Rows(ctx context.Context, columns []string) ([]records.Row, error) {
	rs, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rs.Close()

	names, err := rs.Columns()
	if err != nil {
		return nil, err
	}
	idx, err := columnIndex(names, columns)
	if err != nil {
		return nil, err
	}

	values := make([]sql.NullString, len(names))
	dest := make([]any, len(names))
	for i := range values {
		dest[i] = &values[i]
	}

	var rows []records.Row
	for rs.Next() {
		if err := rs.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		row := make(records.Row, len(columns))
		for col, i := range idx {
			row[col] = values[i].String
		}
		rows = append(rows, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return rows, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
