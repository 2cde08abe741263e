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

// Package source reads the canonical records of a dataset from CSV files
// or SQLite databases.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/refmatch/config"
	"github.com/poiesic/refmatch/records"
)

var (
	// ErrMissingColumn indicates a source lacks a required column.
	ErrMissingColumn = errors.New("missing column")

	// ErrUnknownSource indicates an unsupported source type.
	ErrUnknownSource = errors.New("unknown source type")
)

// Source returns the rows of one dataset projected onto columns.
type Source interface {
	Rows(ctx context.Context, columns []string) ([]records.Row, error)
	Close() error
}

// Open creates the source described by cfg.
func Open(cfg config.Source) (Source, error) {
	switch strings.ToLower(cfg.Type) {
	case config.SourceCSV:
		return NewCSV(cfg.Path), nil
	case config.SourceSQLite:
		return OpenSQLite(cfg.Path, cfg.Query)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, cfg.Type)
	}
}

// Static serves a fixed set of rows.
type Static []records.Row

// Rows returns the rows restricted to columns. A row missing a column reads
// it as empty.
func (s Static) Rows(_ context.Context, columns []string) ([]records.Row, error) {
	out := make([]records.Row, 0, len(s))
	for _, r := range s {
		row := make(records.Row, len(columns))
		for _, c := range columns {
			row[c] = r[c]
		}
		out = append(out, row)
	}
	return out, nil
}

func (s Static) Close() error { return nil }

// columnIndex maps each required column to its position in header.
func columnIndex(header, columns []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(h)] = i
	}
	idx := make(map[string]int, len(columns))
	for _, c := range columns {
		i, ok := pos[c]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, c)
		}
		idx[c] = i
	}
	return idx, nil
}
