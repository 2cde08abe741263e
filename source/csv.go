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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/poiesic/refmatch/records"
)

// CSV reads rows from a CSV file whose first line names the columns.
type CSV struct {
	path string
}

var _ Source = (*CSV)(nil)

// NewCSV creates a CSV source. The file is read on every Rows call.
func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

func (c *CSV) Rows(ctx context.Context, columns []string) ([]records.Row, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", c.path, err)
	}
	if len(header) > 0 {
		// tolerate a UTF-8 byte order mark
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	idx, err := columnIndex(header, columns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.path, err)
	}

	var rows []records.Row
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", c.path, err)
		}
		row := make(records.Row, len(columns))
		for col, i := range idx {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *CSV) Close() error { return nil }
