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

	"github.com/poiesic/refmatch/core"
	"github.com/poiesic/refmatch/normalize"
)

// Row is one canonical record as column name to raw value.
// Missing columns read as empty strings.
type Row map[string]string

// Project derives matcher-ready records from rows.
//
// With an address column the key is clean(name + " " + address); with an
// alias column it is clean(name + " " + alias); otherwise clean(name).
// Rows whose name is blank are skipped and logged.
func Project(schema Schema, rows []Row, logger *slog.Logger) (*Table, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	schema = schema.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "projector", "dataset", schema.Dataset)

	hasAddress := schema.HasAddress()
	hasAlias := schema.HasAlias()

	out := make([]*core.SearchableRecord, 0, len(rows))
	skipped := 0
	for i, row := range rows {
		rec := &core.SearchableRecord{
			Name:       row[schema.NameColumn],
			Attributes: make(map[string]string, len(schema.Columns)),
		}
		for _, col := range schema.Columns {
			rec.Attributes[col] = row[col]
		}

		keySource := rec.Name
		switch {
		case hasAddress:
			rec.Address = row[schema.AddressColumn]
			keySource = rec.Name + " " + rec.Address
		case hasAlias:
			rec.Alias = row[schema.AliasColumn]
			keySource = rec.Name + " " + rec.Alias
		}

		rec.NormalizedKey = normalize.Clean(keySource)
		rec.CleanName = normalize.StripPunctuation(rec.Name)
		rec.NameAbbr = normalize.Abbreviate(rec.CleanName)
		rec.AddressAbbr = normalize.Abbreviate(normalize.StripPunctuation(rec.Address))
		rec.FirstLetterCode = normalize.FirstLetterCode(rec.Name)
		rec.Id = core.IDFromContent(rec.NormalizedKey)

		if err := core.ValidateRecord(rec); err != nil {
			logger.Warn("skipping row", "row", i, "error", err)
			skipped++
			continue
		}
		out = append(out, rec)
	}

	if skipped > 0 {
		logger.Info("projected records", "records", len(out), "skipped", skipped)
	} else {
		logger.Debug("projected records", "records", len(out))
	}
	return newTable(schema, out), nil
}
