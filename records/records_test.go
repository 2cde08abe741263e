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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schoolSchema() Schema {
	return Schema{
		Dataset:         "school",
		Columns:         []string{"name", "address", "curriculum"},
		PartitionColumn: "curriculum",
	}
}

func schoolRows() []Row {
	return []Row{
		{"name": "Delhi Public School", "address": "R. K. Puram", "curriculum": "CBSE"},
		{"name": "Delhi Public School", "address": "Noida Sector 30", "curriculum": "CBSE"},
		{"name": "St. Xavier's School", "address": "Civil Lines", "curriculum": "ICSE"},
		{"name": "  ", "address": "Nowhere", "curriculum": "CBSE"},
	}
}

func TestSchema_Validate(t *testing.T) {
	assert.NoError(t, schoolSchema().Validate())
	assert.ErrorIs(t, Schema{Columns: []string{"name"}}.Validate(), ErrInvalidSchema)
	assert.ErrorIs(t, Schema{Dataset: "x", Columns: []string{"title"}}.Validate(), ErrInvalidSchema)
	assert.ErrorIs(t, Schema{Dataset: "x", Columns: []string{"name"}, PartitionColumn: "board"}.Validate(), ErrInvalidSchema)
}

func TestProject_AddressDataset(t *testing.T) {
	table, err := Project(schoolSchema(), schoolRows(), nil)
	require.NoError(t, err)
	require.Equal(t, 3, table.Len(), "blank-name row must be skipped")

	rec := table.Records()[0]
	assert.Equal(t, "delhi public school rk puram", rec.NormalizedKey)
	assert.Equal(t, "delhi public school", rec.CleanName)
	assert.Equal(t, "dps", rec.NameAbbr)
	assert.Equal(t, "rkp", rec.AddressAbbr)
	assert.Equal(t, 'd', rec.FirstLetterCode)
	assert.Equal(t, "R. K. Puram", rec.Address)
	assert.Equal(t, "CBSE", rec.Attributes["curriculum"])

	noida := table.Records()[1]
	assert.Equal(t, "ns", noida.AddressAbbr, "digits are stripped from abbreviations")
}

func TestProject_AliasDataset(t *testing.T) {
	schema := Schema{Dataset: "subject", Columns: []string{"name", "alias"}, Subject: true}
	rows := []Row{
		{"name": "Physics", "alias": "Phy"},
		{"name": "Mathematics"},
	}

	table, err := Project(schema, rows, nil)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "physics phy", table.Records()[0].NormalizedKey)
	assert.Equal(t, "mathematics", table.Records()[1].NormalizedKey)
	assert.False(t, table.HasAddress())
}

func TestProject_NameOnlyDataset(t *testing.T) {
	table, err := Project(Schema{Dataset: "major", Columns: []string{"name"}}, []Row{{"name": "Computer Science"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"computer science"}, table.Keys())
}

func TestTable_Lookup(t *testing.T) {
	table, err := Project(schoolSchema(), schoolRows(), nil)
	require.NoError(t, err)

	rec, ok := table.Lookup("st xaviers school civil lines")
	require.True(t, ok)
	assert.Equal(t, "St. Xavier's School", rec.Name)

	_, ok = table.Lookup("missing")
	assert.False(t, ok)
}

func TestTable_Filter(t *testing.T) {
	table, err := Project(schoolSchema(), schoolRows(), nil)
	require.NoError(t, err)

	t.Run("case insensitive", func(t *testing.T) {
		cbse := table.Filter(map[string]string{"curriculum": "cbse"}, nil)
		assert.Equal(t, 2, cbse.Len())
	})

	t.Run("unknown column ignored", func(t *testing.T) {
		same := table.Filter(map[string]string{"board": "state"}, nil)
		assert.Equal(t, table.Len(), same.Len())
	})

	t.Run("mixed known and unknown", func(t *testing.T) {
		icse := table.Filter(map[string]string{"board": "x", "curriculum": "ICSE"}, nil)
		require.Equal(t, 1, icse.Len())
		assert.Equal(t, "St. Xavier's School", icse.Records()[0].Name)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Equal(t, 0, table.Filter(map[string]string{"curriculum": "IB"}, nil).Len())
	})
}

func TestTable_PartitionValues(t *testing.T) {
	table, err := Project(schoolSchema(), schoolRows(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"CBSE", "ICSE"}, table.PartitionValues())

	plain, err := Project(Schema{Dataset: "major", Columns: []string{"name"}}, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, plain.PartitionValues())
}

func TestTable_WithFirstLetter(t *testing.T) {
	table, err := Project(schoolSchema(), schoolRows(), nil)
	require.NoError(t, err)
	assert.Len(t, table.WithFirstLetter('d'), 2)
	assert.Len(t, table.WithFirstLetter('s'), 1)
	assert.Empty(t, table.WithFirstLetter('z'))
}

func TestCommonWords(t *testing.T) {
	schema := Schema{Dataset: "school", Columns: []string{"name"}}
	rows := []Row{
		{"name": "Govt Sr Sec School"},
		{"name": "Govt Boys Sr Sec School"},
		{"name": "Govt Girls School"},
		{"name": "A B School"},
	}
	table, err := Project(schema, rows, nil)
	require.NoError(t, err)

	words := CommonWords(table, 3)
	require.Len(t, words, 3)
	assert.Equal(t, WordCount{Word: "govt", Count: 3}, words[0])
	assert.Equal(t, WordCount{Word: "sr", Count: 2}, words[1])
	assert.Equal(t, WordCount{Word: "sec", Count: 2}, words[2])

	for _, w := range CommonWords(table, 0) {
		assert.NotEqual(t, "school", w.Word, "words longer than four letters are excluded")
		assert.NotEqual(t, "a", w.Word, "single letters are excluded")
	}
}
