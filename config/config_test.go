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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/refmatch/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "refmatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	school, ok := cfg.Dataset("school")
	require.True(t, ok)
	assert.Equal(t, "curriculum", school.PartitionColumn)
	assert.True(t, school.Schema().HasAddress())

	subject, ok := cfg.Dataset("subject")
	require.True(t, ok)
	assert.True(t, subject.Subject)
	assert.True(t, subject.Schema().HasAlias())

	_, ok = cfg.Dataset("missing")
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":9090"
storage:
  backend: file
  path: /var/lib/refmatch/db
  blob_dir: /var/lib/refmatch/caches
ai:
  provider: openai
  embedding_host: http://localhost:11434
  embedding_model: nomic-embed-text
  requests_per_second: 20
cache:
  batch_size: 32
  workers: 2
  max_retries: 5
  retry_delay: 2s
  report_interval: 100
datasets:
  - name: school
    columns: [name, address, board]
    partition_column: board
    partitions: [CBSE, ICSE]
    source:
      type: sqlite
      path: /var/lib/refmatch/records.db
      query: SELECT name, address, board FROM schools
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/refmatch/caches", cfg.Storage.BlobDir)

	assert.Equal(t, ai.ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "http://localhost:11434/v1", cfg.AI.EmbeddingHost, "normalized by validation")
	assert.Equal(t, "nomic-embed-text", cfg.AI.EmbeddingModel)
	assert.Equal(t, 20.0, cfg.AI.RequestsPerSecond)
	assert.Equal(t, 1024, cfg.AI.QueryCacheSize, "unset fields keep defaults")

	assert.Equal(t, 32, cfg.Cache.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Cache.RetryDelay)

	require.Len(t, cfg.Datasets, 1, "declared datasets replace the defaults")
	d := cfg.Datasets[0]
	assert.Equal(t, []string{"CBSE", "ICSE"}, d.Partitions)
	assert.Equal(t, SourceSQLite, d.Source.Type)
	assert.Equal(t, "board", d.Schema().PartitionColumn)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage: [not, a, map]"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage:\n  backend: tape\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*File)
	}{
		{"file backend without dir", func(f *File) {
			f.Storage.Backend = BackendFile
			f.Storage.BlobDir = ""
		}},
		{"minio without endpoint", func(f *File) { f.Storage.Backend = BackendMinio }},
		{"no badger path", func(f *File) { f.Storage.Path = "" }},
		{"bad cache", func(f *File) { f.Cache.Workers = 0 }},
		{"unknown provider", func(f *File) { f.AI.Provider = "bert" }},
		{"no datasets", func(f *File) { f.Datasets = nil }},
		{"duplicate dataset", func(f *File) { f.Datasets = append(f.Datasets, f.Datasets[0]) }},
		{"missing name column", func(f *File) { f.Datasets[0].Columns = []string{"address"} }},
		{"partitions without column", func(f *File) {
			f.Datasets[1].Partitions = []string{"x"}
		}},
		{"unknown source", func(f *File) { f.Datasets[0].Source.Type = "xlsx" }},
		{"sqlite without query", func(f *File) {
			f.Datasets[0].Source = Source{Type: SourceSQLite, Path: "records.db"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
