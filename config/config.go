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

// Package config loads the YAML service configuration: storage backend,
// embedding provider, cache tuning and the schema of every searchable
// dataset.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/poiesic/refmatch/ai"
	"github.com/poiesic/refmatch/embedcache"
	"github.com/poiesic/refmatch/records"
	"github.com/poiesic/refmatch/storage/blob/minio"
	"gopkg.in/yaml.v3"
)

// Storage backends for embedding caches.
const (
	BackendBadger = "badger"
	BackendFile   = "file"
	BackendMinio  = "minio"
)

// Record source types.
const (
	SourceCSV    = "csv"
	SourceSQLite = "sqlite"
)

// ErrInvalidConfig indicates the configuration failed validation.
var ErrInvalidConfig = errors.New("invalid config")

// File is the root of a refmatch configuration file.
type File struct {
	HTTP     HTTPConfig        `yaml:"http"`
	Storage  StorageConfig     `yaml:"storage"`
	AI       *ai.Config        `yaml:"ai"`
	Cache    embedcache.Config `yaml:"cache"`
	Datasets []Dataset         `yaml:"datasets"`
}

// HTTPConfig configures the search API.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig selects where embedding caches and the query log live.
type StorageConfig struct {
	// Backend holds the embedding caches: badger, file or minio.
	Backend string `yaml:"backend"`

	// Path is the badger database directory. It always holds the query
	// log and, with the badger backend, the caches.
	Path string `yaml:"path"`

	// BlobDir is the snapshot directory of the file backend.
	BlobDir string `yaml:"blob_dir"`

	Minio minio.Config `yaml:"minio"`
}

// Dataset declares one searchable dataset.
type Dataset struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`

	NameColumn      string `yaml:"name_column"`
	AddressColumn   string `yaml:"address_column"`
	AliasColumn     string `yaml:"alias_column"`
	PartitionColumn string `yaml:"partition_column"`

	// Partitions lists the partition values to cache. Empty derives them
	// from the records.
	Partitions []string `yaml:"partitions"`

	Subject bool   `yaml:"subject"`
	Source  Source `yaml:"source"`
}

// Source locates the canonical records of a dataset.
type Source struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`

	// Query selects the rows of a sqlite source. Result columns are
	// matched to the dataset columns by name.
	Query string `yaml:"query"`
}

// Default returns a configuration with local storage, the local ONNX
// embedder and the school, college, subject and major datasets.
func Default() *File {
	return &File{
		HTTP: HTTPConfig{Addr: ":8080"},
		Storage: StorageConfig{
			Backend: BackendBadger,
			Path:    filepath.Join("data", "refmatch"),
			BlobDir: filepath.Join("data", "caches"),
		},
		AI:       ai.DefaultConfig(),
		Cache:    embedcache.DefaultConfig(),
		Datasets: DefaultDatasets(),
	}
}

// DefaultDatasets returns the stock dataset schemas. Their sources point at
// CSV files under data/.
func DefaultDatasets() []Dataset {
	csv := func(name string) Source {
		return Source{Type: SourceCSV, Path: filepath.Join("data", name+".csv")}
	}
	return []Dataset{
		{
			Name:            "school",
			Columns:         []string{"name", "address", "curriculum"},
			PartitionColumn: "curriculum",
			Source:          csv("school"),
		},
		{
			Name:    "college",
			Columns: []string{"name", "country"},
			Source:  csv("college"),
		},
		{
			Name:            "subject",
			Columns:         []string{"name", "curriculum", "education_level", "alias"},
			AliasColumn:     "alias",
			PartitionColumn: "curriculum",
			Subject:         true,
			Source:          csv("subject"),
		},
		{
			Name:    "major",
			Columns: []string{"name"},
			Source:  csv("major"),
		},
	}
}

// Load reads the configuration at path over the defaults and validates it.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.AI == nil {
		cfg.AI = ai.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for completeness.
func (f *File) Validate() error {
	switch f.Storage.Backend {
	case BackendBadger:
	case BackendFile:
		if f.Storage.BlobDir == "" {
			return fmt.Errorf("%w: storage.blob_dir is required for the file backend", ErrInvalidConfig)
		}
	case BackendMinio:
		if err := f.Storage.Minio.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, f.Storage.Backend)
	}
	if f.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path is required", ErrInvalidConfig)
	}

	if f.AI == nil {
		return fmt.Errorf("%w: ai section is required", ErrInvalidConfig)
	}
	if err := f.AI.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := f.Cache.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if len(f.Datasets) == 0 {
		return fmt.Errorf("%w: no datasets declared", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(f.Datasets))
	for _, d := range f.Datasets {
		if seen[d.Name] {
			return fmt.Errorf("%w: dataset %q declared twice", ErrInvalidConfig, d.Name)
		}
		seen[d.Name] = true
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Dataset returns the dataset named name.
func (f *File) Dataset(name string) (Dataset, bool) {
	i := slices.IndexFunc(f.Datasets, func(d Dataset) bool { return d.Name == name })
	if i < 0 {
		return Dataset{}, false
	}
	return f.Datasets[i], true
}

// Schema converts the declaration into a record schema.
func (d Dataset) Schema() records.Schema {
	return records.Schema{
		Dataset:         d.Name,
		Columns:         d.Columns,
		NameColumn:      d.NameColumn,
		AddressColumn:   d.AddressColumn,
		AliasColumn:     d.AliasColumn,
		PartitionColumn: d.PartitionColumn,
		Subject:         d.Subject,
	}
}

// Validate checks the dataset schema and its source.
func (d Dataset) Validate() error {
	if err := d.Schema().Validate(); err != nil {
		return fmt.Errorf("%w: dataset %q: %w", ErrInvalidConfig, d.Name, err)
	}
	if len(d.Partitions) > 0 && d.PartitionColumn == "" {
		return fmt.Errorf("%w: dataset %q lists partitions without a partition column", ErrInvalidConfig, d.Name)
	}
	switch strings.ToLower(d.Source.Type) {
	case SourceCSV:
		if d.Source.Path == "" {
			return fmt.Errorf("%w: dataset %q: csv source needs a path", ErrInvalidConfig, d.Name)
		}
	case SourceSQLite:
		if d.Source.Path == "" || d.Source.Query == "" {
			return fmt.Errorf("%w: dataset %q: sqlite source needs a path and a query", ErrInvalidConfig, d.Name)
		}
	default:
		return fmt.Errorf("%w: dataset %q: unknown source type %q", ErrInvalidConfig, d.Name, d.Source.Type)
	}
	return nil
}
