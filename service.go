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

package refmatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/refmatch/ai"
	"github.com/poiesic/refmatch/ai/onnx"
	"github.com/poiesic/refmatch/ai/openai"
	"github.com/poiesic/refmatch/config"
	"github.com/poiesic/refmatch/core"
	"github.com/poiesic/refmatch/embedcache"
	"github.com/poiesic/refmatch/records"
	"github.com/poiesic/refmatch/search"
	"github.com/poiesic/refmatch/source"
	"github.com/poiesic/refmatch/storage"
	"github.com/poiesic/refmatch/storage/badger"
	"github.com/poiesic/refmatch/storage/blob"
	"github.com/poiesic/refmatch/storage/blob/minio"
)

// ErrUnknownDataset indicates a search against a dataset that is not configured.
var ErrUnknownDataset = errors.New("unknown dataset")

// Service owns one search engine per configured dataset together with the
// stores and embedder they share.
type Service struct {
	config   *config.File
	backend  *badger.Backend
	store    storage.EmbeddingStore
	queryLog *badger.QueryLogRepository
	provider ai.AIProvider
	embedder ai.Embedder
	manager  *embedcache.Manager
	engines  map[string]*search.Engine
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger   *slog.Logger
	provider ai.AIProvider
	sources  map[string]source.Source
	progress io.Writer
	inMemory bool
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithProvider supplies the embedding provider instead of building one from
// the ai section of the configuration. The service closes it.
func WithProvider(provider ai.AIProvider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithSource reads the records of dataset from src instead of its
// configured source.
func WithSource(dataset string, src source.Source) ServiceOption {
	return func(o *serviceOptions) {
		if o.sources == nil {
			o.sources = make(map[string]source.Source)
		}
		o.sources[dataset] = src
	}
}

// WithProgress reports embedding progress to w while caches are built.
func WithProgress(w io.Writer) ServiceOption {
	return func(o *serviceOptions) {
		o.progress = w
	}
}

// InMemory keeps the badger database in memory. Used by tests.
func InMemory() ServiceOption {
	return func(o *serviceOptions) {
		o.inMemory = true
	}
}

// NewService opens storage, loads every dataset and reconciles its
// embedding caches. Datasets are prepared in parallel.
func NewService(ctx context.Context, cfg *config.File, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil configuration", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &serviceOptions{}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		config:  cfg,
		engines: make(map[string]*search.Engine, len(cfg.Datasets)),
		logger:  logger.With("component", "service"),
	}
	if err := s.open(ctx, options, logger); err != nil {
		s.Close()
		return nil, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range cfg.Datasets {
		g.Go(func() error {
			engine, err := s.buildEngine(gctx, d, options.sources[d.Name], logger)
			if err != nil {
				return fmt.Errorf("dataset %s: %w", d.Name, err)
			}
			mu.Lock()
			s.engines[d.Name] = engine
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) open(ctx context.Context, options *serviceOptions, logger *slog.Logger) error {
	backend, store, err := openStorage(s.config.Storage, options.inMemory, logger)
	if err != nil {
		return err
	}
	s.backend = backend
	s.store = store

	queryLog, err := badger.NewQueryLogRepository(backend)
	if err != nil {
		return err
	}
	s.queryLog = queryLog

	provider := options.provider
	if provider == nil {
		provider, err = newProvider(ctx, s.config.AI)
		if err != nil {
			return err
		}
	}
	s.provider = provider

	embedder, err := ai.Wrap(provider.Embedder(), s.config.AI)
	if err != nil {
		return err
	}
	s.embedder = embedder

	manager, err := embedcache.NewManager(store, embedder,
		embedcache.WithConfig(s.config.Cache),
		embedcache.WithLogger(logger),
		embedcache.WithProgress(options.progress),
	)
	if err != nil {
		return err
	}
	s.manager = manager
	return nil
}

// openStorage opens the badger database and the embedding store the
// configuration selects. The store shares the database with the badger backend.
func openStorage(cfg config.StorageConfig, inMemory bool, logger *slog.Logger) (*badger.Backend, storage.EmbeddingStore, error) {
	path := cfg.Path
	if inMemory {
		path = ""
	}
	backend, err := badger.OpenBackend(path, inMemory, logger)
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(cfg, backend)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	return backend, store, nil
}

func openStore(cfg config.StorageConfig, backend *badger.Backend) (storage.EmbeddingStore, error) {
	switch cfg.Backend {
	case config.BackendFile:
		bucket, err := blob.NewLocalBucket(cfg.BlobDir)
		if err != nil {
			return nil, err
		}
		return blob.NewStore(bucket)
	case config.BackendMinio:
		bucket, err := minio.New(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return blob.NewStore(bucket)
	default:
		return badger.NewEmbeddingStore(backend)
	}
}

func newProvider(ctx context.Context, cfg *ai.Config) (ai.AIProvider, error) {
	switch cfg.Provider {
	case ai.ProviderOpenAI:
		return openai.NewProvider(cfg)
	case ai.ProviderONNX:
		return onnx.NewProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown ai provider %q", config.ErrInvalidConfig, cfg.Provider)
	}
}

func (s *Service) buildEngine(ctx context.Context, d config.Dataset, src source.Source, logger *slog.Logger) (*search.Engine, error) {
	if src == nil {
		var err error
		if src, err = source.Open(d.Source); err != nil {
			return nil, err
		}
	}
	defer src.Close()

	schema := d.Schema()
	rows, err := src.Rows(ctx, schema.WithDefaults().Columns)
	if err != nil {
		return nil, err
	}
	table, err := records.Project(schema, rows, logger)
	if err != nil {
		return nil, err
	}

	opts := []search.Option{search.WithLogger(logger)}
	if len(d.Partitions) > 0 {
		opts = append(opts, search.WithPartitions(d.Partitions...))
	}
	start := time.Now()
	engine, err := search.NewEngine(ctx, table, s.manager, opts...)
	if err != nil {
		return nil, err
	}
	s.logger.Info("dataset ready", "dataset", d.Name, "records", table.Len(),
		"partitions", len(engine.Partitions()), "duration", time.Since(start))
	return engine, nil
}

// Datasets returns the configured dataset names in sorted order.
func (s *Service) Datasets() []string {
	names := make([]string, 0, len(s.engines))
	for name := range s.engines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Engine returns the engine of dataset.
func (s *Service) Engine(dataset string) (*search.Engine, bool) {
	e, ok := s.engines[dataset]
	return e, ok
}

// Search runs req against dataset and records it in the query log. A
// failure to record the query is logged and does not fail the search.
func (s *Service) Search(ctx context.Context, dataset string, req search.Request) ([]core.Match, error) {
	engine, ok := s.engines[dataset]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, dataset)
	}

	start := time.Now()
	matches, err := engine.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	entry := &core.QueryEntry{
		RequestID: RequestID(ctx),
		Dataset:   dataset,
		Query:     req.Query,
		Filters:   req.Filters,
		Subject:   req.Subject,
		Strategy:  string(search.RouteQuery(req.Query, req.Subject || engine.Table().Schema().Subject).Strategy),
		Results:   len(matches),
		Duration:  time.Since(start),
		Timestamp: start,
	}
	if entry.RequestID == "" {
		entry.RequestID = uuid.NewString()
	}
	if len(matches) > 0 {
		entry.TopScore = matches[0].Score
	}
	if _, err := s.queryLog.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to record query", "dataset", dataset, "err", err)
	}
	return matches, nil
}

// QueryCacheStats reports hits and misses of the query-vector cache. ok is
// false when the cache is disabled.
func (s *Service) QueryCacheStats() (hits, misses int64, ok bool) {
	cached, ok := s.embedder.(*ai.CachingEmbedder)
	if !ok {
		return 0, 0, false
	}
	hits, misses = cached.Stats()
	return hits, misses, true
}

// RecentQueries returns up to limit logged queries, most recent first.
func (s *Service) RecentQueries(ctx context.Context, limit int) ([]*core.QueryEntry, error) {
	return s.queryLog.Recent(ctx, limit)
}

// Close releases the embedder and storage. It is safe to call on a
// partially opened service.
func (s *Service) Close() error {
	var errs []error
	if s.manager != nil {
		s.manager.Release()
	}
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("error closing embedding store", "err", err)
			errs = append(errs, err)
		}
	}
	if s.queryLog != nil {
		if err := s.queryLog.Close(); err != nil {
			s.logger.Error("error closing query log", "err", err)
			errs = append(errs, err)
		}
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			s.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type requestIDKey struct{}

// ContextWithRequestID attaches a request ID that Search records in the
// query log.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID attached to ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
