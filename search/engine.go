package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/poiesic/refmatch/core"
	"github.com/poiesic/refmatch/embedcache"
	"github.com/poiesic/refmatch/match"
	"github.com/poiesic/refmatch/records"
)

// Request is one search over an Engine's dataset.
type Request struct {
	Query string

	// Filters maps column names to exact values, compared
	// case-insensitively. A filter on the partition column also selects
	// that partition's embedding cache.
	Filters map[string]string

	// Subject forces fuzzy matching, as for subject datasets.
	Subject bool
}

// Engine serves searches over one dataset.
type Engine struct {
	table      *records.Table
	manager    *embedcache.Manager
	abbr       match.Matcher
	fuzzy      match.Matcher
	partitions []string
	caches     map[string]*core.EmbeddingCache // by partition option
	merged     *core.EmbeddingCache
	reports    []*embedcache.Report
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithPartitions sets the partition values to build caches for. By default
// they are the distinct values of the schema's partition column.
func WithPartitions(values ...string) Option {
	return func(e *Engine) error {
		for _, v := range values {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("%w: blank partition value", core.ErrInvalidPartition)
			}
		}
		e.partitions = values
		return nil
	}
}

// WithMatchers replaces the default abbreviation and fuzzy matchers.
func WithMatchers(abbreviation, fuzzy match.Matcher) Option {
	return func(e *Engine) error {
		e.abbr = abbreviation
		e.fuzzy = fuzzy
		return nil
	}
}

// NewEngine creates an engine for table and reconciles the embedding cache
// of every partition before returning.
func NewEngine(ctx context.Context, table *records.Table, manager *embedcache.Manager, opts ...Option) (*Engine, error) {
	if table == nil {
		return nil, ErrTableRequired
	}
	if manager == nil {
		return nil, ErrManagerRequired
	}

	e := &Engine{
		table:   table,
		manager: manager,
		caches:  make(map[string]*core.EmbeddingCache),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "search", "dataset", table.Schema().Dataset)

	if e.abbr == nil {
		e.abbr = match.NewAbbreviation(match.WithLogger(e.logger))
	}
	if e.fuzzy == nil {
		fuzzy, err := match.NewFuzzy(manager.Embedder(), match.WithLogger(e.logger))
		if err != nil {
			return nil, err
		}
		e.fuzzy = fuzzy
	}

	if err := e.reconcile(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) reconcile(ctx context.Context) error {
	schema := e.table.Schema()
	if schema.PartitionColumn == "" {
		p := core.Partition{Dataset: schema.Dataset}
		cache, err := e.reconcilePartition(ctx, e.table, p)
		if err != nil {
			return err
		}
		e.merged = cache
		return nil
	}

	if e.partitions == nil {
		e.partitions = e.table.PartitionValues()
	}
	all := make([]*core.EmbeddingCache, 0, len(e.partitions))
	for _, value := range e.partitions {
		p := core.Partition{Dataset: schema.Dataset, Value: value}
		subset := e.table.Filter(map[string]string{schema.PartitionColumn: value}, e.logger)
		cache, err := e.reconcilePartition(ctx, subset, p)
		if err != nil {
			return err
		}
		e.caches[p.Option()] = cache
		all = append(all, cache)
	}
	e.merged = core.MergeCaches(core.Partition{Dataset: schema.Dataset}.CacheName(), all...)
	return nil
}

func (e *Engine) reconcilePartition(ctx context.Context, table *records.Table, p core.Partition) (*core.EmbeddingCache, error) {
	report, err := e.manager.Reconcile(ctx, table, p)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", p, err)
	}
	e.reports = append(e.reports, report)

	cache, err := e.manager.Get(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", p, err)
	}
	return cache, nil
}

// Dataset returns the name of the engine's dataset.
func (e *Engine) Dataset() string {
	return e.table.Schema().Dataset
}

// Table returns the engine's record table.
func (e *Engine) Table() *records.Table {
	return e.table
}

// Reports returns the reconciliation reports produced when the engine was built.
func (e *Engine) Reports() []*embedcache.Report {
	return e.reports
}

// Partitions returns the partition values the engine holds caches for.
func (e *Engine) Partitions() []string {
	return e.partitions
}

// Search runs req and returns matches sorted by descending score.
func (e *Engine) Search(ctx context.Context, req Request) ([]core.Match, error) {
	return e.SearchWithMonitor(ctx, req, nil)
}

// SearchWithMonitor runs req with monitoring.
// The monitor receives callbacks at each stage of the search process.
func (e *Engine) SearchWithMonitor(ctx context.Context, req Request, monitor SearchMonitor) ([]core.Match, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	route := RouteQuery(req.Query, req.Subject || e.table.Schema().Subject)
	monitor.Start(req, route)
	if route.Strategy == StrategyNone {
		monitor.Finish([]core.Match{})
		return []core.Match{}, nil
	}

	table := e.table.Filter(req.Filters, e.logger)
	query := strings.ToLower(strings.TrimSpace(req.Query))

	var abbrResults, fuzzyResults []core.Match
	var err error

	if route.Strategy == StrategyAbbreviation || route.Strategy == StrategyHybrid {
		abbrResults, err = e.abbr.Match(ctx, query, table, nil)
		if err != nil {
			e.logger.Error("abbreviation match failed", "query", req.Query, "err", err)
			return nil, err
		}
		monitor.AfterAbbreviation(abbrResults)
	}

	if route.Strategy == StrategyFuzzy || route.Strategy == StrategyHybrid {
		fuzzyResults, err = e.fuzzy.Match(ctx, query, table, e.cacheFor(req.Filters))
		if err != nil {
			e.logger.Error("fuzzy match failed", "query", req.Query, "err", err)
			return nil, err
		}
		monitor.AfterFuzzy(fuzzyResults)
	}

	if route.Strategy == StrategyHybrid {
		if route.BoostFuzzy {
			boost(fuzzyResults)
		} else {
			boost(abbrResults)
		}
	}

	results := make([]core.Match, 0, len(fuzzyResults)+len(abbrResults))
	for _, m := range slices.Concat(fuzzyResults, abbrResults) {
		if m.Complete() {
			results = append(results, m)
		}
	}
	slices.SortStableFunc(results, func(a, b core.Match) int {
		return cmp.Compare(b.Score, a.Score)
	})

	monitor.Finish(results)
	return results, nil
}

// cacheFor selects the embedding cache for filters. A filter on the
// partition column picks that partition; an unknown partition yields no
// cache. Without one the cache spanning the whole dataset is used.
func (e *Engine) cacheFor(filters map[string]string) *core.EmbeddingCache {
	column := e.table.Schema().PartitionColumn
	if column == "" {
		return e.merged
	}
	value, ok := filters[column]
	if !ok || strings.TrimSpace(value) == "" {
		return e.merged
	}
	p := core.Partition{Dataset: e.Dataset(), Value: value}
	cache, ok := e.caches[p.Option()]
	if !ok {
		e.logger.Warn("no embedding cache for partition", "partition", p.String())
		return nil
	}
	return cache
}

func boost(matches []core.Match) {
	for i := range matches {
		matches[i].Score = math.Round((matches[i].Score+HybridBonus)*1e4) / 1e4
	}
}
