package match

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/poiesic/refmatch/ai"
	"github.com/poiesic/refmatch/core"
	"github.com/poiesic/refmatch/normalize"
	"github.com/poiesic/refmatch/records"
)

// Fuzzy ranks records by a blend of embedding similarity and token-set
// overlap between the query and each record's normalized key.
type Fuzzy struct {
	embedder ai.Embedder
	opts     options
}

var _ Matcher = (*Fuzzy)(nil)

// NewFuzzy creates a fuzzy matcher. embedder must be the model that built
// the caches it will be given.
func NewFuzzy(embedder ai.Embedder, opts ...Option) (*Fuzzy, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	return &Fuzzy{embedder: embedder, opts: buildOptions("match.fuzzy", opts)}, nil
}

type keyScore struct {
	key     string
	cosine  float64
	lexical int
}

// Match embeds the cleaned query, keeps the SemanticTopK closest keys in
// cache, re-ranks them by TokenSetRatio and returns up to LexicalTopN
// records scored LexicalWeight*ratio + SemanticWeight*cosine*100. Keys with
// no record in table are skipped.
func (f *Fuzzy) Match(ctx context.Context, query string, table *records.Table, cache *core.EmbeddingCache) ([]core.Match, error) {
	query = normalize.Clean(query)
	if query == "" || table == nil || cache == nil || cache.Len() == 0 {
		return []core.Match{}, nil
	}

	vec, err := f.embedder.EmbedText(ctx, query)
	if err != nil {
		f.opts.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) != cache.Dimension() {
		return nil, fmt.Errorf("%w: query has %d, cache %s has %d",
			ErrDimensionMismatch, len(vec), cache.Name(), cache.Dimension())
	}

	nearest := make([]keyScore, 0, cache.Len())
	cache.Each(func(key string, v []float32) bool {
		nearest = append(nearest, keyScore{key: key, cosine: cosine(vec, v)})
		return true
	})
	slices.SortFunc(nearest, func(a, b keyScore) int {
		if c := cmp.Compare(b.cosine, a.cosine); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
	nearest = nearest[:min(len(nearest), SemanticTopK)]

	for i := range nearest {
		nearest[i].lexical = TokenSetRatio(query, nearest[i].key)
	}
	slices.SortStableFunc(nearest, func(a, b keyScore) int {
		return cmp.Compare(b.lexical, a.lexical)
	})
	nearest = nearest[:min(len(nearest), LexicalTopN)]

	out := make([]core.Match, 0, len(nearest))
	for _, ks := range nearest {
		rec, ok := table.Lookup(ks.key)
		if !ok {
			f.opts.logger.Debug("cached key has no record, skipping", "cache", cache.Name(), "key", ks.key)
			continue
		}
		score := LexicalWeight*float64(ks.lexical) + SemanticWeight*ks.cosine*100
		m := core.Match{Name: normalize.Title(rec.Name), Score: round4(score)}
		if table.HasAddress() {
			m.Address = normalize.Title(rec.Address)
		}
		out = append(out, m)
	}
	return out, nil
}
