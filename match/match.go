package match

import (
	"context"
	"log/slog"

	"github.com/poiesic/refmatch/core"
	"github.com/poiesic/refmatch/records"
)

const (
	// AbbrCharLimit is the longest token treated as an abbreviation.
	AbbrCharLimit = records.MaxCommonWordLen

	// AbbrSingleWordThreshold is the longest single-token query still
	// routed to abbreviation matching.
	AbbrSingleWordThreshold = 5

	// AbbrTopN caps abbreviation results.
	AbbrTopN = 10

	// SemanticTopK is the number of nearest keys re-ranked lexically.
	SemanticTopK = 25

	// LexicalTopN caps fuzzy results.
	LexicalTopN = 5

	LexicalWeight  = 0.3
	SemanticWeight = 0.7

	// AddressBias is added to the address score when the typed place
	// appears verbatim in the address or its initials.
	AddressBias = 5.0

	// MaxAddressErrors bounds the edits tolerated by the address filter.
	MaxAddressErrors = 2
)

// Matcher ranks the records of table against query. cache holds the
// embeddings for the table's partition and may be ignored by matchers that
// do not need it.
type Matcher interface {
	Match(ctx context.Context, query string, table *records.Table, cache *core.EmbeddingCache) ([]core.Match, error)
}

// Option configures a matcher.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(component string, opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("component", component)
	return o
}
