package search

import (
	"strings"
	"unicode/utf8"

	"github.com/poiesic/refmatch/match"
)

// HybridBonus is added to every score of the favored side of a hybrid search.
const HybridBonus = 10.0

// Strategy names the matcher(s) a query is routed to.
type Strategy string

const (
	StrategyNone         Strategy = "none"
	StrategyAbbreviation Strategy = "abbreviation"
	StrategyFuzzy        Strategy = "fuzzy"
	StrategyHybrid       Strategy = "hybrid"
)

// Route is the routing decision for one query.
type Route struct {
	Strategy Strategy
	Short    int // tokens of at most match.AbbrCharLimit characters
	Long     int

	// BoostFuzzy is set for hybrid routes with fewer short than long
	// tokens. Otherwise the abbreviation side receives the bonus.
	BoostFuzzy bool
}

// RouteQuery picks the strategy for query. Subject datasets always route
// to the fuzzy matcher; an empty query routes nowhere.
func RouteQuery(query string, subject bool) Route {
	words := strings.Fields(query)
	if len(words) == 0 {
		return Route{Strategy: StrategyNone}
	}

	var r Route
	for _, w := range words {
		if utf8.RuneCountInString(w) <= match.AbbrCharLimit {
			r.Short++
		} else {
			r.Long++
		}
	}

	switch {
	case subject:
		r.Strategy = StrategyFuzzy
	case r.Long == 0:
		r.Strategy = StrategyAbbreviation
	case len(words) == 1 && utf8.RuneCountInString(words[0]) <= match.AbbrSingleWordThreshold:
		r.Strategy = StrategyAbbreviation
	case r.Short == 0:
		r.Strategy = StrategyFuzzy
	default:
		r.Strategy = StrategyHybrid
		r.BoostFuzzy = r.Short < r.Long
	}
	return r
}
