package match

import (
	"cmp"
	"context"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/refmatch/core"
	"github.com/poiesic/refmatch/normalize"
	"github.com/poiesic/refmatch/records"
)

// commonWords never serve as initials. They are kept as literal address
// words instead.
var commonWords = map[string]struct{}{
	"sec": {}, "st": {}, "sr": {}, "the": {}, "of": {}, "new": {}, "no": {},
}

// Abbreviation matches queries made of initials, such as "dps" or
// "dps rkp", against record names and addresses.
type Abbreviation struct {
	opts options
}

var _ Matcher = (*Abbreviation)(nil)

// NewAbbreviation creates an abbreviation matcher.
func NewAbbreviation(opts ...Option) *Abbreviation {
	return &Abbreviation{opts: buildOptions("match.abbreviation", opts)}
}

// abbrPlan is a query split into a name seed and address terms.
type abbrPlan struct {
	seed       string   // letters that must start consecutive name words
	place      string   // further short tokens, read as address initials
	words      []string // long or common tokens, read as address words
	simplified string   // compared with the record's name initials
	name       *regexp.Regexp
}

// planQuery splits query into name and address parts. It returns false
// when the query yields no name letters.
func planQuery(query string) (abbrPlan, bool) {
	tokens := normalize.Tokens(normalize.FoldAccents(query))
	if len(tokens) == 0 {
		return abbrPlan{}, false
	}

	if len(tokens) == 1 {
		seed := tokens[0]
		return abbrPlan{
			seed:       seed,
			simplified: seed,
			name:       letterPattern(seed, `[a-z]*\b.*?\b`),
		}, true
	}

	var short, words []string
	for _, tok := range tokens {
		if _, common := commonWords[tok]; !common && utf8.RuneCountInString(tok) <= AbbrCharLimit {
			short = append(short, tok)
		} else {
			words = append(words, tok)
		}
	}

	var p abbrPlan
	if len(short) > 1 {
		p.seed = short[0]
		p.place = strings.Join(short[1:], " ")
	} else {
		p.seed = strings.Join(short, "")
	}
	if p.seed == "" {
		return abbrPlan{}, false
	}
	p.words = words
	p.simplified = strings.TrimSpace(p.seed + " " + strings.Join(words, " "))
	p.name = letterPattern(p.seed, `[a-z]*\b\s+`)
	return p, true
}

// letterPattern builds an anchored pattern in which every letter of seed
// starts a word, with sep between consecutive letters.
func letterPattern(seed, sep string) *regexp.Regexp {
	letters := make([]string, 0, len(seed))
	for _, r := range seed {
		letters = append(letters, regexp.QuoteMeta(string(r)))
	}
	return regexp.MustCompile(`^(\b` + strings.Join(letters, sep) + `[a-z]*\b)`)
}

// addressRequired reports whether the plan carries address terms worth
// filtering on. Common words alone do not count.
func (p abbrPlan) addressRequired() bool {
	if p.place != "" {
		return true
	}
	for _, w := range p.words {
		if _, common := commonWords[w]; !common {
			return true
		}
	}
	return false
}

// addressInput is the text scored against each address.
func (p abbrPlan) addressInput() string {
	if p.place != "" {
		return p.place
	}
	return strings.Join(p.words, " ")
}

type abbrCandidate struct {
	rec       *core.SearchableRecord
	nameScore float64
	score     float64
}

// Match returns up to AbbrTopN records whose names fit the query's
// initials. When the table has addresses and the query names a place, the
// score is the mean of the name and address scores; if no address fits,
// the name-only ranking is returned.
func (a *Abbreviation) Match(ctx context.Context, query string, table *records.Table, _ *core.EmbeddingCache) ([]core.Match, error) {
	if table == nil {
		return []core.Match{}, nil
	}
	plan, ok := planQuery(query)
	if !ok {
		return []core.Match{}, nil
	}

	first, _ := utf8.DecodeRuneInString(plan.seed)
	var named []abbrCandidate
	for _, rec := range table.WithFirstLetter(first) {
		if !plan.name.MatchString(rec.CleanName) {
			continue
		}
		score := jaroWinkler(plan.simplified, rec.NameAbbr) * 100
		named = append(named, abbrCandidate{rec: rec, nameScore: score, score: score})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.opts.logger.Debug("name pattern matched", "query", query, "seed", plan.seed, "matches", len(named))

	if !table.HasAddress() || !plan.addressRequired() || len(named) == 0 {
		return topMatches(named, table.HasAddress()), nil
	}

	pattern := newAddressPattern(plan.place, plan.words, MaxAddressErrors)
	input := plan.addressInput()
	var placed []abbrCandidate
	for _, c := range named {
		if !pattern.Match(normalize.StripPunctuation(c.rec.Address)) {
			continue
		}
		address := strings.ToLower(strings.TrimSpace(c.rec.Address))
		addrScore := max(jaroWinkler(input, c.rec.AddressAbbr), jaroWinkler(input, address)) * 100
		if strings.Contains(address, input) || strings.Contains(c.rec.AddressAbbr, input) {
			addrScore += AddressBias
		}
		c.score = (c.nameScore + addrScore) / 2
		placed = append(placed, c)
	}

	if len(placed) == 0 {
		a.opts.logger.Debug("no address matched, using name ranking", "query", query, "place", input)
		return topMatches(named, true), nil
	}
	return topMatches(placed, true), nil
}

// topMatches sorts candidates by score, keeping table order among ties,
// and converts the best AbbrTopN to display matches.
func topMatches(cands []abbrCandidate, withAddress bool) []core.Match {
	slices.SortStableFunc(cands, func(x, y abbrCandidate) int {
		return cmp.Compare(y.score, x.score)
	})
	cands = cands[:min(len(cands), AbbrTopN)]

	out := make([]core.Match, 0, len(cands))
	for _, c := range cands {
		m := core.Match{Name: normalize.Title(c.rec.Name), Score: round4(c.score)}
		if withAddress {
			m.Address = normalize.Title(c.rec.Address)
		}
		out = append(out, m)
	}
	return out
}
