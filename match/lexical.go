package match

import (
	"math"
	"slices"
	"strings"

	"github.com/xrash/smetrics"
)

// TokenSetRatio scores how well the word sets of a and b overlap, in
// [0, 100]. Both strings are reduced to lowercase ASCII alphanumerics and
// split into distinct tokens; the shared tokens are compared with each
// side's full token list and the best edit-distance ratio wins. A string
// that is a word subset of the other scores 100.
func TokenSetRatio(a, b string) int {
	pa, pb := processTokens(a), processTokens(b)
	if pa == "" || pb == "" {
		return 0
	}

	ta, tb := tokenSet(pa), tokenSet(pb)
	var shared, onlyA, onlyB []string
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared = append(shared, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	slices.Sort(shared)
	slices.Sort(onlyA)
	slices.Sort(onlyB)

	sect := strings.Join(shared, " ")
	combinedA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	return max(ratio(sect, combinedA), ratio(sect, combinedB), ratio(combinedA, combinedB))
}

// ratio is the normalized edit similarity of a and b in [0, 100], where a
// substitution costs two edits.
func ratio(a, b string) int {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	total := len(a) + len(b)
	dist := smetrics.WagnerFischer(a, b, 1, 1, 2)
	return int(math.RoundToEven(100 * float64(total-dist) / float64(total)))
}

// processTokens keeps ASCII letters and digits, lowercased, with every
// other character turned into a token break.
func processTokens(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		case c >= 0x80:
			// non-ASCII bytes are dropped, not split on
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
