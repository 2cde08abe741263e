package match

import (
	"strings"
	"unicode/utf8"

	"github.com/xrash/smetrics"
)

// addressElement is one unit of an address pattern. An initial must start
// an address token; a word must prefix one.
type addressElement struct {
	text    string
	initial bool
}

// addressPattern matches a run of consecutive address tokens against a
// sequence of initials and words, tolerating a bounded number of edits
// across the whole run.
type addressPattern struct {
	elements  []addressElement
	maxErrors int
}

func newAddressPattern(place string, words []string, maxErrors int) *addressPattern {
	p := &addressPattern{maxErrors: maxErrors}
	for _, r := range place {
		if r == ' ' {
			continue
		}
		p.elements = append(p.elements, addressElement{text: string(r), initial: true})
	}
	for _, w := range words {
		p.elements = append(p.elements, addressElement{text: w})
	}
	if len(p.elements) == 0 {
		return nil
	}
	return p
}

// Match reports whether some run of tokens in address satisfies the
// pattern. address must already be lowercased and stripped of punctuation.
func (p *addressPattern) Match(address string) bool {
	tokens := strings.Fields(address)
	n := len(p.elements)
	for start := 0; start+n <= len(tokens); start++ {
		errs := 0
		for i, el := range p.elements {
			errs += el.cost(tokens[start+i])
			if errs > p.maxErrors {
				break
			}
		}
		if errs <= p.maxErrors {
			return true
		}
	}
	return false
}

// cost returns the edits needed for token to satisfy the element.
func (e addressElement) cost(token string) int {
	if e.initial {
		r, _ := utf8.DecodeRuneInString(token)
		if string(r) == e.text {
			return 0
		}
		return 1
	}
	if strings.HasPrefix(token, e.text) {
		return 0
	}
	prefix := token
	if len(prefix) > len(e.text) {
		prefix = prefix[:len(e.text)]
	}
	return smetrics.WagnerFischer(e.text, prefix, 1, 1, 1)
}
