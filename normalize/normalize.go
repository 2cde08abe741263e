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

package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	punctuation = regexp.MustCompile(`[.,"'()\-]`)
	digits      = regexp.MustCompile(`[0-9]`)
	whitespace  = regexp.MustCompile(`\s+`)

	// a run of two or more single non-digit tokens, e.g. "r k" in "r k puram"
	singleLetterRun = regexp.MustCompile(`\b\D\b(\s+\b\D\b)+`)
)

// Clean returns the normalized key form of text. Empty input yields "".
func Clean(text string) string {
	s := StripPunctuation(text)
	if s == "" {
		return ""
	}
	return singleLetterRun.ReplaceAllStringFunc(s, func(run string) string {
		return whitespace.ReplaceAllString(run, "")
	})
}

// StripPunctuation lowercases and accent-folds text, removes the
// punctuation characters . , " ' ( ) - and collapses whitespace.
// Unlike Clean it leaves single-letter tokens separate.
func StripPunctuation(text string) string {
	s := FoldAccents(strings.ToLower(text))
	s = punctuation.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// FoldAccents removes combining marks so "é" compares equal to "e".
func FoldAccents(text string) string {
	if isASCII(text) {
		return text
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// Abbreviate returns the initials of each whitespace-separated token when
// text has more than one token, or the single token itself. Digits are
// removed and the result is lowercased.
func Abbreviate(text string) string {
	tokens := strings.Fields(text)
	var out string
	switch len(tokens) {
	case 0:
		return ""
	case 1:
		out = tokens[0]
	default:
		var b strings.Builder
		for _, tok := range tokens {
			r, _ := utf8.DecodeRuneInString(tok)
			b.WriteRune(r)
		}
		out = b.String()
	}
	return strings.ToLower(digits.ReplaceAllString(out, ""))
}

// Tokens lowercases text and splits it on whitespace.
func Tokens(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// FirstLetterCode returns the first rune of the lowercased, trimmed text,
// or 0 when text is blank.
func FirstLetterCode(text string) rune {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(strings.ToLower(s))
	return r
}

// Title converts text to display title case ("DELHI public" becomes "Delhi Public").
func Title(text string) string {
	// a Caser keeps state between calls and must not be shared
	return cases.Title(language.Und).String(text)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
