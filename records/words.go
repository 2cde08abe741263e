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

package records

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxCommonWordLen bounds the words CommonWords reports. Longer words are
// full words in a query, never abbreviation material.
const MaxCommonWordLen = 4

// WordCount is a name token and the number of records using it.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// CommonWords returns up to limit of the most frequent name tokens whose
// length is between 2 and MaxCommonWordLen. Ties keep first-seen order.
// These are candidates for the abbreviation matcher's common-word list.
func CommonWords(t *Table, limit int) []WordCount {
	counts := make(map[string]int)
	var order []string
	for _, r := range t.Records() {
		for _, w := range strings.Fields(strings.ToLower(r.Name)) {
			if counts[w] == 0 {
				order = append(order, w)
			}
			counts[w]++
		}
	}

	ranked := make([]WordCount, 0, len(order))
	for _, w := range order {
		n := utf8.RuneCountInString(w)
		if n > 1 && n <= MaxCommonWordLen {
			ranked = append(ranked, WordCount{Word: w, Count: counts[w]})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
