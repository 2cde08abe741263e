// Package match ranks candidate records against a free-text query.
//
// Two matchers share the Matcher interface:
//
//   - Abbreviation treats short tokens as initials ("dps rkp" for
//     "Delhi Public School, R K Puram"). It scans the candidate table with a
//     letter-sequence pattern over cleaned names, scores the name initials
//     with Jaro-Winkler and, when the dataset has addresses, narrows the
//     matches with an edit-tolerant address pattern. Scores lie in [0, 105].
//
//   - Fuzzy embeds the query, takes the SemanticTopK nearest cached keys by
//     cosine similarity, re-ranks them with a token-set ratio and blends the
//     two signals. Scores lie in [0, 100].
//
// Both return display-ready matches: title-cased names and addresses with
// scores rounded to four decimal places.
package match
