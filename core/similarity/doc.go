// Package similarity provides the low-level comparison primitives used by the
// matching rules: approximate string comparison and tolerance-based numeric
// and date comparison.
//
// All functions are pure and allocation-light; they carry no state and have no
// failure modes. Rule evaluation semantics (thresholds, weights, dispatch on
// rule type) live in core/rules; this package only answers "how close are
// these two values".
//
// # String Similarity
//
// StringSimilarity normalizes Levenshtein edit distance into [0, 1]:
//
//	similarity = 1 - distance(a, b) / max(len(a), len(b))
//
// The distance is computed over runes with the classic dynamic-programming
// table. Reference identifiers are tens of characters long, so the O(n*m)
// cost is negligible; inputs longer than maxCompareLength runes are truncated
// before comparing.
package similarity
