package similarity

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// maxCompareLength bounds the Levenshtein table size. Reference fields are
// short identifiers; anything longer is truncated before comparing.
const maxCompareLength = 512

// StringSimilarity returns a normalized similarity score in [0, 1] between
// two strings based on Levenshtein edit distance. Two empty strings are
// identical (1.0). The function is symmetric and StringSimilarity(a, a) == 1
// for all a.
func StringSimilarity(a, b string) float64 {
	ra := truncate([]rune(a))
	rb := truncate([]rune(b))

	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1.0
	}

	dist := levenshtein(ra, rb)
	return 1.0 - float64(dist)/float64(longest)
}

// NumericWithinTolerance reports whether two float values are within the
// given absolute tolerance of each other.
func NumericWithinTolerance(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

// DecimalWithinTolerance reports whether two decimal values are within the
// given absolute tolerance of each other. Monetary amounts are compared this
// way so that binary float representation never decides a match.
func DecimalWithinTolerance(a, b decimal.Decimal, tolerance float64) bool {
	diff := a.Sub(b).Abs()
	return diff.LessThanOrEqual(decimal.NewFromFloat(tolerance))
}

// DateWithinTolerance reports whether two instants are within toleranceDays
// days of each other. The comparison uses elapsed time between the instants;
// no timezone normalization is applied.
func DateWithinTolerance(a, b time.Time, toleranceDays int) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(toleranceDays)*24*time.Hour
}

func truncate(r []rune) []rune {
	if len(r) > maxCompareLength {
		return r[:maxCompareLength]
	}
	return r
}

// levenshtein computes the edit distance between two rune slices with the
// classic two-row dynamic-programming table.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			deletion := prev[j] + 1
			insertion := curr[j-1] + 1
			substitution := prev[j-1] + cost

			min := deletion
			if insertion < min {
				min = insertion
			}
			if substitution < min {
				min = substitution
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
