package rules

import (
	"time"

	"github.com/shopspring/decimal"

	"recon-engine/core/graph"
	"recon-engine/core/similarity"
)

// Evaluate dispatches a single rule over two records. Type mismatches and
// missing fields evaluate to false; Evaluate never fails.
func Evaluate(rule MatchingRule, left, right *graph.FinancialRecord) bool {
	leftVal, ok := lookup(left, rule.Field)
	if !ok {
		return false
	}
	rightVal, ok := lookup(right, rule.Field)
	if !ok {
		return false
	}

	switch rule.Type {
	case TypeExact:
		// Typed values compare by value so "100.0" and "100.00" agree.
		if ld, ok := leftVal.(decimal.Decimal); ok {
			rd, rok := asDecimal(rightVal)
			return rok && ld.Equal(rd)
		}
		if lt, ok := leftVal.(time.Time); ok {
			rt, rok := asTime(rightVal)
			return rok && lt.Equal(rt)
		}
		return normalize(leftVal) == normalize(rightVal)
	case TypeFuzzy:
		ls, lok := leftVal.(string)
		rs, rok := rightVal.(string)
		if !lok || !rok {
			return false
		}
		return similarity.StringSimilarity(ls, rs) >= rule.Threshold
	case TypeRange:
		ld, lok := asDecimal(leftVal)
		rd, rok := asDecimal(rightVal)
		if !lok || !rok {
			return false
		}
		return similarity.DecimalWithinTolerance(ld, rd, rule.Tolerance)
	case TypeDateRange:
		lt, lok := asTime(leftVal)
		rt, rok := asTime(rightVal)
		if !lok || !rok {
			return false
		}
		return similarity.DateWithinTolerance(lt, rt, rule.ToleranceDays)
	default:
		return false
	}
}

// Composite evaluates every rule and returns the weighted fraction satisfied
// along with the fields of the contributing rules. An empty rule set yields
// confidence 0.
func Composite(ruleSet []MatchingRule, left, right *graph.FinancialRecord) MatchResult {
	var totalWeight, matchedWeight float64
	var contributing []string

	for _, rule := range ruleSet {
		totalWeight += rule.Weight
		if Evaluate(rule, left, right) {
			matchedWeight += rule.Weight
			contributing = append(contributing, rule.Field)
		}
	}

	result := MatchResult{
		MatchedRecordID:   right.ID,
		ContributingRules: contributing,
	}
	if totalWeight > 0 {
		result.Confidence = matchedWeight / totalWeight
	}
	return result
}

// CompositeConfidence is the single confidence function shared by batch and
// streaming matching.
func CompositeConfidence(ruleSet []MatchingRule, left, right *graph.FinancialRecord) float64 {
	return Composite(ruleSet, left, right).Confidence
}

// Matches scans candidates in order and returns a result for every candidate
// whose composite confidence meets the floor.
func Matches(ruleSet []MatchingRule, left *graph.FinancialRecord, candidates []graph.FinancialRecord, floor float64) []MatchResult {
	var out []MatchResult
	for i := range candidates {
		result := Composite(ruleSet, left, &candidates[i])
		if result.Confidence >= floor {
			out = append(out, result)
		}
	}
	return out
}

// lookup resolves a rule field against a record. Reserved names read the
// typed fields; anything else reads the opaque fields map. Missing or unset
// values report ok=false.
func lookup(record *graph.FinancialRecord, field string) (any, bool) {
	switch field {
	case FieldAmount:
		if !record.Amount.Valid {
			return nil, false
		}
		return record.Amount.Decimal, true
	case FieldCurrency:
		if record.Currency == "" {
			return nil, false
		}
		return record.Currency, true
	case FieldTimestamp:
		if record.Timestamp.IsZero() {
			return nil, false
		}
		return record.Timestamp, true
	default:
		val, ok := record.Fields[field]
		return val, ok
	}
}

// normalize renders a looked-up value in canonical string form for exact
// comparison.
func normalize(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case decimal.Decimal:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return ""
	}
}

func asDecimal(val any) (decimal.Decimal, bool) {
	switch v := val.(type) {
	case decimal.Decimal:
		return v, true
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}

func asTime(val any) (time.Time, bool) {
	switch v := val.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}
