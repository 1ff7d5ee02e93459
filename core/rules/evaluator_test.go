package rules

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recon-engine/core/graph"
)

func sourceRecord(fields map[string]string) *graph.FinancialRecord {
	return &graph.FinancialRecord{
		ID:     "left",
		Role:   graph.RoleSource,
		Fields: fields,
	}
}

func targetRecord(fields map[string]string) *graph.FinancialRecord {
	return &graph.FinancialRecord{
		ID:     "right",
		Role:   graph.RoleTarget,
		Fields: fields,
	}
}

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestEvaluate_Exact(t *testing.T) {
	rule := MatchingRule{Field: "referenceId", Type: TypeExact, Weight: 1}

	assert.True(t, Evaluate(rule,
		sourceRecord(map[string]string{"referenceId": "INV-1001"}),
		targetRecord(map[string]string{"referenceId": "INV-1001"})))

	assert.False(t, Evaluate(rule,
		sourceRecord(map[string]string{"referenceId": "INV-1001"}),
		targetRecord(map[string]string{"referenceId": "INV-1002"})))
}

func TestEvaluate_ExactOnReservedFields(t *testing.T) {
	left := &graph.FinancialRecord{ID: "l", Amount: amount("100.00"), Currency: "USD"}
	right := &graph.FinancialRecord{ID: "r", Amount: amount("100.0"), Currency: "USD"}

	// Decimal values compare by value, not by string form.
	assert.True(t, Evaluate(MatchingRule{Field: FieldAmount, Type: TypeExact, Weight: 1}, left, right))
	assert.True(t, Evaluate(MatchingRule{Field: FieldCurrency, Type: TypeExact, Weight: 1}, left, right))

	right.Currency = "EUR"
	assert.False(t, Evaluate(MatchingRule{Field: FieldCurrency, Type: TypeExact, Weight: 1}, left, right))
}

func TestEvaluate_Fuzzy(t *testing.T) {
	rule := MatchingRule{Field: "referenceId", Type: TypeFuzzy, Weight: 1, Threshold: 0.8}

	// OCR-style typo: one substituted character out of eight, similarity 0.875.
	assert.True(t, Evaluate(rule,
		sourceRecord(map[string]string{"referenceId": "INV-1001"}),
		targetRecord(map[string]string{"referenceId": "INV-1O01"})))

	assert.False(t, Evaluate(rule,
		sourceRecord(map[string]string{"referenceId": "INV-1001"}),
		targetRecord(map[string]string{"referenceId": "PAY-9999"})))
}

func TestEvaluate_FuzzyTypeMismatch(t *testing.T) {
	// Fuzzy over the decimal amount field is a type mismatch: false, no panic.
	rule := MatchingRule{Field: FieldAmount, Type: TypeFuzzy, Weight: 1, Threshold: 0.8}
	left := &graph.FinancialRecord{ID: "l", Amount: amount("100.00")}
	right := &graph.FinancialRecord{ID: "r", Amount: amount("100.00")}

	assert.False(t, Evaluate(rule, left, right))
}

func TestEvaluate_Range(t *testing.T) {
	rule := MatchingRule{Field: FieldAmount, Type: TypeRange, Weight: 1, Tolerance: 0.01}

	tests := []struct {
		name  string
		left  string
		right string
		want  bool
	}{
		{"Exact", "100.00", "100.00", true},
		{"Boundary", "100.00", "100.01", true},
		{"Outside", "100.00", "100.02", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left := &graph.FinancialRecord{ID: "l", Amount: amount(tt.left)}
			right := &graph.FinancialRecord{ID: "r", Amount: amount(tt.right)}
			assert.Equal(t, tt.want, Evaluate(rule, left, right))
		})
	}
}

func TestEvaluate_RangeOnStringField(t *testing.T) {
	rule := MatchingRule{Field: "fee", Type: TypeRange, Weight: 1, Tolerance: 0.5}

	assert.True(t, Evaluate(rule,
		sourceRecord(map[string]string{"fee": "10.2"}),
		targetRecord(map[string]string{"fee": "10.5"})))

	// Non-numeric string on one side: type mismatch, evaluates false.
	assert.False(t, Evaluate(rule,
		sourceRecord(map[string]string{"fee": "10.2"}),
		targetRecord(map[string]string{"fee": "n/a"})))
}

func TestEvaluate_DateRange(t *testing.T) {
	rule := MatchingRule{Field: FieldTimestamp, Type: TypeDateRange, Weight: 1, ToleranceDays: 1}
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	left := &graph.FinancialRecord{ID: "l", Timestamp: base}
	within := &graph.FinancialRecord{ID: "r", Timestamp: base.Add(20 * time.Hour)}
	outside := &graph.FinancialRecord{ID: "r", Timestamp: base.Add(30 * time.Hour)}

	assert.True(t, Evaluate(rule, left, within))
	assert.False(t, Evaluate(rule, left, outside))
}

func TestEvaluate_MissingField(t *testing.T) {
	rule := MatchingRule{Field: "referenceId", Type: TypeExact, Weight: 1}

	assert.False(t, Evaluate(rule,
		sourceRecord(map[string]string{"referenceId": "INV-1001"}),
		targetRecord(nil)))

	// Unset optional amount counts as missing.
	rangeRule := MatchingRule{Field: FieldAmount, Type: TypeRange, Weight: 1, Tolerance: 0.01}
	assert.False(t, Evaluate(rangeRule,
		&graph.FinancialRecord{ID: "l", Amount: amount("10")},
		&graph.FinancialRecord{ID: "r"}))
}

func TestComposite(t *testing.T) {
	left := &graph.FinancialRecord{
		ID:        "l",
		Amount:    amount("100.00"),
		Timestamp: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Fields:    map[string]string{"referenceId": "INV-1001"},
	}
	right := &graph.FinancialRecord{
		ID:        "r",
		Amount:    amount("150.00"),
		Timestamp: time.Date(2024, 5, 1, 4, 0, 0, 0, time.UTC),
		Fields:    map[string]string{"referenceId": "INV-1001"},
	}

	ruleSet := []MatchingRule{
		{Field: "referenceId", Type: TypeExact, Weight: 2},
		{Field: FieldAmount, Type: TypeRange, Weight: 1, Tolerance: 0.01},
		{Field: FieldTimestamp, Type: TypeDateRange, Weight: 1, ToleranceDays: 1},
	}

	result := Composite(ruleSet, left, right)
	assert.Equal(t, "r", result.MatchedRecordID)
	assert.InDelta(t, 0.75, result.Confidence, 1e-9) // 3 of 4 weight units
	assert.Equal(t, []string{"referenceId", "timestamp"}, result.ContributingRules)
}

func TestCompositeConfidence_Bounds(t *testing.T) {
	left := sourceRecord(map[string]string{"referenceId": "A"})
	right := targetRecord(map[string]string{"referenceId": "A"})

	assert.Equal(t, 0.0, CompositeConfidence(nil, left, right), "empty rule set yields 0")

	single := []MatchingRule{{Field: "referenceId", Type: TypeExact, Weight: 1}}
	assert.Equal(t, 1.0, CompositeConfidence(single, left, right))

	miss := []MatchingRule{{Field: "missing", Type: TypeExact, Weight: 1}}
	assert.Equal(t, 0.0, CompositeConfidence(miss, left, right))
}

// Scenario: a single fuzzy rule on an OCR-like reference typo is satisfied,
// so the composite confidence over that one rule is 1.0.
func TestComposite_SingleFuzzyRuleScenario(t *testing.T) {
	ruleSet := ApplyDefaults([]MatchingRule{{Field: "referenceId", Type: TypeFuzzy}}, DefaultBatchToleranceDays)

	result := Composite(ruleSet,
		sourceRecord(map[string]string{"referenceId": "INV-1001"}),
		targetRecord(map[string]string{"referenceId": "INV-1O01"}))

	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, []string{"referenceId"}, result.ContributingRules)
}

func TestMatches(t *testing.T) {
	ruleSet := []MatchingRule{{Field: "referenceId", Type: TypeExact, Weight: 1}}
	left := sourceRecord(map[string]string{"referenceId": "INV-1001"})

	candidates := []graph.FinancialRecord{
		{ID: "c1", Fields: map[string]string{"referenceId": "OTHER"}},
		{ID: "c2", Fields: map[string]string{"referenceId": "INV-1001"}},
		{ID: "c3", Fields: map[string]string{"referenceId": "INV-1001"}},
	}

	results := Matches(ruleSet, left, candidates, DefaultMatchFloor)
	require.Len(t, results, 2)
	assert.Equal(t, "c2", results[0].MatchedRecordID)
	assert.Equal(t, "c3", results[1].MatchedRecordID)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		ruleSet []MatchingRule
		wantErr bool
	}{
		{"Valid", []MatchingRule{{Field: "referenceId", Type: TypeExact}}, false},
		{"Empty field", []MatchingRule{{Type: TypeExact}}, true},
		{"Unknown type", []MatchingRule{{Field: "x", Type: "soundex"}}, true},
		{"Negative weight", []MatchingRule{{Field: "x", Type: TypeExact, Weight: -1}}, true},
		{"Empty set", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.ruleSet)
			if tt.wantErr {
				var cfgErr *ConfigError
				require.ErrorAs(t, err, &cfgErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	ruleSet := ApplyDefaults([]MatchingRule{{Field: "referenceId", Type: TypeFuzzy}}, DefaultStreamToleranceDays)

	require.Len(t, ruleSet, 1)
	assert.Equal(t, DefaultWeight, ruleSet[0].Weight)
	assert.Equal(t, DefaultThreshold, ruleSet[0].Threshold)
	assert.Equal(t, DefaultTolerance, ruleSet[0].Tolerance)
	assert.Equal(t, DefaultStreamToleranceDays, ruleSet[0].ToleranceDays)

	// Explicit values are preserved.
	custom := ApplyDefaults([]MatchingRule{{Field: "x", Type: TypeRange, Weight: 3, Tolerance: 0.5}}, 7)
	assert.Equal(t, 3.0, custom[0].Weight)
	assert.Equal(t, 0.5, custom[0].Tolerance)
}
