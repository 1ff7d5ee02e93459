package rules

import "fmt"

// RuleType selects the comparison a rule performs.
type RuleType string

const (
	// TypeExact compares the normalized string forms for strict equality.
	TypeExact RuleType = "exact"
	// TypeFuzzy compares strings by normalized edit distance against the
	// rule's threshold.
	TypeFuzzy RuleType = "fuzzy"
	// TypeRange compares numeric values within the rule's absolute tolerance.
	TypeRange RuleType = "range"
	// TypeDateRange compares instants within the rule's day tolerance.
	TypeDateRange RuleType = "dateRange"
)

// Reserved field names that read typed record fields instead of the opaque
// fields map.
const (
	FieldAmount    = "amount"
	FieldCurrency  = "currency"
	FieldTimestamp = "timestamp"
)

// Defaults applied by ApplyDefaults when a rule leaves a knob unset.
const (
	DefaultWeight    = 1.0
	DefaultThreshold = 0.8
	DefaultTolerance = 0.01

	// DefaultBatchToleranceDays and DefaultStreamToleranceDays differ because
	// streaming compares records arriving close together in time, while batch
	// runs reconcile whole historical windows.
	DefaultBatchToleranceDays  = 7
	DefaultStreamToleranceDays = 1

	// DefaultMatchFloor is the minimum composite confidence for a candidate
	// pair to become a match edge.
	DefaultMatchFloor = 0.5
)

// MatchingRule is one declarative field comparison. Weight scales the rule's
// contribution to the composite confidence; Threshold, Tolerance and
// ToleranceDays parameterize the fuzzy, range and dateRange types
// respectively.
type MatchingRule struct {
	Field         string   `json:"field"`
	Type          RuleType `json:"type"`
	Weight        float64  `json:"weight,omitempty"`
	Threshold     float64  `json:"threshold,omitempty"`
	Tolerance     float64  `json:"tolerance,omitempty"`
	ToleranceDays int      `json:"tolerance_days,omitempty"`
}

// MatchResult describes one accepted candidate: the matched record, the
// composite confidence, and the fields of the rules that contributed.
type MatchResult struct {
	MatchedRecordID   string   `json:"matched_record_id"`
	Confidence        float64  `json:"confidence"`
	ContributingRules []string `json:"contributing_rules"`
}

// ConfigError reports a malformed rule set. It is fatal to the operation
// that supplied the rules and is reported once, not per comparison.
type ConfigError struct {
	Index  int
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid matching rule at index %d: %s", e.Index, e.Reason)
}

// Validate checks a rule set for configuration errors: empty field names,
// unknown rule types, non-positive weights.
func Validate(ruleSet []MatchingRule) error {
	for i, rule := range ruleSet {
		if rule.Field == "" {
			return &ConfigError{Index: i, Reason: "field must not be empty"}
		}
		switch rule.Type {
		case TypeExact, TypeFuzzy, TypeRange, TypeDateRange:
		default:
			return &ConfigError{Index: i, Reason: fmt.Sprintf("unknown rule type %q", rule.Type)}
		}
		if rule.Weight < 0 {
			return &ConfigError{Index: i, Reason: "weight must not be negative"}
		}
	}
	return nil
}

// ApplyDefaults fills unset rule knobs. toleranceDays is caller-supplied
// because batch and streaming carry different defaults.
func ApplyDefaults(ruleSet []MatchingRule, toleranceDays int) []MatchingRule {
	out := make([]MatchingRule, len(ruleSet))
	for i, rule := range ruleSet {
		if rule.Weight == 0 {
			rule.Weight = DefaultWeight
		}
		if rule.Threshold == 0 {
			rule.Threshold = DefaultThreshold
		}
		if rule.Tolerance == 0 {
			rule.Tolerance = DefaultTolerance
		}
		if rule.ToleranceDays == 0 {
			rule.ToleranceDays = toleranceDays
		}
		out[i] = rule
	}
	return out
}
