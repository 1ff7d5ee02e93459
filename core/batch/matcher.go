package batch

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"recon-engine/core/graph"
	"recon-engine/core/rules"
)

// StrategyOrder fixes the order of the two rule passes.
type StrategyOrder string

const (
	ExactFirst StrategyOrder = "exact-first"
	FuzzyFirst StrategyOrder = "fuzzy-first"
)

// ExceptionCategory classifies a reconciliation exception.
type ExceptionCategory string

// CategoryMissingCounterpart marks a record with no acceptable counterpart
// after all strategy passes.
const CategoryMissingCounterpart ExceptionCategory = "missingCounterpart"

// Match pairs one source and one target record with the confidence and
// contributing rules of the pass that accepted it.
type Match struct {
	SourceID          string   `json:"source_id"`
	TargetID          string   `json:"target_id"`
	Confidence        float64  `json:"confidence"`
	ContributingRules []string `json:"contributing_rules"`
}

// Exception records a transaction left unmatched after all passes.
type Exception struct {
	ID          string            `json:"id"`
	JobID       string            `json:"job_id"`
	RecordID    string            `json:"record_id"`
	Category    ExceptionCategory `json:"category"`
	Description string            `json:"description"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Result is the complete outcome of one batch run. Every input record
// appears exactly once, either inside a match or as an exception.
type Result struct {
	Matches    []Match     `json:"matches"`
	Exceptions []Exception `json:"exceptions"`
}

// Run reconciles the closed source and target sets under the given rules.
// A malformed rule set fails the whole run with a single configuration
// error before any comparison happens.
func Run(sources, targets []graph.FinancialRecord, ruleSet []rules.MatchingRule, order StrategyOrder) (*Result, error) {
	if err := rules.Validate(ruleSet); err != nil {
		return nil, err
	}
	switch order {
	case ExactFirst, FuzzyFirst, "":
	default:
		return nil, fmt.Errorf("unknown strategy order %q", order)
	}
	if order == "" {
		order = ExactFirst
	}

	ruleSet = rules.ApplyDefaults(ruleSet, rules.DefaultBatchToleranceDays)
	exactRules, fuzzyRules := partition(ruleSet)

	passes := []pass{
		{rules: exactRules, threshold: 1.0},
		{rules: fuzzyRules, threshold: rules.DefaultMatchFloor},
	}
	if order == FuzzyFirst {
		passes[0], passes[1] = passes[1], passes[0]
	}

	result := &Result{
		Matches:    make([]Match, 0),
		Exceptions: make([]Exception, 0),
	}
	sourceMatched := make([]bool, len(sources))
	targetMatched := make([]bool, len(targets))

	for _, p := range passes {
		if len(p.rules) == 0 {
			continue
		}
		runPass(p, sources, targets, sourceMatched, targetMatched, result)
	}

	now := time.Now()
	for i := range sources {
		if !sourceMatched[i] {
			result.Exceptions = append(result.Exceptions, newException(&sources[i], now))
		}
	}
	for i := range targets {
		if !targetMatched[i] {
			result.Exceptions = append(result.Exceptions, newException(&targets[i], now))
		}
	}

	return result, nil
}

type pass struct {
	rules     []rules.MatchingRule
	threshold float64
}

// runPass greedily pairs unmatched sources with the first unmatched target
// meeting the pass threshold, in input order.
func runPass(p pass, sources, targets []graph.FinancialRecord, sourceMatched, targetMatched []bool, result *Result) {
	for si := range sources {
		if sourceMatched[si] {
			continue
		}
		for ti := range targets {
			if targetMatched[ti] {
				continue
			}
			eval := rules.Composite(p.rules, &sources[si], &targets[ti])
			if eval.Confidence < p.threshold {
				continue
			}
			sourceMatched[si] = true
			targetMatched[ti] = true
			result.Matches = append(result.Matches, Match{
				SourceID:          sources[si].ID,
				TargetID:          targets[ti].ID,
				Confidence:        eval.Confidence,
				ContributingRules: eval.ContributingRules,
			})
			break
		}
	}
}

// partition splits the rule set into the exact-pass group (exact, range,
// dateRange) and the fuzzy-pass group.
func partition(ruleSet []rules.MatchingRule) (exact, fuzzy []rules.MatchingRule) {
	for _, rule := range ruleSet {
		if rule.Type == rules.TypeFuzzy {
			fuzzy = append(fuzzy, rule)
		} else {
			exact = append(exact, rule)
		}
	}
	return exact, fuzzy
}

func newException(record *graph.FinancialRecord, now time.Time) Exception {
	return Exception{
		ID:          uuid.NewString(),
		JobID:       record.JobID,
		RecordID:    record.ID,
		Category:    CategoryMissingCounterpart,
		Description: fmt.Sprintf("no counterpart found for %s record %s", record.Role, record.ID),
		CreatedAt:   now,
	}
}
