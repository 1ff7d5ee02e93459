// Package rules defines the declarative matching-rule model and the single
// evaluator shared by the batch and streaming paths.
//
// A MatchingRule names a record field and a comparison type. The reserved
// field names amount, currency and timestamp read the typed record fields;
// every other name reads the record's opaque fields map.
//
// # Evaluation Semantics
//
// Rule evaluation never fails: a type mismatch (a fuzzy rule over a
// non-string value, a range rule over a non-numeric value) or a field missing
// on either side simply evaluates to false and does not contribute. Only
// rule-set validation errors (unknown type, empty field) propagate, as a
// typed ConfigError, and they fail the whole operation once rather than once
// per comparison.
//
// CompositeConfidence is the weighted fraction of satisfied rules:
//
//	sum(weight of satisfied rules) / sum(all weights)
//
// It is the one confidence function in the system; batch and streaming both
// call it so the two paths can never drift apart.
package rules
