// Package batch implements one-shot reconciliation of a closed set of source
// and target records, typically for historical or re-run jobs. It is an
// independent entry point that bypasses the streaming pipeline.
//
// # Algorithm
//
// Rules are partitioned into an exact group (exact, range, dateRange) and a
// fuzzy group, applied as two ordered strategy passes. Within a pass, each
// unmatched source record scans the unmatched target records in input order
// and greedily accepts the first candidate whose composite confidence over
// that pass's rule subset meets the pass threshold. The exact pass requires
// full confidence (every rule in the subset satisfied); the fuzzy pass uses
// the shared 0.5 match floor.
//
// Greedy first-match acceptance is an approximation, not globally optimal
// bipartite matching; it is deterministic given identical input ordering and
// rule set, with ties broken by input order.
//
// After both passes, every record still unmatched on either side produces a
// missing-counterpart ReconciliationException, so
//
//	2*len(matches) + len(exceptions) == len(sources) + len(targets)
//
// always holds.
package batch
