// Package graph implements the per-job in-memory reconciliation graph:
// financial records as nodes, decided match relationships as edges.
//
// # Ownership
//
// A Graph exclusively owns its node and edge maps. All mutation goes through
// AddNode, AddEdge and MarkMatched so that referential invariants and
// broadcast hooks stay centralized; no other component reaches into the maps.
// Read paths (Query, Snapshot, NodesByRole) return copies and may run
// concurrently with ingestion under the graph's RW lock.
//
// # Invariants
//
//   - A record ID is unique within its job; AddNode upserts by ID.
//   - An edge may only connect two records that already exist in the same
//     job's graph. Violations surface as UnknownNodeError and leave the graph
//     unmodified; this is a collaborator bug, not a runtime condition.
//   - A record's kind only moves forward through the lifecycle
//     (transaction -> match/unmatched/error) unless explicitly reset.
//
// # Registry
//
// Graphs are created lazily, one per job, by a Registry instance owned by the
// composition root and injected into the pipeline and query paths. Jobs are
// fully independent units of concurrency; there is no global lock across
// jobs. A graph lives until Registry.Discard removes it (job archival).
package graph
