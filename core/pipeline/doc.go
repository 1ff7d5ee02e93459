// Package pipeline implements the streaming ingestion path: an unbounded
// sequence of record-arrival events per job, buffered and drained in bounded
// batches on a fixed cadence, incrementally mutating the job's
// reconciliation graph.
//
// # Flow
//
// Enqueue appends to the job's FIFO queue and returns immediately; it is the
// only operation exposed to arbitrary concurrent producers. A per-job worker
// drains the queue every Interval, and immediately once the queue reaches
// BatchSize. Each drained event becomes a graph node; if the job has matching
// rules, the new record is scanned against existing opposite-role nodes and
// every candidate whose composite confidence meets the match floor produces a
// match edge and flips both records to the match kind.
//
// # Guarantees
//
//   - FIFO within a job: events are processed in enqueue order, and a batch's
//     matches and broadcasts happen strictly after its nodes are inserted.
//   - Single active drain per job; re-entrant drains are no-ops.
//   - Per-event isolation: one bad event is logged and skipped, the rest of
//     the batch proceeds.
//   - Close stops new drains, lets the in-flight drain finish, and does not
//     flush remaining queued events (best effort on shutdown).
//
// The queue is unbounded unless Config.MaxQueue is set, in which case
// overflowing events are rejected, counted and logged.
package pipeline
