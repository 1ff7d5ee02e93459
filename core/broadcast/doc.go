// Package broadcast implements the per-job subscriber fan-out for graph
// mutations.
//
// Every mutation of a reconciliation graph (node added or updated, edge
// added) produces an Update envelope that is delivered synchronously, in
// subscription order, to every handler currently subscribed to that job.
//
// # Delivery Semantics
//
//   - At-most-once, no history: a subscriber that joins after a mutation never
//     sees it. Callers needing history must snapshot the graph on subscribe.
//   - A panicking handler is recovered and logged; it never prevents delivery
//     to subsequent handlers or aborts the mutation that triggered it.
//   - Subscribe and the returned unsubscribe closure are safe to call while a
//     notification loop is iterating; each notification works on a
//     copy-on-write snapshot of the handler list.
//
// # Usage
//
//	unsubscribe := hub.Subscribe(jobID, func(u broadcast.Update) {
//	    // forward u to an SSE client, metrics sink, etc.
//	})
//	defer unsubscribe()
package broadcast
