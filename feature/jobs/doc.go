// Package jobs exposes the reconciliation engine over HTTP.
//
// Each reconciliation job is an isolated unit: its own graph, its own rule
// set, its own subscribers. The feature offers:
//
//   - POST /jobs/:jobId/records  enqueue one streaming record event
//   - POST /jobs/:jobId/batch    run a synchronous batch reconciliation
//   - GET  /jobs/:jobId/records  query the job's graph with filters
//   - GET  /jobs/:jobId/snapshot cheap counts without copying the graph
//   - GET  /jobs/:jobId/stream   server-sent events for live graph updates
//
// Streaming ingestion is asynchronous: records are accepted with 202 and
// matched by the pipeline on its drain cadence. Subscribers on the stream
// endpoint observe node and edge updates as they land.
package jobs
