// Package archive persists finished job graphs to object storage.
//
// Archiving is the teardown path for a job: the full graph export is
// serialized to JSON and written to the archive bucket under
// jobs/<jobId>/graph.json, then the in-memory graph is discarded and the
// job's stream subscribers are dropped. The engine itself never touches
// storage during matching; durability only happens here.
package archive
