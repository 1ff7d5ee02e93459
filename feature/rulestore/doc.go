// Package rulestore supplies matching rules to the ingestion pipeline.
//
// Rules live in a MySQL table keyed by job, serialized as JSON. The Store
// caches rule sets per job with a TTL and uses singleflight so concurrent
// drain cycles for the same job trigger at most one database read.
//
// A Static source backed by an in-memory map is provided for batch CLI runs
// and tests, where no database is involved.
package rulestore
