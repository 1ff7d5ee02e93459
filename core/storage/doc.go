// Package storage provides the object-storage client used for job archival.
//
// When a reconciliation job is archived, its full graph is exported as a JSON
// object to an S3-compatible store (MinIO, AWS S3) before the in-memory graph
// is discarded. The MinIO Go client is wrapped behind a small Client
// interface so the archive feature can be mocked in unit tests (see
// core/storage/mocks).
//
// # Operations
//
//   - BucketExists: Verifies access to the archive bucket.
//   - MakeBucket: Creates the archive bucket if needed.
//   - PutObject: Uploads a graph export (with size and options).
//   - GetObject: Retrieves an archived export as a stream.
//   - ListObjects: Lists archived exports (supports prefix/recursive).
//   - RemoveObject: Deletes an archived export.
//
// # Usage
//
//	client, err := storage.NewClient(config)
//	exists, err := client.BucketExists(ctx, "recon-archives")
package storage
