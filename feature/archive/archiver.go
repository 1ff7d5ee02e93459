package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recon-engine/core/broadcast"
	"recon-engine/core/graph"
	"recon-engine/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Export is the serialized form of an archived job graph.
type Export struct {
	JobID      string            `json:"job_id"`
	ArchivedAt time.Time         `json:"archived_at"`
	Snapshot   graph.Snapshot    `json:"snapshot"`
	Graph      graph.QueryResult `json:"graph"`
}

// Archiver writes job graphs to the archive bucket and tears down the
// in-memory state afterwards.
type Archiver struct {
	client   storage.Client
	bucket   string
	registry *graph.Registry
	hub      *broadcast.Hub
	logger   *zap.Logger
}

// NewArchiver creates a new archiver.
func NewArchiver(client storage.Client, bucket string, registry *graph.Registry, hub *broadcast.Hub, logger *zap.Logger) *Archiver {
	return &Archiver{
		client:   client,
		bucket:   bucket,
		registry: registry,
		hub:      hub,
		logger:   logger,
	}
}

// ErrUnknownJob is returned when the job has no in-memory graph to archive.
var ErrUnknownJob = errors.New("unknown job")

// ObjectName returns the storage key an archived job is written to.
func ObjectName(jobID string) string {
	return fmt.Sprintf("jobs/%s/graph.json", jobID)
}

// Archive exports a job's graph to storage, then discards the graph and its
// subscribers. The graph stays intact when the upload fails.
func (a *Archiver) Archive(ctx context.Context, jobID string) (*Export, error) {
	g, ok := a.registry.Get(jobID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}

	export := Export{
		JobID:      jobID,
		ArchivedAt: time.Now().UTC(),
		Snapshot:   g.Snapshot(),
		Graph:      g.Export(),
	}

	payload, err := json.Marshal(export)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize graph for job %s: %w", jobID, err)
	}

	objectName := ObjectName(jobID)
	_, err = a.client.PutObject(ctx, a.bucket, objectName,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return nil, fmt.Errorf("failed to upload archive for job %s: %w", jobID, err)
	}

	// Teardown happens only after the upload succeeded.
	a.registry.Discard(jobID)
	a.hub.Drop(jobID)

	a.logger.Info("Job archived",
		zap.String("job_id", jobID),
		zap.String("object", objectName),
		zap.Int("nodes", export.Snapshot.NodeCount),
		zap.Int("edges", export.Snapshot.EdgeCount),
	)
	return &export, nil
}

// Load reads a previously archived job graph back from storage.
func (a *Archiver) Load(ctx context.Context, jobID string) (*Export, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, ObjectName(jobID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archive for job %s: %w", jobID, err)
	}
	defer obj.Close()

	var export Export
	if err := json.NewDecoder(obj).Decode(&export); err != nil {
		return nil, fmt.Errorf("failed to decode archive for job %s: %w", jobID, err)
	}
	return &export, nil
}

// EnsureBucket creates the archive bucket when it does not exist yet.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check archive bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create archive bucket: %w", err)
	}
	a.logger.Info("Created archive bucket", zap.String("bucket", a.bucket))
	return nil
}
