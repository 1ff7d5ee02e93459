package jobs

import (
	"recon-engine/core/batch"
	"recon-engine/core/broadcast"
	"recon-engine/core/graph"
	"recon-engine/core/pipeline"
	"recon-engine/core/rules"

	"go.uber.org/zap"
)

// BatchRequest carries the full input of a synchronous batch run.
type BatchRequest struct {
	Source        []graph.FinancialRecord `json:"source"`
	Target        []graph.FinancialRecord `json:"target"`
	Rules         []rules.MatchingRule    `json:"rules"`
	StrategyOrder batch.StrategyOrder     `json:"strategy_order,omitempty"`
}

// Service ties the pipeline, graph registry and broadcast hub together for
// the HTTP layer.
type Service struct {
	registry *graph.Registry
	pipeline *pipeline.Pipeline
	hub      *broadcast.Hub
	logger   *zap.Logger
}

// NewService creates a new jobs service.
func NewService(registry *graph.Registry, pipe *pipeline.Pipeline, hub *broadcast.Hub, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		pipeline: pipe,
		hub:      hub,
		logger:   logger,
	}
}

// Ingest enqueues one record event for asynchronous matching.
func (s *Service) Ingest(jobID string, event pipeline.Event) {
	s.pipeline.Enqueue(jobID, event)
}

// RunBatch reconciles two record sets synchronously and returns the full
// report. It does not touch the job's streaming graph.
func (s *Service) RunBatch(jobID string, req BatchRequest) (*batch.Result, error) {
	for i := range req.Source {
		req.Source[i].JobID = jobID
		req.Source[i].Role = graph.RoleSource
	}
	for i := range req.Target {
		req.Target[i].JobID = jobID
		req.Target[i].Role = graph.RoleTarget
	}
	return batch.Run(req.Source, req.Target, req.Rules, req.StrategyOrder)
}

// Query filters the job's graph. An unknown job yields an empty result, not
// an error; jobs come into existence lazily on first ingest.
func (s *Service) Query(jobID string, filter graph.Filter) graph.QueryResult {
	g, ok := s.registry.Get(jobID)
	if !ok {
		return graph.QueryResult{}
	}
	return g.Query(filter)
}

// Snapshot returns the job's counts without copying nodes or edges.
func (s *Service) Snapshot(jobID string) (graph.Snapshot, bool) {
	g, ok := s.registry.Get(jobID)
	if !ok {
		return graph.Snapshot{}, false
	}
	return g.Snapshot(), true
}

// Subscribe registers a live update handler for a job and returns the
// unsubscribe function.
func (s *Service) Subscribe(jobID string, handler broadcast.Handler) func() {
	return s.hub.Subscribe(jobID, handler)
}

// ActiveJobs lists the jobs currently holding an in-memory graph.
func (s *Service) ActiveJobs() []string {
	return s.registry.Jobs()
}

// QueueDepth reports the pending event count for a job.
func (s *Service) QueueDepth(jobID string) int {
	return s.pipeline.QueueDepth(jobID)
}
