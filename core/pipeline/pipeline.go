package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"recon-engine/core/graph"
	"recon-engine/core/rules"
)

// Event is one normalized record arrival. RecordID is optional; absent IDs
// are generated on insert.
type Event struct {
	RecordID  string              `json:"record_id,omitempty"`
	Role      graph.Role          `json:"role"`
	Amount    decimal.NullDecimal `json:"amount"`
	Currency  string              `json:"currency,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	Fields    map[string]string   `json:"fields,omitempty"`
}

// RuleSource supplies the active matching rules for a job. The pipeline does
// not own rule storage; a collaborator (DB-backed store, static map) does.
type RuleSource interface {
	RulesFor(ctx context.Context, jobID string) ([]rules.MatchingRule, error)
}

// RuleSourceFunc adapts a function to the RuleSource interface.
type RuleSourceFunc func(ctx context.Context, jobID string) ([]rules.MatchingRule, error)

func (f RuleSourceFunc) RulesFor(ctx context.Context, jobID string) ([]rules.MatchingRule, error) {
	return f(ctx, jobID)
}

// Config holds the pipeline tuning knobs.
type Config struct {
	// IntervalMs is the drain cadence in milliseconds.
	IntervalMs int `mapstructure:"interval_ms" default:"100"`
	// BatchSize bounds how many events one drain cycle processes; reaching it
	// also triggers an immediate drain.
	BatchSize int `mapstructure:"batch_size" default:"100"`
	// MatchFloor is the minimum composite confidence for an edge.
	MatchFloor float64 `mapstructure:"match_floor" default:"0.5"`
	// MaxQueue bounds the per-job queue; 0 keeps it unbounded. Overflowing
	// events are rejected and counted.
	MaxQueue int `mapstructure:"max_queue" default:"0"`
}

func (c Config) withDefaults() Config {
	if c.IntervalMs <= 0 {
		c.IntervalMs = 100
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MatchFloor <= 0 {
		c.MatchFloor = rules.DefaultMatchFloor
	}
	return c
}

// Pipeline ingests record events for any number of independent jobs.
type Pipeline struct {
	cfg      Config
	registry *graph.Registry
	source   RuleSource
	logger   *zap.Logger

	mu     sync.Mutex
	jobs   map[string]*jobQueue
	closed bool
	stop   chan struct{}
	wg     sync.WaitGroup
}

// jobQueue is one job's buffer plus drain state. Each job is an independent
// unit of concurrency with its own worker.
type jobQueue struct {
	mu       sync.Mutex
	events   []Event
	draining bool
	rejected uint64
	kick     chan struct{}
}

// New creates a pipeline over the given registry and rule source. A nil
// logger falls back to a no-op logger.
func New(cfg Config, registry *graph.Registry, source RuleSource, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:      cfg.withDefaults(),
		registry: registry,
		source:   source,
		logger:   logger,
		jobs:     make(map[string]*jobQueue),
		stop:     make(chan struct{}),
	}
}

// Enqueue appends an event to the job's queue and returns immediately. It
// never blocks the caller; when the bounded queue is full the event is
// rejected and counted instead.
func (p *Pipeline) Enqueue(jobID string, event Event) {
	q := p.queueFor(jobID)
	if q == nil {
		return // pipeline closed
	}

	q.mu.Lock()
	if p.cfg.MaxQueue > 0 && len(q.events) >= p.cfg.MaxQueue {
		q.rejected++
		rejected := q.rejected
		q.mu.Unlock()
		p.logger.Warn("Ingestion queue full, event rejected",
			zap.String("job_id", jobID),
			zap.Uint64("rejected_total", rejected),
		)
		return
	}
	q.events = append(q.events, event)
	backlog := len(q.events)
	q.mu.Unlock()

	if backlog >= p.cfg.BatchSize {
		select {
		case q.kick <- struct{}{}:
		default:
		}
	}
}

// QueueDepth returns the number of events waiting for the job.
func (p *Pipeline) QueueDepth(jobID string) int {
	p.mu.Lock()
	q, ok := p.jobs[jobID]
	p.mu.Unlock()
	if !ok {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Rejected returns how many events the bounded queue has rejected for the
// job.
func (p *Pipeline) Rejected(jobID string) uint64 {
	p.mu.Lock()
	q, ok := p.jobs[jobID]
	p.mu.Unlock()
	if !ok {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.rejected
}

// Close stops all drain workers. The in-flight drain of each job finishes;
// queued events that never drained are dropped.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()
}

// queueFor returns the job's queue, creating it and starting its drain
// worker on first use. Returns nil once the pipeline is closed.
func (p *Pipeline) queueFor(jobID string) *jobQueue {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	q, ok := p.jobs[jobID]
	if ok {
		return q
	}

	q = &jobQueue{kick: make(chan struct{}, 1)}
	p.jobs[jobID] = q

	p.wg.Add(1)
	go p.drainLoop(jobID, q)
	return q
}

// drainLoop is the per-job worker: one drain per tick, plus immediate drains
// when the queue reaches the batch size.
func (p *Pipeline) drainLoop(jobID string, q *jobQueue) {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Duration(p.cfg.IntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.drain(jobID, q)
		case <-q.kick:
			p.drain(jobID, q)
		}
	}
}

// drain runs one cycle for the job: pop up to BatchSize events, insert their
// nodes in arrival order, then search for matches. Re-entrant calls while a
// drain is active are no-ops.
func (p *Pipeline) drain(jobID string, q *jobQueue) {
	q.mu.Lock()
	if q.draining || len(q.events) == 0 {
		q.mu.Unlock()
		return
	}
	q.draining = true

	n := len(q.events)
	if n > p.cfg.BatchSize {
		n = p.cfg.BatchSize
	}
	batch := make([]Event, n)
	copy(batch, q.events[:n])
	q.events = q.events[n:]
	remaining := len(q.events)
	q.mu.Unlock()

	p.processBatch(jobID, batch)

	q.mu.Lock()
	q.draining = false
	q.mu.Unlock()

	// Keep the backlog bounded under sustained load.
	if remaining >= p.cfg.BatchSize {
		select {
		case q.kick <- struct{}{}:
		default:
		}
	}
}

// processBatch inserts every event's node in arrival order, then runs the
// match scan. Matches and their broadcasts therefore always happen after the
// whole batch's nodes are in the graph.
func (p *Pipeline) processBatch(jobID string, batch []Event) {
	g := p.registry.GetOrCreate(jobID)

	inserted := make([]graph.FinancialRecord, 0, len(batch))
	for _, event := range batch {
		inserted = append(inserted, p.insertEvent(g, event))
	}

	ruleSet := p.activeRules(jobID)
	if len(ruleSet) == 0 {
		return
	}

	for i := range inserted {
		if err := p.matchRecord(g, &inserted[i], ruleSet); err != nil {
			// Partial-failure isolation: one bad event must not drop the
			// rest of the batch.
			p.logger.Error("Match scan failed",
				zap.String("job_id", jobID),
				zap.String("record_id", inserted[i].ID),
				zap.Error(err),
			)
		}
	}
}

// activeRules fetches and validates the job's rules, once per drain cycle.
// Lookup failures and malformed rule sets disable matching for the cycle and
// are reported once, not per event.
func (p *Pipeline) activeRules(jobID string) []rules.MatchingRule {
	if p.source == nil {
		return nil
	}
	ruleSet, err := p.source.RulesFor(context.Background(), jobID)
	if err != nil {
		p.logger.Error("Rule lookup failed, skipping matching for this cycle",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return nil
	}
	if err := rules.Validate(ruleSet); err != nil {
		p.logger.Error("Invalid rule configuration, skipping matching for this cycle",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return nil
	}
	return rules.ApplyDefaults(ruleSet, rules.DefaultStreamToleranceDays)
}

// insertEvent upserts the event's node and returns the stored record,
// including its assigned insertion sequence.
func (p *Pipeline) insertEvent(g *graph.Graph, event Event) graph.FinancialRecord {
	record := graph.FinancialRecord{
		ID:        event.RecordID,
		Role:      event.Role,
		Kind:      graph.KindTransaction,
		Amount:    event.Amount,
		Currency:  event.Currency,
		Timestamp: event.Timestamp,
		Fields:    event.Fields,
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	g.AddNode(record)

	stored, _ := g.Node(record.ID)
	return stored
}

// matchRecord links the record to every opposite-role candidate whose
// confidence meets the floor. Only earlier-sequence candidates are scanned
// so a pair inside one batch links exactly once.
func (p *Pipeline) matchRecord(g *graph.Graph, record *graph.FinancialRecord, ruleSet []rules.MatchingRule) error {
	opposite, ok := record.Role.Opposite()
	if !ok {
		return nil
	}

	all := g.NodesByRole(opposite)
	candidates := make([]graph.FinancialRecord, 0, len(all))
	for _, candidate := range all {
		if candidate.Seq < record.Seq {
			candidates = append(candidates, candidate)
		}
	}

	for _, match := range rules.Matches(ruleSet, record, candidates, p.cfg.MatchFloor) {
		if err := p.linkMatch(g, record, match); err != nil {
			return err
		}
	}
	return nil
}

// linkMatch creates the edge (source-role record first) and flips both
// endpoints to the match kind. The edge ID is derived from the endpoint pair
// so re-ingesting a record upserts the existing edge instead of duplicating
// it.
func (p *Pipeline) linkMatch(g *graph.Graph, record *graph.FinancialRecord, match rules.MatchResult) error {
	sourceID, targetID := record.ID, match.MatchedRecordID
	if record.Role == graph.RoleTarget {
		sourceID, targetID = targetID, sourceID
	}

	edge := graph.MatchEdge{
		ID:           uuid.NewSHA1(uuid.NameSpaceOID, []byte(g.JobID()+"/"+sourceID+"/"+targetID)).String(),
		SourceNodeID: sourceID,
		TargetNodeID: targetID,
		Relation:     graph.RelationMatches,
		Confidence:   match.Confidence,
		CreatedAt:    time.Now(),
	}
	if err := g.AddEdge(edge); err != nil {
		return fmt.Errorf("link %s -> %s: %w", sourceID, targetID, err)
	}
	if err := g.MarkMatched(record.ID, match.Confidence); err != nil {
		return err
	}
	return g.MarkMatched(match.MatchedRecordID, match.Confidence)
}
