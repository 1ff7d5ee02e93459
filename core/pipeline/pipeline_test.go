package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recon-engine/core/graph"
	"recon-engine/core/rules"
)

func staticRules(ruleSet []rules.MatchingRule) RuleSource {
	return RuleSourceFunc(func(ctx context.Context, jobID string) ([]rules.MatchingRule, error) {
		return ruleSet, nil
	})
}

func refRules() RuleSource {
	return staticRules([]rules.MatchingRule{{Field: "referenceId", Type: rules.TypeExact}})
}

func event(id, reference string, role graph.Role) Event {
	return Event{
		RecordID:  id,
		Role:      role,
		Timestamp: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Fields:    map[string]string{"referenceId": reference},
	}
}

// newTestPipeline returns a pipeline whose ticker is effectively disabled so
// tests drive drains explicitly.
func newTestPipeline(src RuleSource, cfg Config) (*Pipeline, *graph.Registry) {
	if cfg.IntervalMs == 0 {
		cfg.IntervalMs = 60_000
	}
	registry := graph.NewRegistry(nil)
	return New(cfg, registry, src, nil), registry
}

func (p *Pipeline) drainNow(jobID string) {
	p.mu.Lock()
	q := p.jobs[jobID]
	p.mu.Unlock()
	if q != nil {
		p.drain(jobID, q)
	}
}

func TestPipeline_EnqueueIsNonBlocking(t *testing.T) {
	// BatchSize above the event count so no batch-size kick drains the
	// queue while the test is still counting.
	p, _ := newTestPipeline(refRules(), Config{BatchSize: 2000})
	defer p.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			p.Enqueue("job-1", event(fmt.Sprintf("n%d", i), "REF", graph.RoleSource))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Enqueue blocked")
	}
	assert.Equal(t, 1000, p.QueueDepth("job-1"))
}

func TestPipeline_DrainInsertsNodesInFIFOOrder(t *testing.T) {
	p, registry := newTestPipeline(nil, Config{})
	defer p.Close()

	for i := 1; i <= 3; i++ {
		p.Enqueue("job-1", event(fmt.Sprintf("e%d", i), "REF", graph.RoleSource))
	}
	p.drainNow("job-1")

	g, ok := registry.Get("job-1")
	require.True(t, ok)

	result := g.Query(graph.Filter{})
	require.Len(t, result.Nodes, 3)
	for i, node := range result.Nodes {
		assert.Equal(t, fmt.Sprintf("e%d", i+1), node.ID)
		assert.Equal(t, uint64(i+1), node.Seq)
	}
	assert.Equal(t, 0, p.QueueDepth("job-1"))
}

func TestPipeline_MatchesOppositeRoles(t *testing.T) {
	p, registry := newTestPipeline(refRules(), Config{})
	defer p.Close()

	p.Enqueue("job-1", event("s1", "INV-1001", graph.RoleSource))
	p.drainNow("job-1")
	p.Enqueue("job-1", event("t1", "INV-1001", graph.RoleTarget))
	p.drainNow("job-1")

	g, _ := registry.Get("job-1")
	snap := g.Snapshot()
	assert.Equal(t, 2, snap.NodeCount)
	assert.Equal(t, 1, snap.EdgeCount)

	for _, id := range []string{"s1", "t1"} {
		node, ok := g.Node(id)
		require.True(t, ok)
		assert.Equal(t, graph.KindMatch, node.Kind)
		assert.Equal(t, 1.0, node.Confidence)
	}

	// Edge direction follows the roles, not arrival order.
	result := g.Query(graph.Filter{})
	require.Len(t, result.Edges, 1)
	assert.Equal(t, "s1", result.Edges[0].SourceNodeID)
	assert.Equal(t, "t1", result.Edges[0].TargetNodeID)
}

func TestPipeline_PairInOneBatchLinksOnce(t *testing.T) {
	p, registry := newTestPipeline(refRules(), Config{})
	defer p.Close()

	p.Enqueue("job-1", event("s1", "INV-1001", graph.RoleSource))
	p.Enqueue("job-1", event("t1", "INV-1001", graph.RoleTarget))
	p.drainNow("job-1")

	g, _ := registry.Get("job-1")
	assert.Equal(t, 1, g.Snapshot().EdgeCount)
}

func TestPipeline_ReingestUpsertsEdge(t *testing.T) {
	p, registry := newTestPipeline(refRules(), Config{})
	defer p.Close()

	p.Enqueue("job-1", event("s1", "INV-1001", graph.RoleSource))
	p.Enqueue("job-1", event("t1", "INV-1001", graph.RoleTarget))
	p.drainNow("job-1")

	// The same record arriving again must not duplicate the edge.
	p.Enqueue("job-1", event("t1", "INV-1001", graph.RoleTarget))
	p.drainNow("job-1")

	g, _ := registry.Get("job-1")
	snap := g.Snapshot()
	assert.Equal(t, 2, snap.NodeCount)
	assert.Equal(t, 1, snap.EdgeCount)
}

func TestPipeline_SameRoleRecordsNeverMatch(t *testing.T) {
	p, registry := newTestPipeline(refRules(), Config{})
	defer p.Close()

	p.Enqueue("job-1", event("s1", "INV-1001", graph.RoleSource))
	p.Enqueue("job-1", event("s2", "INV-1001", graph.RoleSource))
	p.drainNow("job-1")

	g, _ := registry.Get("job-1")
	assert.Equal(t, 0, g.Snapshot().EdgeCount)
}

func TestPipeline_ConfidenceFloor(t *testing.T) {
	// Two equally weighted rules, only one satisfied: composite 0.5 meets
	// the default floor; with a raised floor no edge is created.
	ruleSet := []rules.MatchingRule{
		{Field: "referenceId", Type: rules.TypeExact},
		{Field: "memo", Type: rules.TypeExact},
	}

	t.Run("Default floor", func(t *testing.T) {
		p, registry := newTestPipeline(staticRules(ruleSet), Config{})
		defer p.Close()

		p.Enqueue("job-1", event("s1", "INV-1001", graph.RoleSource))
		p.Enqueue("job-1", event("t1", "INV-1001", graph.RoleTarget))
		p.drainNow("job-1")

		g, _ := registry.Get("job-1")
		assert.Equal(t, 1, g.Snapshot().EdgeCount)
	})

	t.Run("Raised floor", func(t *testing.T) {
		p, registry := newTestPipeline(staticRules(ruleSet), Config{MatchFloor: 0.9})
		defer p.Close()

		p.Enqueue("job-1", event("s1", "INV-1001", graph.RoleSource))
		p.Enqueue("job-1", event("t1", "INV-1001", graph.RoleTarget))
		p.drainNow("job-1")

		g, _ := registry.Get("job-1")
		assert.Equal(t, 0, g.Snapshot().EdgeCount)
	})
}

func TestPipeline_GeneratesRecordIDs(t *testing.T) {
	p, registry := newTestPipeline(nil, Config{})
	defer p.Close()

	p.Enqueue("job-1", Event{Role: graph.RoleSource, Timestamp: time.Now()})
	p.drainNow("job-1")

	g, _ := registry.Get("job-1")
	result := g.Query(graph.Filter{})
	require.Len(t, result.Nodes, 1)
	assert.NotEmpty(t, result.Nodes[0].ID)
}

func TestPipeline_DrainRespectsBatchSize(t *testing.T) {
	p, registry := newTestPipeline(nil, Config{BatchSize: 2})
	defer p.Close()

	for i := 0; i < 5; i++ {
		p.Enqueue("job-1", event(fmt.Sprintf("n%d", i), "REF", graph.RoleSource))
	}

	p.drainNow("job-1")
	g, _ := registry.Get("job-1")
	assert.Equal(t, 2, g.Snapshot().NodeCount)
	assert.Equal(t, 3, p.QueueDepth("job-1"))
}

func TestPipeline_RuleSourceFailureOnlyDisablesMatching(t *testing.T) {
	failing := RuleSourceFunc(func(ctx context.Context, jobID string) ([]rules.MatchingRule, error) {
		return nil, fmt.Errorf("rule store unavailable")
	})
	p, registry := newTestPipeline(failing, Config{})
	defer p.Close()

	p.Enqueue("job-1", event("s1", "INV-1001", graph.RoleSource))
	p.Enqueue("job-1", event("t1", "INV-1001", graph.RoleTarget))
	p.drainNow("job-1")

	// Nodes land, matching is skipped for the cycle.
	g, _ := registry.Get("job-1")
	snap := g.Snapshot()
	assert.Equal(t, 2, snap.NodeCount)
	assert.Equal(t, 0, snap.EdgeCount)
}

func TestPipeline_MalformedRulesOnlyDisableMatching(t *testing.T) {
	p, registry := newTestPipeline(staticRules([]rules.MatchingRule{{Field: "x", Type: "soundex"}}), Config{})
	defer p.Close()

	p.Enqueue("job-1", event("s1", "INV-1001", graph.RoleSource))
	p.drainNow("job-1")

	g, _ := registry.Get("job-1")
	assert.Equal(t, 1, g.Snapshot().NodeCount)
}

func TestPipeline_BoundedQueueRejectsOverflow(t *testing.T) {
	p, _ := newTestPipeline(nil, Config{MaxQueue: 3})
	defer p.Close()

	for i := 0; i < 5; i++ {
		p.Enqueue("job-1", event(fmt.Sprintf("n%d", i), "REF", graph.RoleSource))
	}

	assert.Equal(t, 3, p.QueueDepth("job-1"))
	assert.Equal(t, uint64(2), p.Rejected("job-1"))
}

func TestPipeline_JobsAreIndependent(t *testing.T) {
	p, registry := newTestPipeline(refRules(), Config{})
	defer p.Close()

	p.Enqueue("job-a", event("s1", "INV-1001", graph.RoleSource))
	p.Enqueue("job-b", event("t1", "INV-1001", graph.RoleTarget))
	p.drainNow("job-a")
	p.drainNow("job-b")

	// Matching never crosses jobs.
	ga, _ := registry.Get("job-a")
	gb, _ := registry.Get("job-b")
	assert.Equal(t, 0, ga.Snapshot().EdgeCount)
	assert.Equal(t, 0, gb.Snapshot().EdgeCount)
}

func TestPipeline_PeriodicDrain(t *testing.T) {
	registry := graph.NewRegistry(nil)
	p := New(Config{IntervalMs: 10}, registry, refRules(), nil)
	defer p.Close()

	p.Enqueue("job-1", event("s1", "INV-1001", graph.RoleSource))
	p.Enqueue("job-1", event("t1", "INV-1001", graph.RoleTarget))

	assert.Eventually(t, func() bool {
		g, ok := registry.Get("job-1")
		if !ok {
			return false
		}
		snap := g.Snapshot()
		return snap.NodeCount == 2 && snap.EdgeCount == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPipeline_ImmediateDrainAtBatchSize(t *testing.T) {
	registry := graph.NewRegistry(nil)
	// Long interval: only the batch-size kick can trigger the drain.
	p := New(Config{IntervalMs: 60_000, BatchSize: 2}, registry, nil, nil)
	defer p.Close()

	p.Enqueue("job-1", event("n1", "REF", graph.RoleSource))
	p.Enqueue("job-1", event("n2", "REF", graph.RoleSource))

	assert.Eventually(t, func() bool {
		g, ok := registry.Get("job-1")
		return ok && g.Snapshot().NodeCount == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPipeline_Close(t *testing.T) {
	p, _ := newTestPipeline(nil, Config{})

	p.Enqueue("job-1", event("n1", "REF", graph.RoleSource))
	p.Close()
	p.Close() // idempotent

	// Enqueue after close is a no-op.
	p.Enqueue("job-1", event("n2", "REF", graph.RoleSource))
	assert.Equal(t, 1, p.QueueDepth("job-1"))
}

func TestPipeline_ReentrantDrainIsNoOp(t *testing.T) {
	p, registry := newTestPipeline(nil, Config{})
	defer p.Close()

	p.Enqueue("job-1", event("n1", "REF", graph.RoleSource))

	p.mu.Lock()
	q := p.jobs["job-1"]
	p.mu.Unlock()

	q.mu.Lock()
	q.draining = true
	q.mu.Unlock()

	p.drain("job-1", q)
	_, ok := registry.Get("job-1")
	assert.False(t, ok, "re-entrant drain must not process events")

	q.mu.Lock()
	q.draining = false
	q.mu.Unlock()

	p.drain("job-1", q)
	g, ok := registry.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, 1, g.Snapshot().NodeCount)
}
