package graph

import (
	"sort"
	"sync"
	"time"

	"recon-engine/core/broadcast"
)

// Notifier receives an update for every graph mutation. The concrete
// implementation is broadcast.Hub; tests substitute their own.
type Notifier interface {
	Notify(jobID string, update broadcast.Update)
}

// Graph holds the nodes and edges of exactly one reconciliation job.
type Graph struct {
	jobID    string
	notifier Notifier

	mu        sync.RWMutex
	nodes     map[string]*FinancialRecord
	edges     map[string]*MatchEdge
	order     []string // node IDs in insertion order
	seq       uint64
	updatedAt time.Time
}

func newGraph(jobID string, notifier Notifier) *Graph {
	return &Graph{
		jobID:    jobID,
		notifier: notifier,
		nodes:    make(map[string]*FinancialRecord),
		edges:    make(map[string]*MatchEdge),
	}
}

// JobID returns the job this graph belongs to.
func (g *Graph) JobID() string {
	return g.jobID
}

// AddNode upserts a record by ID and reports whether it was newly added.
// New records get the next insertion sequence; upserts keep the original
// sequence and never move the lifecycle kind backwards.
func (g *Graph) AddNode(record FinancialRecord) bool {
	record.JobID = g.jobID
	if record.Kind == "" {
		record.Kind = KindTransaction
	}
	if record.Role == "" {
		record.Role = RoleUnclassified
	}
	// The stored node must not alias caller-owned state.
	if record.Fields != nil {
		fields := make(map[string]string, len(record.Fields))
		for k, v := range record.Fields {
			fields[k] = v
		}
		record.Fields = fields
	}

	g.mu.Lock()
	existing, ok := g.nodes[record.ID]
	if ok {
		record.Seq = existing.Seq
		if kindRank[record.Kind] < kindRank[existing.Kind] {
			record.Kind = existing.Kind
			record.Confidence = existing.Confidence
		}
	} else {
		g.seq++
		record.Seq = g.seq
		g.order = append(g.order, record.ID)
	}
	stored := record
	g.nodes[record.ID] = &stored
	g.updatedAt = time.Now()
	g.mu.Unlock()

	updateType := broadcast.UpdateNodeAdded
	if ok {
		updateType = broadcast.UpdateNodeUpdated
	}
	g.notify(updateType, record)

	return !ok
}

// AddEdge upserts an edge by ID. Both endpoints must already exist in this
// graph; otherwise the graph is left unmodified and an UnknownNodeError is
// returned.
func (g *Graph) AddEdge(edge MatchEdge) error {
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now()
	}
	if edge.Relation == "" {
		edge.Relation = RelationMatches
	}

	g.mu.Lock()
	if _, ok := g.nodes[edge.SourceNodeID]; !ok {
		g.mu.Unlock()
		return &UnknownNodeError{JobID: g.jobID, NodeID: edge.SourceNodeID}
	}
	if _, ok := g.nodes[edge.TargetNodeID]; !ok {
		g.mu.Unlock()
		return &UnknownNodeError{JobID: g.jobID, NodeID: edge.TargetNodeID}
	}
	stored := edge
	g.edges[edge.ID] = &stored
	g.updatedAt = time.Now()
	g.mu.Unlock()

	g.notify(broadcast.UpdateEdgeAdded, edge)
	return nil
}

// MarkMatched flips a record's kind to match and records its confidence.
// Returns UnknownNodeError if the record is absent.
func (g *Graph) MarkMatched(nodeID string, confidence float64) error {
	g.mu.Lock()
	node, ok := g.nodes[nodeID]
	if !ok {
		g.mu.Unlock()
		return &UnknownNodeError{JobID: g.jobID, NodeID: nodeID}
	}
	node.Kind = KindMatch
	node.Confidence = confidence
	updated := *node
	g.updatedAt = time.Now()
	g.mu.Unlock()

	g.notify(broadcast.UpdateNodeUpdated, updated)
	return nil
}

// Node returns a copy of the record with the given ID.
func (g *Graph) Node(nodeID string) (FinancialRecord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.nodes[nodeID]
	if !ok {
		return FinancialRecord{}, false
	}
	return *node, true
}

// NodesByRole returns copies of all records with the given role, in
// insertion order. The pipeline uses this for candidate scans.
func (g *Graph) NodesByRole(role Role) []FinancialRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]FinancialRecord, 0, len(g.order))
	for _, id := range g.order {
		node := g.nodes[id]
		if node.Role == role {
			out = append(out, *node)
		}
	}
	return out
}

// Snapshot returns a cheap summary of the graph without copying its
// contents.
func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Snapshot{
		JobID:     g.jobID,
		NodeCount: len(g.nodes),
		EdgeCount: len(g.edges),
		UpdatedAt: g.updatedAt,
	}
}

// Export returns the full contents of the graph, nodes in insertion order.
// Used for job archival.
func (g *Graph) Export() QueryResult {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := QueryResult{
		Nodes: make([]FinancialRecord, 0, len(g.order)),
		Edges: make([]MatchEdge, 0, len(g.edges)),
	}
	for _, id := range g.order {
		result.Nodes = append(result.Nodes, *g.nodes[id])
	}
	for _, edge := range g.edges {
		result.Edges = append(result.Edges, *edge)
	}
	sort.Slice(result.Edges, func(i, j int) bool {
		return result.Edges[i].ID < result.Edges[j].ID
	})
	return result
}

func (g *Graph) notify(t broadcast.UpdateType, payload any) {
	if g.notifier == nil {
		return
	}
	g.notifier.Notify(g.jobID, broadcast.Update{
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}
