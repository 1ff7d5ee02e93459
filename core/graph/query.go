package graph

import (
	"sort"
	"time"
)

// Filter narrows a graph query. Zero values mean "no constraint".
//
// Kind, Role, From and To filter nodes; SourceID and TargetID filter the
// returned edges by endpoint. Limit and Offset page over nodes in insertion
// order.
type Filter struct {
	Kind     Kind
	Role     Role
	SourceID string
	TargetID string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// QueryResult holds the nodes selected by a filter and every edge whose both
// endpoints are inside the selected node set.
type QueryResult struct {
	Nodes []FinancialRecord `json:"nodes"`
	Edges []MatchEdge       `json:"edges"`
}

// Snapshot is a cheap summary of a job's graph.
type Snapshot struct {
	JobID     string    `json:"job_id"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Query selects nodes matching the filter, pages them by limit/offset in
// insertion order, and returns the edges whose both endpoints survived the
// selection. Safe to call concurrently with ingestion.
func (g *Graph) Query(filter Filter) QueryResult {
	g.mu.RLock()
	defer g.mu.RUnlock()

	selected := make([]FinancialRecord, 0)
	for _, id := range g.order {
		node := g.nodes[id]
		if !matchesNode(node, filter) {
			continue
		}
		selected = append(selected, *node)
	}

	selected = page(selected, filter.Offset, filter.Limit)

	inResult := make(map[string]struct{}, len(selected))
	for _, node := range selected {
		inResult[node.ID] = struct{}{}
	}

	edges := make([]MatchEdge, 0)
	for _, edge := range g.edges {
		if _, ok := inResult[edge.SourceNodeID]; !ok {
			continue
		}
		if _, ok := inResult[edge.TargetNodeID]; !ok {
			continue
		}
		if filter.SourceID != "" && edge.SourceNodeID != filter.SourceID {
			continue
		}
		if filter.TargetID != "" && edge.TargetNodeID != filter.TargetID {
			continue
		}
		edges = append(edges, *edge)
	}
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].ID < edges[j].ID
	})

	return QueryResult{Nodes: selected, Edges: edges}
}

func matchesNode(node *FinancialRecord, filter Filter) bool {
	if filter.Kind != "" && node.Kind != filter.Kind {
		return false
	}
	if filter.Role != "" && node.Role != filter.Role {
		return false
	}
	if !filter.From.IsZero() && node.Timestamp.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && node.Timestamp.After(filter.To) {
		return false
	}
	return true
}

func page(nodes []FinancialRecord, offset, limit int) []FinancialRecord {
	if offset > 0 {
		if offset >= len(nodes) {
			return []FinancialRecord{}
		}
		nodes = nodes[offset:]
	}
	if limit > 0 && limit < len(nodes) {
		nodes = nodes[:limit]
	}
	return nodes
}
