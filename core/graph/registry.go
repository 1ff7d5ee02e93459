package graph

import "sync"

// Registry owns the per-job graphs for one process. It is created by the
// composition root and injected wherever graphs are needed, so tests can run
// independent instances side by side.
type Registry struct {
	notifier Notifier

	mu     sync.RWMutex
	graphs map[string]*Graph
}

// NewRegistry creates an empty registry. The notifier (usually a
// broadcast.Hub) receives every mutation of every graph; nil disables
// broadcasting.
func NewRegistry(notifier Notifier) *Registry {
	return &Registry{
		notifier: notifier,
		graphs:   make(map[string]*Graph),
	}
}

// GetOrCreate returns the job's graph, creating it on first access. The same
// instance is returned for the process lifetime until Discard.
func (r *Registry) GetOrCreate(jobID string) *Graph {
	r.mu.RLock()
	g, ok := r.graphs[jobID]
	r.mu.RUnlock()
	if ok {
		return g
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.graphs[jobID]; ok {
		return g
	}
	g = newGraph(jobID, r.notifier)
	r.graphs[jobID] = g
	return g
}

// Get returns the job's graph if it exists.
func (r *Registry) Get(jobID string) (*Graph, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.graphs[jobID]
	return g, ok
}

// Discard removes the job's graph. Callers use this on job archival;
// the graph itself is never implicitly deleted.
func (r *Registry) Discard(jobID string) {
	r.mu.Lock()
	delete(r.graphs, jobID)
	r.mu.Unlock()
}

// Jobs returns the IDs of all jobs with a live graph.
func (r *Registry) Jobs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.graphs))
	for id := range r.graphs {
		out = append(out, id)
	}
	return out
}
