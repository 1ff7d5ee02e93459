package broadcast

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// UpdateType identifies the kind of graph mutation carried by an Update.
type UpdateType string

const (
	// UpdateNodeAdded signals a record inserted under a previously unseen ID.
	UpdateNodeAdded UpdateType = "node_added"
	// UpdateNodeUpdated signals an upsert over an existing record ID.
	UpdateNodeUpdated UpdateType = "node_updated"
	// UpdateEdgeAdded signals a new match edge between two records.
	UpdateEdgeAdded UpdateType = "edge_added"
)

// Update is the envelope delivered to subscribers for every graph mutation.
type Update struct {
	Type      UpdateType `json:"type"`
	Payload   any        `json:"payload"`
	Timestamp time.Time  `json:"timestamp"`
}

// Handler receives updates for a single job. Handlers run synchronously on
// the mutating goroutine and should hand work off quickly.
type Handler func(Update)

type subscription struct {
	id      uint64
	handler Handler
}

// Hub is the concrete fan-out implementation. One Hub serves all jobs; the
// handler lists are partitioned by job ID.
type Hub struct {
	logger *zap.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
}

// NewHub creates a broadcast hub. A nil logger falls back to a no-op logger.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger: logger,
		subs:   make(map[string][]subscription),
	}
}

// Subscribe registers a handler for the given job and returns a closure that
// removes it. Unsubscribing twice is a no-op.
func (h *Hub) Subscribe(jobID string, handler Handler) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[jobID] = append(h.subs[jobID], subscription{id: id, handler: handler})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		current := h.subs[jobID]
		for i, sub := range current {
			if sub.id != id {
				continue
			}
			// Replace rather than splice in place so an in-flight Notify
			// keeps iterating its own snapshot untouched.
			next := make([]subscription, 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			if len(next) == 0 {
				delete(h.subs, jobID)
			} else {
				h.subs[jobID] = next
			}
			return
		}
	}
}

// Notify delivers the update to every handler subscribed to the job, in
// subscription order. Delivery is synchronous; a panicking handler is logged
// and skipped.
func (h *Hub) Notify(jobID string, update Update) {
	h.mu.RLock()
	snapshot := h.subs[jobID]
	h.mu.RUnlock()

	for _, sub := range snapshot {
		h.deliver(jobID, sub, update)
	}
}

// SubscriberCount returns the number of handlers currently subscribed to the
// job.
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[jobID])
}

// Drop removes every subscription for the job. Used when a job is archived
// and its graph discarded.
func (h *Hub) Drop(jobID string) {
	h.mu.Lock()
	delete(h.subs, jobID)
	h.mu.Unlock()
}

func (h *Hub) deliver(jobID string, sub subscription, update Update) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Subscriber panicked during delivery",
				zap.String("job_id", jobID),
				zap.Uint64("subscription_id", sub.id),
				zap.String("update_type", string(update.Type)),
				zap.Any("panic", r),
			)
		}
	}()
	sub.handler(update)
}
