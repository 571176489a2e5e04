// Package batch groups pending requests by provider and executes them with
// bounded concurrency: BatchQueue holds the pending requests, BatchProcessor
// drains them through a router.
package batch

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Request is a single queued unit of work bound for one provider.
type Request struct {
	ID         string
	Provider   string
	Underlying interface{}
	EnqueuedAt time.Time
}

// Group is one provider's worth of queued requests, in enqueue order.
type Group struct {
	Provider string
	Requests []Request
}

// Queue holds up to MaxSize pending Requests.
type Queue struct {
	mu      sync.Mutex
	items   []Request
	MaxSize int
}

const defaultMaxBatchSize = 5

// NewQueue returns a Queue bounded to maxSize requests (defaultMaxBatchSize
// if maxSize <= 0).
func NewQueue(maxSize int) *Queue {
	if maxSize <= 0 {
		maxSize = defaultMaxBatchSize
	}
	return &Queue{MaxSize: maxSize}
}

// Enqueue appends a request for provider, returning its id. Returns an
// empty id when the queue is at capacity.
func (q *Queue) Enqueue(provider string, underlying interface{}) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.MaxSize {
		return ""
	}

	id := uuid.NewString()
	q.items = append(q.items, Request{
		ID:         id,
		Provider:   provider,
		Underlying: underlying,
		EnqueuedAt: time.Now(),
	})
	return id
}

// Size returns the number of requests currently queued.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// GetBatches groups the current queue contents by provider. Enqueue order
// is preserved within each group; group order across providers is
// unspecified.
func (q *Queue) GetBatches() []Group {
	q.mu.Lock()
	defer q.mu.Unlock()

	order := make([]string, 0, len(q.items))
	byProvider := make(map[string][]Request)
	for _, item := range q.items {
		if _, seen := byProvider[item.Provider]; !seen {
			order = append(order, item.Provider)
		}
		byProvider[item.Provider] = append(byProvider[item.Provider], item)
	}

	groups := make([]Group, 0, len(order))
	for _, provider := range order {
		groups = append(groups, Group{Provider: provider, Requests: byProvider[provider]})
	}
	return groups
}

// RemoveProcessed drops every request whose id appears in ids.
func (q *Queue) RemoveProcessed(ids []string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	toRemove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		toRemove[id] = struct{}{}
	}

	kept := q.items[:0:0]
	for _, item := range q.items {
		if _, remove := toRemove[item.ID]; !remove {
			kept = append(kept, item)
		}
	}
	q.items = kept
}
