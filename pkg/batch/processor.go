package batch

import (
	"context"
	"sync"

	"github.com/aigenflow/pipeline/pkg/core"
	"github.com/aigenflow/pipeline/pkg/logging"
)

// Dispatcher executes one queued request and returns a normalized response.
// AgentRouter implements this for the batch processor to call into.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) core.AgentResponse
}

// Processor wraps a Queue and a Dispatcher, draining queued requests with
// bounded concurrency. Responses come back grouped by provider, in enqueue
// order within each group.
type Processor struct {
	queue      *Queue
	dispatcher Dispatcher
	logger     logging.Logger

	mu             sync.Mutex
	totalProcessed int64
	totalFailures  int64
	totalBatches   int64
}

// NewProcessor returns a Processor bound to queue and dispatcher.
func NewProcessor(queue *Queue, dispatcher Dispatcher, logger logging.Logger) *Processor {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Processor{queue: queue, dispatcher: dispatcher, logger: logger}
}

// ProcessBatch snapshots the current queue, dispatches every group with
// bounded per-group concurrency (<= the group size, no protocol-level
// batching), restores per-task ordering, and removes every snapshotted id
// from the queue. A per-item dispatch error never aborts the rest of the
// group; it becomes a failure AgentResponse for that item.
func (p *Processor) ProcessBatch(ctx context.Context) []core.AgentResponse {
	groups := p.queue.GetBatches()
	if len(groups) == 0 {
		return nil
	}

	var allIDs []string
	var allResponses []core.AgentResponse

	for _, group := range groups {
		responses := p.processGroup(ctx, group)
		allResponses = append(allResponses, responses...)
		for _, req := range group.Requests {
			allIDs = append(allIDs, req.ID)
		}
		p.mu.Lock()
		p.totalBatches++
		p.mu.Unlock()
	}

	p.queue.RemoveProcessed(allIDs)
	return allResponses
}

// processGroup dispatches every request in a group concurrently (bounded by
// group size) and returns responses in the group's original order.
func (p *Processor) processGroup(ctx context.Context, group Group) []core.AgentResponse {
	responses := make([]core.AgentResponse, len(group.Requests))
	var wg sync.WaitGroup

	for i, req := range group.Requests {
		wg.Add(1)
		go func(idx int, r Request) {
			defer wg.Done()
			resp := p.dispatcher.Dispatch(ctx, r)
			if !resp.Success {
				p.mu.Lock()
				p.totalFailures++
				p.mu.Unlock()
			}
			p.mu.Lock()
			p.totalProcessed++
			p.mu.Unlock()
			responses[idx] = resp
		}(i, req)
	}
	wg.Wait()
	return responses
}

// Flush is equivalent to ProcessBatch when the queue is non-empty,
// otherwise a no-op returning nil.
func (p *Processor) Flush(ctx context.Context) []core.AgentResponse {
	if p.queue.Size() == 0 {
		return nil
	}
	return p.ProcessBatch(ctx)
}

// Stats is the monotone counter snapshot exposed by the processor.
type Stats struct {
	TotalProcessed int64
	TotalFailures  int64
	TotalBatches   int64
}

// Stats returns the current monotone counters.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		TotalProcessed: p.totalProcessed,
		TotalFailures:  p.totalFailures,
		TotalBatches:   p.totalBatches,
	}
}
