// Package phase implements PhaseExecutor: given a session, render prompts,
// dispatch to the router (optionally via the batch processor for phase 2),
// collect normalized responses, and mark phase status.
package phase

import (
	"context"
	"fmt"
	"time"

	"github.com/aigenflow/pipeline/pkg/batch"
	"github.com/aigenflow/pipeline/pkg/core"
	"github.com/aigenflow/pipeline/pkg/logging"
	"github.com/aigenflow/pipeline/pkg/provider"
	"github.com/aigenflow/pipeline/pkg/template"
)

// phaseNames gives each phase number its human name per the canonical
// five-stage pipeline.
var phaseNames = map[int]string{
	1: "Framing",
	2: "Research",
	3: "Strategy",
	4: "Writing",
	5: "Review",
}

// Executor runs the tasks assigned to one phase number.
type Executor struct {
	Phase     int
	Tasks     []string
	router    *provider.Router
	renderer  template.Renderer
	logger    logging.Logger

	// BatchEnabled turns on bounded-concurrency fan-out via a
	// batch.Processor instead of sequential dispatch. Only meaningful for
	// phase 2 per the pipeline design, but left generic.
	BatchEnabled bool
	batchQueue   *batch.Queue
	batchProc    *batch.Processor
}

// NewExecutor returns an Executor for phase, using tasks (typically
// provider.PhaseTasks[phase]).
func NewExecutor(phaseNum int, tasks []string, router *provider.Router, renderer template.Renderer, logger logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Executor{Phase: phaseNum, Tasks: tasks, router: router, renderer: renderer, logger: logger}
}

// EnableBatch wires a bounded-concurrency batch queue/processor for this
// executor's dispatch, bounded by maxBatchSize.
func (e *Executor) EnableBatch(maxBatchSize int) {
	e.BatchEnabled = true
	e.batchQueue = batch.NewQueue(maxBatchSize)
	e.batchProc = batch.NewProcessor(e.batchQueue, provider.BatchDispatcher{Router: e.router}, e.logger)
}

// Execute renders and dispatches every task in order, producing a
// PhaseResult. An empty task list yields a SKIPPED result. A single task
// failure never aborts the rest of the phase; the phase is FAILED overall
// iff any response failed.
func (e *Executor) Execute(ctx context.Context, sess *core.Session) core.PhaseResult {
	started := time.Now()
	name := phaseNames[e.Phase]

	if len(e.Tasks) == 0 {
		return core.PhaseResult{
			Phase:       e.Phase,
			Name:        name,
			Status:      core.PhaseSkipped,
			StartedAt:   started,
			CompletedAt: time.Now(),
		}
	}

	renderCtx := map[string]interface{}{
		"topic":    sess.Config.Topic,
		"doc_type": sess.Config.DocType,
		"language": sess.Config.Language,
	}

	var responses []core.AgentResponse
	if e.BatchEnabled {
		responses = e.executeBatched(ctx, renderCtx, sess.Config.DocType)
	} else {
		responses = e.executeSequential(ctx, renderCtx, sess.Config.DocType)
	}

	status := core.PhaseCompleted
	for _, r := range responses {
		if !r.Success {
			status = core.PhaseFailed
			break
		}
	}

	return core.PhaseResult{
		Phase:       e.Phase,
		Name:        name,
		Status:      status,
		Responses:   responses,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
}

func (e *Executor) executeSequential(ctx context.Context, renderCtx map[string]interface{}, docType core.DocumentType) []core.AgentResponse {
	responses := make([]core.AgentResponse, 0, len(e.Tasks))
	for _, task := range e.Tasks {
		prompt, err := e.renderer.Render(fmt.Sprintf("phase_%d/%s", e.Phase, task), renderCtx)
		if err != nil {
			responses = append(responses, core.AgentResponse{
				TaskName: task, Success: false, Error: err.Error(), Timestamp: time.Now(),
			})
			continue
		}
		resp := e.router.Execute(ctx, e.Phase, task, prompt, docType)
		responses = append(responses, resp)
	}
	return responses
}

// executeBatched enqueues every task, processes the batch with bounded
// concurrency, and restores the declared task order on collection — the
// observable per-task, per-phase contract is unchanged from the sequential
// path.
func (e *Executor) executeBatched(ctx context.Context, renderCtx map[string]interface{}, docType core.DocumentType) []core.AgentResponse {
	for _, task := range e.Tasks {
		prompt, err := e.renderer.Render(fmt.Sprintf("phase_%d/%s", e.Phase, task), renderCtx)
		if err != nil {
			prompt = ""
		}
		tag, _ := provider.ProviderForTask(e.Phase, task)
		e.batchQueue.Enqueue(tag, provider.DispatchPayload{
			Phase: e.Phase, Task: task, Prompt: prompt, DocType: docType,
		})
	}

	unordered := e.batchProc.ProcessBatch(ctx)
	byTask := make(map[string]core.AgentResponse, len(unordered))
	for _, r := range unordered {
		byTask[r.TaskName] = r
	}

	responses := make([]core.AgentResponse, 0, len(e.Tasks))
	for _, task := range e.Tasks {
		if r, ok := byTask[task]; ok {
			responses = append(responses, r)
			continue
		}
		responses = append(responses, core.AgentResponse{
			TaskName: task, Success: false, Error: "batch dispatch produced no response", Timestamp: time.Now(),
		})
	}
	return responses
}
