package phase

import (
	"context"
	"testing"

	"github.com/aigenflow/pipeline/pkg/core"
	"github.com/aigenflow/pipeline/pkg/provider"
	"github.com/aigenflow/pipeline/pkg/template"
	"github.com/aigenflow/pipeline/providers/stub"
)

func newTestRouter() *provider.Router {
	reg := provider.NewRegistry()
	reg.Register("claude", stub.New("claude"))
	reg.Register("gemini", stub.New("gemini"))
	reg.Register("chatgpt", stub.New("chatgpt"))
	reg.Register("perplexity", stub.New("perplexity"))
	return provider.NewRouter(reg)
}

func testSession() *core.Session {
	return core.NewSession("sess-1", core.SessionConfig{
		Topic: "coffee shop", DocType: core.DocTypeBizPlan, Language: "en",
	})
}

func TestExecutorSkipsEmptyTaskList(t *testing.T) {
	e := NewExecutor(1, nil, newTestRouter(), template.NewStore(), nil)
	result := e.Execute(context.Background(), testSession())
	if result.Status != core.PhaseSkipped {
		t.Fatalf("Status = %v, want SKIPPED", result.Status)
	}
}

func TestExecutorSequentialDispatchesEveryTask(t *testing.T) {
	tasks := provider.PhaseTasks[1]
	e := NewExecutor(1, tasks, newTestRouter(), template.NewStore(), nil)
	result := e.Execute(context.Background(), testSession())

	if result.Status != core.PhaseCompleted {
		t.Fatalf("Status = %v, want COMPLETED", result.Status)
	}
	if len(result.Responses) != len(tasks) {
		t.Fatalf("len(Responses) = %d, want %d", len(result.Responses), len(tasks))
	}
	for i, r := range result.Responses {
		if r.TaskName != tasks[i] {
			t.Errorf("Responses[%d].TaskName = %q, want %q (order must match Tasks)", i, r.TaskName, tasks[i])
		}
	}
}

func TestExecutorFailsPhaseOnAnyTaskFailure(t *testing.T) {
	reg := provider.NewRegistry()
	claude := stub.New("claude")
	claude.SetOutcomes(stub.Outcome{Success: false, Error: "boom"})
	reg.Register("claude", claude)
	reg.Register("gemini", stub.New("gemini"))
	reg.Register("chatgpt", stub.New("chatgpt"))
	reg.Register("perplexity", stub.New("perplexity"))
	router := provider.NewRouter(reg)

	tasks := provider.PhaseTasks[1]
	e := NewExecutor(1, tasks, router, template.NewStore(), nil)
	result := e.Execute(context.Background(), testSession())

	if result.Status != core.PhaseFailed {
		t.Fatalf("Status = %v, want FAILED", result.Status)
	}
	if len(result.Responses) != len(tasks) {
		t.Fatalf("a single task failure should not drop the rest of the phase's responses")
	}
}

func TestExecutorBatchedRestoresTaskOrder(t *testing.T) {
	tasks := provider.PhaseTasks[2]
	e := NewExecutor(2, tasks, newTestRouter(), template.NewStore(), nil)
	e.EnableBatch(10)

	result := e.Execute(context.Background(), testSession())
	if result.Status != core.PhaseCompleted {
		t.Fatalf("Status = %v, want COMPLETED", result.Status)
	}
	if len(result.Responses) != len(tasks) {
		t.Fatalf("len(Responses) = %d, want %d", len(result.Responses), len(tasks))
	}
	for i, r := range result.Responses {
		if r.TaskName != tasks[i] {
			t.Errorf("Responses[%d].TaskName = %q, want %q (batched execution must restore declared order)", i, r.TaskName, tasks[i])
		}
	}
}
