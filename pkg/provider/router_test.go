package provider

import (
	"context"
	"testing"

	"github.com/aigenflow/pipeline/pkg/cache"
	"github.com/aigenflow/pipeline/pkg/core"
	"github.com/aigenflow/pipeline/pkg/resilience"
	"github.com/aigenflow/pipeline/pkg/tokens"
	"github.com/aigenflow/pipeline/providers/stub"
)

func newTestRegistry() (*Registry, *stub.Provider, *stub.Provider) {
	reg := NewRegistry()
	claude := stub.New("claude")
	gemini := stub.New("gemini")
	reg.Register("claude", claude)
	reg.Register("gemini", gemini)
	reg.Register("chatgpt", stub.New("chatgpt"))
	reg.Register("perplexity", stub.New("perplexity"))
	return reg, claude, gemini
}

func TestRouterExecuteUnmappedTaskFails(t *testing.T) {
	reg, _, _ := newTestRegistry()
	router := NewRouter(reg)

	resp := router.Execute(context.Background(), 1, "nonexistent_task", "p", core.DocTypeBizPlan)
	if resp.Success {
		t.Fatal("Execute() for an unmapped (phase, task, doc_type) should fail")
	}
}

func TestRouterExecuteDispatchesToMappedProvider(t *testing.T) {
	reg, claude, _ := newTestRegistry()
	router := NewRouter(reg)

	resp := router.Execute(context.Background(), 1, "validate_claude", "p", core.DocTypeBizPlan)
	if !resp.Success {
		t.Fatalf("Execute() success = false, error = %s", resp.Error)
	}
	if resp.Provider != "claude" {
		t.Errorf("Provider = %q, want claude", resp.Provider)
	}
	if claude.CallCount() != 1 {
		t.Errorf("claude call count = %d, want 1", claude.CallCount())
	}
}

func TestRouterCacheServesRepeatedIdenticalRequests(t *testing.T) {
	reg, claude, _ := newTestRegistry()
	mgr := cache.NewManager(t.TempDir(), nil)
	router := NewRouter(reg).WithCache(mgr)

	first := router.Execute(context.Background(), 1, "validate_claude", "same prompt", core.DocTypeBizPlan)
	second := router.Execute(context.Background(), 1, "validate_claude", "same prompt", core.DocTypeBizPlan)

	if !first.Success || !second.Success {
		t.Fatal("both calls should succeed")
	}
	if claude.CallCount() != 1 {
		t.Fatalf("claude call count = %d, want 1 (second call should be served from cache)", claude.CallCount())
	}
	if second.Metadata["cache_hit"] != true {
		t.Error("second response should be flagged cache_hit")
	}
}

func TestRouterCacheMissOnDifferentPrompt(t *testing.T) {
	reg, claude, _ := newTestRegistry()
	mgr := cache.NewManager(t.TempDir(), nil)
	router := NewRouter(reg).WithCache(mgr)

	router.Execute(context.Background(), 1, "validate_claude", "prompt a", core.DocTypeBizPlan)
	router.Execute(context.Background(), 1, "validate_claude", "prompt b", core.DocTypeBizPlan)

	if claude.CallCount() != 2 {
		t.Fatalf("claude call count = %d, want 2 (different prompts must not share a cache entry)", claude.CallCount())
	}
}

func TestRouterTokenTrackingSkipsCacheHits(t *testing.T) {
	reg, _, _ := newTestRegistry()
	mgr := cache.NewManager(t.TempDir(), nil)
	counter := tokens.NewCounter()
	calc := tokens.NewCostCalculator(nil)
	tracker := tokens.NewTracker(tokens.DefaultBudgetConfig())
	router := NewRouter(reg).WithCache(mgr).WithTokenTracking(counter, calc, tracker)

	router.Execute(context.Background(), 1, "validate_claude", "same prompt", core.DocTypeBizPlan)
	router.Execute(context.Background(), 1, "validate_claude", "same prompt", core.DocTypeBizPlan)

	if tracker.Summary("").RequestCount != 1 {
		t.Fatalf("RequestCount = %d, want 1 (a cache hit must not produce a second Usage record)", tracker.Summary("").RequestCount)
	}
}

func TestRouterExecuteSummarizationTaskMappedForEveryGatedPhase(t *testing.T) {
	reg, claude, _ := newTestRegistry()

	router := NewRouter(reg)
	for _, phase := range []int{2, 3, 4, 5} {
		resp := router.Execute(context.Background(), phase, SummarizationTask(phase), "summarize this", core.DocTypeBizPlan)
		if !resp.Success {
			t.Fatalf("Execute() for phase %d summarization task failed: %s", phase, resp.Error)
		}
		if resp.Provider != "claude" {
			t.Errorf("phase %d summarization provider = %q, want claude", phase, resp.Provider)
		}
	}
	if claude.CallCount() != 4 {
		t.Errorf("claude call count = %d, want 4 (one per gated phase)", claude.CallCount())
	}
}

func TestRouterFallsThroughChainOnFailure(t *testing.T) {
	reg, claude, gemini := newTestRegistry()
	claude.SetOutcomes(stub.Outcome{Success: false, Error: "timeout"})
	gemini.SetOutcomes(stub.Outcome{Success: true, Content: "ok"})

	cfg := resilience.DefaultConfig()
	cfg.ProviderOrder = []string{"claude", "gemini"}
	cfg.MaxRetries = 0
	chain := resilience.NewChain(cfg, reg.Senders(), nil)

	router := NewRouter(reg).WithFallback(chain)
	resp := router.Execute(context.Background(), 1, "validate_claude", "p", core.DocTypeBizPlan)

	if !resp.Success {
		t.Fatalf("Execute() should succeed via the fallback chain, error = %s", resp.Error)
	}
	if resp.Provider != "gemini" {
		t.Errorf("Provider = %q, want gemini (the fallback target)", resp.Provider)
	}
}
