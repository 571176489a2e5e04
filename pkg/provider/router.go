package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aigenflow/pipeline/pkg/batch"
	"github.com/aigenflow/pipeline/pkg/cache"
	"github.com/aigenflow/pipeline/pkg/core"
	"github.com/aigenflow/pipeline/pkg/corerrors"
	"github.com/aigenflow/pipeline/pkg/resilience"
	"github.com/aigenflow/pipeline/pkg/telemetry"
	"github.com/aigenflow/pipeline/pkg/tokens"
)

// mappingKey is the (phase, task, doc-type) composite the router looks up.
type mappingKey struct {
	phase   int
	task    string
	docType core.DocumentType
}

// DefaultMapping is the canonical static (phase, task, doc-type) -> provider
// table for the bizplan document type.
func DefaultMapping() map[mappingKey]string {
	return map[mappingKey]string{
		{1, "brainstorm_chatgpt", core.DocTypeBizPlan}:   "chatgpt",
		{1, "validate_claude", core.DocTypeBizPlan}:      "claude",
		{2, "deep_search_gemini", core.DocTypeBizPlan}:   "gemini",
		{2, "fact_check_perplexity", core.DocTypeBizPlan}: "perplexity",
		{3, "swot_chatgpt", core.DocTypeBizPlan}:          "chatgpt",
		{3, "narrative_claude", core.DocTypeBizPlan}:      "claude",
		{4, "business_plan_claude", core.DocTypeBizPlan}:  "claude",
		{4, "outline_chatgpt", core.DocTypeBizPlan}:        "chatgpt",
		{4, "charts_gemini", core.DocTypeBizPlan}:          "gemini",
		{5, "verify_perplexity", core.DocTypeBizPlan}:      "perplexity",
		{5, "final_review_claude", core.DocTypeBizPlan}:    "claude",
		{5, "polish_claude", core.DocTypeBizPlan}:          "claude",

		{2, SummarizationTask(2), core.DocTypeBizPlan}: "claude",
		{3, SummarizationTask(3), core.DocTypeBizPlan}: "claude",
		{4, SummarizationTask(4), core.DocTypeBizPlan}: "claude",
		{5, SummarizationTask(5), core.DocTypeBizPlan}: "claude",
	}
}

// SummarizationTask returns the task tag the context-optimization gate maps
// to when compressing the prior-phase context ahead of phase. A distinct tag
// per phase keeps summarization cache entries (and telemetry/token tracking)
// attributed to the phase that triggered them, instead of colliding with the
// unrelated phase-3 "narrative_claude" authoring task.
func SummarizationTask(phase int) string {
	return fmt.Sprintf("context_summary_phase_%d", phase)
}

// ProviderForTask returns the provider tag DefaultMapping assigns to
// (phase, task) for the bizplan document type, used by batch dispatch to
// group enqueued requests before any router lookup happens.
func ProviderForTask(phase int, task string) (string, bool) {
	tag, ok := DefaultMapping()[mappingKey{phase, task, core.DocTypeBizPlan}]
	return tag, ok
}

// PhaseTasks lists the task tags assigned to each phase, in execution order,
// derived from DefaultMapping.
var PhaseTasks = map[int][]string{
	1: {"brainstorm_chatgpt", "validate_claude"},
	2: {"deep_search_gemini", "fact_check_perplexity"},
	3: {"swot_chatgpt", "narrative_claude"},
	4: {"business_plan_claude", "outline_chatgpt", "charts_gemini"},
	5: {"verify_perplexity", "final_review_claude", "polish_claude"},
}

// Router is the single point at which phase/task/doc-type is mapped to a
// starting provider; PhaseExecutor and BatchProcessor both dispatch through
// it. The mapped provider only decides where the fallback chain starts —
// retries, fallthrough and circuit-breaking are the chain's job, and
// response caching wraps the whole thing.
type Router struct {
	mapping        map[mappingKey]string
	registry       *Registry
	chain          *resilience.Chain
	cacheMgr       *cache.Manager
	counter        *tokens.Counter
	costCalc       *tokens.CostCalculator
	tracker        *tokens.Tracker
	telemetry      *telemetry.Provider
	timeoutSeconds int
}

// NewRouter returns a Router over registry using DefaultMapping and a
// 120-second default per-request timeout. Cache, fallback chain and token
// tracking are all optional and wired in with the With* options; a bare
// Router dispatches straight to the mapped provider.
func NewRouter(registry *Registry) *Router {
	return &Router{mapping: DefaultMapping(), registry: registry, timeoutSeconds: 120}
}

// WithTimeoutSeconds overrides the default request timeout.
func (r *Router) WithTimeoutSeconds(seconds int) *Router {
	r.timeoutSeconds = seconds
	return r
}

// WithFallback wires a resilience.Chain into dispatch: the mapping still
// picks the starting provider, but the chain owns retry, fallthrough and
// circuit-breaker behavior from there.
func (r *Router) WithFallback(chain *resilience.Chain) *Router {
	r.chain = chain
	return r
}

// WithCache wires a cache.Manager in front of dispatch: identical
// (prompt, context, provider, phase, model) requests are served from disk
// instead of re-invoking a provider.
func (r *Router) WithCache(mgr *cache.Manager) *Router {
	r.cacheMgr = mgr
	return r
}

// WithTokenTracking wires token counting, cost calculation and usage
// tracking into dispatch. Cache hits never produce a new Usage record —
// the cost was already paid (and tracked) on the request that populated
// the cache entry.
func (r *Router) WithTokenTracking(counter *tokens.Counter, calc *tokens.CostCalculator, tracker *tokens.Tracker) *Router {
	r.counter = counter
	r.costCalc = calc
	r.tracker = tracker
	return r
}

// WithTelemetry wires span and metric emission into dispatch.
func (r *Router) WithTelemetry(t *telemetry.Provider) *Router {
	r.telemetry = t
	return r
}

// Execute resolves (phase, task, docType) to a starting provider, serves
// the request from cache when present, otherwise dispatches through the
// fallback chain (or directly, if none is configured), caches a successful
// result, and records token usage for any freshly computed response.
func (r *Router) Execute(ctx context.Context, phase int, task string, prompt string, docType core.DocumentType) core.AgentResponse {
	tag, ok := r.mapping[mappingKey{phase, task, docType}]
	if !ok {
		return failureFor(task, corerrors.New("router.Execute", "router",
			fmt.Errorf("%w: phase=%d task=%s doc_type=%s", corerrors.ErrNoMapping, phase, task, docType)))
	}

	if _, ok := r.registry.Get(tag); !ok && r.chain == nil {
		return failureFor(task, corerrors.New("router.Execute", "router",
			fmt.Errorf("%w: %s", corerrors.ErrNoProviderForMapped, tag)))
	}

	req := resilience.Request{
		TaskName: task,
		Prompt:   prompt,
		Timeout:  time.Duration(r.timeoutSeconds) * time.Second,
	}

	if r.cacheMgr == nil {
		resp := r.dispatch(ctx, req, tag)
		r.track(ctx, resp, tag, phase, task, prompt)
		return resp
	}

	key := r.cacheMgr.Key(prompt, nil, tag, phase, tag)
	var computed core.AgentResponse
	payload, hit, err := r.cacheMgr.GetOrCompute(ctx, key, func(ctx context.Context) ([]byte, error) {
		resp := r.dispatch(ctx, req, tag)
		computed = resp
		if !resp.Success {
			return nil, fmt.Errorf("dispatch failed: %s", resp.Error)
		}
		return json.Marshal(resp)
	})
	r.telemetry.RecordCacheResult(ctx, hit)
	if err != nil {
		// Compute failed; fall back to the uncached failure response rather
		// than inventing a generic cache error.
		r.track(ctx, computed, tag, phase, task, prompt)
		return computed
	}

	var resp core.AgentResponse
	if jsonErr := json.Unmarshal(payload, &resp); jsonErr != nil {
		return failureFor(task, corerrors.New("router.Execute", "cache", jsonErr))
	}

	if hit {
		if resp.Metadata == nil {
			resp.Metadata = map[string]interface{}{}
		}
		resp.Metadata["cache_hit"] = true
		return resp
	}

	r.track(ctx, resp, tag, phase, task, prompt)
	return resp
}

func (r *Router) dispatch(ctx context.Context, req resilience.Request, tag string) core.AgentResponse {
	ctx, end := r.telemetry.StartDispatch(ctx, tag, req.TaskName)

	var resp core.AgentResponse
	if r.chain != nil {
		resp = r.chain.ExecuteFrom(ctx, req, tag)
	} else {
		p, _ := r.registry.Get(tag)
		resp = p.SendMessage(ctx, req)
	}
	if resp.Provider == "" {
		resp.Provider = tag
	}
	if resp.Provider != tag {
		r.telemetry.RecordFallback(ctx, tag, resp.Provider)
	}
	end(resp.Success)
	return resp
}

// track records a Usage entry for a freshly computed (non-cache-hit)
// response, attributing cost to whichever provider actually served it.
func (r *Router) track(ctx context.Context, resp core.AgentResponse, fallbackTag string, phase int, task, prompt string) {
	if r.tracker == nil || r.counter == nil || r.costCalc == nil || !resp.Success {
		return
	}
	provider := resp.Provider
	if provider == "" {
		provider = fallbackTag
	}
	in := r.counter.Count(prompt, provider)
	out := r.counter.Count(resp.Content, provider)
	usage := tokens.NewUsage(r.costCalc, provider, in.TotalTokens, out.TotalTokens, phase, task)
	r.tracker.Track(usage)
	r.telemetry.RecordTokens(ctx, provider, usage.TotalTokens)
}

func failureFor(task string, err error) core.AgentResponse {
	return core.AgentResponse{
		TaskName:  task,
		Success:   false,
		Error:     err.Error(),
		Timestamp: time.Now(),
	}
}

// DispatchPayload is the underlying value BatchQueue.Enqueue carries for a
// router-bound request.
type DispatchPayload struct {
	Phase   int
	Task    string
	Prompt  string
	DocType core.DocumentType
}

// BatchDispatcher adapts Router to batch.Dispatcher, unpacking each queued
// request's DispatchPayload and delegating to Router.Execute. Phase 2 uses
// this to fan out across providers with bounded concurrency instead of
// dispatching sequentially.
type BatchDispatcher struct{ Router *Router }

func (d BatchDispatcher) Dispatch(ctx context.Context, req batch.Request) core.AgentResponse {
	payload, ok := req.Underlying.(DispatchPayload)
	if !ok {
		return failureFor("", fmt.Errorf("invalid batch payload for request %s", req.ID))
	}
	return d.Router.Execute(ctx, payload.Phase, payload.Task, payload.Prompt, payload.DocType)
}
