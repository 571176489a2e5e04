// Package summarizer implements the context-optimization gate: it decides
// when cumulative prior-phase context is too large for a provider's window
// and, when so, invokes an LLM through the router to compress it while
// preserving declared sections.
package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aigenflow/pipeline/pkg/core"
	"github.com/aigenflow/pipeline/pkg/logging"
	"github.com/aigenflow/pipeline/pkg/provider"
	"github.com/aigenflow/pipeline/pkg/tokens"
)

const excerptBound = 500
const minExtractLength = 100

// Config controls summarization behavior.
type Config struct {
	Enabled              bool
	TargetReductionRatio float64
	ProviderTag          string
	MaxRetries           int
	PreserveSections     []string
}

// DefaultConfig matches the published defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		TargetReductionRatio: 0.5,
		ProviderTag:          "claude",
		MaxRetries:           2,
		PreserveSections:     []string{"key_decisions", "data_points", "citations"},
	}
}

const summaryPromptTemplate = `Please summarize the following context from previous pipeline phases while preserving:

1. Key decisions and their rationales
2. Important data points and metrics
3. Citation sources and references
4. Action items and next steps

Target: reduce to approximately %.0f%% of original token count while maintaining critical information.

Context to summarize:
-----------
%s
-----------

Provide a concise summary that captures the essential information.`

// Result is the outcome of a Summarize call.
type Result struct {
	OriginalText    string
	SummaryText     string
	TokensOriginal  int
	TokensSummary   int
	ReductionRatio  float64
	Success         bool
	Error           string
	Timestamp       time.Time
}

// Executor is the subset of the router the summarizer drives: one call per
// attempt, returning a normalized response.
type Executor interface {
	Execute(ctx context.Context, phase int, task string, prompt string, docType core.DocumentType) core.AgentResponse
}

// Summarizer is the ContextSummarizer component.
type Summarizer struct {
	router  Executor
	counter *tokens.Counter
	cfg     Config
	logger  logging.Logger

	summaries map[int]Result
}

// New returns a Summarizer driving router with cfg.
func New(router Executor, counter *tokens.Counter, cfg Config, logger logging.Logger) *Summarizer {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Summarizer{router: router, counter: counter, cfg: cfg, logger: logger, summaries: make(map[int]Result)}
}

// ShouldSummarize reports whether the serialized prior-phase context for
// currentPhase exceeds threshold * providerTag's window limit, as measured
// by the token counter. Returns false with no prior results.
func (s *Summarizer) ShouldSummarize(results []core.PhaseResult, currentPhase int, providerTag string, threshold float64) bool {
	prior := priorResults(results, currentPhase)
	if len(prior) == 0 {
		return false
	}
	context := extractContext(prior, 0)
	count := s.counter.Count(context, providerTag)
	limit := tokens.Window(providerTag)
	return float64(count.TotalTokens) >= threshold*float64(limit)
}

// Summarize compresses the prior-phase context for currentPhase. Disabled
// configs, insufficient context, and exhausted retries all return a
// non-fatal Result: Success=false for a disabled config or exhausted
// retries, Success=true with the extract passed through unchanged when it
// is shorter than minExtractLength; the
// orchestrator is expected to continue with the original context whenever
// Success is false.
func (s *Summarizer) Summarize(ctx context.Context, results []core.PhaseResult, currentPhase int) Result {
	if !s.cfg.Enabled {
		return Result{Success: false, Error: "summarization disabled", Timestamp: time.Now()}
	}

	prior := priorResults(results, currentPhase)
	if len(prior) == 0 {
		return Result{Success: true, Timestamp: time.Now()}
	}

	extract := extractContext(prior, excerptBound)
	if len(strings.TrimSpace(extract)) < minExtractLength {
		return Result{
			OriginalText:   extract,
			SummaryText:    extract,
			TokensOriginal: maxInt(1, len(extract)/4),
			TokensSummary:  maxInt(1, len(extract)/4),
			ReductionRatio: 0,
			Success:        true,
			Timestamp:      time.Now(),
		}
	}

	summaryText, originalTokens, summaryTokens, err := s.summarizeWithRetry(ctx, extract, currentPhase)
	if err != nil {
		s.logger.Error("summarization failed, continuing with original context", map[string]interface{}{
			"phase": currentPhase, "error": err.Error(),
		})
		return Result{OriginalText: extract, SummaryText: extract, Success: false, Error: err.Error(), Timestamp: time.Now()}
	}

	reduction := 0.0
	if originalTokens > 0 {
		reduction = 1.0 - float64(summaryTokens)/float64(originalTokens)
	}

	result := Result{
		OriginalText:   extract,
		SummaryText:    summaryText,
		TokensOriginal: originalTokens,
		TokensSummary:  summaryTokens,
		ReductionRatio: reduction,
		Success:        true,
		Timestamp:      time.Now(),
	}
	s.summaries[currentPhase] = result
	return result
}

// GetSummary returns a previously produced summary for phase, if any.
func (s *Summarizer) GetSummary(phase int) (Result, bool) {
	r, ok := s.summaries[phase]
	return r, ok
}

func (s *Summarizer) summarizeWithRetry(ctx context.Context, extract string, phase int) (string, int, int, error) {
	original := s.counter.Count(extract, s.cfg.ProviderTag)
	prompt := fmt.Sprintf(summaryPromptTemplate, s.cfg.TargetReductionRatio*100, extract)

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		resp := s.router.Execute(ctx, phase, provider.SummarizationTask(phase), prompt, core.DocTypeBizPlan)
		if resp.Success {
			summaryText := strings.TrimSpace(resp.Content)
			summary := s.counter.Count(summaryText, s.cfg.ProviderTag)
			return summaryText, original.TotalTokens, summary.TotalTokens, nil
		}
		lastErr = fmt.Errorf("agent execution failed: %s", resp.Error)
		if attempt < s.cfg.MaxRetries {
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return "", 0, 0, ctx.Err()
			}
		}
	}
	return "", 0, 0, fmt.Errorf("summarization failed after %d attempts: %w", s.cfg.MaxRetries+1, lastErr)
}

func priorResults(results []core.PhaseResult, currentPhase int) []core.PhaseResult {
	var out []core.PhaseResult
	for _, r := range results {
		if r.Phase < currentPhase && (r.Status == core.PhaseCompleted || r.Status == core.PhaseSkipped) {
			out = append(out, r)
		}
	}
	return out
}

// extractContext serializes completed/skipped phase results into a
// canonical context block. When bound > 0 each response's content is cut to
// bound characters (Summarize passes excerptBound to avoid double-summarizing
// huge outputs); ShouldSummarize passes 0 to measure the full context.
func extractContext(results []core.PhaseResult, bound int) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "## Phase %d: %s\n", r.Phase, r.Name)
		fmt.Fprintf(&b, "Status: %s\n", r.Status)

		for i, resp := range r.Responses {
			fmt.Fprintf(&b, "\nTask %d (%s): %s\n", i+1, resp.Provider, resp.TaskName)
			content := resp.Content
			if bound > 0 && len(content) > bound {
				content = content[:bound] + "\n...(truncated for summary input)"
			}
			b.WriteString(content)
			b.WriteString("\n")
		}

		if r.Summary != "" {
			fmt.Fprintf(&b, "\nPhase Summary:\n%s\n", r.Summary)
		}
		b.WriteString("\n" + strings.Repeat("-", 50) + "\n")
	}
	return b.String()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
