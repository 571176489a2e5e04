package resilience

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aigenflow/pipeline/pkg/core"
	"github.com/aigenflow/pipeline/pkg/logging"
)

// Request is the normalized request handed to a provider's SendMessage.
type Request struct {
	TaskName string
	Prompt   string
	Timeout  time.Duration
}

// Sender is the minimal provider capability the fallback chain drives.
// Providers satisfy this directly.
type Sender interface {
	SendMessage(ctx context.Context, req Request) core.AgentResponse
}

// Config configures a FallbackChain.
type Config struct {
	ProviderOrder          []string
	MaxRetries             int
	MaxFallbacks           int
	CircuitBreakerEnabled  bool
	CircuitBreakerThreshold int
	CircuitBreakerTimeout  time.Duration
}

// DefaultConfig returns the published defaults: Claude, Gemini, ChatGPT,
// Perplexity in order; 2 retries; 3 fallbacks; breaker on, threshold 5,
// timeout 60s.
func DefaultConfig() Config {
	return Config{
		ProviderOrder:           []string{"claude", "gemini", "chatgpt", "perplexity"},
		MaxRetries:              2,
		MaxFallbacks:            3,
		CircuitBreakerEnabled:   true,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
	}
}

// decisionAction is the closed set of outcomes Decision can reach.
type decisionAction int

const (
	actionSuccess decisionAction = iota
	actionRetry
	actionFallback
	actionFail
)

// reason classifies a failed SendMessage outcome.
type reason string

const (
	reasonTimeout    reason = "timeout"
	reasonConnection reason = "connection"
	reasonRateLimit  reason = "rate_limit"
	reasonResponse   reason = "response_error"
	reasonUnknown    reason = "unknown"
)

// fallbackContext is the short-lived, per-Execute state threaded through the
// retry/fallback loop.
type fallbackContext struct {
	request         Request
	currentProvider string
	attemptNumber   int
	priorErrors     []string
	startTime       time.Time
	fallbackCount   int
	totalAttempts   int
}

func (c *fallbackContext) nextProvider(order []string) (string, bool) {
	for i, p := range order {
		if p == c.currentProvider && i+1 < len(order) {
			return order[i+1], true
		}
	}
	return "", false
}

// Chain is the per-request retry/fallback/circuit-breaker state machine
// driving an ordered provider list.
type Chain struct {
	cfg       Config
	providers map[string]Sender
	breakers  *registry
	logger    logging.Logger
}

// NewChain returns a Chain over the given provider registry.
func NewChain(cfg Config, providers map[string]Sender, logger logging.Logger) *Chain {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Chain{
		cfg:       cfg,
		providers: providers,
		breakers:  newRegistry(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerTimeout),
		logger:    logger,
	}
}

// Execute runs the retry/fallback loop starting at the chain's first
// configured provider, returning either a successful response (with
// fallback metadata attached if any fallback occurred) or a synthesized
// failure response on exhaustion.
func (c *Chain) Execute(ctx context.Context, req Request) core.AgentResponse {
	if len(c.cfg.ProviderOrder) == 0 {
		return failureResponse(req, "", 0, 0, []string{"no providers configured"})
	}
	return c.ExecuteFrom(ctx, req, c.cfg.ProviderOrder[0])
}

// ExecuteFrom runs the same retry/fallback loop but starting at start
// instead of the chain's configured first provider, falling through the
// rest of the configured order afterward. AgentRouter uses this so the
// static (phase, task, doc-type) mapping picks the starting provider while
// the chain still owns retry, fallback and circuit-breaker behavior.
func (c *Chain) ExecuteFrom(ctx context.Context, req Request, start string) core.AgentResponse {
	order := effectiveOrder(c.cfg.ProviderOrder, start)

	fc := &fallbackContext{
		request:         req,
		currentProvider: start,
		attemptNumber:   1,
		startTime:       time.Now(),
	}
	originalProvider := fc.currentProvider

	for {
		if c.cfg.CircuitBreakerEnabled {
			breaker := c.breakers.get(fc.currentProvider)
			if !breaker.Allow() {
				if next, ok := fc.nextProvider(order); ok && fc.fallbackCount < c.cfg.MaxFallbacks {
					c.logger.Info("circuit open, skipping provider", map[string]interface{}{
						"provider": fc.currentProvider, "next": next,
					})
					fc.priorErrors = append(fc.priorErrors, fmt.Sprintf("%s: circuit open", fc.currentProvider))
					fc.currentProvider = next
					fc.attemptNumber = 1
					fc.fallbackCount++
					continue
				}
				return c.finalizeFailure(fc, originalProvider)
			}
		}

		sender, ok := c.providers[fc.currentProvider]
		if !ok {
			fc.priorErrors = append(fc.priorErrors, fmt.Sprintf("%s: not registered", fc.currentProvider))
			if next, hasNext := fc.nextProvider(order); hasNext && fc.fallbackCount < c.cfg.MaxFallbacks {
				fc.currentProvider = next
				fc.attemptNumber = 1
				fc.fallbackCount++
				continue
			}
			return c.finalizeFailure(fc, originalProvider)
		}

		fc.totalAttempts++
		resp := sender.SendMessage(ctx, fc.request)
		action := c.decide(resp, fc, order)

		switch action {
		case actionSuccess:
			if c.cfg.CircuitBreakerEnabled {
				c.breakers.get(fc.currentProvider).RecordSuccess()
			}
			if fc.fallbackCount > 0 {
				if resp.Metadata == nil {
					resp.Metadata = map[string]interface{}{}
				}
				resp.Metadata["fallback_used"] = true
				resp.Metadata["original_provider"] = originalProvider
				resp.Metadata["final_provider"] = fc.currentProvider
			}
			return resp

		case actionRetry:
			if c.cfg.CircuitBreakerEnabled {
				c.breakers.get(fc.currentProvider).RecordFailure()
			}
			fc.priorErrors = append(fc.priorErrors, resp.Error)
			fc.attemptNumber++
			continue

		case actionFallback:
			if c.cfg.CircuitBreakerEnabled {
				c.breakers.get(fc.currentProvider).RecordFailure()
			}
			fc.priorErrors = append(fc.priorErrors, resp.Error)
			next, _ := fc.nextProvider(order)
			fc.currentProvider = next
			fc.attemptNumber = 1
			fc.fallbackCount++
			continue

		default: // actionFail
			if c.cfg.CircuitBreakerEnabled {
				c.breakers.get(fc.currentProvider).RecordFailure()
			}
			fc.priorErrors = append(fc.priorErrors, resp.Error)
			return c.finalizeFailure(fc, originalProvider)
		}
	}
}

// effectiveOrder rewrites order so it starts at start, preserving the
// relative order of the remaining providers; start is prepended if absent
// from order entirely.
func effectiveOrder(order []string, start string) []string {
	out := make([]string, 0, len(order)+1)
	out = append(out, start)
	for _, p := range order {
		if p != start {
			out = append(out, p)
		}
	}
	return out
}

// decide classifies the outcome of one SendMessage call into the fallback
// decision state machine.
func (c *Chain) decide(resp core.AgentResponse, fc *fallbackContext, order []string) decisionAction {
	if resp.Success {
		return actionSuccess
	}

	c.logger.Debug("provider call failed", map[string]interface{}{
		"provider": fc.currentProvider,
		"reason":   string(classifyReason(resp)),
		"attempt":  fc.attemptNumber,
	})

	if fc.attemptNumber <= c.cfg.MaxRetries {
		return actionRetry
	}
	if _, hasNext := fc.nextProvider(order); hasNext && fc.fallbackCount < c.cfg.MaxFallbacks {
		return actionFallback
	}
	return actionFail
}

func (c *Chain) finalizeFailure(fc *fallbackContext, originalProvider string) core.AgentResponse {
	return failureResponse(fc.request, originalProvider, fc.fallbackCount, fc.totalAttempts, fc.priorErrors)
}

func failureResponse(req Request, originalProvider string, fallbackCount, totalAttempts int, priorErrors []string) core.AgentResponse {
	tail := priorErrors
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	return core.AgentResponse{
		Provider:  originalProvider,
		TaskName:  req.TaskName,
		Success:   false,
		Error:     strings.Join(tail, "; "),
		Timestamp: time.Now(),
		Metadata: map[string]interface{}{
			"original_provider": originalProvider,
			"fallback_count":    fallbackCount,
			"total_attempts":    totalAttempts,
		},
	}
}

// classifyReason maps a response/error pair to a coarse reason tag; decide
// attaches it to the debug log line of every failed call.
func classifyReason(resp core.AgentResponse) reason {
	msg := strings.ToLower(resp.Error)
	switch {
	case strings.Contains(msg, "timeout"):
		return reasonTimeout
	case strings.Contains(msg, "connection"):
		return reasonConnection
	case strings.Contains(msg, "rate limit"):
		return reasonRateLimit
	case msg != "":
		return reasonResponse
	default:
		return reasonUnknown
	}
}
