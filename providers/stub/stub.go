// Package stub implements a configurable test-double Provider shared by the
// four provider packages (claude, gemini, chatgpt, perplexity). Each
// concrete package wraps this with its own tag, the way
// the teacher's mock AI client is shared in spirit across provider tests.
package stub

import (
	"context"
	"sync"
	"time"

	"github.com/aigenflow/pipeline/pkg/core"
	"github.com/aigenflow/pipeline/pkg/resilience"
)

// Outcome is one scripted SendMessage result.
type Outcome struct {
	Content string
	Success bool
	Error   string
}

// Provider is a scripted Provider implementation: it returns Outcomes from
// a queue in order, repeating the last one once the queue is exhausted.
type Provider struct {
	Tag string

	mu        sync.Mutex
	outcomes  []Outcome
	index     int
	callCount int
	sessionOK bool
}

// New returns a Provider tagged tag that always succeeds with
// "Mock <tag> response for <task>" unless SetOutcomes overrides it.
func New(tag string) *Provider {
	return &Provider{Tag: tag, sessionOK: true}
}

// SetOutcomes scripts the sequence of responses SendMessage returns.
func (p *Provider) SetOutcomes(outcomes ...Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = outcomes
	p.index = 0
}

// CallCount returns how many times SendMessage has been invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callCount
}

func (p *Provider) SendMessage(ctx context.Context, req resilience.Request) core.AgentResponse {
	p.mu.Lock()
	p.callCount++
	var outcome Outcome
	if len(p.outcomes) == 0 {
		outcome = Outcome{Content: "Mock " + p.Tag + " response for " + req.TaskName, Success: true}
	} else {
		idx := p.index
		if idx >= len(p.outcomes) {
			idx = len(p.outcomes) - 1
		} else {
			p.index++
		}
		outcome = p.outcomes[idx]
	}
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return core.AgentResponse{Provider: p.Tag, TaskName: req.TaskName, Success: false, Error: ctx.Err().Error(), Timestamp: time.Now()}
	default:
	}

	resp := core.AgentResponse{
		Provider:     p.Tag,
		TaskName:     req.TaskName,
		Content:      outcome.Content,
		Success:      outcome.Success,
		Error:        outcome.Error,
		ResponseTime: 0,
		Timestamp:    time.Now(),
	}
	if outcome.Success {
		resp.TokensUsed = maxInt(1, len(resp.Content)/4)
	}
	return resp
}

func (p *Provider) CheckSession(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionOK
}

func (p *Provider) LoginFlow(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionOK = true
	return nil
}

func (p *Provider) SaveSession(ctx context.Context) error { return nil }

func (p *Provider) LoadSession(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionOK
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
