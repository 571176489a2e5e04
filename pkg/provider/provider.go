// Package provider defines the opaque Provider contract the core drives
// (SendMessage/CheckSession/LoginFlow/SaveSession/LoadSession), a registry
// keyed by provider tag, and the AgentRouter that resolves
// (phase, task, doc-type) to a registered provider.
package provider

import (
	"context"

	"github.com/aigenflow/pipeline/pkg/core"
	"github.com/aigenflow/pipeline/pkg/resilience"
)

// Provider is the browser-automation back end contract. The core never
// inspects a provider's internals; it only calls these five methods.
type Provider interface {
	// SendMessage submits a prompt and returns a normalized response.
	SendMessage(ctx context.Context, req resilience.Request) core.AgentResponse
	// CheckSession reports whether the provider's browser session is still
	// authenticated.
	CheckSession(ctx context.Context) bool
	// LoginFlow drives an interactive login. May block for minutes; never
	// invoked from the hot path.
	LoginFlow(ctx context.Context) error
	// SaveSession persists the provider's session state for reuse.
	SaveSession(ctx context.Context) error
	// LoadSession restores a previously saved session, reporting whether
	// one was found.
	LoadSession(ctx context.Context) bool
}

// Registry holds Provider instances keyed by provider tag ("claude",
// "gemini", "chatgpt", "perplexity", ...).
type Registry struct {
	providers map[string]Provider
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds or replaces the provider instance for tag.
func (r *Registry) Register(tag string, p Provider) {
	r.providers[tag] = p
}

// Get returns the provider registered for tag, if any.
func (r *Registry) Get(tag string) (Provider, bool) {
	p, ok := r.providers[tag]
	return p, ok
}

// Senders projects the registry into the resilience.Sender map the fallback
// chain drives.
func (r *Registry) Senders() map[string]resilience.Sender {
	out := make(map[string]resilience.Sender, len(r.providers))
	for tag, p := range r.providers {
		out[tag] = senderAdapter{p}
	}
	return out
}

type senderAdapter struct{ p Provider }

func (s senderAdapter) SendMessage(ctx context.Context, req resilience.Request) core.AgentResponse {
	return s.p.SendMessage(ctx, req)
}
