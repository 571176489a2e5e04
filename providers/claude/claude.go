// Package claude is the Claude provider binding. The real implementation
// reaches Claude through headless browser automation; until that back end
// is wired in, Provider is a scripted stand-in satisfying the exact same
// contract so the router, fallback chain and orchestrator can be exercised
// end to end.
package claude

import "github.com/aigenflow/pipeline/providers/stub"

const Tag = "claude"

// Provider is the Claude stand-in.
type Provider struct{ *stub.Provider }

// New returns a Provider that always succeeds unless scripted otherwise via
// SetOutcomes.
func New() *Provider {
	return &Provider{stub.New(Tag)}
}
