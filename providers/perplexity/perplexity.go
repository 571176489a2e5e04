// Package perplexity is the Perplexity provider binding. See
// providers/claude for the shared stand-in rationale.
package perplexity

import "github.com/aigenflow/pipeline/providers/stub"

const Tag = "perplexity"

type Provider struct{ *stub.Provider }

func New() *Provider {
	return &Provider{stub.New(Tag)}
}
