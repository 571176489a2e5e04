// Package gemini is the Gemini provider binding. See providers/claude for
// the shared stand-in rationale.
package gemini

import "github.com/aigenflow/pipeline/providers/stub"

const Tag = "gemini"

type Provider struct{ *stub.Provider }

func New() *Provider {
	return &Provider{stub.New(Tag)}
}
