// Package chatgpt is the ChatGPT provider binding. See providers/claude for
// the shared stand-in rationale.
package chatgpt

import "github.com/aigenflow/pipeline/providers/stub"

const Tag = "chatgpt"

type Provider struct{ *stub.Provider }

func New() *Provider {
	return &Provider{stub.New(Tag)}
}
