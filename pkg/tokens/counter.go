// Package tokens implements token counting, cost calculation and budget
// tracking: the context-optimization accounting layer that sits in front of
// every provider call.
package tokens

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// WindowLimit is the maximum context window, in tokens, a provider accepts
// in one request.
var WindowLimit = map[string]int{
	"claude":      200000,
	"gemini":      1000000,
	"chatgpt":     128000,
	"perplexity":  128000,
}

const defaultWindowLimit = 100000

// Window returns the context window limit for a provider tag, falling back
// to the default when the provider is unrecognized.
func Window(provider string) int {
	if w, ok := WindowLimit[strings.ToLower(provider)]; ok {
		return w
	}
	return defaultWindowLimit
}

// Count is the result of a token estimation.
type Count struct {
	TotalTokens int    `json:"total_tokens"`
	Estimated   bool   `json:"estimated"`
	ModelName   string `json:"model_name"`
}

// Counter estimates token counts for arbitrary text. When a tiktoken
// encoding is available for the requested model family it is used for an
// exact count; otherwise it falls back to the 4-chars-per-token heuristic
// with Estimated=true.
type Counter struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
}

// NewCounter returns a ready-to-use Counter.
func NewCounter() *Counter {
	return &Counter{encodings: make(map[string]*tiktoken.Tiktoken)}
}

// Count returns the token count of text for the given model tag.
func (c *Counter) Count(text, model string) Count {
	if enc := c.encodingFor(model); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		return Count{TotalTokens: maxInt(1, len(tokens)), Estimated: false, ModelName: model}
	}
	return Count{TotalTokens: maxInt(1, len(text)/4), Estimated: true, ModelName: model}
}

// encodingFor resolves (and caches) a tiktoken encoding for a model tag.
// tiktoken-go only knows OpenAI model names; any other provider tag falls
// through to nil, which selects the heuristic fallback above.
func (c *Counter) encodingFor(model string) *tiktoken.Tiktoken {
	key := strings.ToLower(model)
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encodings[key]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(key)
	if err != nil || enc == nil {
		c.encodings[key] = nil
		return nil
	}
	c.encodings[key] = enc
	return enc
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
