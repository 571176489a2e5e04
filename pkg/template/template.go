// Package template defines the Render collaborator contract the core
// depends on for prompt rendering, plus a default in-memory renderer good
// enough to exercise the rest of the pipeline without a real templating
// engine. Template-language ownership itself stays out of the core.
package template

import (
	"fmt"
	"sort"
)

// Renderer renders a named template against a context map. Names follow
// "phase_<n>/<task_tag>".
type Renderer interface {
	Render(name string, ctx map[string]interface{}) (string, error)
}

// Store is a simple in-memory Renderer backed by Go text/template-free
// string formatting: each registered template is a fmt.Sprintf-style
// format string whose single verb renders the context as "key=value"
// pairs. A missing template falls back to rendering the context verbatim
// rather than failing hard, matching the degenerate-template option the
// core allows.
type Store struct {
	templates map[string]string
}

// NewStore returns an empty template Store.
func NewStore() *Store {
	return &Store{templates: make(map[string]string)}
}

// Register associates name with a format string applied to the rendered
// context block (see Render).
func (s *Store) Register(name, format string) {
	s.templates[name] = format
}

// Render renders name against ctx. If name isn't registered, it falls back
// to the verbatim context block.
func (s *Store) Render(name string, ctx map[string]interface{}) (string, error) {
	block := renderContextBlock(ctx)
	format, ok := s.templates[name]
	if !ok {
		return block, nil
	}
	return fmt.Sprintf(format, block), nil
}

func renderContextBlock(ctx map[string]interface{}) string {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%v", k, ctx[k])
	}
	return out
}
