package template

import "testing"

func TestRenderFallsBackToVerbatimContextWhenUnregistered(t *testing.T) {
	s := NewStore()
	out, err := s.Render("phase_1/unknown_task", map[string]interface{}{"topic": "coffee"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out != "topic=coffee" {
		t.Errorf("Render() = %q, want %q", out, "topic=coffee")
	}
}

func TestRenderAppliesRegisteredFormat(t *testing.T) {
	s := NewStore()
	s.Register("phase_1/brainstorm_chatgpt", "[brainstorm_chatgpt] %s")
	out, err := s.Render("phase_1/brainstorm_chatgpt", map[string]interface{}{"topic": "coffee"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := "[brainstorm_chatgpt] topic=coffee"
	if out != want {
		t.Errorf("Render() = %q, want %q", out, want)
	}
}

func TestRenderContextBlockSortsKeys(t *testing.T) {
	s := NewStore()
	ctx := map[string]interface{}{"zeta": 1, "alpha": 2, "mid": 3}
	out, _ := s.Render("unregistered", ctx)
	want := "alpha=2, mid=3, zeta=1"
	if out != want {
		t.Errorf("Render() = %q, want %q (keys should sort regardless of insertion order)", out, want)
	}
}

func TestRenderEmptyContext(t *testing.T) {
	s := NewStore()
	out, err := s.Render("x", map[string]interface{}{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out != "" {
		t.Errorf("Render() with empty context = %q, want empty string", out)
	}
}
