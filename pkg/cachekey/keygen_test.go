package cachekey

import "testing"

func TestGenerateIsDeterministic(t *testing.T) {
	g := NewGenerator()
	ctx := map[string]interface{}{"topic": "plants", "phase": 1}

	a := g.Generate("Write a business plan", ctx, "claude", 3, "v1")
	b := g.Generate("Write a business plan", ctx, "claude", 3, "v1")
	if a != b {
		t.Fatalf("Generate() not deterministic: %q != %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("Generate() len = %d, want 64 hex chars", len(a))
	}
}

func TestGenerateNormalizesWhitespace(t *testing.T) {
	g := NewGenerator()
	a := g.Generate("Write   a\nbusiness  plan", nil, "claude", 1, "v1")
	b := g.Generate("Write a business plan", nil, "claude", 1, "v1")
	if a != b {
		t.Fatalf("Generate() should normalize whitespace: %q != %q", a, b)
	}
}

func TestGeneratePreservesCase(t *testing.T) {
	g := NewGenerator()
	a := g.Generate("Write A Plan", nil, "claude", 1, "v1")
	b := g.Generate("write a plan", nil, "claude", 1, "v1")
	if a == b {
		t.Fatal("Generate() should be case sensitive")
	}
}

func TestGenerateDiffersByProviderPhaseModel(t *testing.T) {
	g := NewGenerator()
	base := g.Generate("prompt", nil, "claude", 1, "v1")

	if other := g.Generate("prompt", nil, "gemini", 1, "v1"); other == base {
		t.Error("Generate() should differ by provider")
	}
	if other := g.Generate("prompt", nil, "claude", 2, "v1"); other == base {
		t.Error("Generate() should differ by phase")
	}
	if other := g.Generate("prompt", nil, "claude", 1, "v2"); other == base {
		t.Error("Generate() should differ by model version")
	}
}

func TestGenerateContextKeyOrderIndependent(t *testing.T) {
	g := NewGenerator()
	a := g.Generate("prompt", map[string]interface{}{"x": 1, "y": 2}, "claude", 1, "v1")
	b := g.Generate("prompt", map[string]interface{}{"y": 2, "x": 1}, "claude", 1, "v1")
	if a != b {
		t.Fatalf("Generate() should be insensitive to map iteration order: %q != %q", a, b)
	}
}

func TestGenerateDiffersByContextContent(t *testing.T) {
	g := NewGenerator()
	a := g.Generate("prompt", map[string]interface{}{"x": 1}, "claude", 1, "v1")
	b := g.Generate("prompt", map[string]interface{}{"x": 2}, "claude", 1, "v1")
	if a == b {
		t.Fatal("Generate() should differ when context content differs")
	}
}
