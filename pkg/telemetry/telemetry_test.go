package telemetry

import (
	"context"
	"testing"
)

func TestNilProviderIsSafeForEveryMethod(t *testing.T) {
	var p *Provider

	ctx, endPhase := p.StartPhase(context.Background(), 1, "Framing")
	endPhase("COMPLETED")

	_, endDispatch := p.StartDispatch(ctx, "claude", "validate_claude")
	endDispatch(true)

	p.RecordCacheResult(ctx, true)
	p.RecordFallback(ctx, "claude", "gemini")
	p.RecordTokens(ctx, "claude", 100)

	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() on a nil Provider should be nil, got %v", err)
	}
}

func TestNoOpProviderIsUsableEndToEnd(t *testing.T) {
	p := NoOp("test-service")
	if p == nil {
		t.Fatal("NoOp() should never return nil")
	}

	ctx, endPhase := p.StartPhase(context.Background(), 2, "Research")
	endPhase("COMPLETED")

	_, endDispatch := p.StartDispatch(ctx, "gemini", "deep_search_gemini")
	endDispatch(true)

	p.RecordCacheResult(ctx, false)
	p.RecordFallback(ctx, "claude", "gemini")
	p.RecordTokens(ctx, "gemini", 250)

	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() on a NoOp Provider should be nil, got %v", err)
	}
}

func TestNewStdoutReturnsUsableProvider(t *testing.T) {
	p, err := NewStdout("test-service")
	if err != nil {
		t.Fatalf("NewStdout() error = %v", err)
	}
	defer p.Shutdown(context.Background())

	_, end := p.StartPhase(context.Background(), 1, "Framing")
	end("COMPLETED")
}
