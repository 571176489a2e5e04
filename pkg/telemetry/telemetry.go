// Package telemetry wires optional OpenTelemetry tracing and metrics
// around phase execution and provider dispatch. Unconfigured, every method
// here is a no-op; callers never need to check whether telemetry is on.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider holds the tracer and instruments the pipeline emits spans and
// metrics through.
type Provider struct {
	tracer trace.Tracer
	meter  metric.Meter

	phaseDuration  metric.Float64Histogram
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	fallbackEvents metric.Int64Counter
	tokensUsed     metric.Int64Counter

	traceProvider *sdktrace.TracerProvider
}

// NewStdout returns a Provider that exports spans to stdout, useful for
// local runs and demos. serviceName tags every emitted span and metric.
func NewStdout(serviceName string) (*Provider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating stdout exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	return newProvider(serviceName, tp)
}

// NoOp returns a Provider backed by OpenTelemetry's global no-op
// implementations — every span and metric recorded against it is discarded.
func NoOp(serviceName string) *Provider {
	p, _ := newProvider(serviceName, nil)
	return p
}

func newProvider(serviceName string, tp *sdktrace.TracerProvider) (*Provider, error) {
	tracer := otel.Tracer(serviceName)
	meter := otel.Meter(serviceName)

	phaseDuration, err := meter.Float64Histogram("pipeline.phase.duration_seconds",
		metric.WithDescription("wall-clock duration of one phase execution"))
	if err != nil {
		return nil, err
	}
	cacheHits, err := meter.Int64Counter("pipeline.cache.hits")
	if err != nil {
		return nil, err
	}
	cacheMisses, err := meter.Int64Counter("pipeline.cache.misses")
	if err != nil {
		return nil, err
	}
	fallbackEvents, err := meter.Int64Counter("pipeline.fallback.events")
	if err != nil {
		return nil, err
	}
	tokensUsed, err := meter.Int64Counter("pipeline.tokens.used")
	if err != nil {
		return nil, err
	}

	return &Provider{
		tracer:         tracer,
		meter:          meter,
		phaseDuration:  phaseDuration,
		cacheHits:      cacheHits,
		cacheMisses:    cacheMisses,
		fallbackEvents: fallbackEvents,
		tokensUsed:     tokensUsed,
		traceProvider:  tp,
	}, nil
}

// Shutdown flushes and stops the underlying exporter, if any.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.traceProvider == nil {
		return nil
	}
	return p.traceProvider.Shutdown(ctx)
}

// StartPhase opens a span for one phase execution; the caller must call the
// returned end function with the phase's outcome.
func (p *Provider) StartPhase(ctx context.Context, phase int, name string) (context.Context, func(status string)) {
	if p == nil {
		return ctx, func(string) {}
	}
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.phase",
		trace.WithAttributes(attribute.Int("phase.number", phase), attribute.String("phase.name", name)))
	return ctx, func(status string) {
		span.SetAttributes(attribute.String("phase.status", status))
		span.End()
		p.phaseDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.Int("phase.number", phase), attribute.String("phase.status", status)))
	}
}

// StartDispatch opens a span for one provider dispatch.
func (p *Provider) StartDispatch(ctx context.Context, provider, task string) (context.Context, func(success bool)) {
	if p == nil {
		return ctx, func(bool) {}
	}
	ctx, span := p.tracer.Start(ctx, "pipeline.dispatch",
		trace.WithAttributes(attribute.String("provider", provider), attribute.String("task", task)))
	return ctx, func(success bool) {
		span.SetAttributes(attribute.Bool("success", success))
		span.End()
	}
}

// RecordCacheResult increments the hit or miss counter.
func (p *Provider) RecordCacheResult(ctx context.Context, hit bool) {
	if p == nil {
		return
	}
	if hit {
		p.cacheHits.Add(ctx, 1)
		return
	}
	p.cacheMisses.Add(ctx, 1)
}

// RecordFallback increments the fallback counter, tagged with the provider
// that was abandoned and the one that replaced it.
func (p *Provider) RecordFallback(ctx context.Context, from, to string) {
	if p == nil {
		return
	}
	p.fallbackEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from_provider", from), attribute.String("to_provider", to)))
}

// RecordTokens adds total to the running token-usage counter, tagged by
// provider.
func (p *Provider) RecordTokens(ctx context.Context, provider string, total int) {
	if p == nil {
		return
	}
	p.tokensUsed.Add(ctx, int64(total), metric.WithAttributes(attribute.String("provider", provider)))
}
