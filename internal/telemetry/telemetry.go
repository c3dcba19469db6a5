/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package telemetry owns the process-wide OpenTelemetry TracerProvider.
// Every tool call gets a real span; its W3C trace/span IDs are used
// directly as the envelope's trace_id/span_id, so a trace collected here
// lines up with whatever external tracing the caller's own agent runtime
// does.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "sentryfrogg-mcp"

// Provider wraps the process TracerProvider and exposes a single Tracer.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Setup builds a TracerProvider. If otlpEndpoint is empty, spans are still
// created (so trace/span IDs remain real and usable in the envelope) but
// are never exported off-process.
func Setup(ctx context.Context, otlpEndpoint string) (*Provider, func(context.Context) error, error) {
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(tracerName),
	))
	if err != nil {
		return nil, nil, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if otlpEndpoint != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(otlpEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	p := &Provider{tp: tp, tracer: tp.Tracer(tracerName)}
	shutdown := func(ctx context.Context) error { return tp.Shutdown(ctx) }
	return p, shutdown, nil
}

// Span is an in-flight tool-call span plus the IDs derived from it.
type Span struct {
	ctx       context.Context
	span      trace.Span
	TraceID   string
	SpanID    string
}

// StartToolCallSpan starts a span named "tool_call:<tool>.<action>". When
// parentSpanID is non-empty it is not used to reconstruct a remote parent
// (no cross-process propagation carrier exists over stdio) — it is
// recorded as a span attribute instead so the relationship is visible in
// any exported trace.
func (p *Provider) StartToolCallSpan(ctx context.Context, tool, action, parentSpanID string) *Span {
	ctx, span := p.tracer.Start(ctx, "tool_call:"+tool+"."+action)
	if parentSpanID != "" {
		span.SetAttributes(attribute.String("sentryfrogg.parent_span_id", parentSpanID))
	}
	sc := span.SpanContext()
	return &Span{
		ctx:     ctx,
		span:    span,
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

// Context returns the span-carrying context, for handlers that start
// further child spans.
func (s *Span) Context() context.Context { return s.ctx }

// End finalizes the span, recording err if non-nil.
func (s *Span) End(err error) {
	if err != nil {
		s.span.RecordError(err)
	}
	s.span.End()
}
