/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package toolexec implements the Tool Execution Envelope: the uniform
// invocation pipeline every tool call passes through regardless of which
// handler ultimately runs it — alias/preset resolution, trace/span
// assignment, envelope-key stripping, output shaping, oversize-value
// spilling to the artifact store, state persistence, and audit logging.
package toolexec

import (
	"context"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/alias"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/artifacts"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/audit"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/preset"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/redact"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/state"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/telemetry"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

// Handler is one tool's single entry point. action is args["action"]
// (already present in args too, so handlers that don't branch on it can
// ignore the parameter). Handlers are polymorphic over action per
// spec.md §4.3 — the envelope is generic over this capability set.
type Handler func(ctx context.Context, action string, args map[string]any) (any, error)

// Envelope is what Execute returns on a handled call (success or a
// handler-level ToolError) — the §4.3 step 8 uniform façade result.
type Envelope struct {
	OK     bool           `json:"ok"`
	Result any            `json:"result,omitempty"`
	Error  *toolerr.ToolError `json:"error,omitempty"`
	Meta   Meta           `json:"meta"`
}

// Meta is the envelope's metadata block.
type Meta struct {
	Tool         string `json:"tool"`
	Action       string `json:"action,omitempty"`
	TraceID      string `json:"trace_id"`
	SpanID       string `json:"span_id"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	StoredAs     string `json:"stored_as,omitempty"`
	InvokedAs    string `json:"invoked_as,omitempty"`
	Preset       string `json:"preset,omitempty"`
}

// Executor wires the alias table, preset table, handler registry, state
// store, artifact store, audit log, and tracer together into the
// pipeline described in spec.md §4.3.
type Executor struct {
	handlers  map[string]Handler
	aliases   *alias.Registry
	presets   *preset.Registry
	state     *state.Store
	artifacts *artifacts.Store
	auditLog  *audit.Log
	tracer    *telemetry.Provider
	schemas   map[string]*jsonschema.Resolved

	maxInlineBytes  int
	maxCaptureBytes int
	maxSpills       int

	now func() time.Time
}

// Options configures a new Executor. Tracer, Artifacts, and Audit may all
// be nil — Execute degrades gracefully (no span IDs become random hex via
// a no-op tracer is NOT attempted; callers should always supply a
// telemetry.Provider in production, nil is only for unit tests of
// individual handlers).
type Options struct {
	Aliases         *alias.Registry
	Presets         *preset.Registry
	State           *state.Store
	Artifacts       *artifacts.Store
	Audit           *audit.Log
	Tracer          *telemetry.Provider
	MaxInlineBytes  int
	MaxCaptureBytes int
	MaxSpills       int
}

// New constructs an Executor with no handlers registered yet.
func New(opts Options) *Executor {
	e := &Executor{
		handlers:        map[string]Handler{},
		aliases:         opts.Aliases,
		presets:         opts.Presets,
		state:           opts.State,
		artifacts:       opts.Artifacts,
		auditLog:        opts.Audit,
		tracer:          opts.Tracer,
		maxInlineBytes:  opts.MaxInlineBytes,
		maxCaptureBytes: opts.MaxCaptureBytes,
		maxSpills:       opts.MaxSpills,
		now:             time.Now,
	}
	if e.maxInlineBytes <= 0 {
		e.maxInlineBytes = 16 * 1024
	}
	if e.maxCaptureBytes <= 0 {
		e.maxCaptureBytes = 256 * 1024
	}
	if e.maxSpills <= 0 {
		e.maxSpills = 20
	}
	return e
}

// Register binds a canonical tool name to its handler.
func (e *Executor) Register(tool string, h Handler) {
	e.handlers[tool] = h
}

// Tools returns every registered canonical tool name.
func (e *Executor) Tools() []string {
	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	return names
}

// CallInput is one tools/call invocation, already parsed out of the
// transport layer.
type CallInput struct {
	Tool         string
	Args         map[string]any
	TraceID      string
	ParentSpanID string
}

// Execute runs the full §4.3 pipeline. It also satisfies
// internal/runbook.ToolExecutor, so the Runbook Engine and the Intent
// Planner call back into the same envelope every direct tools/call goes
// through — a runbook step's tool invocation is audited and spilled
// exactly like an interactive one.
func (e *Executor) Execute(traceID, parentSpanID, tool string, args map[string]any) (any, map[string]any, error) {
	env := e.run(context.Background(), CallInput{Tool: tool, Args: args, TraceID: traceID, ParentSpanID: parentSpanID})
	if !env.OK {
		return env.Result, metaToMap(env.Meta), env.Error
	}
	return env.Result, metaToMap(env.Meta), nil
}

// Call runs the pipeline and returns the full envelope, used by the MCP
// server's tools/call handler where the caller wants ok/meta visible even
// on error (a handler failure is not itself a JSON-RPC transport error).
func (e *Executor) Call(ctx context.Context, in CallInput) Envelope {
	return e.run(ctx, in)
}

func (e *Executor) run(ctx context.Context, in CallInput) Envelope {
	start := e.now()

	canonical, invokedAs, aliasRec := e.resolveTool(in.Tool)
	handler, ok := e.handlers[canonical]
	if !ok {
		return e.finish(ctx, in, canonical, invokedAs, "", start, nil, nil,
			toolerr.New(toolerr.KindInvalidParams, toolerr.CodeUnknownAction, "unknown tool: "+in.Tool))
	}

	span := e.startSpan(ctx, canonical, in)

	presetName, mergedArgs := e.mergeArgs(in.Args, aliasRec)
	action, _ := mergedArgs["action"].(string)

	cleanArgs := stripEnvelopeKeys(mergedArgs)

	if verr := e.validateArgs(canonical, cleanArgs); verr != nil {
		span.end(verr)
		return e.finish(ctx, in, canonical, invokedAs, presetName, start, mergedArgs, nil, verr)
	}

	result, err := handler(span.ctx, action, cleanArgs)
	if err != nil {
		span.end(err)
		return e.finish(ctx, in, canonical, invokedAs, presetName, start, mergedArgs, nil, toAsToolErr(err))
	}

	outSpec, _ := mergedArgs["output"].(map[string]any)
	shaped, err := applyOutput(result, outSpec)
	if err != nil {
		span.end(err)
		return e.finish(ctx, in, canonical, invokedAs, presetName, start, mergedArgs, nil, toAsToolErr(err))
	}

	spiller := &spillWalker{
		store:           e.artifacts,
		traceID:         span.traceID,
		spanID:          span.spanID,
		maxInlineBytes:  e.maxInlineBytes,
		maxCaptureBytes: e.maxCaptureBytes,
		maxSpills:       e.maxSpills,
	}
	spilled := spiller.walk(shaped, "")

	storedAs, _ := mergedArgs["store_as"].(string)
	if storedAs != "" && e.state != nil {
		scope := state.ScopePersistent
		if s, _ := mergedArgs["store_scope"].(string); s == "session" {
			scope = state.ScopeSession
		}
		_ = e.state.Set(scope, storedAs, spilled, 0)
	}

	span.end(nil)
	meta := Meta{
		Tool: canonical, Action: action, TraceID: span.traceID, SpanID: span.spanID,
		ParentSpanID: in.ParentSpanID, DurationMs: e.now().Sub(start).Milliseconds(),
		StoredAs: storedAs, InvokedAs: invokedAs, Preset: presetName,
	}
	e.audit(meta, mergedArgs, spilled, nil)
	return Envelope{OK: true, Result: spilled, Meta: meta}
}

// resolveTool implements §4.3 step 1: alias table lookup (dynamic then
// static), falling back to treating the name as already canonical.
func (e *Executor) resolveTool(name string) (canonical, invokedAs string, rec alias.Record) {
	if e.aliases != nil {
		if r, ok := e.aliases.Resolve(name); ok {
			return r.Target, name, r
		}
	}
	return name, "", alias.Record{}
}

// mergeArgs implements §4.3 step 3: preset data under alias defaults
// under... no — alias args under preset under user args (user highest
// priority), per the exact ordering spec.md §4.3 step 3 states.
func (e *Executor) mergeArgs(userArgs map[string]any, rec alias.Record) (presetName string, merged map[string]any) {
	merged = map[string]any{}
	for k, v := range rec.Args {
		merged[k] = v
	}

	presetName = rec.Preset
	if p, ok := userArgs["preset"].(string); ok && p != "" {
		presetName = p
	}
	if p, ok := userArgs["preset_name"].(string); ok && p != "" {
		presetName = p
	}
	if presetName != "" && e.presets != nil {
		if data, ok := e.presets.Get(presetName); ok {
			merged = deepMerge(merged, data)
		}
	}
	merged = deepMerge(merged, userArgs)
	return presetName, merged
}

type span struct {
	ctx      context.Context
	traceID  string
	spanID   string
	tel      *telemetry.Span
}

func (s *span) end(err error) {
	if s.tel != nil {
		s.tel.End(err)
	}
}

func (e *Executor) startSpan(ctx context.Context, tool string, in CallInput) *span {
	action := ""
	if a, ok := in.Args["action"].(string); ok {
		action = a
	}
	if e.tracer == nil {
		return &span{ctx: ctx, traceID: fallbackID(in.TraceID, 32), spanID: fallbackID("", 16)}
	}
	ts := e.tracer.StartToolCallSpan(ctx, tool, action, in.ParentSpanID)
	traceID := ts.TraceID
	if in.TraceID != "" {
		traceID = in.TraceID
	}
	return &span{ctx: ts.Context(), traceID: traceID, spanID: ts.SpanID, tel: ts}
}

func (e *Executor) finish(ctx context.Context, in CallInput, canonical, invokedAs, presetName string, start time.Time, input map[string]any, result any, err *toolerr.ToolError) Envelope {
	meta := Meta{
		Tool: canonical, TraceID: in.TraceID, ParentSpanID: in.ParentSpanID,
		DurationMs: e.now().Sub(start).Milliseconds(), InvokedAs: invokedAs, Preset: presetName,
	}
	if meta.TraceID == "" {
		meta.TraceID = fallbackID("", 32)
	}
	meta.SpanID = fallbackID("", 16)
	e.audit(meta, input, result, err)
	return Envelope{OK: false, Error: err, Meta: meta}
}

// audit implements §4.3 steps 6/7 and §7's "audit fires on both paths"
// propagation rule.
func (e *Executor) audit(meta Meta, input map[string]any, result any, err *toolerr.ToolError) {
	if e.auditLog == nil {
		return
	}
	entry := audit.Entry{
		TraceID: meta.TraceID, SpanID: meta.SpanID, Tool: meta.Tool, Action: meta.Action,
		Input: redact.Value(input), DurationMs: meta.DurationMs,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = &audit.EntryError{Kind: string(err.Kind), Code: err.Code, Message: redact.Truncate(redact.Sanitize(err.Message))}
	} else {
		entry.Status = "ok"
		entry.Result = summarizeResult(result)
	}
	_ = e.auditLog.Append(entry)
}

func summarizeResult(result any) map[string]any {
	return map[string]any{
		"type":    fmt.Sprintf("%T", result),
		"preview": redact.Truncate(fmt.Sprintf("%v", redact.Value(result))),
	}
}

func toAsToolErr(err error) *toolerr.ToolError {
	if te, ok := toolerr.As(err); ok {
		return te
	}
	return toolerr.New(toolerr.KindInternal, "INTERNAL", err.Error())
}

func metaToMap(m Meta) map[string]any {
	return map[string]any{
		"tool": m.Tool, "action": m.Action, "trace_id": m.TraceID, "span_id": m.SpanID,
		"parent_span_id": m.ParentSpanID, "duration_ms": m.DurationMs,
		"stored_as": m.StoredAs, "invoked_as": m.InvokedAs, "preset": m.Preset,
	}
}

// stripEnvelopeKeys implements §4.3 step 4.
func stripEnvelopeKeys(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		switch k {
		case "output", "store_as", "store_scope", "preset", "preset_name":
			continue
		}
		out[k] = v
	}
	return out
}

// fallbackID produces a span/trace id when no tracer is wired (unit
// tests exercising handlers directly). It is not cryptographically
// random — just distinct enough not to collide within a test run.
func fallbackID(seed string, hexLen int) string {
	if seed != "" {
		return seed
	}
	const chars = "0123456789abcdef"
	b := make([]byte, hexLen)
	n := int64(time.Now().UnixNano())
	for i := range b {
		b[i] = chars[(n>>(uint(i)%60))&0xf]
		n += int64(i) * 2654435761
	}
	return string(b)
}
