/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package runbook interprets a declarative list of steps against a scoped
// context: when-predicates, foreach fan-out (bounded concurrency),
// bounded retry-until loops, and per-step template resolution.
package runbook

import (
	"fmt"
	"sync"
	"time"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/template"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

// maxForeachConcurrency bounds foreach.parallel fan-out regardless of the
// caller-requested max_concurrency (Open Question 2 resolution).
const maxForeachConcurrency = 8

const (
	maxRetryAttempts     = 50
	maxRetryDelayMs      = 60_000
	maxCumulativeDelayMs = 600_000
)

// StateSnapshotter provides the State Store snapshot a step's context is
// refreshed from between steps.
type StateSnapshotter interface {
	Dump() map[string]any
}

// ToolExecutor is the Tool Execution Envelope surface the engine calls
// back into for each step. It is a narrow local interface, not a direct
// dependency on internal/toolexec, so the two packages don't import each
// other.
type ToolExecutor interface {
	Execute(traceID, parentSpanID, tool string, args map[string]any) (result any, meta map[string]any, err error)
}

// Step is one runbook step definition.
type Step struct {
	ID              string         `json:"id"`
	Tool            string         `json:"tool"`
	Args            map[string]any `json:"args"`
	When            *StepWhen      `json:"when,omitempty"`
	Foreach         *Foreach       `json:"foreach,omitempty"`
	Retry           *Retry         `json:"retry,omitempty"`
	ContinueOnError bool           `json:"continue_on_error,omitempty"`
}

// Runbook is a named, ordered, non-empty step sequence.
type Runbook struct {
	Name  string `json:"name,omitempty"`
	Steps []Step `json:"steps"`
}

// Foreach fans a step out over an array of items.
type Foreach struct {
	Items          string `json:"items"` // template path resolving to an array
	Parallel       bool   `json:"parallel,omitempty"`
	MaxConcurrency int    `json:"max_concurrency,omitempty"`
}

// Retry is a bounded retry-until loop.
type Retry struct {
	MaxAttempts   int       `json:"max_attempts"`
	DelayMs       int       `json:"delay_ms"`
	BackoffFactor float64   `json:"backoff_factor,omitempty"`
	MaxDelayMs    int       `json:"max_delay_ms,omitempty"`
	RetryOnError  *bool     `json:"retry_on_error,omitempty"`
	Until         *StepWhen `json:"until,omitempty"`
}

func (r *Retry) retryOnError() bool {
	return r.RetryOnError == nil || *r.RetryOnError
}

// StepResult is what gets merged into context.steps[id].
type StepResult struct {
	ID      string         `json:"id"`
	Tool    string         `json:"tool"`
	Action  string         `json:"action,omitempty"`
	Skipped bool           `json:"skipped,omitempty"`
	Success bool           `json:"success"`
	Result  any            `json:"result,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Engine interprets a Runbook against a ToolExecutor and State Store.
type Engine struct {
	exec  ToolExecutor
	state StateSnapshotter
}

// New constructs an Engine.
func New(exec ToolExecutor, state StateSnapshotter) *Engine {
	return &Engine{exec: exec, state: state}
}

// RunInput is one invocation of a runbook.
type RunInput struct {
	Runbook      *Runbook
	Input        map[string]any
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// Run executes every step in order, stopping at the first failing step
// unless the step sets continue_on_error.
func (e *Engine) Run(in RunInput) ([]StepResult, error) {
	if in.Runbook == nil || len(in.Runbook.Steps) == 0 {
		return nil, toolerr.New(toolerr.KindInvalidParams, toolerr.CodeMissingInputs, "runbook has no steps")
	}
	seen := map[string]bool{}
	for _, st := range in.Runbook.Steps {
		if seen[st.ID] {
			return nil, toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "duplicate step id %q", st.ID)
		}
		seen[st.ID] = true
		if st.Tool == "mcp_runbook" {
			return nil, toolerr.New(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "nested mcp_runbook steps are forbidden")
		}
		if st.Foreach != nil && st.Retry != nil {
			return nil, toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "step %q: foreach and retry are mutually exclusive", st.ID)
		}
	}

	ctx := map[string]any{
		"input":          copyMap(in.Input),
		"state":          e.state.Dump(),
		"steps":          map[string]any{},
		"trace_id":       in.TraceID,
		"span_id":        in.SpanID,
		"parent_span_id": in.ParentSpanID,
	}

	var results []StepResult
	for _, st := range in.Runbook.Steps {
		res := e.runStep(st, ctx, in.TraceID, in.ParentSpanID)
		results = append(results, res)
		ctx["steps"].(map[string]any)[st.ID] = res
		ctx["state"] = e.state.Dump()

		if !res.Success && !res.Skipped && !st.ContinueOnError {
			return results, fmt.Errorf("step %q failed: %s", st.ID, res.Error)
		}
	}
	return results, nil
}

func (e *Engine) runStep(st Step, ctx map[string]any, traceID, parentSpanID string) StepResult {
	if st.When != nil && !st.When.Eval(ctx) {
		return StepResult{ID: st.ID, Tool: st.Tool, Skipped: true, Success: true}
	}

	switch {
	case st.Foreach != nil:
		return e.runForeach(st, ctx, traceID, parentSpanID)
	case st.Retry != nil:
		return e.runRetry(st, ctx, traceID, parentSpanID)
	default:
		return e.runOnce(st, ctx, traceID, parentSpanID, nil)
	}
}

// runOnce resolves args once (against an optionally item-scoped context
// overlay) and invokes the tool executor a single time.
func (e *Engine) runOnce(st Step, ctx map[string]any, traceID, parentSpanID string, overlay map[string]any) StepResult {
	scoped := ctx
	if overlay != nil {
		scoped = mergeOverlay(ctx, overlay)
	}
	args, err := resolveArgs(st.Args, scoped)
	if err != nil {
		return StepResult{ID: st.ID, Tool: st.Tool, Success: false, Error: err.Error()}
	}
	result, meta, err := e.exec.Execute(traceID, parentSpanID, st.Tool, args)
	if err != nil {
		return StepResult{ID: st.ID, Tool: st.Tool, Success: false, Result: result, Meta: meta, Error: err.Error()}
	}
	return StepResult{ID: st.ID, Tool: st.Tool, Success: true, Result: result, Meta: meta}
}

func (e *Engine) runForeach(st Step, ctx map[string]any, traceID, parentSpanID string) StepResult {
	rawItems, err := template.Expand(st.Foreach.Items, ctx, template.MissingThrow)
	if err != nil {
		return StepResult{ID: st.ID, Tool: st.Tool, Success: false, Error: err.Error()}
	}
	items, ok := rawItems.([]any)
	if !ok {
		return StepResult{ID: st.ID, Tool: st.Tool, Success: false, Error: fmt.Sprintf("foreach.items %q did not resolve to an array", st.Foreach.Items)}
	}

	results := make([]StepResult, len(items))
	run := func(i int) {
		overlay := map[string]any{"item": items[i], "index": i}
		results[i] = e.runOnce(st, ctx, traceID, parentSpanID, overlay)
	}

	if st.Foreach.Parallel {
		limit := maxForeachConcurrency
		if st.Foreach.MaxConcurrency > 0 && st.Foreach.MaxConcurrency < limit {
			limit = st.Foreach.MaxConcurrency
		}
		sem := make(chan struct{}, limit)
		var wg sync.WaitGroup
		for i := range items {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				run(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range items {
			run(i)
		}
	}

	allOK := true
	for _, r := range results {
		if !r.Success {
			allOK = false
			break
		}
	}
	return StepResult{ID: st.ID, Tool: st.Tool, Success: allOK, Result: results}
}

func (e *Engine) runRetry(st Step, ctx map[string]any, traceID, parentSpanID string) StepResult {
	r := st.Retry
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 || maxAttempts > maxRetryAttempts {
		maxAttempts = maxRetryAttempts
	}
	delay := r.DelayMs
	if delay <= 0 {
		delay = 1000
	}
	if delay > maxRetryDelayMs {
		delay = maxRetryDelayMs
	}
	backoff := r.BackoffFactor
	if backoff < 1 {
		backoff = 1
	}
	maxDelay := r.MaxDelayMs
	if maxDelay <= 0 || maxDelay > maxRetryDelayMs {
		maxDelay = maxRetryDelayMs
	}

	var last StepResult
	cumulativeDelay := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		overlay := map[string]any{"attempt": attempt}
		last = e.runOnce(st, ctx, traceID, parentSpanID, overlay)

		untilCtx := map[string]any{"result": last.Result, "meta": last.Meta}
		if r.Until != nil && r.Until.Eval(untilCtx) {
			last.Success = true
			return last
		}
		if !last.Success && !r.retryOnError() {
			return last
		}
		if attempt == maxAttempts {
			break
		}

		cumulativeDelay += delay
		if cumulativeDelay > maxCumulativeDelayMs {
			return StepResult{ID: st.ID, Tool: st.Tool, Success: false,
				Error: fmt.Sprintf("retry cumulative delay budget exceeded after %d attempts", attempt)}
		}
		time.Sleep(time.Duration(delay) * time.Millisecond)
		delay = int(float64(delay) * backoff)
		if delay > maxDelay {
			delay = maxDelay
		}
	}

	last.Success = false
	last.Error = fmt.Sprintf("Retry failed after %d attempts: %s", maxAttempts, last.Error)
	return last
}

func resolveArgs(args map[string]any, ctx map[string]any) (map[string]any, error) {
	resolved, err := template.ExpandAny(args, ctx, template.MissingThrow)
	if err != nil {
		return nil, err
	}
	m, _ := resolved.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func mergeOverlay(base map[string]any, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
