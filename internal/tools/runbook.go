/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package tools

import (
	"context"
	"encoding/json"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/runbook"
)

// RunbookTool exposes the named-runbook registry plus the engine's direct
// run action as mcp_runbook. Running a runbook by name (rather than only
// through the Intent Planner) is what a capability's `runbook_run` step
// reference ultimately calls.
type RunbookTool struct {
	registry *runbook.Registry
	engine   *runbook.Engine
}

// NewRunbookTool constructs the mcp_runbook handler.
func NewRunbookTool(registry *runbook.Registry, engine *runbook.Engine) *RunbookTool {
	return &RunbookTool{registry: registry, engine: engine}
}

// Handle implements toolexec.Handler.
func (t *RunbookTool) Handle(_ context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "", "list":
		return t.registry.List(), nil
	case "get":
		name, err := requireString(args, "name")
		if err != nil {
			return nil, err
		}
		return t.registry.Get(name)
	case "put":
		name, err := requireString(args, "name")
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(args["steps"])
		if err != nil {
			return nil, err
		}
		rb := &runbook.Runbook{Name: name}
		if err := json.Unmarshal(raw, &rb.Steps); err != nil {
			return nil, err
		}
		if err := t.registry.Put(name, rb); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil
	case "delete":
		name, err := requireString(args, "name")
		if err != nil {
			return nil, err
		}
		if err := t.registry.Delete(name); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil
	case "run":
		name, err := requireString(args, "name")
		if err != nil {
			return nil, err
		}
		rb, err := t.registry.Get(name)
		if err != nil {
			return nil, err
		}
		results, err := t.engine.Run(runbook.RunInput{
			Runbook:      rb,
			Input:        argMap(args, "input"),
			TraceID:      argString(args, "trace_id"),
			ParentSpanID: argString(args, "parent_span_id"),
		})
		if err != nil {
			return map[string]any{"success": false, "results": results, "error": err.Error()}, nil
		}
		return map[string]any{"success": true, "results": results}, nil
	default:
		return nil, unknownAction("mcp_runbook", action)
	}
}
