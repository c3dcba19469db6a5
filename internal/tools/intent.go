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

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/intent"
)

// IntentTool exposes the Intent Planner as mcp_intent, per spec.md §4.4's
// compile / dry_run / execute actions.
type IntentTool struct {
	planner *intent.Planner
}

// NewIntentTool constructs the mcp_intent handler.
func NewIntentTool(planner *intent.Planner) *IntentTool {
	return &IntentTool{planner: planner}
}

func (t *IntentTool) requestFrom(args map[string]any) intent.Request {
	return intent.Request{
		Type:         argString(args, "type"),
		Inputs:       argMap(args, "inputs"),
		Apply:        argBool(args, "apply"),
		Project:      argString(args, "project"),
		Target:       argString(args, "target"),
		TraceID:      argString(args, "trace_id"),
		ParentSpanID: argString(args, "parent_span_id"),
	}
}

// Handle implements toolexec.Handler.
func (t *IntentTool) Handle(_ context.Context, action string, args map[string]any) (any, error) {
	req := t.requestFrom(args)
	switch action {
	case "compile":
		return t.planner.Compile(req)
	case "", "dry_run":
		return t.planner.DryRun(req)
	case "execute":
		var stopOnError *bool
		if v, ok := args["stop_on_error"].(bool); ok {
			stopOnError = &v
		}
		return t.planner.Execute(req, stopOnError, argBool(args, "save_evidence"))
	default:
		return nil, unknownAction("mcp_intent", action)
	}
}
