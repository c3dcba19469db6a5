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
	"strings"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/intent"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

// WorkspaceTool is the convenience facade an agent calls for any
// gitops.* operation (status/plan/propose/sync/verify/rollback/release):
// `workspace.run { intent_type: gitops.propose, ... }` instead of the
// agent having to know it should reach for mcp_intent directly. Every
// call is rejected unless the named intent type is in the gitops.*
// family — anything else belongs on mcp_intent, which has no such
// restriction.
type WorkspaceTool struct {
	planner *intent.Planner
}

// NewWorkspaceTool constructs the mcp_workspace handler.
func NewWorkspaceTool(planner *intent.Planner) *WorkspaceTool {
	return &WorkspaceTool{planner: planner}
}

// Handle implements toolexec.Handler.
func (t *WorkspaceTool) Handle(_ context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "", "run":
		return t.run(args)
	default:
		return nil, unknownAction("mcp_workspace", action)
	}
}

func (t *WorkspaceTool) run(args map[string]any) (any, error) {
	intentType, err := requireString(args, "intent_type")
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(intentType, "gitops.") {
		return nil, toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "mcp_workspace only runs gitops.* intents, got %q", intentType)
	}

	req := intent.Request{
		Type:         intentType,
		Inputs:       argMap(args, "inputs"),
		Apply:        argBool(args, "apply"),
		Project:      argString(args, "project"),
		Target:       argString(args, "target"),
		TraceID:      argString(args, "trace_id"),
		ParentSpanID: argString(args, "parent_span_id"),
	}

	var stopOnError *bool
	if v, ok := args["stop_on_error"].(bool); ok {
		stopOnError = &v
	}
	return t.planner.Execute(req, stopOnError, argBool(args, "save_evidence"))
}
