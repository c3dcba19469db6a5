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

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/detect"
)

// ContextTool exposes the Context Detector as mcp_context.
type ContextTool struct {
	detector *detect.Detector
}

// NewContextTool constructs the mcp_context handler.
func NewContextTool(detector *detect.Detector) *ContextTool {
	return &ContextTool{detector: detector}
}

// Handle implements toolexec.Handler. The only action is "get" (default).
func (t *ContextTool) Handle(_ context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "", "get":
		return t.detector.Get(detect.Input{
			Project:  argString(args, "project"),
			Target:   argString(args, "target"),
			Cwd:      argString(args, "cwd"),
			RepoRoot: argString(args, "repo_root"),
			Refresh:  argBool(args, "refresh"),
		})
	default:
		return nil, unknownAction("mcp_context", action)
	}
}
