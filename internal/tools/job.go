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

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/jobs"
)

// JobTool exposes the Job Store as mcp_job: agents poll a detached Safe
// Runner invocation's status through this surface.
type JobTool struct {
	store *jobs.Store
}

// NewJobTool constructs the mcp_job handler.
func NewJobTool(store *jobs.Store) *JobTool {
	return &JobTool{store: store}
}

// Handle implements toolexec.Handler.
func (t *JobTool) Handle(_ context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "get":
		jobID, err := requireString(args, "job_id")
		if err != nil {
			return nil, err
		}
		rec, ok := t.store.Get(jobID)
		return map[string]any{"found": ok, "job": rec}, nil
	case "", "list":
		return t.store.List(jobs.ListOptions{
			Limit:  argInt(args, "limit", 0),
			Status: jobs.Status(argString(args, "status")),
		}), nil
	case "forget":
		jobID, err := requireString(args, "job_id")
		if err != nil {
			return nil, err
		}
		return map[string]any{"ok": t.store.Forget(jobID)}, nil
	default:
		return nil, unknownAction("mcp_job", action)
	}
}
