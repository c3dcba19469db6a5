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
	"time"

	"github.com/google/uuid"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/jobs"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/saferunner"
)

// RepoTool exposes the Safe Runner directly as mcp_repo: one allowlisted
// command per call, confined to the configured repo root. When a caller
// sets allow_detach and the command would exceed the runner's per-call
// budget, the command keeps running in the background against a job
// record instead of blocking the tool call past its own timeout.
type RepoTool struct {
	runner *saferunner.Runner
	jobs   *jobs.Store
}

// NewRepoTool constructs the mcp_repo handler.
func NewRepoTool(runner *saferunner.Runner, jobStore *jobs.Store) *RepoTool {
	return &RepoTool{runner: runner, jobs: jobStore}
}

// Handle implements toolexec.Handler.
func (t *RepoTool) Handle(ctx context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "", "exec":
		return t.exec(ctx, args)
	default:
		return nil, unknownAction("mcp_repo", action)
	}
}

func (t *RepoTool) exec(ctx context.Context, args map[string]any) (any, error) {
	command, err := requireString(args, "command")
	if err != nil {
		return nil, err
	}
	req := saferunner.Request{
		Command:         command,
		Args:            argStringSlice(args, "args"),
		Cwd:             argString(args, "cwd"),
		TimeoutMs:       argInt(args, "timeout_ms", 0),
		MaxCaptureBytes: argInt(args, "max_capture_bytes", 0),
		MaxInlineBytes:  argInt(args, "max_inline_bytes", 0),
		AllowDetach:     argBool(args, "allow_detach"),
		Apply:           argBool(args, "apply"),
		TraceID:         argString(args, "trace_id"),
		SpanID:          argString(args, "span_id"),
	}

	if req.AllowDetach && req.TimeoutMs > 0 && t.jobs != nil {
		return t.execDetached(req), nil
	}

	result, err := t.runner.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// execDetached creates a job record immediately and runs the command on
// a context independent of the tool call's own, updating the record when
// it finishes — the job poll path (mcp_job) is how a caller observes the
// outcome instead of blocking on this call.
func (t *RepoTool) execDetached(req saferunner.Request) map[string]any {
	jobID := uuid.NewString()
	now := time.Now().UTC()
	rec := t.jobs.Create(jobs.Record{
		JobID:     jobID,
		Kind:      "mcp_repo.exec",
		Status:    jobs.StatusRunning,
		TraceID:   req.TraceID,
		StartedAt: &now,
	}, 0)

	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
		result, err := t.runner.Run(runCtx, req)
		t.jobs.Upsert(jobID, func(r jobs.Record) jobs.Record {
			endedAt := time.Now().UTC()
			r.EndedAt = &endedAt
			r.UpdatedAt = endedAt
			if err != nil {
				r.Status = jobs.StatusFailed
				r.Error = map[string]any{"message": err.Error()}
				return r
			}
			r.Status = jobs.StatusSucceeded
			r.Artifacts = result
			return r
		})
	}()

	return map[string]any{"detached": true, "job_id": jobID, "status": rec.Status}
}
