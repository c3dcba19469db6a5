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
	"testing"
	"time"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/jobs"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/saferunner"
)

func newTestRepoRunner(t *testing.T) *saferunner.Runner {
	t.Helper()
	runner, err := saferunner.New(saferunner.Options{
		RepoRoot: t.TempDir(), Allowed: []string{"echo"},
		MaxCaptureBytes: 4096, MaxInlineBytes: 16, ToolCallBudgetMs: 5000,
	})
	if err != nil {
		t.Fatal(err)
	}
	return runner
}

func TestRepoToolExecRunsInline(t *testing.T) {
	tool := NewRepoTool(newTestRepoRunner(t), nil)

	got, err := tool.Handle(context.Background(), "exec", map[string]any{
		"command": "echo", "args": []any{"hello"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.(saferunner.Result).ExitCode != 0 {
		t.Fatalf("got = %+v", got)
	}
}

func TestRepoToolExecDetachesWhenRequested(t *testing.T) {
	jobStore, err := jobs.Open(jobs.Options{})
	if err != nil {
		t.Fatal(err)
	}
	tool := NewRepoTool(newTestRepoRunner(t), jobStore)

	got, err := tool.Handle(context.Background(), "exec", map[string]any{
		"command": "echo", "args": []any{"hello"},
		"allow_detach": true, "timeout_ms": 5000,
	})
	if err != nil {
		t.Fatal(err)
	}
	result := got.(map[string]any)
	if result["detached"] != true {
		t.Fatalf("result = %+v", result)
	}
	jobID := result["job_id"].(string)

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, ok := jobStore.Get(jobID)
		if !ok {
			t.Fatal("expected the job record to exist")
		}
		if rec.Status != jobs.StatusRunning {
			if rec.Status != jobs.StatusSucceeded {
				t.Fatalf("rec = %+v", rec)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("detached job did not finish in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
