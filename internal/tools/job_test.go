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

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/jobs"
)

func TestJobToolGetAndList(t *testing.T) {
	store, err := jobs.Open(jobs.Options{})
	if err != nil {
		t.Fatal(err)
	}
	store.Create(jobs.Record{JobID: "job-1", Kind: "mcp_repo.exec"}, 0)

	tool := NewJobTool(store)
	got, err := tool.Handle(context.Background(), "get", map[string]any{"job_id": "job-1"})
	if err != nil {
		t.Fatal(err)
	}
	result := got.(map[string]any)
	if result["found"] != true {
		t.Fatalf("expected found, got %+v", result)
	}

	listed, err := tool.Handle(context.Background(), "list", nil)
	if err != nil {
		t.Fatal(err)
	}
	if records, ok := listed.([]jobs.Record); !ok || len(records) != 1 {
		t.Fatalf("expected one record, got %+v", listed)
	}
}

func TestJobToolGetMissingRequiresJobID(t *testing.T) {
	store, _ := jobs.Open(jobs.Options{})
	tool := NewJobTool(store)
	if _, err := tool.Handle(context.Background(), "get", map[string]any{}); err == nil {
		t.Fatal("expected an error when job_id is missing")
	}
}
