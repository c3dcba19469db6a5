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
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/profiles"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/security"
)

func newTestProfileStore(t *testing.T) *profiles.Store {
	t.Helper()
	dir := t.TempDir()
	kr, err := security.LoadOrCreate(filepath.Join(dir, ".key"))
	if err != nil {
		t.Fatal(err)
	}
	store, err := profiles.Open(filepath.Join(dir, "profiles.json"), kr, nil)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func strp(s string) *string { return &s }

func TestPipelineToolTriggerRequiresApply(t *testing.T) {
	store := newTestProfileStore(t)
	tool := NewPipelineTool(store)

	_, err := tool.Handle(context.Background(), "trigger", map[string]any{"profile": "ci1", "ref": "main"})
	if err == nil {
		t.Fatal("expected trigger without apply=true to be denied")
	}
}

func TestPipelineToolTriggerAndStatus(t *testing.T) {
	var runID = "run-42"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			t.Errorf("missing bearer token: %q", r.Header.Get("Authorization"))
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/runs":
			w.Write([]byte(`{"run_id":"run-42","status":"queued"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/runs/"+runID:
			w.Write([]byte(`{"run_id":"run-42","status":"success"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store := newTestProfileStore(t)
	if _, err := store.Set("ci1", profiles.SetInput{
		Type:    "ci",
		Data:    map[string]any{"base_url": srv.URL},
		Secrets: map[string]*string{"token": strp("tok-123")},
	}); err != nil {
		t.Fatal(err)
	}

	tool := NewPipelineTool(store)
	triggered, err := tool.Handle(context.Background(), "trigger", map[string]any{
		"profile": "ci1", "ref": "main", "apply": true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if triggered.(map[string]any)["status"] != "queued" {
		t.Fatalf("triggered = %+v", triggered)
	}

	status, err := tool.Handle(context.Background(), "status", map[string]any{
		"profile": "ci1", "run_id": runID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if status.(map[string]any)["status"] != "success" {
		t.Fatalf("status = %+v", status)
	}
}
