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
	"path/filepath"
	"testing"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/state"
)

func TestStateToolSetDefaultsUnscopedWriteToPersistent(t *testing.T) {
	store, err := state.Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	tool := NewStateTool(store)

	if _, err := tool.Handle(context.Background(), "set", map[string]any{"key": "foo", "value": "bar"}); err != nil {
		t.Fatal(err)
	}

	v, ok := store.Get(state.ScopePersistent, "foo")
	if !ok || v != "bar" {
		t.Fatalf("expected foo=bar in persistent scope, got v=%v ok=%v", v, ok)
	}
}

func TestStateToolGetSearchesAnyScope(t *testing.T) {
	store, _ := state.Open(filepath.Join(t.TempDir(), "state.json"))
	if err := store.Set(state.ScopeSession, "foo", "bar", 0); err != nil {
		t.Fatal(err)
	}
	tool := NewStateTool(store)

	got, err := tool.Handle(context.Background(), "get", map[string]any{"key": "foo"})
	if err != nil {
		t.Fatal(err)
	}
	result := got.(map[string]any)
	if result["found"] != true || result["value"] != "bar" {
		t.Fatalf("result = %+v", result)
	}
}
