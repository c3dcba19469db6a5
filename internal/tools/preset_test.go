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

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/preset"
)

func TestPresetToolPutAndGet(t *testing.T) {
	registry, err := preset.Open(filepath.Join(t.TempDir(), "presets.json"))
	if err != nil {
		t.Fatal(err)
	}
	tool := NewPresetTool(registry)

	if _, err := tool.Handle(context.Background(), "put", map[string]any{
		"name": "prod", "data": map[string]any{"namespace": "prod"},
	}); err != nil {
		t.Fatal(err)
	}

	got, err := tool.Handle(context.Background(), "get", map[string]any{"name": "prod"})
	if err != nil {
		t.Fatal(err)
	}
	result := got.(map[string]any)
	if result["found"] != true {
		t.Fatalf("result = %+v", result)
	}
	data := result["data"].(map[string]any)
	if data["namespace"] != "prod" {
		t.Fatalf("data = %+v", data)
	}
}

func TestPresetToolGetMissing(t *testing.T) {
	registry, _ := preset.Open(filepath.Join(t.TempDir(), "presets.json"))
	tool := NewPresetTool(registry)

	got, err := tool.Handle(context.Background(), "get", map[string]any{"name": "nope"})
	if err != nil {
		t.Fatal(err)
	}
	if got.(map[string]any)["found"] != false {
		t.Fatalf("expected found=false, got %+v", got)
	}
}
