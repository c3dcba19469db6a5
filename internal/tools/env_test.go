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
)

func TestEnvToolBlocksSensitiveKey(t *testing.T) {
	t.Setenv("MY_API_TOKEN", "super-secret")
	tool := NewEnvTool()

	_, err := tool.Handle(context.Background(), "get", map[string]any{"name": "MY_API_TOKEN"})
	if err == nil {
		t.Fatal("expected mcp_env to deny reading a credential-shaped variable name")
	}
}

func TestEnvToolGetAllowsOrdinaryVariable(t *testing.T) {
	t.Setenv("MY_PROJECT_NAME", "widgets")
	tool := NewEnvTool()

	got, err := tool.Handle(context.Background(), "get", map[string]any{"name": "MY_PROJECT_NAME"})
	if err != nil {
		t.Fatal(err)
	}
	result := got.(map[string]any)
	if result["found"] != true || result["value"] != "widgets" {
		t.Fatalf("result = %+v", result)
	}
}

func TestEnvToolListExcludesSensitiveNames(t *testing.T) {
	t.Setenv("MY_PROJECT_NAME", "widgets")
	t.Setenv("MY_API_TOKEN", "super-secret")
	tool := NewEnvTool()

	got, err := tool.Handle(context.Background(), "list", map[string]any{"prefix": "MY_"})
	if err != nil {
		t.Fatal(err)
	}
	names := got.(map[string]any)["names"].([]string)
	for _, n := range names {
		if n == "MY_API_TOKEN" {
			t.Fatal("expected MY_API_TOKEN to be excluded from the list")
		}
	}
	found := false
	for _, n := range names {
		if n == "MY_PROJECT_NAME" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected MY_PROJECT_NAME to be listed")
	}
}
