/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package template

import (
	"errors"
	"testing"
)

func sampleCtx() map[string]any {
	return map[string]any{
		"input": map[string]any{
			"name":  "svc",
			"count": float64(3),
			"ok":    true,
			"tags":  []any{"a", "b"},
		},
		"steps": map[string]any{
			"build": map[string]any{
				"result": map[string]any{"exit_code": float64(0)},
			},
		},
	}
}

func TestExactMatchPreservesType(t *testing.T) {
	ctx := sampleCtx()
	cases := []struct {
		path string
		want any
	}{
		{"{{input.count}}", float64(3)},
		{"{{input.ok}}", true},
	}
	for _, tc := range cases {
		got, err := Expand(tc.path, ctx, MissingThrow)
		if err != nil {
			t.Fatalf("Expand(%q): %v", tc.path, err)
		}
		if got != tc.want {
			t.Errorf("Expand(%q) = %v (%T), want %v (%T)", tc.path, got, got, tc.want, tc.want)
		}
	}
}

func TestExactMatchArrayPreserved(t *testing.T) {
	ctx := sampleCtx()
	got, err := Expand("{{input.tags}}", ctx, MissingThrow)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	arr, ok := got.([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("got %v (%T), want []any of len 2", got, got)
	}
}

func TestMixedTemplateStringifies(t *testing.T) {
	ctx := sampleCtx()
	got, err := Expand("service=={{input.name}} count={{input.count}}", ctx, MissingThrow)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != "service==svc count=3" {
		t.Fatalf("got %q", got)
	}
}

func TestOptionalMissingProducesEmpty(t *testing.T) {
	ctx := sampleCtx()
	got, err := Expand("{{?input.missing}}", ctx, MissingThrow)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != "" {
		t.Fatalf("got %v, want empty string", got)
	}
}

func TestMissingThrowsByDefault(t *testing.T) {
	ctx := sampleCtx()
	_, err := Expand("{{input.nope}}", ctx, MissingThrow)
	if !errors.Is(err, ErrMissingPath) {
		t.Fatalf("expected ErrMissingPath, got %v", err)
	}
}

func TestMissingPolicyNull(t *testing.T) {
	ctx := sampleCtx()
	got, err := Expand("{{input.nope}}", ctx, MissingNull)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestNestedStepLookup(t *testing.T) {
	ctx := sampleCtx()
	got, err := Expand("{{steps.build.result.exit_code}}", ctx, MissingThrow)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != float64(0) {
		t.Fatalf("got %v, want 0", got)
	}
}

func TestExpandAnyWalksStructure(t *testing.T) {
	ctx := sampleCtx()
	input := map[string]any{
		"name":  "{{input.name}}",
		"count": "{{input.count}}",
		"list":  []any{"{{input.name}}", "literal"},
	}
	out, err := ExpandAny(input, ctx, MissingThrow)
	if err != nil {
		t.Fatalf("ExpandAny: %v", err)
	}
	m := out.(map[string]any)
	if m["name"] != "svc" {
		t.Errorf("name = %v", m["name"])
	}
	if m["count"] != float64(3) {
		t.Errorf("count = %v", m["count"])
	}
	list := m["list"].([]any)
	if list[0] != "svc" || list[1] != "literal" {
		t.Errorf("list = %v", list)
	}
}

func TestNoPlaceholdersPassesThroughLiteral(t *testing.T) {
	got, err := Expand("plain text", sampleCtx(), MissingThrow)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != "plain text" {
		t.Fatalf("got %v", got)
	}
}
