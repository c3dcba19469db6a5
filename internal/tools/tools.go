/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package tools implements every toolexec.Handler the server registers:
// the admin surfaces over the core registries (state, alias, preset,
// capability, intent, runbook, job, audit, artifacts, context) and the
// infrastructure clients (ssh, psql, http, vault, env, pipeline) plus the
// GitOps-facing mcp_repo/mcp_workspace pair built on the Safe Runner.
package tools

import (
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argBool(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func argInt(args map[string]any, key string, def int) int {
	if p := argIntPtr(args, key); p != nil {
		return *p
	}
	return def
}

// argIntPtr returns nil when key is absent from args, distinguishing
// "not provided" from a present-but-zero value — callers that need that
// distinction (e.g. mcp_artifacts' max_bytes, where 0 means "read zero
// bytes" rather than "use the default window") should use this instead
// of argInt's collapsed default.
func argIntPtr(args map[string]any, key string) *int {
	switch v := args[key].(type) {
	case int:
		return &v
	case int64:
		n := int(v)
		return &n
	case float64:
		n := int(v)
		return &n
	}
	return nil
}

func argMap(args map[string]any, key string) map[string]any {
	v, _ := args[key].(map[string]any)
	return v
}

func argSlice(args map[string]any, key string) []any {
	v, _ := args[key].([]any)
	return v
}

func argStringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func requireString(args map[string]any, key string) (string, error) {
	v := argString(args, key)
	if v == "" {
		return "", requireStringErr(key)
	}
	return v, nil
}

func requireStringErr(key string) error {
	return toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeMissingInputs, "%s is required", key)
}

func unknownAction(tool, action string) error {
	return toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeUnknownAction, "%s: unknown action %q", tool, action)
}
