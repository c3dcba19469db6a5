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
	"os"
	"sort"
	"strings"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/redact"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

// EnvTool exposes the process environment, with anything
// internal/redact.IsSensitiveKey would flag as a credential denied
// outright rather than redacted: an agent asking for a variable named
// like a secret gets a denial, not a masked value, since masking would
// still confirm the variable is set.
type EnvTool struct{}

// NewEnvTool constructs the mcp_env handler.
func NewEnvTool() *EnvTool { return &EnvTool{} }

// Handle implements toolexec.Handler.
func (t *EnvTool) Handle(_ context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "get":
		name, err := requireString(args, "name")
		if err != nil {
			return nil, err
		}
		if redact.IsSensitiveKey(name) {
			return nil, toolerr.Newf(toolerr.KindDenied, toolerr.CodeEnvVarBlocked, "%s looks like a credential and cannot be read through mcp_env", name)
		}
		value, ok := os.LookupEnv(name)
		return map[string]any{"found": ok, "value": value}, nil
	case "", "list":
		prefix := argString(args, "prefix")
		names := make([]string, 0, 64)
		for _, kv := range os.Environ() {
			name := kv[:strings.IndexByte(kv, '=')]
			if prefix != "" && !strings.HasPrefix(name, prefix) {
				continue
			}
			if redact.IsSensitiveKey(name) {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)
		return map[string]any{"names": names}, nil
	default:
		return nil, unknownAction("mcp_env", action)
	}
}
