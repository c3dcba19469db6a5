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

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/alias"
)

// AliasTool exposes the dynamic alias table as mcp_alias.
type AliasTool struct {
	registry *alias.Registry
}

// NewAliasTool constructs the mcp_alias handler.
func NewAliasTool(registry *alias.Registry) *AliasTool {
	return &AliasTool{registry: registry}
}

// Handle implements toolexec.Handler.
func (t *AliasTool) Handle(_ context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "", "list":
		return t.registry.List(), nil
	case "resolve":
		name, err := requireString(args, "name")
		if err != nil {
			return nil, err
		}
		rec, ok := t.registry.Resolve(name)
		return map[string]any{"found": ok, "record": rec}, nil
	case "put":
		name, err := requireString(args, "name")
		if err != nil {
			return nil, err
		}
		target, err := requireString(args, "target")
		if err != nil {
			return nil, err
		}
		rec := alias.Record{Target: target, Preset: argString(args, "preset"), Args: argMap(args, "args")}
		if err := t.registry.Put(name, rec); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil
	case "delete":
		name, err := requireString(args, "name")
		if err != nil {
			return nil, err
		}
		if err := t.registry.Delete(name); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil
	default:
		return nil, unknownAction("mcp_alias", action)
	}
}
