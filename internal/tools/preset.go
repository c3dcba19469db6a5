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

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/preset"
)

// PresetTool exposes the preset store as mcp_preset.
type PresetTool struct {
	registry *preset.Registry
}

// NewPresetTool constructs the mcp_preset handler.
func NewPresetTool(registry *preset.Registry) *PresetTool {
	return &PresetTool{registry: registry}
}

// Handle implements toolexec.Handler.
func (t *PresetTool) Handle(_ context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "", "list":
		return t.registry.List(), nil
	case "get":
		name, err := requireString(args, "name")
		if err != nil {
			return nil, err
		}
		data, ok := t.registry.Get(name)
		return map[string]any{"found": ok, "data": data}, nil
	case "put":
		name, err := requireString(args, "name")
		if err != nil {
			return nil, err
		}
		if err := t.registry.Put(name, argMap(args, "data")); err != nil {
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
		return nil, unknownAction("mcp_preset", action)
	}
}
