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
	"time"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/state"
)

// StateTool exposes the State Store as mcp_state.
type StateTool struct {
	store *state.Store
}

// NewStateTool constructs the mcp_state handler.
func NewStateTool(store *state.Store) *StateTool {
	return &StateTool{store: store}
}

func scopeOf(args map[string]any) state.Scope {
	switch argString(args, "scope") {
	case "session":
		return state.ScopeSession
	case "persistent":
		return state.ScopePersistent
	default:
		return state.ScopeAny
	}
}

// Handle implements toolexec.Handler.
func (t *StateTool) Handle(_ context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "get":
		key, err := requireString(args, "key")
		if err != nil {
			return nil, err
		}
		v, ok := t.store.Get(scopeOf(args), key)
		return map[string]any{"value": v, "found": ok}, nil
	case "set":
		key, err := requireString(args, "key")
		if err != nil {
			return nil, err
		}
		scope := scopeOf(args)
		if scope == state.ScopeAny {
			scope = state.ScopePersistent
		}
		var ttl time.Duration
		if ms := argInt(args, "ttl_ms", 0); ms > 0 {
			ttl = time.Duration(ms) * time.Millisecond
		}
		if err := t.store.Set(scope, key, args["value"], ttl); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil
	case "delete":
		key, err := requireString(args, "key")
		if err != nil {
			return nil, err
		}
		if err := t.store.Delete(scopeOf(args), key); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil
	case "list":
		return t.store.List(scopeOf(args)), nil
	case "", "dump":
		return t.store.Dump(scopeOf(args)), nil
	default:
		return nil, unknownAction("mcp_state", action)
	}
}
