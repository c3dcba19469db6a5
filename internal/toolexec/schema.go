/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package toolexec

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

// RegisterSchema attaches a JSON Schema (as a plain map, the same shape a
// tool's catalog entry publishes to tools/list) to a canonical tool name.
// Once registered, every call to that tool has its post-alias, post-preset
// argument map validated before the handler ever sees it — a malformed
// intent_type or a missing required field is rejected as invalid_params
// instead of reaching the handler as a type-assertion panic risk.
func (e *Executor) RegisterSchema(tool string, schema map[string]any) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	s := new(jsonschema.Schema)
	if err := json.Unmarshal(raw, s); err != nil {
		return err
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return err
	}
	if e.schemas == nil {
		e.schemas = map[string]*jsonschema.Resolved{}
	}
	e.schemas[tool] = resolved
	return nil
}

// validateArgs implements the optional schema-validation half of §4.3 step
// 4: nil when no schema is registered for the tool, a no-op for handlers
// that never called RegisterSchema.
func (e *Executor) validateArgs(canonical string, args map[string]any) *toolerr.ToolError {
	resolved, ok := e.schemas[canonical]
	if !ok {
		return nil
	}
	if err := resolved.Validate(args); err != nil {
		return toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "schema validation: %v", err)
	}
	return nil
}
