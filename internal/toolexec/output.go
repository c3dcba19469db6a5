/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package toolexec

import (
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/template"
)

// applyOutput implements §4.3 step 5's "output transform (path pick,
// field pick/omit, per-element map)". spec is the call's `output` arg,
// already decoded as a generic JSON object (or nil, meaning no
// transform):
//
//	{ "path": "data.items", "pick": ["id","name"], "omit": ["secret"] }
//
// path is resolved first (a dotted lookup into result, identical in
// shape to a runbook template path); pick/omit then apply to the
// resolved value, and to every element when it is an array of objects.
func applyOutput(result any, spec map[string]any) (any, error) {
	if spec == nil {
		return result, nil
	}

	cur := result
	if path, ok := spec["path"].(string); ok && path != "" {
		v, found := template.Lookup(result, path)
		if !found {
			return nil, nil
		}
		cur = v
	}

	pick := toStringSlice(spec["pick"])
	omit := toStringSlice(spec["omit"])
	if len(pick) == 0 && len(omit) == 0 {
		return cur, nil
	}

	switch t := cur.(type) {
	case map[string]any:
		return shapeObject(t, pick, omit), nil
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			if m, ok := el.(map[string]any); ok {
				out[i] = shapeObject(m, pick, omit)
			} else {
				out[i] = el
			}
		}
		return out, nil
	default:
		return cur, nil
	}
}

func shapeObject(m map[string]any, pick, omit []string) map[string]any {
	if len(pick) > 0 {
		out := make(map[string]any, len(pick))
		for _, k := range pick {
			if v, ok := m[k]; ok {
				out[k] = v
			}
		}
		return out
	}
	omitSet := make(map[string]bool, len(omit))
	for _, k := range omit {
		omitSet[k] = true
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if !omitSet[k] {
			out[k] = v
		}
	}
	return out
}

func toStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, el := range arr {
		if s, ok := el.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
