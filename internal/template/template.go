/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package template implements the {{path}} / {{?path}} expansion language
// the Runbook Engine and Intent Planner resolve step inputs against. A
// string that is exactly one placeholder preserves the resolved value's
// type (bool, number, array, object); a string with surrounding literal
// text or multiple placeholders stringifies each resolved value.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MissingPolicy controls what happens when a non-optional placeholder's
// path isn't found in the context.
type MissingPolicy string

const (
	MissingThrow MissingPolicy = "throw"
	MissingEmpty MissingPolicy = "empty"
	MissingNull  MissingPolicy = "null"
	MissingUndefined MissingPolicy = "undefined"
)

// ErrMissingPath is returned (wrapped with the path) when a required
// placeholder cannot be resolved and the missing policy is "throw".
var ErrMissingPath = errors.New("template: path not found")

type node interface{}

type literal string

type placeholder struct {
	path     string
	optional bool
}

// Expand evaluates a single template string against ctx. Exact-match
// placeholders return the resolved value unconverted; any other shape
// (literal text present, multiple placeholders) returns a string.
func Expand(tmpl string, ctx any, missing MissingPolicy) (any, error) {
	nodes, err := parse(tmpl)
	if err != nil {
		return nil, err
	}

	if len(nodes) == 1 {
		if ph, ok := nodes[0].(placeholder); ok {
			val, found := lookup(ctx, ph.path)
			if !found {
				return missingValue(ph, missing)
			}
			return val, nil
		}
	}

	var sb strings.Builder
	for _, n := range nodes {
		switch t := n.(type) {
		case literal:
			sb.WriteString(string(t))
		case placeholder:
			val, found := lookup(ctx, t.path)
			if !found {
				mv, err := missingValue(t, missing)
				if err != nil {
					return nil, err
				}
				sb.WriteString(toDisplayString(mv))
				continue
			}
			sb.WriteString(toDisplayString(val))
		}
	}
	return sb.String(), nil
}

func missingValue(ph placeholder, missing MissingPolicy) (any, error) {
	if ph.optional {
		return emptyFor(MissingEmpty), nil
	}
	switch missing {
	case MissingEmpty, MissingNull, MissingUndefined:
		return emptyFor(missing), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrMissingPath, ph.path)
	}
}

func emptyFor(missing MissingPolicy) any {
	switch missing {
	case MissingNull:
		return nil
	case MissingUndefined:
		return nil
	default:
		return ""
	}
}

// toDisplayString stringifies a resolved value for interpolation into a
// mixed template: scalars render plainly, objects/arrays render as JSON.
func toDisplayString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// parse lexes tmpl into a flat list of literal and placeholder nodes.
func parse(tmpl string) ([]node, error) {
	var nodes []node
	var lit strings.Builder
	i := 0
	for i < len(tmpl) {
		if i+1 < len(tmpl) && tmpl[i] == '{' && tmpl[i+1] == '{' {
			end := strings.Index(tmpl[i+2:], "}}")
			if end < 0 {
				return nil, fmt.Errorf("template: unterminated placeholder in %q", tmpl)
			}
			if lit.Len() > 0 {
				nodes = append(nodes, literal(lit.String()))
				lit.Reset()
			}
			inner := strings.TrimSpace(tmpl[i+2 : i+2+end])
			optional := strings.HasPrefix(inner, "?")
			path := strings.TrimSpace(strings.TrimPrefix(inner, "?"))
			nodes = append(nodes, placeholder{path: path, optional: optional})
			i = i + 2 + end + 2
			continue
		}
		lit.WriteByte(tmpl[i])
		i++
	}
	if lit.Len() > 0 {
		nodes = append(nodes, literal(lit.String()))
	}
	return nodes, nil
}

// lookup resolves a dotted path ("steps.id.result.foo", "item.0.name")
// against ctx, which is expected to be built from decoded JSON
// (map[string]any / []any / scalars).
func lookup(ctx any, path string) (any, bool) {
	cur := ctx
	if path == "" {
		return cur, true
	}
	for _, part := range strings.Split(path, ".") {
		switch t := cur.(type) {
		case map[string]any:
			v, ok := t[part]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(t) {
				return nil, false
			}
			cur = t[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Lookup resolves a dotted path against ctx directly, without going
// through placeholder parsing. The Intent Planner uses this to evaluate a
// capability's input remap sources (`map[target] = path-lookup(source)`).
func Lookup(ctx any, path string) (any, bool) {
	return lookup(ctx, path)
}

// ExpandAny walks a decoded JSON value (map/slice/scalar), expanding every
// string leaf as a template and leaving other value kinds untouched.
func ExpandAny(v any, ctx any, missing MissingPolicy) (any, error) {
	switch t := v.(type) {
	case string:
		return Expand(t, ctx, missing)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			ev, err := ExpandAny(val, ctx, missing)
			if err != nil {
				return nil, err
			}
			out[k] = ev
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			ev, err := ExpandAny(val, ctx, missing)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	default:
		return v, nil
	}
}
