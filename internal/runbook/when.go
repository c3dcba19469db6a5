/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package runbook

import (
	"fmt"
	"strconv"
)

// StepWhen is the step-level predicate language: a boolean AST evaluated
// against a step's execution context (or, for retry.until, {result, meta}).
// It is intentionally distinct from capability.When, which matches tag
// sets rather than arbitrary context paths.
type StepWhen struct {
	Path      string   `json:"path,omitempty"`
	Value     any      `json:"value,omitempty"`
	Exists    *bool    `json:"exists,omitempty"`
	Equals    any      `json:"equals,omitempty"`
	NotEquals any      `json:"not_equals,omitempty"`
	In        []any    `json:"in,omitempty"`
	Contains  any      `json:"contains,omitempty"`
	Gt        *float64 `json:"gt,omitempty"`
	Gte       *float64 `json:"gte,omitempty"`
	Lt        *float64 `json:"lt,omitempty"`
	Lte       *float64 `json:"lte,omitempty"`

	And []*StepWhen `json:"and,omitempty"`
	Or  []*StepWhen `json:"or,omitempty"`
	Not *StepWhen   `json:"not,omitempty"`
}

// Eval evaluates w against ctx, a dotted-path-addressable context such as
// {input, state, steps, item, index, attempt} or {result, meta}.
func (w *StepWhen) Eval(ctx map[string]any) bool {
	if w == nil {
		return true
	}
	if len(w.And) > 0 {
		for _, sub := range w.And {
			if !sub.Eval(ctx) {
				return false
			}
		}
	}
	if len(w.Or) > 0 {
		matched := false
		for _, sub := range w.Or {
			if sub.Eval(ctx) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if w.Not != nil && w.Not.Eval(ctx) {
		return false
	}

	if w.Path == "" {
		// A pure and/or/not composite with no leaf comparison of its own.
		return len(w.And) > 0 || len(w.Or) > 0 || w.Not != nil
	}

	val, found := lookupPath(ctx, w.Path)

	if w.Exists != nil {
		if found != *w.Exists {
			return false
		}
	}
	if w.Equals != nil && !looseEqual(val, w.Equals) {
		return false
	}
	if w.NotEquals != nil && looseEqual(val, w.NotEquals) {
		return false
	}
	if w.Value != nil && !looseEqual(val, w.Value) {
		return false
	}
	if len(w.In) > 0 {
		inSet := false
		for _, v := range w.In {
			if looseEqual(val, v) {
				inSet = true
				break
			}
		}
		if !inSet {
			return false
		}
	}
	if w.Contains != nil && !containsValue(val, w.Contains) {
		return false
	}
	if w.Gt != nil && !numericCompare(val, *w.Gt, func(a, b float64) bool { return a > b }) {
		return false
	}
	if w.Gte != nil && !numericCompare(val, *w.Gte, func(a, b float64) bool { return a >= b }) {
		return false
	}
	if w.Lt != nil && !numericCompare(val, *w.Lt, func(a, b float64) bool { return a < b }) {
		return false
	}
	if w.Lte != nil && !numericCompare(val, *w.Lte, func(a, b float64) bool { return a <= b }) {
		return false
	}
	return true
}

func lookupPath(ctx map[string]any, path string) (any, bool) {
	var cur any = ctx
	for _, seg := range splitPath(path) {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = next
		default:
			return nil, false
		}
	}
	return cur, true
}

func splitPath(path string) []string {
	var out []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			out = append(out, path[start:i])
			start = i + 1
		}
	}
	out = append(out, path[start:])
	return out
}

func looseEqual(a, b any) bool {
	if fmt.Sprint(a) == fmt.Sprint(b) {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func containsValue(haystack, needle any) bool {
	switch h := haystack.(type) {
	case []any:
		for _, v := range h {
			if looseEqual(v, needle) {
				return true
			}
		}
		return false
	case string:
		s, ok := needle.(string)
		return ok && containsSubstring(h, s)
	default:
		return false
	}
}

func containsSubstring(s, substr string) bool {
	if substr == "" {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func numericCompare(val any, want float64, cmp func(a, b float64) bool) bool {
	f, ok := toFloat(val)
	return ok && cmp(f, want)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
