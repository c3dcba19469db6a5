/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package alias resolves a tool name through a built-in static table and a
// file-backed dynamic table, optionally carrying a default preset name and
// default args the Tool Execution Envelope merges underneath preset data
// and user args.
package alias

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/paths"
)

// Record is one alias entry: name -> canonical tool, plus optional
// defaults the envelope pipeline folds in before user args.
type Record struct {
	Target string         `json:"target"`
	Preset string         `json:"preset,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
}

// staticAliases are the short names spec.md §6 calls out as "accepted"
// without requiring an operator to have registered anything.
var staticAliases = map[string]Record{
	"ssh":        {Target: "mcp_ssh_manager"},
	"sql":        {Target: "mcp_psql_manager"},
	"http":       {Target: "mcp_api_client"},
	"api":        {Target: "mcp_api_client"},
	"state":      {Target: "mcp_state"},
	"repo":       {Target: "mcp_repo"},
	"workspace":  {Target: "mcp_workspace"},
	"ctx":        {Target: "mcp_context"},
	"context":    {Target: "mcp_context"},
	"artifacts":  {Target: "mcp_artifacts"},
	"runbook":    {Target: "mcp_runbook"},
	"capability": {Target: "mcp_capability"},
	"intent":     {Target: "mcp_intent"},
	"audit":      {Target: "mcp_audit"},
	"job":        {Target: "mcp_job"},
	"jobs":       {Target: "mcp_job"},
	"vault":      {Target: "mcp_vault"},
	"env":        {Target: "mcp_env"},
	"pipeline":   {Target: "mcp_pipeline"},
	"alias":      {Target: "mcp_alias"},
	"preset":     {Target: "mcp_preset"},
}

// StaticAliases returns a copy of the built-in short-name table, for
// surfaces (like the help tool) that need to list every accepted alias
// without exposing staticAliases itself for mutation.
func StaticAliases() map[string]Record {
	out := make(map[string]Record, len(staticAliases))
	for k, v := range staticAliases {
		out[k] = v
	}
	return out
}

// Registry is the file-backed dynamic alias table, overlaid on top of the
// built-in static table.
type Registry struct {
	path    string
	aliases map[string]Record
}

// Open loads aliases.json, creating an empty dynamic table if absent.
func Open(path string) (*Registry, error) {
	r := &Registry{path: path, aliases: map[string]Record{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &r.aliases); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Resolve looks up name in the dynamic table, falling back to the static
// table. ok is false when name isn't an alias at all — the caller should
// then try name as an already-canonical tool.
func (r *Registry) Resolve(name string) (Record, bool) {
	if rec, ok := r.aliases[name]; ok {
		return rec, true
	}
	rec, ok := staticAliases[name]
	return rec, ok
}

// Put registers or replaces a dynamic alias.
func (r *Registry) Put(name string, rec Record) error {
	if name == "" || rec.Target == "" {
		return nil
	}
	r.aliases[name] = rec
	return r.persist()
}

// Delete removes a dynamic alias. It is not an error to delete a name that
// only exists in the static table — that entry simply isn't shadowed.
func (r *Registry) Delete(name string) error {
	if _, ok := r.aliases[name]; !ok {
		return nil
	}
	delete(r.aliases, name)
	return r.persist()
}

// List returns every dynamic alias name, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.aliases))
	for name := range r.aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) persist() error {
	data, err := json.MarshalIndent(r.aliases, "", "  ")
	if err != nil {
		return err
	}
	return paths.AtomicWriteFile(r.path, data, 0o600)
}
