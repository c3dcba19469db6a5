/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package preset is the file-backed named-argument-bundle store the Tool
// Execution Envelope deep-merges under a call's user args.
package preset

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/paths"
)

// Registry is the file-backed preset store.
type Registry struct {
	path    string
	presets map[string]map[string]any
}

// Open loads presets.json, creating an empty registry if absent.
func Open(path string) (*Registry, error) {
	r := &Registry{path: path, presets: map[string]map[string]any{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &r.presets); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Get returns a named preset's argument bundle.
func (r *Registry) Get(name string) (map[string]any, bool) {
	p, ok := r.presets[name]
	return p, ok
}

// Put registers or replaces a named preset.
func (r *Registry) Put(name string, data map[string]any) error {
	if name == "" {
		return nil
	}
	r.presets[name] = data
	return r.persist()
}

// Delete removes a named preset.
func (r *Registry) Delete(name string) error {
	if _, ok := r.presets[name]; !ok {
		return nil
	}
	delete(r.presets, name)
	return r.persist()
}

// List returns every preset name, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) persist() error {
	data, err := json.MarshalIndent(r.presets, "", "  ")
	if err != nil {
		return err
	}
	return paths.AtomicWriteFile(r.path, data, 0o600)
}
