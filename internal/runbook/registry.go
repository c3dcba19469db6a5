/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package runbook

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/paths"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

// Registry is the file-backed store of named runbooks a capability's
// `runbook` field resolves against.
type Registry struct {
	path     string
	runbooks map[string]*Runbook
}

// Open loads runbooks.json, creating an empty registry if it doesn't exist
// yet. On first run, a sibling runbooks.seed.yaml is loaded instead if
// present, letting an operator hand-author the initial runbook set as YAML
// rather than the registry's native JSON.
func Open(path string) (*Registry, error) {
	r := &Registry{path: path, runbooks: map[string]*Runbook{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		seeded, serr := seedFromYAML(path, &r.runbooks)
		if serr != nil {
			return nil, serr
		}
		if !seeded {
			return r, nil
		}
		for name, rb := range r.runbooks {
			if err := validateSteps(name, rb); err != nil {
				return nil, err
			}
		}
		return r, r.persist()
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &r.runbooks); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// seedFromYAML decodes a `.seed.yaml` file beside a not-yet-created JSON
// store via sigs.k8s.io/yaml, which round-trips through encoding/json so
// Runbook's existing `json` struct tags apply without a parallel `yaml` set.
func seedFromYAML(jsonPath string, out *map[string]*Runbook) (bool, error) {
	seedPath := strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath)) + ".seed.yaml"
	data, err := os.ReadFile(seedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func validateSteps(name string, rb *Runbook) error {
	if len(rb.Steps) == 0 {
		return toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "runbook %q has no steps", name)
	}
	seen := map[string]bool{}
	for _, st := range rb.Steps {
		if seen[st.ID] {
			return toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "runbook %q: duplicate step id %q", name, st.ID)
		}
		seen[st.ID] = true
	}
	return nil
}

// Put registers or replaces a named runbook. Steps must be non-empty and
// step ids unique, per the data model invariant.
func (r *Registry) Put(name string, rb *Runbook) error {
	if err := validateSteps(name, rb); err != nil {
		return err
	}
	r.runbooks[name] = rb
	return r.persist()
}

// Get returns a named runbook.
func (r *Registry) Get(name string) (*Runbook, error) {
	rb, ok := r.runbooks[name]
	if !ok {
		return nil, toolerr.New(toolerr.KindNotFound, toolerr.CodeRunbookNotFound, "runbook not found: "+name)
	}
	return rb, nil
}

// List returns every registered runbook name, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.runbooks))
	for name := range r.runbooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Delete removes a named runbook.
func (r *Registry) Delete(name string) error {
	if _, ok := r.runbooks[name]; !ok {
		return toolerr.New(toolerr.KindNotFound, toolerr.CodeRunbookNotFound, "runbook not found: "+name)
	}
	delete(r.runbooks, name)
	return r.persist()
}

func (r *Registry) persist() error {
	data, err := json.MarshalIndent(r.runbooks, "", "  ")
	if err != nil {
		return err
	}
	return paths.AtomicWriteFile(r.path, data, 0o600)
}
