/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package capability implements the Capability Registry: named, versioned
// bindings from an intent type to a runbook, with input remapping, effect
// classification, a depends_on DAG, and a when-predicate matched against
// the Context Detector's tag set.
package capability

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

// EffectKind classifies what a capability's runbook does to the world.
type EffectKind string

const (
	EffectRead  EffectKind = "read"
	EffectWrite EffectKind = "write"
	EffectMixed EffectKind = "mixed"
)

// Inputs describes how a capability's runbook args are assembled.
type Inputs struct {
	Required    []string          `json:"required,omitempty"`
	Defaults    map[string]any    `json:"defaults,omitempty"`
	Map         map[string]string `json:"map,omitempty"` // target field <- source path in intent.inputs
	PassThrough bool              `json:"pass_through,omitempty"`
}

// Effects declares a capability's blast radius.
type Effects struct {
	Kind          EffectKind `json:"kind"`
	RequiresApply bool       `json:"requires_apply"`
}

// When is a boolean predicate evaluated against a context's tag set.
type When struct {
	TagsAny  []string `json:"tags_any,omitempty"`
	TagsAll  []string `json:"tags_all,omitempty"`
	TagsNone []string `json:"tags_none,omitempty"`
	And      []*When  `json:"and,omitempty"`
	Or       []*When  `json:"or,omitempty"`
	Not      *When    `json:"not,omitempty"`
}

// Match evaluates w against tags. A nil When always matches.
func (w *When) Match(tags map[string]bool) bool {
	if w == nil {
		return true
	}
	if len(w.TagsAny) > 0 && !anyTag(tags, w.TagsAny) {
		return false
	}
	if len(w.TagsAll) > 0 && !allTags(tags, w.TagsAll) {
		return false
	}
	if len(w.TagsNone) > 0 && anyTag(tags, w.TagsNone) {
		return false
	}
	for _, sub := range w.And {
		if !sub.Match(tags) {
			return false
		}
	}
	if len(w.Or) > 0 {
		matched := false
		for _, sub := range w.Or {
			if sub.Match(tags) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if w.Not != nil && w.Not.Match(tags) {
		return false
	}
	return true
}

func anyTag(tags map[string]bool, want []string) bool {
	for _, t := range want {
		if tags[t] {
			return true
		}
	}
	return false
}

func allTags(tags map[string]bool, want []string) bool {
	for _, t := range want {
		if !tags[t] {
			return false
		}
	}
	return true
}

// Capability is one named entry in the registry.
type Capability struct {
	Name       string     `json:"name"`
	Intent     string     `json:"intent"`
	Runbook    string     `json:"runbook"`
	Inputs     Inputs     `json:"inputs"`
	Effects    Effects    `json:"effects"`
	DependsOn  []string   `json:"depends_on,omitempty"`
	When       *When      `json:"when,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
}

// Registry is the file-backed capability registry.
type Registry struct {
	path string
	caps map[string]*Capability
}

// Open loads capabilities.json (creating an empty registry if absent) and
// validates the depends_on graph is acyclic. On first run — the JSON store
// doesn't exist yet — a sibling capabilities.seed.yaml is loaded instead if
// present, letting an operator hand-author the initial catalog as YAML.
func Open(path string) (*Registry, error) {
	r := &Registry{path: path, caps: map[string]*Capability{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		seeded, serr := seedFromYAML(path, &r.caps)
		if serr != nil {
			return nil, serr
		}
		if seeded {
			if err := r.validateAcyclic(); err != nil {
				return nil, err
			}
			return r, r.persist()
		}
		return r, nil
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &r.caps); err != nil {
			return nil, err
		}
	}
	if err := r.validateAcyclic(); err != nil {
		return nil, err
	}
	return r, nil
}

// seedFromYAML looks for a `.seed.yaml` file beside a not-yet-created JSON
// store (e.g. capabilities.json -> capabilities.seed.yaml) and, if found,
// decodes it straight into out via sigs.k8s.io/yaml — which round-trips
// through encoding/json, so the existing `json` struct tags on Capability
// apply without needing a parallel set of `yaml` tags.
func seedFromYAML(jsonPath string, out *map[string]*Capability) (bool, error) {
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

// Put registers or replaces a capability and re-validates the graph.
func (r *Registry) Put(c *Capability) error {
	prev := r.caps[c.Name]
	r.caps[c.Name] = c
	if err := r.validateAcyclic(); err != nil {
		r.caps[c.Name] = prev
		if prev == nil {
			delete(r.caps, c.Name)
		}
		return err
	}
	return r.persist()
}

// Delete removes a capability by name.
func (r *Registry) Delete(name string) error {
	if _, ok := r.caps[name]; !ok {
		return toolerr.New(toolerr.KindNotFound, toolerr.CodeCapabilityNotFound, "capability not found: "+name)
	}
	delete(r.caps, name)
	return r.persist()
}

// Get returns a capability by name.
func (r *Registry) Get(name string) (*Capability, bool) {
	c, ok := r.caps[name]
	return c, ok
}

// List returns every registered capability, sorted by name.
func (r *Registry) List() []*Capability {
	out := make([]*Capability, 0, len(r.caps))
	for _, c := range r.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MatchIntent returns the capability selected for intentType against tags,
// applying the tie-break rule: prefer name == intentType, else
// lexicographic order on name.
func (r *Registry) MatchIntent(intentType string, tags map[string]bool) (*Capability, error) {
	var candidates []*Capability
	for _, c := range r.caps {
		if c.Intent != intentType {
			continue
		}
		if c.When.Match(tags) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		if _, hasIntent := r.anyWithIntent(intentType); !hasIntent {
			return nil, toolerr.New(toolerr.KindNotFound, toolerr.CodeCapabilityNotFound, "no capability declares intent: "+intentType)
		}
		return nil, toolerr.New(toolerr.KindNotFound, toolerr.CodeCapabilityNotMatched, "no capability matched intent: "+intentType)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	for _, c := range candidates {
		if c.Name == intentType {
			return c, nil
		}
	}
	return candidates[0], nil
}

func (r *Registry) anyWithIntent(intentType string) (*Capability, bool) {
	for _, c := range r.caps {
		if c.Intent == intentType {
			return c, true
		}
	}
	return nil, false
}

// ExpandDAG returns the dependency closure of root in post-order (leaves
// first, root last), per spec.md §4.4 step 5.
func (r *Registry) ExpandDAG(rootName string) ([]*Capability, error) {
	visited := map[string]int{} // 0=unvisited,1=in-progress,2=done
	var order []*Capability

	var visit func(name string) error
	visit = func(name string) error {
		switch visited[name] {
		case 2:
			return nil
		case 1:
			return toolerr.Newf(toolerr.KindInternal, toolerr.CodeCapabilityDepCycle, "capability dependency cycle at %s", name)
		}
		c, ok := r.caps[name]
		if !ok {
			return toolerr.New(toolerr.KindNotFound, toolerr.CodeCapabilityNotFound, "capability not found: "+name)
		}
		visited[name] = 1
		for _, dep := range c.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visited[name] = 2
		order = append(order, c)
		return nil
	}
	if err := visit(rootName); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Registry) validateAcyclic() error {
	for name := range r.caps {
		if _, err := r.ExpandDAG(name); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) persist() error {
	data, err := json.MarshalIndent(r.caps, "", "  ")
	if err != nil {
		return err
	}
	return paths.AtomicWriteFile(r.path, data, 0o600)
}
