/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package project implements the project/target registry the Intent
// Planner and Context Detector consult to resolve a named
// (project, target) pair into a repo root, remote URL, and policy
// document, so callers can pass short names instead of full paths.
package project

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/paths"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/policy"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

// Target is one named deployment target within a project (e.g. "prod",
// "staging").
type Target struct {
	RepoRoot  string            `json:"repo_root,omitempty"`
	RemoteURL string            `json:"remote_url,omitempty"`
	Policy    policy.RepoPolicy `json:"policy,omitempty"`
}

// Project groups targets under a name.
type Project struct {
	Targets map[string]Target `json:"targets"`
}

// Registry is the file-backed project/target registry.
type Registry struct {
	path     string
	projects map[string]*Project
}

// Open loads projects.json, creating an empty registry if absent.
func Open(path string) (*Registry, error) {
	r := &Registry{path: path, projects: map[string]*Project{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &r.projects); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Resolved is what a (project, target) pair resolves to.
type Resolved struct {
	Project   string
	Target    string
	RepoRoot  string
	RemoteURL string
	Policy    policy.RepoPolicy
}

// Resolve looks up project/target. It is not an error for the registry to
// be absent or the pair unknown — callers fall back to cwd-derived context
// in that case, per spec.md §4.4 step 1 ("if present").
func (r *Registry) Resolve(projectName, targetName string) (Resolved, bool) {
	if projectName == "" {
		return Resolved{}, false
	}
	p, ok := r.projects[projectName]
	if !ok {
		return Resolved{}, false
	}
	if targetName == "" {
		targetName = "default"
	}
	t, ok := p.Targets[targetName]
	if !ok {
		return Resolved{}, false
	}
	return Resolved{
		Project:   projectName,
		Target:    targetName,
		RepoRoot:  t.RepoRoot,
		RemoteURL: t.RemoteURL,
		Policy:    t.Policy,
	}, true
}

// Put registers or replaces one target within a project.
func (r *Registry) Put(projectName, targetName string, t Target) error {
	if projectName == "" || targetName == "" {
		return toolerr.New(toolerr.KindInvalidParams, toolerr.CodeMissingInputs, "project and target are required")
	}
	p, ok := r.projects[projectName]
	if !ok {
		p = &Project{Targets: map[string]Target{}}
		r.projects[projectName] = p
	}
	p.Targets[targetName] = t
	return r.persist()
}

// Delete removes one target, and the project entry too once it has no
// targets left.
func (r *Registry) Delete(projectName, targetName string) error {
	p, ok := r.projects[projectName]
	if !ok {
		return toolerr.New(toolerr.KindNotFound, toolerr.CodeProjectNotFound, "project not found: "+projectName)
	}
	if _, ok := p.Targets[targetName]; !ok {
		return toolerr.New(toolerr.KindNotFound, toolerr.CodeProjectNotFound, "target not found: "+projectName+"/"+targetName)
	}
	delete(p.Targets, targetName)
	if len(p.Targets) == 0 {
		delete(r.projects, projectName)
	}
	return r.persist()
}

// ListProjects returns every registered project name, sorted.
func (r *Registry) ListProjects() []string {
	names := make([]string, 0, len(r.projects))
	for name := range r.projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) persist() error {
	data, err := json.MarshalIndent(r.projects, "", "  ")
	if err != nil {
		return err
	}
	return paths.AtomicWriteFile(r.path, data, 0o600)
}
