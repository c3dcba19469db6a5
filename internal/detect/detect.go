/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package detect implements the Context Detector: it inspects a working
// tree for GitOps/language marker files and derives a tag set used by the
// Intent Planner and the Runbook Engine's when-predicates.
package detect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/paths"
)

// maxGitRootWalk bounds the upward walk looking for a .git entry.
const maxGitRootWalk = 25

// markerRules maps a tag to the files/dirs whose presence at root implies
// it. Order is irrelevant; every rule is checked independently.
var markerRules = map[string][]string{
	"node":    {"package.json", "yarn.lock", "pnpm-lock.yaml", "package-lock.json"},
	"go":      {"go.mod"},
	"python":  {"pyproject.toml", "requirements.txt", "setup.py"},
	"argocd":  {".argocd", "argocd-application.yaml"},
	"flux":    {"gotk-components.yaml", "flux-system"},
	"helm":    {"Chart.yaml"},
	"kustomize": {"kustomization.yaml", "kustomization.yml"},
	"terraform": {"main.tf", "terraform"},
	"docker":  {"Dockerfile", "docker-compose.yaml", "docker-compose.yml"},
}

// Context is the derived record the rest of the system consumes.
type Context struct {
	Key     string          `json:"key"`
	Root    string          `json:"root"`
	GitRoot string          `json:"git_root,omitempty"`
	Files   map[string]bool `json:"files"`
	Signals map[string]bool `json:"signals"`
	Tags    []string        `json:"tags"`
}

// Input is the Context Detector's request shape (spec.md §4.7).
type Input struct {
	Project  string
	Target   string
	Cwd      string
	RepoRoot string
	Refresh  bool
}

type cacheFile struct {
	Version  int                `json:"version"`
	Contexts map[string]Context `json:"contexts"`
}

// Detector owns the context cache, persisted to context.json.
type Detector struct {
	mu   sync.Mutex
	path string
	data cacheFile
}

// Open loads the context cache (creating an empty one if absent).
func Open(path string) (*Detector, error) {
	d := &Detector{path: path, data: cacheFile{Version: 1, Contexts: map[string]Context{}}}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(raw, &d.data); err != nil {
		return nil, err
	}
	if d.data.Contexts == nil {
		d.data.Contexts = map[string]Context{}
	}
	return d, nil
}

// Get returns the cached Context for in, re-deriving and persisting it
// when refresh is requested or no cache entry exists.
func (d *Detector) Get(in Input) (Context, error) {
	key := cacheKey(in)

	d.mu.Lock()
	if !in.Refresh {
		if c, ok := d.data.Contexts[key]; ok {
			d.mu.Unlock()
			return c, nil
		}
	}
	d.mu.Unlock()

	c, err := derive(in, key)
	if err != nil {
		return Context{}, err
	}

	d.mu.Lock()
	d.data.Contexts[key] = c
	err = d.persistLocked()
	d.mu.Unlock()
	return c, err
}

func (d *Detector) persistLocked() error {
	data, err := json.MarshalIndent(d.data, "", "  ")
	if err != nil {
		return err
	}
	return paths.AtomicWriteFile(d.path, data, 0o600)
}

// cacheKey mirrors the "project:" / "cwd:" keying spec.md implies: a
// project/target pair is preferred when given, falling back to the
// resolved working directory.
func cacheKey(in Input) string {
	if in.Project != "" {
		if in.Target != "" {
			return fmt.Sprintf("project:%s:%s", in.Project, in.Target)
		}
		return "project:" + in.Project
	}
	cwd := in.Cwd
	if cwd == "" {
		cwd, _ = os.Getwd()
	}
	return "cwd:" + cwd
}

func derive(in Input, key string) (Context, error) {
	cwd := in.Cwd
	if cwd == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return Context{}, err
		}
	}

	gitRoot := findGitRoot(cwd)
	root := in.RepoRoot
	if root == "" {
		root = gitRoot
	}
	if root == "" {
		root = cwd
	}

	files := map[string]bool{}
	signals := map[string]bool{}
	for tag, markers := range markerRules {
		found := false
		for _, m := range markers {
			exists := fileExists(filepath.Join(root, m))
			files[m] = exists
			found = found || exists
		}
		signals[tag] = found
	}

	tagSet := map[string]bool{}
	for tag, on := range signals {
		if on {
			tagSet[tag] = true
		}
	}
	if signals["argocd"] || signals["flux"] {
		tagSet["gitops"] = true
	}
	if gitRoot != "" {
		tagSet["git"] = true
	}

	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	return Context{
		Key:     key,
		Root:    root,
		GitRoot: gitRoot,
		Files:   files,
		Signals: signals,
		Tags:    tags,
	}, nil
}

func findGitRoot(start string) string {
	dir := start
	for i := 0; i < maxGitRootWalk; i++ {
		if fileExists(filepath.Join(dir, ".git")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
