/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package project

import (
	"path/filepath"
	"testing"
)

func TestResolveUnknownReturnsFalse(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "projects.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := r.Resolve("acme", "prod"); ok {
		t.Fatal("expected unknown project to resolve false")
	}
}

func TestPutAndResolve(t *testing.T) {
	r, _ := Open(filepath.Join(t.TempDir(), "projects.json"))
	if err := r.Put("acme", "prod", Target{RepoRoot: "/repos/acme", RemoteURL: "git@github.com:acme/repo.git"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	res, ok := r.Resolve("acme", "prod")
	if !ok {
		t.Fatal("expected resolve to succeed")
	}
	if res.RepoRoot != "/repos/acme" {
		t.Fatalf("RepoRoot = %q", res.RepoRoot)
	}
}

func TestResolveDefaultsTargetName(t *testing.T) {
	r, _ := Open(filepath.Join(t.TempDir(), "projects.json"))
	_ = r.Put("acme", "default", Target{RepoRoot: "/repos/acme"})
	res, ok := r.Resolve("acme", "")
	if !ok || res.Target != "default" {
		t.Fatalf("res = %+v, ok = %v", res, ok)
	}
}

func TestDeleteRemovesEmptyProject(t *testing.T) {
	r, _ := Open(filepath.Join(t.TempDir(), "projects.json"))
	_ = r.Put("acme", "prod", Target{RepoRoot: "/repos/acme"})
	if err := r.Delete("acme", "prod"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if names := r.ListProjects(); len(names) != 0 {
		t.Fatalf("expected empty project to be pruned, got %v", names)
	}
}

func TestDeleteUnknownProject(t *testing.T) {
	r, _ := Open(filepath.Join(t.TempDir(), "projects.json"))
	if err := r.Delete("nope", "prod"); err == nil {
		t.Fatal("expected error for unknown project")
	}
}

func TestPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.json")
	r1, _ := Open(path)
	_ = r1.Put("acme", "prod", Target{RepoRoot: "/repos/acme"})

	r2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok := r2.Resolve("acme", "prod"); !ok {
		t.Fatal("expected project to persist across instances")
	}
}
