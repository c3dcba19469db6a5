/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestSetGetPersistent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Set(ScopePersistent, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := s.Get(ScopePersistent, "k")
	if !ok || got != "v" {
		t.Fatalf("Get = %v, %v", got, ok)
	}
}

func TestSetGetSessionNotPersisted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.Set(ScopeSession, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok := s2.Get(ScopeSession, "k"); ok {
		t.Fatal("expected session scope to not survive reopen")
	}
}

func TestAnyScopeOverlaySessionOverPersistent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Set(ScopePersistent, "k", "persistent-value", 0); err != nil {
		t.Fatalf("Set persistent: %v", err)
	}
	if err := s.Set(ScopeSession, "k", "session-value", 0); err != nil {
		t.Fatalf("Set session: %v", err)
	}
	got, ok := s.Get(ScopeAny, "k")
	if !ok || got != "session-value" {
		t.Fatalf("Get(any) = %v, %v, want session-value", got, ok)
	}
}

func TestDeleteAnyRemovesFromBoth(t *testing.T) {
	s := newTestStore(t)
	if err := s.Set(ScopePersistent, "k", "p", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ScopeSession, "k", "s", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Delete(ScopeAny, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.Get(ScopeAny, "k"); ok {
		t.Fatal("expected key removed from both scopes")
	}
}

func TestTTLExpiry(t *testing.T) {
	s := newTestStore(t)
	if err := s.Set(ScopeSession, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := s.Get(ScopeSession, "k"); ok {
		t.Fatal("expected entry to have expired")
	}
}

func TestSetRejectsAnyScope(t *testing.T) {
	s := newTestStore(t)
	err := s.Set(ScopeAny, "k", "v", 0)
	if err == nil {
		t.Fatal("expected error writing to scope any")
	}
}

func TestMaxKeysQuota(t *testing.T) {
	s := newTestStore(t)
	s.maxKeys = 2
	if err := s.Set(ScopeSession, "a", "1", 0); err != nil {
		t.Fatalf("Set a: %v", err)
	}
	if err := s.Set(ScopeSession, "b", "2", 0); err != nil {
		t.Fatalf("Set b: %v", err)
	}
	err := s.Set(ScopeSession, "c", "3", 0)
	if err == nil {
		t.Fatal("expected quota error on third key")
	}
	if _, ok := toolerr.As(err); !ok {
		t.Fatalf("expected *ToolError, got %T", err)
	}
}

func TestAcquireLockStrictAndRelease(t *testing.T) {
	s := newTestStore(t)
	if err := s.AcquireLock("proj", "prod", "trace-a", time.Minute); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	err := s.AcquireLock("proj", "prod", "trace-b", time.Minute)
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CodePolicyLockHeld {
		t.Fatalf("expected POLICY_LOCK_HELD, got %v", err)
	}

	if err := s.ReleaseLock("proj", "prod", "trace-a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := s.AcquireLock("proj", "prod", "trace-b", time.Minute); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestAcquireLockExpires(t *testing.T) {
	s := newTestStore(t)
	if err := s.AcquireLock("proj", "prod", "trace-a", 10*time.Millisecond); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := s.AcquireLock("proj", "prod", "trace-b", time.Minute); err != nil {
		t.Fatalf("expected acquire to succeed after expiry, got %v", err)
	}
}
