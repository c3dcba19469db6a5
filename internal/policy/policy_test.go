/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package policy

import (
	"testing"
	"time"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/artifacts"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

type fakeLocker struct {
	held      map[string]string
	acquireErr error
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]string{}} }

func (f *fakeLocker) AcquireLock(project, target, holder string, ttl time.Duration) error {
	if f.acquireErr != nil {
		return f.acquireErr
	}
	key := project + "::" + target
	if existing, ok := f.held[key]; ok && existing != holder {
		return toolerr.New(toolerr.KindConflict, toolerr.CodePolicyLockHeld, "lock held")
	}
	f.held[key] = holder
	return nil
}

func (f *fakeLocker) ReleaseLock(project, target, holder string) error {
	key := project + "::" + target
	if f.held[key] == holder {
		delete(f.held, key)
	}
	return nil
}

func TestCheckRemoteAllowed(t *testing.T) {
	p := RepoPolicy{AllowedRemotes: []string{"https://github.com/acme/repo.git"}}
	e := NewEvaluator(p, newFakeLocker(), artifacts.New("", false))
	g, err := e.Check(CheckInput{Project: "acme", Target: "prod", TraceID: "t1", RemoteURL: "git@github.com:acme/repo.git", Now: time.Now()})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	g.Release()
}

func TestCheckRemoteDenied(t *testing.T) {
	p := RepoPolicy{AllowedRemotes: []string{"https://github.com/acme/repo.git"}}
	e := NewEvaluator(p, newFakeLocker(), artifacts.New("", false))
	_, err := e.Check(CheckInput{Project: "acme", Target: "prod", TraceID: "t1", RemoteURL: "https://github.com/evil/repo.git", Now: time.Now()})
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CodePolicyRemoteDenied {
		t.Fatalf("expected POLICY_REMOTE_DENIED, got %v", err)
	}
}

func TestCheckNamespaceDenied(t *testing.T) {
	p := RepoPolicy{AllowedNamespaces: []string{"default"}}
	e := NewEvaluator(p, newFakeLocker(), artifacts.New("", false))
	_, err := e.Check(CheckInput{Project: "acme", Target: "prod", TraceID: "t1", Namespaces: []string{"kube-system"}, Now: time.Now()})
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CodePolicyNamespaceDenied {
		t.Fatalf("expected POLICY_NAMESPACE_DENIED, got %v", err)
	}
}

func TestCheckWindowDenied(t *testing.T) {
	p := RepoPolicy{ChangeWindows: []ChangeWindow{{Cron: "0 0 1 1 *", Duration: time.Hour}}}
	e := NewEvaluator(p, newFakeLocker(), artifacts.New("", false))
	_, err := e.Check(CheckInput{Project: "acme", Target: "prod", TraceID: "t1", Now: time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)})
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CodePolicyWindowDenied {
		t.Fatalf("expected POLICY_WINDOW_DENIED, got %v", err)
	}
}

func TestCheckWindowAllowedWhenOpen(t *testing.T) {
	// "* * * * *" fires every minute, window open for an hour after each fire.
	p := RepoPolicy{ChangeWindows: []ChangeWindow{{Cron: "* * * * *", Duration: time.Hour}}}
	e := NewEvaluator(p, newFakeLocker(), artifacts.New("", false))
	g, err := e.Check(CheckInput{Project: "acme", Target: "prod", TraceID: "t1", Now: time.Now()})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	g.Release()
}

func TestAcquireLockStrict(t *testing.T) {
	locker := newFakeLocker()
	e := NewEvaluator(RepoPolicy{}, locker, artifacts.New("", false))
	g1, err := e.Check(CheckInput{Project: "acme", Target: "prod", TraceID: "holder-a", Now: time.Now()})
	if err != nil {
		t.Fatalf("first Check: %v", err)
	}
	_, err = e.Check(CheckInput{Project: "acme", Target: "prod", TraceID: "holder-b", Now: time.Now()})
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CodePolicyLockHeld {
		t.Fatalf("expected POLICY_LOCK_HELD, got %v", err)
	}
	g1.Release()
	g2, err := e.Check(CheckInput{Project: "acme", Target: "prod", TraceID: "holder-b", Now: time.Now()})
	if err != nil {
		t.Fatalf("Check after release: %v", err)
	}
	g2.Release()
}

func TestLockDisabledSkipsAcquire(t *testing.T) {
	locker := newFakeLocker()
	disabled := false
	e := NewEvaluator(RepoPolicy{LockEnabled: &disabled}, locker, artifacts.New("", false))
	g1, err := e.Check(CheckInput{Project: "acme", Target: "prod", TraceID: "holder-a", Now: time.Now()})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	g2, err := e.Check(CheckInput{Project: "acme", Target: "prod", TraceID: "holder-b", Now: time.Now()})
	if err != nil {
		t.Fatalf("expected lock-disabled concurrent acquire to succeed, got %v", err)
	}
	g1.Release()
	g2.Release()
}

func TestPlanEvidenceRequiredWhenNoArtifactStore(t *testing.T) {
	e := NewEvaluator(RepoPolicy{}, newFakeLocker(), artifacts.New("", false))
	_, err := e.Check(CheckInput{Project: "acme", Target: "prod", TraceID: "t1", RequiresPlan: true, Now: time.Now()})
	if err != nil {
		t.Fatalf("expected unavailable artifact store to skip the plan-evidence check, got %v", err)
	}
}

func TestPlanEvidenceOverrideBypasses(t *testing.T) {
	root := t.TempDir()
	store := artifacts.New(root, false)
	e := NewEvaluator(RepoPolicy{}, newFakeLocker(), store)
	_, err := e.Check(CheckInput{Project: "acme", Target: "prod", TraceID: "t1", RequiresPlan: true, PlanOverride: true, Now: time.Now()})
	if err != nil {
		t.Fatalf("expected override to bypass missing plan evidence, got %v", err)
	}
}

func TestPlanEvidenceMissingWithoutOverride(t *testing.T) {
	root := t.TempDir()
	store := artifacts.New(root, false)
	e := NewEvaluator(RepoPolicy{}, newFakeLocker(), store)
	_, err := e.Check(CheckInput{Project: "acme", Target: "prod", TraceID: "no-plan", RequiresPlan: true, Now: time.Now()})
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CodePlanEvidenceMissing {
		t.Fatalf("expected PLAN_EVIDENCE_MISSING, got %v", err)
	}
}

func TestPlanEvidenceFoundSatisfiesCheck(t *testing.T) {
	root := t.TempDir()
	store := artifacts.New(root, false)
	if _, err := store.Write("has-plan", "span1", "gitops.plan.json", []byte(`{}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	e := NewEvaluator(RepoPolicy{}, newFakeLocker(), store)
	g, err := e.Check(CheckInput{Project: "acme", Target: "prod", TraceID: "has-plan", RequiresPlan: true, Now: time.Now()})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	g.Release()
}
