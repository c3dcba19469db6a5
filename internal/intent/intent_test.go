/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package intent

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/capability"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/detect"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/project"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/runbook"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

type fakeState struct{ data map[string]any }

func (f *fakeState) Dump() map[string]any { return f.data }

type fakeExecutor struct {
	fn func(tool string, args map[string]any) (any, map[string]any, error)
}

func (f *fakeExecutor) Execute(traceID, parentSpanID, tool string, args map[string]any) (any, map[string]any, error) {
	if f.fn != nil {
		return f.fn(tool, args)
	}
	return map[string]any{"ok": true}, nil, nil
}

type fakeLocker struct{ held map[string]string }

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]string{}} }

func (f *fakeLocker) AcquireLock(project, target, holder string, ttl time.Duration) error {
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

func newTestPlanner(t *testing.T, exec *fakeExecutor) (*Planner, *capability.Registry, *runbook.Registry) {
	t.Helper()
	dir := t.TempDir()
	caps, err := capability.Open(filepath.Join(dir, "capabilities.json"))
	if err != nil {
		t.Fatalf("capability.Open: %v", err)
	}
	detector, err := detect.Open(filepath.Join(dir, "context.json"))
	if err != nil {
		t.Fatalf("detect.Open: %v", err)
	}
	projects, err := project.Open(filepath.Join(dir, "projects.json"))
	if err != nil {
		t.Fatalf("project.Open: %v", err)
	}
	runbooks, err := runbook.Open(filepath.Join(dir, "runbooks.json"))
	if err != nil {
		t.Fatalf("runbook.Open: %v", err)
	}
	engine := runbook.New(exec, &fakeState{data: map[string]any{}})
	p := New(caps, detector, projects, runbooks, engine, newFakeLocker(), nil, "")
	return p, caps, runbooks
}

func TestCompileSimpleReadIntent(t *testing.T) {
	p, caps, runbooks := newTestPlanner(t, &fakeExecutor{})
	_ = caps.Put(&capability.Capability{
		Name: "status.check", Intent: "status.check", Runbook: "rb1",
		Inputs:  capability.Inputs{Required: []string{"target"}, PassThrough: true},
		Effects: capability.Effects{Kind: capability.EffectRead},
	})
	_ = runbooks.Put("rb1", &runbook.Runbook{Steps: []runbook.Step{{ID: "s1", Tool: "mcp_state"}}})

	plan, err := p.Compile(Request{Type: "status.check", Inputs: map[string]any{"target": "prod"}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Capability != "status.check" {
		t.Fatalf("plan = %+v", plan)
	}
	if plan.Steps[0].ResolvedInputs["target"] != "prod" {
		t.Fatalf("resolved inputs = %+v", plan.Steps[0].ResolvedInputs)
	}
	if len(plan.Steps[0].Missing) != 0 {
		t.Fatalf("missing = %v", plan.Steps[0].Missing)
	}
	if plan.Effects.Kind != capability.EffectRead {
		t.Fatalf("effects = %+v", plan.Effects)
	}
}

func TestCompileComputesMissingRequired(t *testing.T) {
	p, caps, _ := newTestPlanner(t, &fakeExecutor{})
	_ = caps.Put(&capability.Capability{
		Name: "deploy", Intent: "deploy", Runbook: "rb1",
		Inputs:  capability.Inputs{Required: []string{"image", "target"}},
		Effects: capability.Effects{Kind: capability.EffectWrite, RequiresApply: true},
	})
	plan, err := p.Compile(Request{Type: "deploy", Inputs: map[string]any{"image": "app:1"}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(plan.Steps[0].Missing) != 1 || plan.Steps[0].Missing[0] != "target" {
		t.Fatalf("missing = %v", plan.Steps[0].Missing)
	}
}

func TestCompileRemapsFields(t *testing.T) {
	p, caps, _ := newTestPlanner(t, &fakeExecutor{})
	_ = caps.Put(&capability.Capability{
		Name: "deploy", Intent: "deploy", Runbook: "rb1",
		Inputs:  capability.Inputs{Map: map[string]string{"image_ref": "image"}},
		Effects: capability.Effects{Kind: capability.EffectWrite, RequiresApply: true},
	})
	plan, err := p.Compile(Request{Type: "deploy", Inputs: map[string]any{"image": "app:1"}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if plan.Steps[0].ResolvedInputs["image_ref"] != "app:1" {
		t.Fatalf("resolved inputs = %+v", plan.Steps[0].ResolvedInputs)
	}
}

func TestCompileUnknownIntentNotFound(t *testing.T) {
	p, _, _ := newTestPlanner(t, &fakeExecutor{})
	_, err := p.Compile(Request{Type: "nope.nope"})
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CodeCapabilityNotFound {
		t.Fatalf("expected CAPABILITY_NOT_FOUND, got %v", err)
	}
}

func TestDryRunRedactsResolvedInputs(t *testing.T) {
	p, caps, _ := newTestPlanner(t, &fakeExecutor{})
	_ = caps.Put(&capability.Capability{
		Name: "connect", Intent: "connect", Runbook: "rb1",
		Inputs:  capability.Inputs{PassThrough: true},
		Effects: capability.Effects{Kind: capability.EffectRead},
	})
	plan, err := p.DryRun(Request{Type: "connect", Inputs: map[string]any{"password": "hunter2"}})
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if plan.Steps[0].ResolvedInputs["password"] != "[REDACTED]" {
		t.Fatalf("resolved inputs = %+v", plan.Steps[0].ResolvedInputs)
	}
}

func TestExecuteEnforcesApplyRequired(t *testing.T) {
	p, caps, runbooks := newTestPlanner(t, &fakeExecutor{})
	_ = caps.Put(&capability.Capability{
		Name: "deploy", Intent: "deploy", Runbook: "rb1",
		Effects: capability.Effects{Kind: capability.EffectWrite, RequiresApply: true},
	})
	_ = runbooks.Put("rb1", &runbook.Runbook{Steps: []runbook.Step{{ID: "s1", Tool: "t"}}})

	_, err := p.Execute(Request{Type: "deploy", Apply: false}, nil, false)
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CodeApplyRequired {
		t.Fatalf("expected APPLY_REQUIRED, got %v", err)
	}
}

func TestExecuteRunsRunbookWhenApplied(t *testing.T) {
	exec := &fakeExecutor{}
	p, caps, runbooks := newTestPlanner(t, exec)
	_ = caps.Put(&capability.Capability{
		Name: "status.check", Intent: "status.check", Runbook: "rb1",
		Effects: capability.Effects{Kind: capability.EffectRead},
	})
	_ = runbooks.Put("rb1", &runbook.Runbook{Steps: []runbook.Step{{ID: "s1", Tool: "t"}}})

	result, err := p.Execute(Request{Type: "status.check", TraceID: "t1"}, nil, false)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success || len(result.Steps) != 1 {
		t.Fatalf("result = %+v", result)
	}
}

func TestExecuteGitOpsWriteAcquiresAndReleasesLock(t *testing.T) {
	exec := &fakeExecutor{}
	p, caps, runbooks := newTestPlanner(t, exec)
	_ = caps.Put(&capability.Capability{
		Name: "gitops.sync.impl", Intent: "gitops.sync", Runbook: "rb1",
		Effects: capability.Effects{Kind: capability.EffectWrite, RequiresApply: true},
	})
	_ = runbooks.Put("rb1", &runbook.Runbook{Steps: []runbook.Step{{ID: "s1", Tool: "t"}}})

	req := Request{
		Type: "gitops.sync", Apply: true, Project: "acme", Target: "prod", TraceID: "t1",
		Inputs: map[string]any{"policy_override": true},
	}
	result, err := p.Execute(req, nil, false)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}

	locker := p.locker.(*fakeLocker)
	if len(locker.held) != 0 {
		t.Fatalf("expected lock to be released, held = %v", locker.held)
	}
}

func TestExecuteStopsOnErrorByDefault(t *testing.T) {
	exec := &fakeExecutor{fn: func(tool string, args map[string]any) (any, map[string]any, error) {
		return nil, nil, toolerr.New(toolerr.KindInternal, "BOOM", "boom")
	}}
	p, caps, runbooks := newTestPlanner(t, exec)
	_ = caps.Put(&capability.Capability{
		Name: "base", Intent: "ignored", Runbook: "rb-base",
		Effects: capability.Effects{Kind: capability.EffectRead},
	})
	_ = caps.Put(&capability.Capability{
		Name: "top", Intent: "top.intent", Runbook: "rb-top", DependsOn: []string{"base"},
		Effects: capability.Effects{Kind: capability.EffectRead},
	})
	_ = runbooks.Put("rb-base", &runbook.Runbook{Steps: []runbook.Step{{ID: "s1", Tool: "fails"}}})
	_ = runbooks.Put("rb-top", &runbook.Runbook{Steps: []runbook.Step{{ID: "s1", Tool: "t"}}})

	result, err := p.Execute(Request{Type: "top.intent"}, nil, false)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success {
		t.Fatal("expected overall failure")
	}
	if len(result.Steps) != 1 {
		t.Fatalf("expected execution to stop after first (base) step, got %d steps", len(result.Steps))
	}
}
