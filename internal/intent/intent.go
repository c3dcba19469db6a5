/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package intent implements the Intent Planner: it translates an agent's
// high-level intent into an ordered, write-gated execution plan, matching
// capabilities against the Context Detector's tag set, expanding the
// depends_on DAG, and invoking the Runbook Engine per resolved step.
package intent

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/artifacts"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/capability"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/detect"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/paths"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/policy"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/project"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/redact"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/runbook"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/template"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

// Request is the normalized intent (request value) from spec.md §3.
type Request struct {
	Type    string          `json:"type"`
	Inputs  map[string]any  `json:"inputs"`
	Apply   bool            `json:"apply,omitempty"`
	Project string          `json:"project,omitempty"`
	Target  string          `json:"target,omitempty"`
	Context *detect.Context `json:"context,omitempty"`

	TraceID      string `json:"trace_id,omitempty"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
}

// Step is one entry in a compiled Plan.
type Step struct {
	Capability     string             `json:"capability"`
	Runbook        string             `json:"runbook"`
	ResolvedInputs map[string]any     `json:"resolved_inputs"`
	Missing        []string           `json:"missing,omitempty"`
	Effects        capability.Effects `json:"effects"`
}

// Plan is the §3 Plan entity: a topologically-sorted, write-gated step
// sequence.
type Plan struct {
	Intent  Request            `json:"intent"`
	Steps   []Step             `json:"steps"`
	Effects capability.Effects `json:"effects"`
}

// StepOutcome is one executed step's runbook result.
type StepOutcome struct {
	Capability string               `json:"capability"`
	Runbook    string               `json:"runbook"`
	Results    []runbook.StepResult `json:"results"`
	Success    bool                 `json:"success"`
	Error      string               `json:"error,omitempty"`
}

// ExecuteResult is what an "execute" action returns.
type ExecuteResult struct {
	Plan    Plan          `json:"plan"`
	Steps   []StepOutcome `json:"steps"`
	Success bool          `json:"success"`
}

// Planner wires the Capability Registry, Context Detector, project
// registry, policy evaluation, and Runbook Engine together.
type Planner struct {
	caps        *capability.Registry
	detector    *detect.Detector
	projects    *project.Registry
	runbooks    *runbook.Registry
	engine      *runbook.Engine
	locker      policy.Locker
	artifacts   *artifacts.Store
	evidenceDir string
	now         func() time.Time
}

// New constructs a Planner. projects may be nil (no registry configured).
// artifactStore may also be nil, in which case plan-evidence checks always
// fall back to the override path (see acquireGuard).
func New(caps *capability.Registry, detector *detect.Detector, projects *project.Registry, runbooks *runbook.Registry, engine *runbook.Engine, locker policy.Locker, artifactStore *artifacts.Store, evidenceDir string) *Planner {
	return &Planner{
		caps: caps, detector: detector, projects: projects,
		runbooks: runbooks, engine: engine, locker: locker, artifacts: artifactStore,
		evidenceDir: evidenceDir, now: time.Now,
	}
}

// Compile resolves req into a Plan without executing anything.
func (p *Planner) Compile(req Request) (Plan, error) {
	return p.compile(req)
}

// DryRun compiles a plan and returns it with inputs redacted for preview.
func (p *Planner) DryRun(req Request) (Plan, error) {
	plan, err := p.compile(req)
	if err != nil {
		return Plan{}, err
	}
	for i := range plan.Steps {
		plan.Steps[i].ResolvedInputs, _ = redact.Value(plan.Steps[i].ResolvedInputs).(map[string]any)
	}
	return plan, nil
}

// Execute compiles, enforces the apply gate, acquires the policy guard for
// GitOps write intents, and runs each step's runbook in DAG order.
func (p *Planner) Execute(req Request, stopOnError *bool, persistEvidence bool) (ExecuteResult, error) {
	plan, err := p.compile(req)
	if err != nil {
		return ExecuteResult{}, err
	}
	if plan.Effects.RequiresApply && !req.Apply {
		return ExecuteResult{}, toolerr.New(toolerr.KindDenied, toolerr.CodeApplyRequired,
			"this plan requires apply=true to execute").
			WithHint("re-invoke with apply: true once you've reviewed the dry_run plan")
	}

	var guard *policy.Guard
	if isGitOpsWrite(req.Type, plan.Effects) {
		guard, err = p.acquireGuard(req, plan)
		if err != nil {
			return ExecuteResult{}, err
		}
	}
	defer func() {
		if guard != nil {
			guard.Release()
		}
	}()

	stop := true
	if stopOnError != nil {
		stop = *stopOnError
	}

	result := ExecuteResult{Plan: plan, Success: true}
	for _, step := range plan.Steps {
		outcome := p.runStep(req, step)
		result.Steps = append(result.Steps, outcome)
		if !outcome.Success {
			result.Success = false
			if stop {
				break
			}
		}
	}

	if persistEvidence {
		_ = p.persistEvidence(req, plan, result)
	}
	return result, nil
}

func (p *Planner) runStep(req Request, step Step) StepOutcome {
	rb, err := p.runbooks.Get(step.Runbook)
	if err != nil {
		return StepOutcome{Capability: step.Capability, Runbook: step.Runbook, Success: false, Error: err.Error()}
	}
	results, err := p.engine.Run(runbook.RunInput{
		Runbook:      rb,
		Input:        step.ResolvedInputs,
		TraceID:      req.TraceID,
		ParentSpanID: req.ParentSpanID,
	})
	outcome := StepOutcome{Capability: step.Capability, Runbook: step.Runbook, Results: results, Success: err == nil}
	if err != nil {
		outcome.Error = err.Error()
	}
	return outcome
}

func (p *Planner) compile(req Request) (Plan, error) {
	if req.Type == "" {
		return Plan{}, toolerr.New(toolerr.KindInvalidParams, toolerr.CodeMissingInputs, "intent.type is required")
	}

	resolvedProject := req.Project
	resolvedTarget := req.Target
	if p.projects != nil && req.Project != "" {
		if r, ok := p.projects.Resolve(req.Project, req.Target); ok {
			resolvedTarget = r.Target
		}
	}

	ctx := req.Context
	if ctx == nil {
		c, err := p.detector.Get(detect.Input{Project: resolvedProject, Target: resolvedTarget})
		if err != nil {
			return Plan{}, err
		}
		ctx = &c
	}
	tagSet := tagsToSet(ctx.Tags)

	root, err := p.caps.MatchIntent(req.Type, tagSet)
	if err != nil {
		return Plan{}, err
	}
	chain, err := p.caps.ExpandDAG(root.Name)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{Intent: req}
	anyMixed, anyWrite := false, false
	requiresApply := false
	for _, c := range chain {
		resolvedInputs, missing := resolveInputs(c.Inputs, req.Inputs, req.Apply)
		plan.Steps = append(plan.Steps, Step{
			Capability:     c.Name,
			Runbook:        c.Runbook,
			ResolvedInputs: resolvedInputs,
			Missing:        missing,
			Effects:        c.Effects,
		})
		requiresApply = requiresApply || c.Effects.RequiresApply
		anyMixed = anyMixed || c.Effects.Kind == capability.EffectMixed
		anyWrite = anyWrite || c.Effects.Kind == capability.EffectWrite
	}

	kind := capability.EffectRead
	switch {
	case anyMixed:
		kind = capability.EffectMixed
	case anyWrite:
		kind = capability.EffectWrite
	}
	plan.Effects = capability.Effects{Kind: kind, RequiresApply: requiresApply}
	return plan, nil
}

// resolveInputs builds resolved_inputs per spec.md §4.4 step 6: defaults
// overlaid by remapped fields overlaid by pass-through of intent.inputs
// (when allowed), always injecting apply, then computes missing required
// fields.
func resolveInputs(in capability.Inputs, intentInputs map[string]any, apply bool) (map[string]any, []string) {
	resolved := map[string]any{}
	for k, v := range in.Defaults {
		resolved[k] = v
	}
	for target, source := range in.Map {
		if v, ok := template.Lookup(map[string]any{"intent": map[string]any{"inputs": intentInputs}}, "intent.inputs."+source); ok {
			resolved[target] = v
		}
	}
	if in.PassThrough {
		for k, v := range intentInputs {
			resolved[k] = v
		}
	}
	resolved["apply"] = apply

	var missing []string
	for _, req := range in.Required {
		if v, ok := resolved[req]; !ok || v == nil {
			missing = append(missing, req)
		}
	}
	return resolved, missing
}

func isGitOpsWrite(intentType string, effects capability.Effects) bool {
	return strings.HasPrefix(intentType, "gitops.") &&
		(effects.Kind == capability.EffectWrite || effects.Kind == capability.EffectMixed)
}

func (p *Planner) acquireGuard(req Request, plan Plan) (*policy.Guard, error) {
	var repoPolicy policy.RepoPolicy
	remoteURL := ""
	if p.projects != nil && req.Project != "" {
		if r, ok := p.projects.Resolve(req.Project, req.Target); ok {
			repoPolicy = r.Policy
			remoteURL = r.RemoteURL
		}
	}
	// callers may supply an override so a one-off plan/rollback doesn't
	// require a fresh gitops.plan artifact
	override, _ := req.Inputs["policy_override"].(bool)
	requiresPlan := req.Type == "gitops.sync" || req.Type == "gitops.rollback"

	eval := policy.NewEvaluator(repoPolicy, p.locker, p.artifacts)
	return eval.Check(policy.CheckInput{
		Project:      req.Project,
		Target:       req.Target,
		TraceID:      req.TraceID,
		RemoteURL:    remoteURL,
		Now:          p.now(),
		PlanOverride: override,
		RequiresPlan: requiresPlan,
	})
}

func (p *Planner) persistEvidence(req Request, plan Plan, result ExecuteResult) error {
	if p.evidenceDir == "" {
		return nil
	}
	redactedIntent, _ := redact.Value(map[string]any{
		"type": req.Type, "inputs": req.Inputs, "project": req.Project, "target": req.Target,
	}).(map[string]any)
	bundle := map[string]any{
		"intent":      redactedIntent,
		"effects":     plan.Effects,
		"executed_at": p.now().UTC().Format(time.RFC3339),
		"steps":       result.Steps,
		"success":     result.Success,
	}
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return err
	}
	filename := req.TraceID
	if filename == "" {
		filename = "evidence"
	}
	return paths.AtomicWriteFile(p.evidenceDir+"/"+filename+".json", data, 0o600)
}

func tagsToSet(tags []string) map[string]bool {
	out := make(map[string]bool, len(tags))
	for _, t := range tags {
		out[t] = true
	}
	return out
}
