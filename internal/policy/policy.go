/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package policy gates GitOps-typed write intents: a remote allowlist, a
// Kubernetes namespace allowlist, cron-like change windows, an advisory
// per-(project, target) lock, and a diff-before-apply check against a
// recent gitops.plan artifact.
package policy

import (
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/artifacts"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

// DefaultLockTTL is policy.lock.ttl_ms's default.
const DefaultLockTTL = 10 * time.Minute

// ChangeWindow is one entry in policy.change_windows[]: a cron-like
// expression (standard 5-field crontab syntax) plus a duration the window
// stays open starting at each firing.
type ChangeWindow struct {
	Cron     string        `json:"cron"`
	Duration time.Duration `json:"duration"`
}

// RepoPolicy is the §4.9 policy document for one (project, target).
type RepoPolicy struct {
	AllowedRemotes    []string       `json:"allowed_remotes,omitempty"`
	AllowedNamespaces []string       `json:"allowed_namespaces,omitempty"`
	ChangeWindows     []ChangeWindow `json:"change_windows,omitempty"`
	LockEnabled       *bool          `json:"lock_enabled,omitempty"`
	LockTTLMs         int            `json:"lock_ttl_ms,omitempty"`
}

func (p RepoPolicy) lockEnabled() bool {
	return p.LockEnabled == nil || *p.LockEnabled
}

func (p RepoPolicy) lockTTL() time.Duration {
	if p.LockTTLMs <= 0 {
		return DefaultLockTTL
	}
	return time.Duration(p.LockTTLMs) * time.Millisecond
}

// Locker is the narrow State Store surface policy needs for advisory
// locking, kept local so this package doesn't import internal/state's
// full API surface.
type Locker interface {
	AcquireLock(project, target, holder string, ttl time.Duration) error
	ReleaseLock(project, target, holder string) error
}

// Guard is an acquired policy lock; Release is idempotent and safe to call
// from a defer regardless of whether Acquire succeeded.
type Guard struct {
	locker          Locker
	project, target string
	holder          string
	acquired        bool
}

// Release is always safe to call, including on a Guard that never
// successfully acquired its lock.
func (g *Guard) Release() {
	if g == nil || !g.acquired {
		return
	}
	_ = g.locker.ReleaseLock(g.project, g.target, g.holder)
}

// CheckInput is everything a single policy evaluation needs.
type CheckInput struct {
	Project       string
	Target        string
	TraceID       string
	RemoteURL     string
	Namespaces    []string
	Now           time.Time
	PlanOverride  bool // explicit override flag bypassing diff-before-apply
	RequiresPlan  bool // true for gitops.sync / gitops.rollback
}

// Evaluator runs the §4.9 checks for one (project, target) policy document.
type Evaluator struct {
	policy    RepoPolicy
	locker    Locker
	artifacts *artifacts.Store
}

// NewEvaluator constructs an Evaluator for a single resolved RepoPolicy.
func NewEvaluator(p RepoPolicy, locker Locker, artifactStore *artifacts.Store) *Evaluator {
	return &Evaluator{policy: p, locker: locker, artifacts: artifactStore}
}

// Check runs every applicable gate and, on success, acquires the advisory
// lock, returning a Guard whose Release must be deferred by the caller in
// every exit path.
func (e *Evaluator) Check(in CheckInput) (*Guard, error) {
	if err := e.checkRemote(in.RemoteURL); err != nil {
		return nil, err
	}
	if err := e.checkNamespaces(in.Namespaces); err != nil {
		return nil, err
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	if err := e.checkWindow(now); err != nil {
		return nil, err
	}
	if in.RequiresPlan && !in.PlanOverride {
		if err := e.checkPlanEvidence(in.TraceID); err != nil {
			return nil, err
		}
	}
	return e.acquireLock(in)
}

func (e *Evaluator) checkRemote(remoteURL string) error {
	if len(e.policy.AllowedRemotes) == 0 || remoteURL == "" {
		return nil
	}
	norm := normalizeRemote(remoteURL)
	for _, allowed := range e.policy.AllowedRemotes {
		if normalizeRemote(allowed) == norm {
			return nil
		}
	}
	return toolerr.Newf(toolerr.KindDenied, toolerr.CodePolicyRemoteDenied, "remote %s is not in the allowed_remotes list", remoteURL).
		WithHint("add the remote to policy.repo.allowed_remotes for this target")
}

// checkNamespaces is exposed for the controller runbook to apply
// policy.kubernetes.allowed_namespaces against the resources a sync/verify
// step is about to touch.
func (e *Evaluator) checkNamespaces(namespaces []string) error {
	if len(e.policy.AllowedNamespaces) == 0 {
		return nil
	}
	allowed := map[string]bool{}
	for _, ns := range e.policy.AllowedNamespaces {
		allowed[ns] = true
	}
	for _, ns := range namespaces {
		if !allowed[ns] {
			return toolerr.Newf(toolerr.KindDenied, toolerr.CodePolicyNamespaceDenied, "namespace %s is not in the allowed_namespaces list", ns)
		}
	}
	return nil
}

func (e *Evaluator) checkWindow(now time.Time) error {
	if len(e.policy.ChangeWindows) == 0 {
		return nil
	}
	for _, w := range e.policy.ChangeWindows {
		if inWindow(w, now) {
			return nil
		}
	}
	return toolerr.New(toolerr.KindDenied, toolerr.CodePolicyWindowDenied, "no configured change window is currently open").
		WithHint("retry during a window listed in policy.change_windows")
}

func inWindow(w ChangeWindow, now time.Time) bool {
	schedule, err := cron.ParseStandard(w.Cron)
	if err != nil {
		return false
	}
	// A window is open if its most recent firing, looking back at most one
	// schedule period, is still within w.Duration of now.
	probe := now.Add(-w.Duration)
	next := schedule.Next(probe)
	return !next.After(now)
}

func (e *Evaluator) checkPlanEvidence(traceID string) error {
	if e.artifacts == nil || !e.artifacts.Available() {
		return nil
	}
	prefix := "runs/" + traceID
	refs, err := e.artifacts.List(prefix, artifacts.DefaultListLimit)
	if err != nil {
		return nil
	}
	for _, r := range refs {
		if strings.Contains(r.Rel, "gitops.plan") {
			return nil
		}
	}
	return toolerr.New(toolerr.KindDenied, toolerr.CodePlanEvidenceMissing, "no gitops.plan artifact found for this trace_id").
		WithHint("run gitops.plan first, or set the override flag explicitly")
}

func (e *Evaluator) acquireLock(in CheckInput) (*Guard, error) {
	g := &Guard{locker: e.locker, project: in.Project, target: in.Target, holder: in.TraceID}
	if !e.policy.lockEnabled() {
		return g, nil
	}
	if err := e.locker.AcquireLock(in.Project, in.Target, in.TraceID, e.policy.lockTTL()); err != nil {
		return nil, err
	}
	g.acquired = true
	return g, nil
}

func normalizeRemote(remote string) string {
	remote = strings.TrimSpace(remote)
	remote = strings.TrimSuffix(remote, ".git")
	if u, err := url.Parse(remote); err == nil && u.Host != "" {
		return strings.ToLower(u.Host + u.Path)
	}
	// scp-like syntax: git@host:path
	if i := strings.Index(remote, "@"); i >= 0 {
		rest := remote[i+1:]
		rest = strings.Replace(rest, ":", "/", 1)
		return strings.ToLower(rest)
	}
	return strings.ToLower(remote)
}
