/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package paths locates sentryfrogg's state files and writes them
// atomically. Every store (profiles, state, audit, jobs, capabilities,
// context, aliases, presets, projects) owns exactly one file under the
// base directory and goes through AtomicWriteFile to persist it.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultBaseDirName is used when MCP_PROFILES_DIR and XDG_STATE_HOME are
// both unset.
const defaultBaseDirName = "sentryfrogg"

// Layout resolves every on-disk path sentryfrogg needs from the
// environment, falling back to sane defaults under the XDG state home.
type Layout struct {
	BaseDir         string
	ProfilesPath    string
	ProfileKeyPath  string
	StatePath       string
	ProjectsPath    string
	RunbooksPath    string
	CapabilitiesPath string
	ContextPath     string
	AliasesPath     string
	PresetsPath     string
	AuditPath       string
	JobsPath        string
	CacheDir        string
	EvidenceDir     string
}

// NewLayout resolves the full file layout from the process environment.
func NewLayout() (*Layout, error) {
	base := firstNonEmpty(os.Getenv("MCP_PROFILES_DIR"), xdgStateHome())
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve base dir: %w", err)
		}
		base = filepath.Join(home, ".local", "state", defaultBaseDirName)
	}
	if err := os.MkdirAll(base, 0o700); err != nil {
		return nil, fmt.Errorf("create base dir %s: %w", base, err)
	}

	l := &Layout{
		BaseDir:          base,
		ProfilesPath:     envOrJoin("MCP_PROFILES_DIR", base, "profiles.json"),
		ProfileKeyPath:   envOrJoin("MCP_PROFILE_KEY_PATH", base, ".mcp_profiles.key"),
		StatePath:        envOrJoin("MCP_STATE_PATH", base, "state.json"),
		ProjectsPath:     envOrJoin("MCP_PROJECTS_PATH", base, "projects.json"),
		RunbooksPath:     envOrJoin("MCP_RUNBOOKS_PATH", base, "runbooks.json"),
		CapabilitiesPath: envOrJoin("MCP_CAPABILITIES_PATH", base, "capabilities.json"),
		ContextPath:      envOrJoin("MCP_CONTEXT_PATH", base, "context.json"),
		AliasesPath:      envOrJoin("MCP_ALIASES_PATH", base, "aliases.json"),
		PresetsPath:      envOrJoin("MCP_PRESETS_PATH", base, "presets.json"),
		AuditPath:        envOrJoin("MCP_AUDIT_PATH", base, "audit.jsonl"),
		JobsPath:         envOrJoin("MCP_JOBS_PATH", base, "jobs.json"),
		CacheDir:         firstNonEmpty(os.Getenv("MCP_CACHE_DIR"), filepath.Join(base, "cache")),
		EvidenceDir:      firstNonEmpty(os.Getenv("MCP_EVIDENCE_DIR"), filepath.Join(base, "evidence")),
	}
	if err := os.MkdirAll(l.CacheDir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.MkdirAll(l.EvidenceDir, 0o700); err != nil {
		return nil, fmt.Errorf("create evidence dir: %w", err)
	}
	return l, nil
}

// envOrJoin honors an explicit env var naming a file path outright, or
// falls back to base/name.
func envOrJoin(envVar, base, name string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return filepath.Join(base, name)
}

func xdgStateHome() string {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return filepath.Join(v, defaultBaseDirName)
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// AtomicWriteFile writes data to path by writing a sibling temp file,
// fsyncing it, then renaming it into place. The rename is atomic on POSIX
// filesystems, so readers never observe a partially-written file.
func AtomicWriteFile(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	cleanup = false
	return nil
}
