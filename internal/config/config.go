/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package config reads the process-wide tunables from the environment once,
// at startup, into a single Config struct every component is constructed
// from.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Default budgets, named after their governing env var (spec.md §6).
const (
	DefaultMaxInlineBytes     = 16 * 1024
	DefaultMaxCaptureBytes    = 256 * 1024
	DefaultMaxSpills          = 20
	DefaultToolCallTimeoutMs  = 55000
)

// Config holds every tunable sentryfrogg reads from the environment.
type Config struct {
	// ContextRepoRoot backs the Artifact Store and the Safe Runner's
	// repo_root containment. Empty means both are effectively disabled
	// per their own component-specific rules.
	ContextRepoRoot string

	MaxInlineBytes        int
	MaxCaptureBytes       int
	MaxSpills             int
	ToolCallTimeoutMs     int
	RepoExecMaxCaptureBytes int
	RepoExecMaxInlineBytes  int

	AllowSecretExport bool
	RepoAllowedCommands []string
	LogLevel          string

	// VaultAddr/VaultToken authenticate the process itself to the secret
	// backend; they resolve ref:vault: indirections inside profiles.json
	// and are never exposed through any tool's args or result.
	VaultAddr  string
	VaultToken string
}

// Load reads Config from the process environment, applying every default
// named in spec.md §6.
func Load() *Config {
	c := &Config{
		ContextRepoRoot:   firstNonEmpty(os.Getenv("SF_CONTEXT_REPO_ROOT"), os.Getenv("SENTRYFROGG_CONTEXT_REPO_ROOT")),
		MaxInlineBytes:    envInt("SF_MAX_INLINE_BYTES", DefaultMaxInlineBytes),
		MaxCaptureBytes:   envInt("SF_MAX_CAPTURE_BYTES", DefaultMaxCaptureBytes),
		MaxSpills:         envInt("SF_MAX_SPILLS", DefaultMaxSpills),
		ToolCallTimeoutMs: envInt("SF_TOOL_CALL_TIMEOUT_MS", DefaultToolCallTimeoutMs),
		AllowSecretExport: envBool("SF_ALLOW_SECRET_EXPORT") || envBool("SENTRYFROGG_ALLOW_SECRET_EXPORT"),
		LogLevel:          firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
		VaultAddr:         os.Getenv("VAULT_ADDR"),
		VaultToken:        os.Getenv("VAULT_TOKEN"),
	}
	c.RepoExecMaxCaptureBytes = envInt("SF_REPO_EXEC_MAX_CAPTURE_BYTES", c.MaxCaptureBytes)
	c.RepoExecMaxInlineBytes = envInt("SF_REPO_EXEC_MAX_INLINE_BYTES", c.MaxInlineBytes)
	if raw := os.Getenv("SF_REPO_ALLOWED_COMMANDS"); raw != "" {
		for _, cmd := range strings.Split(raw, ",") {
			cmd = strings.TrimSpace(cmd)
			if cmd != "" {
				c.RepoAllowedCommands = append(c.RepoAllowedCommands, cmd)
			}
		}
	}
	return c
}

func envInt(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func envBool(name string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
