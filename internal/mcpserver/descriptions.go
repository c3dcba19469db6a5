/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package mcpserver

// Descriptions carries the one-line MCP tools/list description for every
// canonical tool, shared with the help tool's catalog so an agent sees the
// same summary whether it calls help or tools/list.
var Descriptions = map[string]string{
	"help":              "List every callable tool, its aliases, and available presets.",
	"legend":            "Return the glossary of domain terms used across results and errors.",
	"mcp_context":       "Derive or fetch cached repo context: root, tags, languages, gitops flavor.",
	"mcp_artifacts":     "Read, list, or tail durable artifacts spilled by prior tool calls.",
	"mcp_repo":          "Run an allowlisted, repo-confined command inline or as a detached job.",
	"mcp_workspace":     "Compile and run a GitOps intent end to end through the Runbook Engine.",
	"mcp_state":         "Get, set, delete, or list scoped key-value state.",
	"mcp_runbook":       "List, fetch, store, delete, or run a named multi-step runbook.",
	"mcp_alias":         "List, fetch, store, or delete a dynamic tool-name alias.",
	"mcp_preset":        "List, fetch, store, or delete a named default-args preset.",
	"mcp_audit":         "Tail the audit log or render counters in Prometheus exposition format.",
	"mcp_capability":    "List, fetch, store, or delete an intent-to-runbook capability mapping.",
	"mcp_intent":        "Compile or run a high-level intent without going through mcp_workspace.",
	"mcp_psql_manager":  "Run a read-only (or explicitly approved) statement against a Postgres profile.",
	"mcp_ssh_manager":   "Run an allowlisted command over SSH against a registered host profile.",
	"mcp_api_client":    "Send an HTTP request through a registered API client profile.",
	"mcp_pipeline":      "Trigger, poll, or wait on a CI pipeline run through a registered CI profile.",
	"mcp_env":           "Resolve non-secret environment values for a project/target pair.",
	"mcp_vault":         "Read a secret from Vault KV v2 by path.",
	"mcp_job":           "Get or list the status of detached jobs started by mcp_repo/mcp_workspace.",
	"mcp_k8s_verify":    "Verify a Deployment/StatefulSet/Rollout's rollout health in a cluster.",
	"mcp_oci_release":   "Pack and push a manifest bundle to an OCI registry profile.",
}
