/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package tools

import (
	"context"
	"sort"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/alias"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/capability"
)

// glossary mirrors the control plane's own glossary so an agent can
// self-orient in one call instead of guessing at terminology across
// several tool descriptions.
var glossary = map[string]string{
	"artifact":    "a file written under the context root with a stable artifact:// URI and sandboxed read operations.",
	"capability":  "the unit of plannable work: binds an intent type to a runbook plus input/effect metadata.",
	"intent":      "a typed request from the agent; compiles to a plan through capabilities.",
	"plan":        "topologically-ordered list of capability steps with aggregated effects.",
	"runbook":     "declarative sequence of tool calls with templates, predicates, and bounded retries.",
	"effects":     "{read, write, mixed} classification deciding whether apply=true is required.",
	"operatorless": "policy mode in which full release loops run without human prompts; safety is enforced by declared policy, not interactive approval.",
	"write-gate":  "the runtime check that refuses to execute write/mixed plans unless apply=true.",
	"sensitive key": "a field name matching the credential pattern, causing redaction in audit and suppression of artifact spill.",
	"trace / span": "correlation ids attached to every tool call and propagated to runbook steps and subprocesses.",
}

// ToolCatalogEntry is one help.list entry.
type ToolCatalogEntry struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
	Aliases     []string       `json:"aliases,omitempty"`
}

// HelpTool implements `help` and `legend`: the two orientation surfaces
// an agent calls before it knows anything else about the process.
type HelpTool struct {
	liveTools    func() []string
	descriptions map[string]string
	schemas      map[string]map[string]any
	aliases      *alias.Registry
	capabilities *capability.Registry
}

// NewHelpTool constructs the help/legend handler. liveTools is the
// executor's own Tools() func, so the catalog always matches what is
// actually registered rather than a list hand-maintained here.
func NewHelpTool(liveTools func() []string, descriptions map[string]string, schemas map[string]map[string]any, aliases *alias.Registry, capabilities *capability.Registry) *HelpTool {
	return &HelpTool{liveTools: liveTools, descriptions: descriptions, schemas: schemas, aliases: aliases, capabilities: capabilities}
}

// HandleHelp implements toolexec.Handler for the "help" tool: the live
// tool catalog.
func (t *HelpTool) HandleHelp(_ context.Context, _ string, _ map[string]any) (any, error) {
	aliasesByTarget := map[string][]string{}
	for name, rec := range alias.StaticAliases() {
		aliasesByTarget[rec.Target] = append(aliasesByTarget[rec.Target], name)
	}
	if t.aliases != nil {
		for _, name := range t.aliases.List() {
			if rec, ok := t.aliases.Resolve(name); ok {
				aliasesByTarget[rec.Target] = append(aliasesByTarget[rec.Target], name)
			}
		}
	}

	names := t.liveTools()
	sort.Strings(names)
	catalog := make([]ToolCatalogEntry, 0, len(names))
	for _, name := range names {
		entry := ToolCatalogEntry{
			Name:        name,
			Description: t.descriptions[name],
			InputSchema: t.schemas[name],
		}
		if aka := aliasesByTarget[name]; len(aka) > 0 {
			sort.Strings(aka)
			entry.Aliases = aka
		}
		catalog = append(catalog, entry)
	}
	return map[string]any{"tools": catalog}, nil
}

// HandleLegend implements toolexec.Handler for the "legend" tool: the
// glossary plus every currently-loaded capability name, so an agent can
// map a capability it sees in a plan back to the vocabulary the rest of
// the tool catalog uses.
func (t *HelpTool) HandleLegend(_ context.Context, _ string, _ map[string]any) (any, error) {
	var capNames []string
	if t.capabilities != nil {
		for _, c := range t.capabilities.List() {
			capNames = append(capNames, c.Name)
		}
		sort.Strings(capNames)
	}
	return map[string]any{
		"glossary":     glossary,
		"capabilities": capNames,
	}, nil
}
