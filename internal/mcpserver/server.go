/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package mcpserver hosts the Tool Execution Envelope behind the Model
// Context Protocol: every canonical tool name and every static alias gets
// its own tools/list entry, all routed through the same toolexec.Executor
// so an MCP tools/call is audited and spilled exactly like any other
// invocation path.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/alias"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolexec"
)

// Version is injected from build metadata.
var Version = "dev"

// Server exposes a toolexec.Executor over stdio MCP.
type Server struct {
	mcp      *mcp.Server
	executor *toolexec.Executor
}

// New builds the MCP server and registers one tool per canonical name
// (from executor.Tools()) plus every built-in short alias, so an agent
// that only ever calls tools/list sees the same surface help/mcp_alias
// describe. descs supplies the tools/list description text; a missing
// entry falls back to a generic summary rather than failing registration.
func New(name string, executor *toolexec.Executor, descs map[string]string) *Server {
	impl := &mcp.Implementation{Name: name, Version: Version}
	s := &Server{
		mcp:      mcp.NewServer(impl, nil),
		executor: executor,
	}

	for _, canonical := range executor.Tools() {
		s.register(canonical, canonical, descs[canonical])
	}
	for short, rec := range alias.StaticAliases() {
		s.register(short, rec.Target, descs[rec.Target])
	}
	return s
}

func (s *Server) register(name, invokeAs, description string) {
	if description == "" {
		description = "Invoke the " + invokeAs + " tool through the Tool Execution Envelope."
	}
	handler := s.handlerFor(invokeAs)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: description}, handler)
}

// handlerFor closes over the canonical/alias name a tools/list entry was
// registered under, so every invocation — however it was named — is
// dispatched through the executor as that exact name and lets alias
// resolution (static or dynamic) run again inside Call.
func (s *Server) handlerFor(invokeAs string) func(context.Context, *mcp.CallToolRequest, map[string]any) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		traceID, _ := args["trace_id"].(string)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		parentSpanID, _ := args["parent_span_id"].(string)

		env := s.executor.Call(ctx, toolexec.CallInput{
			Tool: invokeAs, Args: args, TraceID: traceID, ParentSpanID: parentSpanID,
		})
		return jsonToolResult(wireEnvelope(env))
	}
}

// wireEnvelope reshapes a toolexec.Envelope into the transport-level
// shape spec.md §6 describes for tools/call: top-level tool/action/trace
// plus a result that has had any artifact_uri_context, artifact_uri_json,
// and normalization keys a handler set on its result map hoisted up
// alongside it, instead of nested one level further down.
type wireTrace struct {
	TraceID      string `json:"trace_id"`
	SpanID       string `json:"span_id"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
}

type wireEnvelopeBody struct {
	Tool              string         `json:"tool"`
	Action            string         `json:"action,omitempty"`
	Trace             wireTrace      `json:"trace"`
	Result            any            `json:"result,omitempty"`
	Error             any            `json:"error,omitempty"`
	ArtifactURIContext string        `json:"artifact_uri_context,omitempty"`
	ArtifactURIJSON   string         `json:"artifact_uri_json,omitempty"`
	Normalization     map[string]any `json:"normalization,omitempty"`
}

func wireEnvelope(env toolexec.Envelope) wireEnvelopeBody {
	body := wireEnvelopeBody{
		Tool:   env.Meta.Tool,
		Action: env.Meta.Action,
		Trace: wireTrace{
			TraceID: env.Meta.TraceID, SpanID: env.Meta.SpanID, ParentSpanID: env.Meta.ParentSpanID,
		},
		Result: env.Result,
	}
	if env.Error != nil {
		body.Error = env.Error
	}
	if m, ok := env.Result.(map[string]any); ok {
		rest := make(map[string]any, len(m))
		for k, v := range m {
			switch k {
			case "artifact_uri_context":
				if s, ok := v.(string); ok {
					body.ArtifactURIContext = s
				}
			case "artifact_uri_json":
				if s, ok := v.(string); ok {
					body.ArtifactURIJSON = s
				}
			case "normalization":
				if n, ok := v.(map[string]any); ok {
					body.Normalization = n
				}
			default:
				rest[k] = v
			}
		}
		body.Result = rest
	}
	return body
}

func jsonToolResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return textToolResult(string(data)), nil, nil
}

func textToolResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// Run serves tools/list and tools/call over stdio until stdin closes.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}
