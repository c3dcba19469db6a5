/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

const apiClientMaxResponseBytes = 256 * 1024

// writeMethods names the HTTP verbs treated as mutating for the apply gate.
var writeMethods = map[string]bool{
	http.MethodPost: true, http.MethodPut: true, http.MethodPatch: true, http.MethodDelete: true,
}

// APIClientTool issues arbitrary HTTP requests on behalf of a runbook or
// agent. Unlike mcp_ssh_manager/mcp_psql_manager it has no profile-backed
// credential of its own: a caller passes headers (including any bearer
// token) directly, and internal/toolexec's audit path redacts them before
// they ever reach the log.
type APIClientTool struct {
	client *http.Client
}

// NewAPIClientTool constructs the mcp_api_client handler.
func NewAPIClientTool() *APIClientTool {
	return &APIClientTool{client: &http.Client{Timeout: 30 * time.Second}}
}

// Handle implements toolexec.Handler.
func (t *APIClientTool) Handle(ctx context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "", "request":
		return t.request(ctx, args)
	default:
		return nil, unknownAction("mcp_api_client", action)
	}
}

func (t *APIClientTool) request(ctx context.Context, args map[string]any) (any, error) {
	url, err := requireString(args, "url")
	if err != nil {
		return nil, err
	}
	method := strings.ToUpper(argString(args, "method"))
	if method == "" {
		method = http.MethodGet
	}

	if writeMethods[method] && !argBool(args, "apply") {
		return nil, toolerr.Newf(toolerr.KindDenied, toolerr.CodeApplyRequired, "%s requires apply=true", method)
	}

	var body io.Reader
	if raw := argString(args, "body_base64"); raw != "" {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "body_base64: %v", err)
		}
		body = bytes.NewReader(decoded)
	} else if body2 := argString(args, "body"); body2 != "" {
		body = strings.NewReader(body2)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "build request: %v", err)
	}
	for k, v := range argMap(args, "headers") {
		if s, ok := v.(string); ok {
			req.Header.Set(k, s)
		}
	}
	if token := argString(args, "auth_token"); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeHTTPRequestFailed, "request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, apiClientMaxResponseBytes))
	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     flattenHeader(resp.Header),
		"body":        string(respBody),
		"truncated":   resp.ContentLength > apiClientMaxResponseBytes,
	}, nil
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
