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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/profiles"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

// PipelineTool triggers and polls CI runs against a named pipeline
// profile (a provider base URL plus a bearer token), the wait-for-CI leg
// of a gitops.propose/gitops.release runbook.
type PipelineTool struct {
	profiles *profiles.Store
	client   *http.Client
}

// NewPipelineTool constructs the mcp_pipeline handler.
func NewPipelineTool(store *profiles.Store) *PipelineTool {
	return &PipelineTool{profiles: store, client: &http.Client{Timeout: 20 * time.Second}}
}

// Handle implements toolexec.Handler.
func (t *PipelineTool) Handle(ctx context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "trigger":
		return t.trigger(ctx, args)
	case "", "status":
		return t.status(ctx, args)
	case "wait":
		return t.wait(ctx, args)
	default:
		return nil, unknownAction("mcp_pipeline", action)
	}
}

func (t *PipelineTool) trigger(ctx context.Context, args map[string]any) (any, error) {
	if !argBool(args, "apply") {
		return nil, toolerr.New(toolerr.KindDenied, toolerr.CodeApplyRequired, "trigger requires apply=true")
	}
	profileName, err := requireString(args, "profile")
	if err != nil {
		return nil, err
	}
	ref, err := requireString(args, "ref")
	if err != nil {
		return nil, err
	}
	cred, err := t.profiles.Get(profileName, "ci")
	if err != nil {
		return nil, err
	}
	baseURL, _ := cred.Data["base_url"].(string)

	payload, _ := json.Marshal(map[string]any{"ref": ref, "inputs": argMap(args, "inputs")})
	resp, err := t.doRequest(ctx, cred, http.MethodPost, baseURL+"/runs", payload)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (t *PipelineTool) status(ctx context.Context, args map[string]any) (any, error) {
	profileName, err := requireString(args, "profile")
	if err != nil {
		return nil, err
	}
	runID, err := requireString(args, "run_id")
	if err != nil {
		return nil, err
	}
	cred, err := t.profiles.Get(profileName, "ci")
	if err != nil {
		return nil, err
	}
	baseURL, _ := cred.Data["base_url"].(string)
	return t.doRequest(ctx, cred, http.MethodGet, baseURL+"/runs/"+runID, nil)
}

func (t *PipelineTool) wait(ctx context.Context, args map[string]any) (any, error) {
	pollInterval := time.Duration(argInt(args, "poll_interval_ms", 5000)) * time.Millisecond
	timeout := time.Duration(argInt(args, "timeout_ms", 300000)) * time.Millisecond
	deadline := time.Now().Add(timeout)

	for {
		result, err := t.status(ctx, args)
		if err != nil {
			return nil, err
		}
		status, _ := result.(map[string]any)["status"].(string)
		switch status {
		case "success", "failed", "cancelled", "error":
			return result, nil
		}
		if time.Now().After(deadline) {
			return map[string]any{"status": "timeout", "last": result}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (t *PipelineTool) doRequest(ctx context.Context, cred *profiles.Resolved, method, url string, body []byte) (map[string]any, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := cred.Secrets["token"]; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodePipelineProviderError, "pipeline provider request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 128*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodePipelineProviderError, "pipeline provider responded %d: %s", resp.StatusCode, string(raw))
	}

	var decoded map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("decode pipeline response: %w", err)
		}
	}
	return decoded, nil
}
