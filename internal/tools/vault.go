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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

// VaultTool reads secret material from a KV-v2-shaped HashiCorp Vault
// backend. It implements internal/profiles.VaultClient, so the same
// instance both resolves ref:vault: indirections inside profiles.json and
// backs the mcp_vault tool's own `read` action for direct agent use.
type VaultTool struct {
	addr   string
	token  string
	client *http.Client
}

// NewVaultTool constructs the mcp_vault handler. addr/token authenticate
// the process itself to Vault; individual tool calls never see the token.
func NewVaultTool(addr, token string) *VaultTool {
	return &VaultTool{addr: strings.TrimSuffix(addr, "/"), token: token, client: &http.Client{Timeout: 10 * time.Second}}
}

// Read implements profiles.VaultClient. vaultProfile is accepted for
// parity with the interface but unused here: this tool speaks to a
// single configured Vault address rather than routing by profile name.
func (t *VaultTool) Read(vaultProfile, path string) (string, error) {
	value, err := t.readPath(context.Background(), path)
	if err != nil {
		return "", toolerr.Newf(toolerr.KindInternal, toolerr.CodeVaultReadFailed, "vault read %s: %v", path, err)
	}
	return value, nil
}

// Handle implements toolexec.Handler.
func (t *VaultTool) Handle(ctx context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "", "read":
		path, err := requireString(args, "path")
		if err != nil {
			return nil, err
		}
		value, err := t.readPath(ctx, path)
		if err != nil {
			return nil, toolerr.Newf(toolerr.KindInternal, toolerr.CodeVaultReadFailed, "vault read %s: %v", path, err)
		}
		return map[string]any{"value": value}, nil
	default:
		return nil, unknownAction("mcp_vault", action)
	}
}

// kvV2Response is the subset of a Vault KV-v2 read response this tool
// needs; `value` is the conventional single-secret key this process
// writes and reads under.
type kvV2Response struct {
	Data struct {
		Data map[string]any `json:"data"`
	} `json:"data"`
}

func (t *VaultTool) readPath(ctx context.Context, path string) (string, error) {
	if t.addr == "" {
		return "", fmt.Errorf("vault not configured (VAULT_ADDR unset)")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.addr+"/v1/"+strings.TrimPrefix(path, "/"), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Vault-Token", t.token)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("vault responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed kvV2Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse vault response: %w", err)
	}
	value, ok := parsed.Data.Data["value"].(string)
	if !ok {
		return "", fmt.Errorf("secret at %s has no string \"value\" field", path)
	}
	return value, nil
}
