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
	"strings"
	"time"

	"github.com/prometheus/common/expfmt"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/audit"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/metrics"
)

// AuditTool exposes the audit log's filtered tail, and the metrics
// registry dump, as mcp_audit. The process has no HTTP listener for a
// scraper to hit, so `metrics` renders the same text exposition format a
// scraper would see, on demand.
type AuditTool struct {
	path    string
	metrics *metrics.Registry
}

// NewAuditTool constructs the mcp_audit handler.
func NewAuditTool(path string, reg *metrics.Registry) *AuditTool {
	return &AuditTool{path: path, metrics: reg}
}

// Handle implements toolexec.Handler.
func (t *AuditTool) Handle(_ context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "", "tail":
		filter := audit.Filter{
			Tool:   argString(args, "tool"),
			Status: argString(args, "status"),
		}
		if since := argString(args, "since"); since != "" {
			if ts, err := time.Parse(time.RFC3339, since); err == nil {
				filter.Since = ts
			}
		}
		return audit.Tail(t.path, argInt(args, "limit", 100), filter)
	case "metrics":
		families, err := t.metrics.Gather()
		if err != nil {
			return nil, err
		}
		var sb strings.Builder
		enc := expfmt.NewEncoder(&sb, expfmt.NewFormat(expfmt.TypeTextPlain))
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				return nil, err
			}
		}
		return map[string]any{"metrics": sb.String()}, nil
	default:
		return nil, unknownAction("mcp_audit", action)
	}
}
