/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package toolexec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/artifacts"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/redact"
)

const previewLen = 200

// spillWalker implements §4.3's spill rule: walk the shaped result,
// replacing any string whose byte length exceeds maxInlineBytes with a
// placeholder, writing the captured prefix to the artifact store unless
// the field (or any ancestor field) is sensitive, and never producing
// more than maxSpills artifacts for one call.
type spillWalker struct {
	store   *artifacts.Store
	traceID string
	spanID  string

	maxInlineBytes  int
	maxCaptureBytes int
	maxSpills       int

	spillCount int
}

func (w *spillWalker) walk(v any, key string) any {
	return w.walkSensitive(v, key, redact.IsSensitiveKey(key))
}

func (w *spillWalker) walkSensitive(v any, key string, sensitive bool) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = w.walkSensitive(val, k, sensitive || redact.IsSensitiveKey(k))
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = w.walkSensitive(val, key, sensitive)
		}
		return out
	case string:
		if len(t) <= w.maxInlineBytes {
			return t
		}
		return w.spillString(t, sensitive)
	default:
		return v
	}
}

func (w *spillWalker) spillString(s string, sensitive bool) map[string]any {
	data := []byte(s)
	captured := data
	capturedTruncated := false
	if len(captured) > w.maxCaptureBytes {
		captured = captured[:w.maxCaptureBytes]
		capturedTruncated = true
	}
	sum := sha256.Sum256(data)

	placeholder := map[string]any{
		"truncated": true,
		"bytes":     len(data),
		"sha256":    hex.EncodeToString(sum[:]),
		"preview":   headRunes(s, previewLen),
		"tail":      tailRunes(s, previewLen),
		"artifact":  nil,
	}

	if sensitive || w.store == nil || !w.store.Available() || w.spillCount >= w.maxSpills {
		return placeholder
	}
	ref, err := w.store.Write(w.traceID, w.spanID, fmt.Sprintf("spill-%d.txt", w.spillCount+1), captured)
	if err != nil {
		return placeholder
	}
	w.spillCount++
	ref.Truncated = capturedTruncated
	placeholder["artifact"] = ref
	return placeholder
}

// headRunes/tailRunes slice on rune boundaries so a multi-byte UTF-8
// character never gets split across the preview/tail cut point.
func headRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func tailRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
