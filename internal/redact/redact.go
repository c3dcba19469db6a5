/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package redact masks known credential patterns in strings, and walks
// arbitrary JSON-shaped values to redact sensitive fields before they
// reach the audit log, an error payload, or an envelope.
package redact

import (
	"fmt"
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

// maxAuditStringLen is the truncation length for long strings in audit
// entries (spec.md §4.3).
const maxAuditStringLen = 500

// sensitivePatterns mirrors the credential-hygiene pass the grounding
// repo runs over LLM tool output before it reaches a run's status fields.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)[a-zA-Z0-9\-_.~+/]+=*`),
	regexp.MustCompile(`(?i)(authorization:\s*)(bearer\s+)?[a-zA-Z0-9\-_.~+/]+=*`),
	regexp.MustCompile(`(?i)(token["\s:=]+)[a-zA-Z0-9+/]{20,}=*`),
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
	regexp.MustCompile(`(?i)(api[_-]?key["\s:=]+)[a-zA-Z0-9\-_.]{16,}`),
	regexp.MustCompile(`hvs\.[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`(?i)(aws_secret_access_key["\s:=]+)[a-zA-Z0-9/+=]{20,}`),
	regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
	regexp.MustCompile(`(?i)(password["\s:=]+)\S+`),
	regexp.MustCompile(`(?s)-----BEGIN[A-Z ]*PRIVATE KEY-----.*?-----END[A-Z ]*PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)(client-(?:certificate|key)-data:\s*)[a-zA-Z0-9+/=\n]{40,}`),
}

// sensitiveKeyPattern matches field names the envelope and audit log
// must never emit verbatim. The header/ref allowlist below is checked
// first so a field named e.g. "ref" isn't swept up by "auth" via a loose
// substring match on "authorization".
var sensitiveKeyPattern = regexp.MustCompile(`(?i)(key|token|secret|pass|pwd|auth|authorization)`)

// wholesaleRedactKeys are map-valued fields whose entire value map is
// redacted regardless of individual key names (spec.md §4.3).
var wholesaleRedactKeys = map[string]bool{"env": true, "variables": true}

// allowlistKeys are field names that look sensitive by pattern but carry
// non-secret identifiers in this domain (a header *name*, a profile
// reference) and so are left alone.
var allowlistKeys = map[string]bool{"ref": true, "header_name": true}

// binaryBodyFields names fields that carry an opaque request/patch body
// rather than human-readable text (spec.md §4.3). Sanitize's regexes don't
// apply to this shape of content and Truncate would cut it at an arbitrary
// byte rather than a meaningful boundary, so these are replaced wholesale
// with a tagged, length-only placeholder instead.
var binaryBodyFields = map[string]string{
	"body_base64": "base64",
	"stdin":       "stdin",
	"patch":       "patch",
}

// Sanitize scrubs known secret patterns out of free text, preserving a
// matched prefix label (e.g. "token: ") where present for readability.
func Sanitize(text string) string {
	result := text
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			loc := pattern.FindStringSubmatchIndex(match)
			if len(loc) >= 4 && loc[2] >= 0 {
				prefix := match[loc[2]:loc[3]]
				return prefix + placeholder
			}
			return placeholder
		})
	}
	return result
}

// ContainsSecret reports whether text matches a known secret pattern.
func ContainsSecret(text string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// IsSensitiveKey reports whether a field name should be treated as
// carrying a credential: used by both audit redaction and the Tool
// Execution Envelope's artifact-spill suppression rule.
func IsSensitiveKey(key string) bool {
	if allowlistKeys[strings.ToLower(key)] {
		return false
	}
	return sensitiveKeyPattern.MatchString(key)
}

// Truncate clips s to maxAuditStringLen, the audit-entry bound from
// spec.md §8.
func Truncate(s string) string {
	if len(s) <= maxAuditStringLen {
		return s
	}
	return s[:maxAuditStringLen]
}

// Value performs a deep walk over a JSON-shaped value (as decoded by
// encoding/json into map[string]any / []any / scalars), redacting any key
// matching IsSensitiveKey, wholesale-redacting env/variables maps,
// replacing binaryBodyFields with a [tag:N] placeholder, and truncating
// long strings. It never mutates the input.
func Value(v any) any {
	return redactAny(v, "")
}

func redactAny(v any, key string) any {
	switch t := v.(type) {
	case map[string]any:
		if wholesaleRedactKeys[strings.ToLower(key)] {
			out := make(map[string]any, len(t))
			for k := range t {
				out[k] = placeholder
			}
			return out
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			if IsSensitiveKey(k) {
				out[k] = placeholder
				continue
			}
			out[k] = redactAny(val, k)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = redactAny(val, key)
		}
		return out
	case string:
		if tag, ok := binaryBodyFields[strings.ToLower(key)]; ok {
			return fmt.Sprintf("[%s:%d]", tag, len(t))
		}
		s := Sanitize(t)
		return Truncate(s)
	default:
		return t
	}
}
