/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package state

import (
	"encoding/json"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

func errInvalidScope(scope Scope) error {
	return toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "invalid write scope %q, expected session or persistent", scope)
}

// checkQuota enforces max-keys / max-value-size / max-total-size, mirroring
// the per-agent KV quota the teacher enforces for its CRD-backed store,
// generalized from a fixed per-agent budget to the whole scope.
func checkQuota(m map[string]entry, key string, value any, maxKeys, maxValueBytes, maxTotalBytes int) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "value for key %q is not JSON-serializable: %v", key, err)
	}
	if len(encoded) > maxValueBytes {
		return toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "value for key %q exceeds max size %d bytes", key, maxValueBytes)
	}

	_, exists := m[key]
	if !exists && len(m) >= maxKeys {
		return toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "scope exceeds max key count %d", maxKeys)
	}

	total := len(encoded)
	for k, e := range m {
		if k == key {
			continue
		}
		if b, err := json.Marshal(e.Value); err == nil {
			total += len(b)
		}
	}
	if total > maxTotalBytes {
		return toolerr.Newf(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "scope exceeds max total size %d bytes", maxTotalBytes)
	}
	return nil
}
