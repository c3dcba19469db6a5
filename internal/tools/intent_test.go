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
	"testing"
)

func TestIntentToolRejectsUnknownAction(t *testing.T) {
	tool := NewIntentTool(nil)
	_, err := tool.Handle(context.Background(), "frobnicate", map[string]any{"type": "gitops.sync"})
	if err == nil {
		t.Fatal("expected an error for an unrecognized mcp_intent action")
	}
}
