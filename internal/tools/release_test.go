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

func TestReleaseToolPushRequiresApply(t *testing.T) {
	tool := NewReleaseTool(newTestProfileStore(t))

	_, err := tool.Handle(context.Background(), "push", map[string]any{
		"registry_profile": "reg1", "repo": "releases/web", "manifests_base64": "aGk=",
	})
	if err == nil {
		t.Fatal("expected push without apply=true to be denied")
	}
}

func TestReleaseToolPushRejectsInvalidBase64(t *testing.T) {
	tool := NewReleaseTool(newTestProfileStore(t))

	_, err := tool.Handle(context.Background(), "push", map[string]any{
		"registry_profile": "reg1", "repo": "releases/web",
		"manifests_base64": "not-valid-base64!!", "apply": true,
	})
	if err == nil {
		t.Fatal("expected an error for malformed manifests_base64")
	}
}

func TestSummarizeManifestsCountsDocumentsAndSkipsJunk(t *testing.T) {
	stream := []byte(`
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  namespace: prod
---
# a stray comment-only document, nothing to parse
---
apiVersion: v1
kind: Service
metadata:
  name: web
  namespace: prod
`)
	refs := summarizeManifests(stream)
	if len(refs) != 2 {
		t.Fatalf("expected 2 manifest refs, got %d: %+v", len(refs), refs)
	}
	if refs[0].Kind != "Deployment" || refs[0].Name != "web" || refs[0].Namespace != "prod" {
		t.Fatalf("unexpected first ref: %+v", refs[0])
	}
	if refs[1].Kind != "Service" {
		t.Fatalf("unexpected second ref: %+v", refs[1])
	}
}
