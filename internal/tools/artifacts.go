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

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/artifacts"
)

// ArtifactsTool exposes the Artifact Store's read surface as mcp_artifacts.
// Writes only ever happen internally (envelope spill, runner capture); an
// agent only ever reads this tree back.
type ArtifactsTool struct {
	store *artifacts.Store
}

// NewArtifactsTool constructs the mcp_artifacts handler.
func NewArtifactsTool(store *artifacts.Store) *ArtifactsTool {
	return &ArtifactsTool{store: store}
}

// Handle implements toolexec.Handler.
func (t *ArtifactsTool) Handle(_ context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "get":
		rel, err := relOrURI(args)
		if err != nil {
			return nil, err
		}
		return t.store.Get(rel, int64(argInt(args, "offset", 0)), maxBytesArg(args), argBool(args, "base64"))
	case "head":
		rel, err := relOrURI(args)
		if err != nil {
			return nil, err
		}
		return t.store.Head(rel, maxBytesArg(args), argBool(args, "base64"))
	case "tail":
		rel, err := relOrURI(args)
		if err != nil {
			return nil, err
		}
		return t.store.Tail(rel, maxBytesArg(args), argBool(args, "base64"))
	case "", "list":
		return t.store.List(argString(args, "prefix"), argInt(args, "limit", 0))
	default:
		return nil, unknownAction("mcp_artifacts", action)
	}
}

// maxBytesArg returns -1 ("not provided", readWindow substitutes its
// default window) when max_bytes is absent from args, preserving an
// explicit max_bytes=0 ("read zero bytes") instead of collapsing both
// cases to the same value the way argInt's fixed default would.
func maxBytesArg(args map[string]any) int {
	if p := argIntPtr(args, "max_bytes"); p != nil {
		return *p
	}
	return -1
}

// relOrURI accepts either an args["rel"] or args["uri"] key — both forms
// are accepted per spec.md §4.1's read-operation contract.
func relOrURI(args map[string]any) (string, error) {
	if v := argString(args, "rel"); v != "" {
		return v, nil
	}
	if v := argString(args, "uri"); v != "" {
		return v, nil
	}
	return "", requireStringErr("rel")
}
