/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package mcpserver

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolexec"
)

var _ = Describe("tools/call envelope shaping", func() {
	var exec *toolexec.Executor
	var server *Server

	BeforeEach(func() {
		exec = toolexec.New(toolexec.Options{})
		server = New("sentryfrogg-mcp", exec, Descriptions)
	})

	It("hoists normalization and artifact_uri fields out of a handler's result map", func() {
		exec.Register("mcp_workspace", func(ctx context.Context, action string, args map[string]any) (any, error) {
			return map[string]any{
				"success":              true,
				"artifact_uri_context": "artifact://t/span/context.txt",
				"artifact_uri_json":    "artifact://t/span/result.json",
				"normalization": map[string]any{
					"renamed": []any{map[string]any{"from": "plan_id", "to": "plan_trace_id"}},
				},
			}, nil
		})

		handler := server.handlerFor("mcp_workspace")
		result, _, err := handler(context.Background(), nil, map[string]any{"intent_type": "gitops.sync"})
		Expect(err).NotTo(HaveOccurred())

		var decoded wireEnvelopeBody
		Expect(json.Unmarshal([]byte(textContentOf(result)), &decoded)).To(Succeed())

		Expect(decoded.ArtifactURIContext).To(Equal("artifact://t/span/context.txt"))
		Expect(decoded.ArtifactURIJSON).To(Equal("artifact://t/span/result.json"))
		Expect(decoded.Normalization).To(HaveKey("renamed"))

		resultMap, ok := decoded.Result.(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(resultMap).NotTo(HaveKey("artifact_uri_context"))
		Expect(resultMap).To(HaveKeyWithValue("success", true))
	})

	It("surfaces a handler's toolerr.ToolError as a soft envelope error, not a panic", func() {
		exec.Register("mcp_intent", func(ctx context.Context, action string, args map[string]any) (any, error) {
			return nil, toolerr.New(toolerr.KindDenied, toolerr.CodeApplyRequired, "apply must be true")
		})

		handler := server.handlerFor("mcp_intent")
		result, _, err := handler(context.Background(), nil, map[string]any{"intent_type": "gitops.sync"})
		Expect(err).NotTo(HaveOccurred())

		var decoded wireEnvelopeBody
		Expect(json.Unmarshal([]byte(textContentOf(result)), &decoded)).To(Succeed())
		Expect(decoded.Error).NotTo(BeNil())
	})
})
