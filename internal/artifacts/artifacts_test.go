/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package artifacts

import (
	"strings"
	"testing"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

func TestWriteAndGet(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, false)

	ref, err := store.Write("trace1", "span1", "out.log", []byte("hello world"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if ref.URI != "artifact://runs/trace1/tool_calls/span1/out.log" {
		t.Fatalf("unexpected URI: %s", ref.URI)
	}
	if ref.Bytes != len("hello world") {
		t.Fatalf("unexpected bytes: %d", ref.Bytes)
	}

	got, err := store.Get(ref.Rel, 0, 1024, false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "hello world" {
		t.Fatalf("Get content = %q", got.Content)
	}

	got2, err := store.Get(ref.URI, 0, 1024, false)
	if err != nil {
		t.Fatalf("Get by URI: %v", err)
	}
	if got2.Content != "hello world" {
		t.Fatalf("Get by URI content = %q", got2.Content)
	}
}

func TestWriteSanitizesFilenameAndDisambiguates(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, false)

	ref1, err := store.Write("t", "s", "weird name/../x.log", []byte("a"))
	if err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	if strings.Contains(ref1.Rel, "/") && strings.Contains(ref1.Rel, "..") {
		t.Fatalf("expected sanitized filename, got %s", ref1.Rel)
	}

	ref2, err := store.Write("t", "s", "weird name/../x.log", []byte("b"))
	if err != nil {
		t.Fatalf("Write 2: %v", err)
	}
	if ref1.Rel == ref2.Rel {
		t.Fatal("expected collision disambiguation to produce a distinct rel path")
	}
}

func TestGetRejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, false)
	if _, err := store.Write("t", "s", "f.log", []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	_, err := store.Get("../../../../etc/passwd", 0, 1024, false)
	if err == nil {
		t.Fatal("expected path escape to be rejected")
	}
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CodeInvalidParams {
		t.Fatalf("expected INVALID_PARAMS, got %v", err)
	}
}

func TestGetMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, false)
	_, err := store.Get("runs/nope/tool_calls/nope/missing.log", 0, 1024, false)
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CodeArtifactNotFound {
		t.Fatalf("expected ARTIFACT_NOT_FOUND, got %v", err)
	}
}

func TestBase64BlockedWithoutFlag(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, false)
	ref, err := store.Write("t", "s", "bin.dat", []byte{0x00, 0x01, 0x02})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, err = store.Get(ref.Rel, 0, 1024, true)
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CodeSecretExportDisabled {
		t.Fatalf("expected SECRET_EXPORT_DISABLED, got %v", err)
	}

	allowed := New(dir, true)
	got, err := allowed.Get(ref.Rel, 0, 1024, true)
	if err != nil {
		t.Fatalf("Get with export allowed: %v", err)
	}
	if got.ContentBase64 == "" {
		t.Fatal("expected base64 content when export allowed")
	}
}

func TestHeadAndTail(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, false)
	ref, err := store.Write("t", "s", "big.log", []byte("0123456789"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	head, err := store.Head(ref.Rel, 4, false)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.Content != "0123" {
		t.Fatalf("Head content = %q", head.Content)
	}

	tail, err := store.Tail(ref.Rel, 4, false)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if tail.Content != "6789" {
		t.Fatalf("Tail content = %q", tail.Content)
	}
}

func TestHeadAndTailWithExplicitZeroMaxBytesReadNothingButReportTruncated(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, false)
	ref, err := store.Write("t", "s", "big.log", []byte("0123456789"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	head, err := store.Head(ref.Rel, 0, false)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.Content != "" || !head.Truncated {
		t.Fatalf("head = %+v, want empty content and truncated=true", head)
	}

	tail, err := store.Tail(ref.Rel, 0, false)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if tail.Content != "" || !tail.Truncated {
		t.Fatalf("tail = %+v, want empty content and truncated=true", tail)
	}
}

func TestHeadWithExplicitZeroMaxBytesOnEmptyFileIsNotTruncated(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, false)
	ref, err := store.Write("t", "s", "empty.log", nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	head, err := store.Head(ref.Rel, 0, false)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.Content != "" || head.Truncated {
		t.Fatalf("head = %+v, want empty content and truncated=false for an empty file", head)
	}
}

func TestNegativeMaxBytesFallsBackToDefaultWindow(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, false)
	ref, err := store.Write("t", "s", "big.log", []byte("0123456789"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := store.Get(ref.Rel, 0, -1, false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "0123456789" || got.Truncated {
		t.Fatalf("got = %+v, want the whole file untruncated under the default window", got)
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, false)
	for _, name := range []string{"a.log", "b.log", "c.log"} {
		if _, err := store.Write("t", "s", name, []byte("x")); err != nil {
			t.Fatalf("Write %s: %v", name, err)
		}
	}
	refs, err := store.List("", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(refs))
	}
}

func TestUnavailableStore(t *testing.T) {
	store := New("", false)
	ref, err := store.Write("t", "s", "f.log", []byte("x"))
	if err != nil {
		t.Fatalf("Write on unavailable store should no-op, got err: %v", err)
	}
	if ref.URI != "" {
		t.Fatalf("expected zero Ref, got %+v", ref)
	}

	_, err = store.Get("f.log", 0, 10, false)
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CodeArtifactsUnavailable {
		t.Fatalf("expected ARTIFACTS_UNAVAILABLE, got %v", err)
	}
}
