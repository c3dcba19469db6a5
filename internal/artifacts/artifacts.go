/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package artifacts implements the sandboxed, content-addressed file store
// every tool call spills large output into. Every path is confined under
// context_root/artifacts and addressed by a stable artifact:// URI.
package artifacts

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/paths"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

const (
	// DefaultMaxBytes is the default read window for get/head/tail.
	DefaultMaxBytes = 64 * 1024
	// HardMaxBytes is the maximum allowed read window for get/head/tail.
	HardMaxBytes = 10 * 1024 * 1024
	// DefaultListLimit is the default entry cap for list.
	DefaultListLimit = 200
	// HardListLimit is the maximum entry cap for list.
	HardListLimit = 2000
	// maxFilenameLen bounds a sanitized filename.
	maxFilenameLen = 120
)

var filenameCharPattern = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Ref describes a written or read artifact.
type Ref struct {
	URI       string `json:"uri"`
	Rel       string `json:"rel"`
	Bytes     int    `json:"bytes"`
	SHA256    string `json:"sha256,omitempty"`
	Truncated bool   `json:"truncated"`
	Mtime     string `json:"mtime,omitempty"`
}

// ReadResult is the outcome of a get/head/tail call.
type ReadResult struct {
	Bytes          int    `json:"bytes"`
	Offset         int64  `json:"offset"`
	Length         int    `json:"length"`
	SHA256         string `json:"sha256"`
	Truncated      bool   `json:"truncated"`
	Content        string `json:"content,omitempty"`
	ContentBase64  string `json:"content_base64,omitempty"`
}

// Store is the sandboxed artifact filesystem rooted at context_root/artifacts.
// A Store with an empty root is "unavailable": writes are silently skipped
// and reads fail with ARTIFACTS_UNAVAILABLE, per spec.
type Store struct {
	root              string // context_root/artifacts, or "" if unavailable
	allowSecretExport bool
}

// New constructs a Store. contextRoot may be empty, in which case the store
// operates in the unavailable state described above.
func New(contextRoot string, allowSecretExport bool) *Store {
	root := ""
	if contextRoot != "" {
		root = filepath.Join(contextRoot, "artifacts")
	}
	return &Store{root: root, allowSecretExport: allowSecretExport}
}

// Available reports whether a context root was configured.
func (s *Store) Available() bool { return s.root != "" }

// Write persists content under runs/<trace_id>/tool_calls/<span_id>/<filename>
// and returns its Ref. It is a no-op returning a zero Ref when unavailable.
func (s *Store) Write(traceID, spanID, filename string, content []byte) (Ref, error) {
	if !s.Available() {
		return Ref{}, nil
	}
	name := sanitizeFilename(filename)
	rel := filepath.ToSlash(filepath.Join("runs", traceID, "tool_calls", spanID, name))
	abs, err := s.resolve(rel)
	if err != nil {
		return Ref{}, err
	}
	abs = disambiguate(abs)
	rel = relFromAbs(s.root, abs)

	if err := paths.AtomicWriteFile(abs, content, 0o600); err != nil {
		return Ref{}, fmt.Errorf("write artifact: %w", err)
	}
	sum := sha256.Sum256(content)
	return Ref{
		URI:    "artifact://" + rel,
		Rel:    rel,
		Bytes:  len(content),
		SHA256: hex.EncodeToString(sum[:]),
	}, nil
}

// Get reads an arbitrary window [offset, offset+maxBytes) from rel.
func (s *Store) Get(relOrURI string, offset int64, maxBytes int, base64Out bool) (ReadResult, error) {
	return s.readWindow(relOrURI, offset, maxBytes, base64Out, windowModeGet)
}

// Head reads a prefix slice of rel.
func (s *Store) Head(relOrURI string, maxBytes int, base64Out bool) (ReadResult, error) {
	return s.readWindow(relOrURI, 0, maxBytes, base64Out, windowModeHead)
}

// Tail reads a suffix slice of rel.
func (s *Store) Tail(relOrURI string, maxBytes int, base64Out bool) (ReadResult, error) {
	return s.readWindow(relOrURI, 0, maxBytes, base64Out, windowModeTail)
}

type windowMode int

const (
	windowModeGet windowMode = iota
	windowModeHead
	windowModeTail
)

func (s *Store) readWindow(relOrURI string, offset int64, maxBytes int, base64Out bool, mode windowMode) (ReadResult, error) {
	if !s.Available() {
		return ReadResult{}, toolerr.New(toolerr.KindDenied, toolerr.CodeArtifactsUnavailable, "artifact store is not configured")
	}
	if maxBytes < 0 {
		maxBytes = DefaultMaxBytes
	}
	if maxBytes > HardMaxBytes {
		maxBytes = HardMaxBytes
	}
	abs, rel, err := s.resolveExisting(relOrURI)
	if err != nil {
		return ReadResult{}, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return ReadResult{}, toolerr.New(toolerr.KindNotFound, toolerr.CodeArtifactNotFound, fmt.Sprintf("artifact not found: %s", rel))
	}
	size := info.Size()

	f, err := os.Open(abs)
	if err != nil {
		return ReadResult{}, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	var start int64
	switch mode {
	case windowModeHead:
		start = 0
	case windowModeTail:
		start = size - int64(maxBytes)
		if start < 0 {
			start = 0
		}
	default:
		start = offset
	}
	if start > size {
		start = size
	}
	length := int64(maxBytes)
	if start+length > size {
		length = size - start
	}
	// truncated whenever bytes were excluded on either side of the window:
	// content skipped before start (a tail window, or a get with offset>0),
	// or content remaining after start+length (a head/get window narrower
	// than the file, or a max_bytes=0 read of a non-empty file either way).
	truncated := start > 0 || start+length < size

	buf := make([]byte, length)
	if length > 0 {
		if _, err := f.ReadAt(buf, start); err != nil && err != io.EOF {
			return ReadResult{}, fmt.Errorf("read artifact: %w", err)
		}
	}
	sum := sha256.Sum256(buf)

	result := ReadResult{
		Bytes:     int(size),
		Offset:    start,
		Length:    len(buf),
		SHA256:    hex.EncodeToString(sum[:]),
		Truncated: truncated,
	}
	if base64Out {
		if !s.allowSecretExport {
			return ReadResult{}, toolerr.New(toolerr.KindDenied, toolerr.CodeSecretExportDisabled, "base64 artifact reads are disabled")
		}
		result.ContentBase64 = base64.StdEncoding.EncodeToString(buf)
	} else {
		result.Content = string(buf)
	}
	return result, nil
}

// List walks the tree under prefix, returning up to limit entries.
func (s *Store) List(prefix string, limit int) ([]Ref, error) {
	if !s.Available() {
		return nil, toolerr.New(toolerr.KindDenied, toolerr.CodeArtifactsUnavailable, "artifact store is not configured")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > HardListLimit {
		limit = HardListLimit
	}
	base := s.root
	if prefix != "" {
		abs, err := s.resolve(normalizeRel(prefix))
		if err != nil {
			return nil, err
		}
		base = abs
	}

	var refs []Ref
	walkErr := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if len(refs) >= limit {
			return filepath.SkipAll
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel := relFromAbs(s.root, p)
		refs = append(refs, Ref{
			URI:   "artifact://" + rel,
			Rel:   rel,
			Bytes: int(info.Size()),
			Mtime: info.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
		})
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, fs.SkipAll) {
		return nil, fmt.Errorf("list artifacts: %w", walkErr)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Rel < refs[j].Rel })
	return refs, nil
}

// resolve maps a relative path to an absolute path guaranteed under root,
// without requiring the target to exist yet (used for writes).
func (s *Store) resolve(rel string) (string, error) {
	rel = normalizeRel(rel)
	abs := filepath.Join(s.root, rel)
	cleanRoot := filepath.Clean(s.root)
	if abs != cleanRoot && !strings.HasPrefix(abs, cleanRoot+string(filepath.Separator)) {
		return "", toolerr.New(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "path escapes artifact store root")
	}
	return abs, nil
}

// resolveExisting resolves rel/URI and additionally verifies (via symlink
// resolution) that the real path of an existing target stays under root.
func (s *Store) resolveExisting(relOrURI string) (abs, rel string, err error) {
	abs, err = s.resolve(normalizeRel(relOrURI))
	if err != nil {
		return "", "", err
	}
	if real, statErr := filepath.EvalSymlinks(abs); statErr == nil {
		cleanRoot, rootErr := filepath.EvalSymlinks(s.root)
		if rootErr == nil && real != cleanRoot && !strings.HasPrefix(real, cleanRoot+string(filepath.Separator)) {
			return "", "", toolerr.New(toolerr.KindInvalidParams, toolerr.CodeInvalidParams, "path escapes artifact store root")
		}
	}
	return abs, relFromAbs(s.root, abs), nil
}

func normalizeRel(relOrURI string) string {
	rel := strings.TrimPrefix(relOrURI, "artifact://")
	return filepath.Clean("/" + rel)[1:]
}

func relFromAbs(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

func sanitizeFilename(name string) string {
	name = filenameCharPattern.ReplaceAllString(name, "_")
	if len(name) > maxFilenameLen {
		name = name[:maxFilenameLen]
	}
	if name == "" {
		name = "artifact"
	}
	return name
}

// disambiguate appends -2, -3, … before the extension until abs does not
// already exist, so concurrent writes in the same span never collide.
func disambiguate(abs string) string {
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return abs
	}
	dir, base := filepath.Split(abs)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 2; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
