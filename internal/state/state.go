/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package state implements the State Store: a session (in-memory,
// process-local) scope and a persistent (file-backed) scope, with a
// combined "any" scope that overlays session on top of persistent. Policy
// advisory locks (internal/policy) are built directly on top of the
// persistent scope's reserved key namespace.
package state

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/paths"
)

// Scope selects which half of the store an operation targets.
type Scope string

const (
	ScopeSession    Scope = "session"
	ScopePersistent Scope = "persistent"
	ScopeAny        Scope = "any"
)

// DefaultMaxKeys, DefaultMaxValueBytes, and DefaultMaxTotalBytes bound each
// scope independently, mirroring the per-agent quota shape the teacher
// enforces for its CRD-backed KV store.
const (
	DefaultMaxKeys       = 500
	DefaultMaxValueBytes = 65536
	DefaultMaxTotalBytes = 4 * 1024 * 1024
)

type entry struct {
	Value     any        `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (e entry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// Store is the combined session + persistent key/value store.
type Store struct {
	mu   sync.Mutex
	path string

	session    map[string]entry
	persistent map[string]entry

	maxKeys       int
	maxValueBytes int
	maxTotalBytes int
}

// Open loads the persistent scope from path (creating an empty one if
// absent). The session scope always starts empty.
func Open(path string) (*Store, error) {
	s := &Store{
		path:          path,
		session:       map[string]entry{},
		persistent:    map[string]entry{},
		maxKeys:       DefaultMaxKeys,
		maxValueBytes: DefaultMaxValueBytes,
		maxTotalBytes: DefaultMaxTotalBytes,
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.persistent); err != nil {
		return nil, err
	}
	return s, nil
}

// Set writes key=value into the given scope (session or persistent; "any"
// is rejected for writes — the caller must pick a side). ttl, if non-zero,
// expires the entry.
func (s *Store) Set(scope Scope, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.scopeMap(scope)
	if m == nil {
		return errInvalidScope(scope)
	}
	e := entry{Value: value}
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		e.ExpiresAt = &exp
	}
	if err := checkQuota(m, key, value, s.maxKeys, s.maxValueBytes, s.maxTotalBytes); err != nil {
		return err
	}
	m[key] = e
	if scope == ScopePersistent {
		return s.persistLocked()
	}
	return nil
}

// Get reads key from scope. For ScopeAny, session takes priority over
// persistent.
func (s *Store) Get(scope Scope, key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()

	if scope == ScopeSession || scope == ScopeAny {
		if e, ok := s.session[key]; ok && !e.expired(now) {
			return e.Value, true
		}
	}
	if scope == ScopePersistent || scope == ScopeAny {
		if e, ok := s.persistent[key]; ok && !e.expired(now) {
			return e.Value, true
		}
	}
	return nil, false
}

// Delete removes key from the given scope. ScopeAny removes from both.
func (s *Store) Delete(scope Scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	if scope == ScopeSession || scope == ScopeAny {
		if _, ok := s.session[key]; ok {
			delete(s.session, key)
			changed = true
		}
	}
	if scope == ScopePersistent || scope == ScopeAny {
		if _, ok := s.persistent[key]; ok {
			delete(s.persistent, key)
			changed = true
		}
	}
	if changed && (scope == ScopePersistent || scope == ScopeAny) {
		return s.persistLocked()
	}
	return nil
}

// List returns the keys visible in scope, overlaying session over
// persistent for ScopeAny.
func (s *Store) List(scope Scope) []string {
	dump := s.Dump(scope)
	keys := make([]string, 0, len(dump))
	for k := range dump {
		keys = append(keys, k)
	}
	return keys
}

// Dump returns every live key/value pair visible in scope.
func (s *Store) Dump(scope Scope) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	out := map[string]any{}
	if scope == ScopePersistent || scope == ScopeAny {
		for k, e := range s.persistent {
			if !e.expired(now) {
				out[k] = e.Value
			}
		}
	}
	if scope == ScopeSession || scope == ScopeAny {
		for k, e := range s.session {
			if !e.expired(now) {
				out[k] = e.Value
			}
		}
	}
	return out
}

func (s *Store) scopeMap(scope Scope) map[string]entry {
	switch scope {
	case ScopeSession:
		return s.session
	case ScopePersistent:
		return s.persistent
	default:
		return nil
	}
}

func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.persistent, "", "  ")
	if err != nil {
		return err
	}
	return paths.AtomicWriteFile(s.path, data, 0o600)
}
