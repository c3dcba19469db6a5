/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package profiles implements the profile + secret store: named bags of
// connection data (host, user, type-specific config) with an attached set
// of secrets sealed at rest via internal/security.
package profiles

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/paths"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/security"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

// Profile is one named connection profile. Secrets holds sealed blobs;
// decrypted values never round-trip to disk.
type Profile struct {
	Type      string            `json:"type"`
	Data      map[string]any    `json:"data"`
	Secrets   map[string]string `json:"secrets"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// VaultClient fetches a secret value addressed by a ref:vault: path, scoped
// to the named vault profile.
type VaultClient interface {
	Read(vaultProfile, path string) (string, error)
}

// Store is the file-backed profile + secret store.
type Store struct {
	mu      sync.RWMutex
	path    string
	keyring *security.Keyring
	vault   VaultClient

	profiles map[string]*Profile
}

// Open loads profiles.json (creating an empty store if absent).
func Open(path string, keyring *security.Keyring, vault VaultClient) (*Store, error) {
	s := &Store{path: path, keyring: keyring, vault: vault, profiles: map[string]*Profile{}}
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
	if err := json.Unmarshal(data, &s.profiles); err != nil {
		return nil, err
	}
	return s, nil
}

// SetInput is the merge request for setProfile.
type SetInput struct {
	Type    string
	Data    map[string]any // nil-valued keys delete that key
	Secrets map[string]*string // nil map pointer clears all secrets; nil value deletes that one secret
	ClearAllSecrets bool
}

// Set merges in into the named profile, creating it if absent.
func (s *Store) Set(name string, in SetInput) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[name]
	now := time.Now().UTC()
	if !ok {
		p = &Profile{Type: in.Type, Data: map[string]any{}, Secrets: map[string]string{}, CreatedAt: now}
		s.profiles[name] = p
	}
	if in.Type != "" {
		p.Type = in.Type
	}
	for k, v := range in.Data {
		if v == nil {
			delete(p.Data, k)
			continue
		}
		p.Data[k] = v
	}
	if in.ClearAllSecrets {
		p.Secrets = map[string]string{}
	}
	for k, v := range in.Secrets {
		if v == nil {
			delete(p.Secrets, k)
			continue
		}
		sealed, err := s.keyring.Seal([]byte(*v))
		if err != nil {
			return nil, err
		}
		p.Secrets[k] = sealed
	}
	p.UpdatedAt = now
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

// Resolved is a Profile with secrets decrypted/resolved for in-memory use.
type Resolved struct {
	Type    string
	Data    map[string]any
	Secrets map[string]string
}

// Get decrypts and resolves a profile's secrets. If expectedType is
// non-empty and doesn't match, PROFILE_TYPE_MISMATCH is returned.
func (s *Store) Get(name, expectedType string) (*Resolved, error) {
	s.mu.RLock()
	p, ok := s.profiles[name]
	s.mu.RUnlock()
	if !ok {
		return nil, toolerr.New(toolerr.KindNotFound, toolerr.CodeProfileNotFound, "profile not found: "+name)
	}
	if expectedType != "" && p.Type != expectedType {
		return nil, toolerr.Newf(toolerr.KindConflict, toolerr.CodeProfileTypeMismatch, "profile %s has type %s, expected %s", name, p.Type, expectedType)
	}

	out := &Resolved{Type: p.Type, Data: cloneData(p.Data), Secrets: map[string]string{}}
	for k, sealed := range p.Secrets {
		val, err := s.resolveSecret(name, sealed)
		if err != nil {
			return nil, err
		}
		out.Secrets[k] = val
	}
	return out, nil
}

// resolveSecret decrypts a sealed blob, then if the plaintext is itself a
// ref:vault:/ref:env: indirection, resolves that instead (spec.md §4.6).
func (s *Store) resolveSecret(profileName, sealed string) (string, error) {
	plain, err := s.keyring.Open(sealed)
	if err != nil {
		return "", err
	}
	val := string(plain)
	switch {
	case strings.HasPrefix(val, "ref:env:"):
		return os.Getenv(strings.TrimPrefix(val, "ref:env:")), nil
	case strings.HasPrefix(val, "ref:vault:"):
		if s.vault == nil {
			return "", toolerr.New(toolerr.KindInternal, toolerr.CodePolicyServiceUnavailable, "vault client not configured")
		}
		return s.vault.Read(profileName, strings.TrimPrefix(val, "ref:vault:"))
	default:
		return val, nil
	}
}

// Summary is a listProfiles entry: never carries secrets.
type Summary struct {
	Name string         `json:"name"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// List returns every profile, optionally filtered by type, without secrets.
func (s *Store) List(typeFilter string) []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Summary
	for name, p := range s.profiles {
		if typeFilter != "" && p.Type != typeFilter {
			continue
		}
		out = append(out, Summary{Name: name, Type: p.Type, Data: cloneData(p.Data)})
	}
	return out
}

// Delete removes a profile.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[name]; !ok {
		return toolerr.New(toolerr.KindNotFound, toolerr.CodeProfileNotFound, "profile not found: "+name)
	}
	delete(s.profiles, name)
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.profiles, "", "  ")
	if err != nil {
		return err
	}
	return paths.AtomicWriteFile(s.path, data, 0o600)
}

func cloneData(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
