/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package profiles

import (
	"path/filepath"
	"testing"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/security"
	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	kr, err := security.LoadOrCreate(filepath.Join(dir, ".key"))
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	s, err := Open(filepath.Join(dir, "profiles.json"), kr, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func strp(s string) *string { return &s }

func TestSetAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	secretVal := "s3cr3t"
	_, err := s.Set("db1", SetInput{
		Type:    "postgres",
		Data:    map[string]any{"host": "localhost", "port": float64(5432)},
		Secrets: map[string]*string{"password": &secretVal},
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := s.Get("db1", "postgres")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Data["host"] != "localhost" {
		t.Errorf("Data[host] = %v", got.Data["host"])
	}
	if got.Secrets["password"] != secretVal {
		t.Errorf("Secrets[password] = %q, want %q", got.Secrets["password"], secretVal)
	}
}

func TestGetTypeMismatch(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Set("db1", SetInput{Type: "postgres"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_, err := s.Get("db1", "mysql")
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CodeProfileTypeMismatch {
		t.Fatalf("expected PROFILE_TYPE_MISMATCH, got %v", err)
	}
}

func TestSetMergesAndDeletesKeys(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Set("p", SetInput{Type: "http", Data: map[string]any{"a": "1", "b": "2"}}); err != nil {
		t.Fatalf("Set 1: %v", err)
	}
	if _, err := s.Set("p", SetInput{Data: map[string]any{"a": nil, "c": "3"}}); err != nil {
		t.Fatalf("Set 2: %v", err)
	}
	got, err := s.Get("p", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := got.Data["a"]; ok {
		t.Error("expected key a deleted")
	}
	if got.Data["b"] != "2" || got.Data["c"] != "3" {
		t.Errorf("Data = %+v", got.Data)
	}
}

func TestSecretDeleteAndClearAll(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Set("p", SetInput{Type: "ssh", Secrets: map[string]*string{"a": strp("1"), "b": strp("2")}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := s.Set("p", SetInput{Secrets: map[string]*string{"a": nil}}); err != nil {
		t.Fatalf("delete a: %v", err)
	}
	got, _ := s.Get("p", "")
	if _, ok := got.Secrets["a"]; ok {
		t.Error("expected secret a deleted")
	}
	if got.Secrets["b"] != "2" {
		t.Errorf("expected secret b preserved, got %+v", got.Secrets)
	}

	if _, err := s.Set("p", SetInput{ClearAllSecrets: true}); err != nil {
		t.Fatalf("clear all: %v", err)
	}
	got, _ = s.Get("p", "")
	if len(got.Secrets) != 0 {
		t.Errorf("expected all secrets cleared, got %+v", got.Secrets)
	}
}

func TestListNeverReturnsSecrets(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Set("p1", SetInput{Type: "postgres", Secrets: map[string]*string{"password": strp("x")}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	list := s.List("")
	if len(list) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(list))
	}
}

func TestDeleteUnknownProfile(t *testing.T) {
	s := newTestStore(t)
	err := s.Delete("nope")
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CodeProfileNotFound {
		t.Fatalf("expected PROFILE_NOT_FOUND, got %v", err)
	}
}

func TestEnvSecretRefResolution(t *testing.T) {
	t.Setenv("SF_TEST_SECRET", "env-value")
	s := newTestStore(t)
	refVal := "ref:env:SF_TEST_SECRET"
	if _, err := s.Set("p", SetInput{Type: "http", Secrets: map[string]*string{"token": &refVal}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get("p", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Secrets["token"] != "env-value" {
		t.Errorf("Secrets[token] = %q, want env-value", got.Secrets["token"])
	}
}

func TestVaultSecretRefResolution(t *testing.T) {
	dir := t.TempDir()
	kr, err := security.LoadOrCreate(filepath.Join(dir, ".key"))
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	vault := fakeVault{values: map[string]string{"secret/db/password": "vault-secret"}}
	s, err := Open(filepath.Join(dir, "profiles.json"), kr, vault)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	refVal := "ref:vault:secret/db/password"
	if _, err := s.Set("db1", SetInput{Type: "postgres", Secrets: map[string]*string{"password": &refVal}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get("db1", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Secrets["password"] != "vault-secret" {
		t.Errorf("Secrets[password] = %q, want vault-secret", got.Secrets["password"])
	}
}

type fakeVault struct{ values map[string]string }

func (f fakeVault) Read(_, path string) (string, error) { return f.values[path], nil }
