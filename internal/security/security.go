/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package security provides authenticated symmetric encryption for secrets
// at rest. Plaintext secret material never touches disk; profiles store
// only the sealed blob produced here.
package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/paths"
)

// KeySize is the process symmetric key length in bytes.
const KeySize = chacha20poly1305.KeySize // 32

// ErrDecryptFailed is returned when Open cannot authenticate or decrypt a
// sealed blob (wrong key, corrupt ciphertext, or tampered tag).
var ErrDecryptFailed = errors.New("DECRYPT_FAILED")

// Keyring holds the process-wide symmetric key used to seal and open
// secrets.
type Keyring struct {
	key []byte
}

// LoadOrCreate resolves the process key with this precedence:
//  1. ENCRYPTION_KEY env var (hex, utf8, or base64 — by decoded length).
//  2. The persisted key file at keyPath (created with mode 0600).
//  3. A freshly generated random key, persisted to keyPath.
func LoadOrCreate(keyPath string) (*Keyring, error) {
	if raw := os.Getenv("ENCRYPTION_KEY"); raw != "" {
		key, err := decodeKeyMaterial(raw)
		if err != nil {
			return nil, fmt.Errorf("ENCRYPTION_KEY: %w", err)
		}
		return &Keyring{key: key}, nil
	}

	if data, err := os.ReadFile(keyPath); err == nil {
		key, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil || len(key) != KeySize {
			return nil, fmt.Errorf("corrupt key file %s", keyPath)
		}
		return &Keyring{key: key}, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := paths.AtomicWriteFile(keyPath, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("persist key file: %w", err)
	}
	return &Keyring{key: key}, nil
}

// decodeKeyMaterial accepts hex, base64, or raw utf8 key material and
// returns exactly KeySize bytes, deriving by truncation/padding is never
// performed — the input must decode to exactly the right length.
func decodeKeyMaterial(raw string) ([]byte, error) {
	if b, err := hex.DecodeString(raw); err == nil && len(b) == KeySize {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil && len(b) == KeySize {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(raw); err == nil && len(b) == KeySize {
		return b, nil
	}
	if b := []byte(raw); len(b) == KeySize {
		return b, nil
	}
	return nil, fmt.Errorf("key material must decode to exactly %d bytes", KeySize)
}

// Seal encrypts plaintext with a fresh random nonce and returns
// "iv_hex:tag_hex:ciphertext_hex".
func (k *Keyring) Seal(plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.New(k.key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	// Seal appends the authentication tag to the ciphertext.
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	tagStart := len(sealed) - aead.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]
	return fmt.Sprintf("%s:%s:%s", hex.EncodeToString(nonce), hex.EncodeToString(tag), hex.EncodeToString(ciphertext)), nil
}

// Open decrypts a blob produced by Seal. It fails closed on any malformed
// input, wrong tag length, or authentication failure.
func (k *Keyring) Open(blob string) ([]byte, error) {
	parts := strings.SplitN(blob, ":", 3)
	if len(parts) != 3 {
		return nil, ErrDecryptFailed
	}
	nonce, err1 := hex.DecodeString(parts[0])
	tag, err2 := hex.DecodeString(parts[1])
	ciphertext, err3 := hex.DecodeString(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, ErrDecryptFailed
	}
	aead, err := chacha20poly1305.New(k.key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	if len(nonce) != aead.NonceSize() || len(tag) != aead.Overhead() {
		return nil, ErrDecryptFailed
	}
	sealed := append(append([]byte(nil), ciphertext...), tag...)
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
