// Package auth holds the store server's account handling: argon2id password
// hashes, PASETO access tokens and the credential records kept under the
// private _auth subtree of the tree.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	keyLength    = 32
	keyHexLength = 64
	keyFileName  = "auth.key"
)

// LoadOrGenerateKey returns the token key stored hex-encoded in
// <dir>/auth.key, creating the file with a fresh random key on first run.
func LoadOrGenerateKey(dir string) ([]byte, error) {
	keyPath := filepath.Join(dir, keyFileName)

	//#nosec G304 -- path derived from the configured data directory
	if raw, err := os.ReadFile(keyPath); err == nil {
		return DecodeKey(strings.TrimSpace(string(raw)))
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read auth key: %w", err)
	}

	key := make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate auth key: %w", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("save auth key: %w", err)
	}
	return key, nil
}

// DecodeKey parses a 64 character hex key, as found in the key file or the
// AUTH_KEY setting.
func DecodeKey(keyHex string) ([]byte, error) {
	if len(keyHex) != keyHexLength {
		return nil, fmt.Errorf("invalid auth key length: expected %d hex chars, got %d", keyHexLength, len(keyHex))
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid auth key format: %w", err)
	}
	return key, nil
}
