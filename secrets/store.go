// Package secrets implements a JSON-on-disk mapping of wallet name to
// signing key material, optionally password-encrypted, updated by
// atomic write-and-rename -- the same shape as every other piece of
// melwalletd's non-SQL persistence, just small enough that a single
// file beats a table.
package secrets

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Argon2id parameters.
const (
	argon2SaltSize = 16
	argon2MemCost  = 32 * 1024 // KiB, i.e. 32 MiB
	argon2TimeCost = 10
	argon2Lanes    = 1
	argon2KeyLen   = 32
)

// ErrInvalidPassword is returned by Decrypt when the supplied password
// fails to open the sealed key.
var ErrInvalidPassword = errors.New("secrets: invalid password")

// PersistentSecret is either a plaintext signing key seed or a
// password-encrypted one.
type PersistentSecret struct {
	// Plaintext holds the raw seed when the secret is not encrypted at
	// rest. Exactly one of Plaintext or Encrypted is set.
	Plaintext []byte `json:"plaintext,omitempty"`

	Encrypted *EncryptedSecret `json:"encrypted,omitempty"`
}

// EncryptedSecret is a password-wrapped signing key: Argon2id parameters
// plus the ChaCha20-Poly1305 ciphertext of the 32-byte Ed25519 seed.
type EncryptedSecret struct {
	Salt       []byte `json:"argon2id_salt"`
	MemCostKiB uint32 `json:"argon2id_mem_cost"`
	TimeCost   uint32 `json:"argon2id_time_cost"`
	Ciphertext []byte `json:"ciphertext"`
}

// IsEncrypted reports whether s is password-protected.
func (s *PersistentSecret) IsEncrypted() bool { return s.Encrypted != nil }

// Encrypt seals seed under password using Argon2id + ChaCha20-Poly1305:
// a fresh random salt, mem_cost=32MiB, time_cost=10, lanes=1, and a
// fixed 12-byte zero nonce (safe here only because the key is freshly
// derived per encryption call and never reused across ciphertexts).
func Encrypt(seed []byte, password string) (*EncryptedSecret, error) {
	salt := make([]byte, argon2SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("secrets: generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argon2TimeCost, argon2MemCost,
		argon2Lanes, argon2KeyLen)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: init aead: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	ciphertext := aead.Seal(nil, nonce, seed, nil)

	return &EncryptedSecret{
		Salt:       salt,
		MemCostKiB: argon2MemCost,
		TimeCost:   argon2TimeCost,
		Ciphertext: ciphertext,
	}, nil
}

// Decrypt re-derives the Argon2id key from the recorded parameters and
// opens the ciphertext. Returns ErrInvalidPassword on AEAD mismatch.
func Decrypt(enc *EncryptedSecret, password string) ([]byte, error) {
	key := argon2.IDKey([]byte(password), enc.Salt, enc.TimeCost, enc.MemCostKiB,
		argon2Lanes, argon2KeyLen)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: init aead: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	plaintext, err := aead.Open(nil, nonce, enc.Ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidPassword
	}
	return plaintext, nil
}

// Store is the append-keyed name -> PersistentSecret mapping, persisted
// as a single pretty-printed JSON document.
type Store struct {
	mu   sync.RWMutex
	path string

	secrets map[string]PersistentSecret
}

// Open loads (or creates, if absent) the secret store at path.
func Open(path string) (*Store, error) {
	s := &Store{
		path:    path,
		secrets: make(map[string]PersistentSecret),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		secrLog.Infof("created secret store at %s", path)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("secrets: read %s: %w", path, err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.secrets); err != nil {
			return nil, fmt.Errorf("secrets: parse %s: %w", path, err)
		}
	}
	return s, nil
}

// Store inserts or replaces the secret registered under name.
func (s *Store) Store(name string, secret PersistentSecret) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.secrets[name] = secret
	if err := s.persistLocked(); err != nil {
		return err
	}
	secrLog.Debugf("stored secret for %q (encrypted=%v)", name, secret.IsEncrypted())
	return nil
}

// Load returns the secret registered under name, or (nil, false) if
// absent. It never panics on an absent entry.
func (s *Store) Load(name string) (*PersistentSecret, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	secret, ok := s.secrets[name]
	if !ok {
		return nil, false
	}
	return &secret, true
}

// persistLocked atomically writes the store to disk: marshal, write to a
// sibling temp file, then rename over the real path. The caller must hold
// s.mu for writing.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.secrets, "", "  ")
	if err != nil {
		return fmt.Errorf("secrets: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".secrets-*.tmp")
	if err != nil {
		return fmt.Errorf("secrets: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("secrets: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("secrets: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("secrets: chmod temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("secrets: rename temp file: %w", err)
	}
	return nil
}
