// internal/store/record_store.go
package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Load when no record exists for the id.
// Callers must treat it differently from a decrypt failure: absence is
// normal, a corrupt or wrongly-keyed record is not.
var ErrNotFound = errors.New("record not found")

const recordExt = ".enc"

// RecordStore persists JSON documents encrypted at rest with
// AES-256-GCM. The key is derived from a shared secret; each collection
// gets its own directory, each record its own file.
type RecordStore struct {
	dir  string
	aead cipher.AEAD
}

func New(dir, secret string) (*RecordStore, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("store: encryption secret is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &RecordStore{dir: dir, aead: aead}, nil
}

// Collection returns a handle for one record type (e.g. "campaigns").
func (s *RecordStore) Collection(name string) (*Collection, error) {
	dir := filepath.Join(s.dir, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create collection %s: %w", name, err)
	}
	return &Collection{dir: dir, aead: s.aead}, nil
}

type Collection struct {
	dir  string
	aead cipher.AEAD
}

// Save serializes v to JSON, encrypts it and writes it atomically
// (temp file + rename) with owner-only permissions.
func (c *Collection) Save(id string, v any) error {
	plain, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal record %s: %w", id, err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	sealed := c.aead.Seal(nonce, nonce, plain, nil)

	path := c.path(id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("store: write record %s: %w", id, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: write record %s: %w", id, err)
	}
	return nil
}

// Load decrypts the record into v. Returns ErrNotFound when absent. A
// bad key or corrupt ciphertext fails only this lookup and never takes
// the process down.
func (c *Collection) Load(id string, v any) error {
	sealed, err := os.ReadFile(c.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("store: read record %s: %w", id, err)
	}
	if len(sealed) < c.aead.NonceSize() {
		return fmt.Errorf("store: record %s is truncated", id)
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("store: decrypt record %s: %w", id, err)
	}

	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("store: unmarshal record %s: %w", id, err)
	}
	return nil
}

func (c *Collection) Delete(id string) error {
	err := os.Remove(c.path(id))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

// ListAll returns the id of every record in the collection.
func (c *Collection) ListAll() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}

	ids := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, recordExt))
	}
	return ids, nil
}

func (c *Collection) path(id string) string {
	// Record ids are UUIDs; Base guards against anything path-like.
	return filepath.Join(c.dir, filepath.Base(id)+recordExt)
}
