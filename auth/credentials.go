// Copyright 2026 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build mcp_go_client_oauth

package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/oauth2"

	"github.com/mcpcore/go-runtime/internal/json"
)

// ErrNoCredentials is returned by [CredentialStore.Load] when key has no
// saved credentials.
var ErrNoCredentials = errors.New("auth: no credentials for key")

// Credentials is the set of OAuth state an [AuthorizationCodeOAuthHandler]
// persists across process restarts: the token obtained from the
// authorization server, and the client identity that was used to obtain it
// (so a later process doesn't need to repeat dynamic client registration).
type Credentials struct {
	Token    *oauth2.Token
	ClientID string
	// ClientSecret is empty for registration types that don't use one
	// (Client ID Metadata Documents, "none" token endpoint auth).
	ClientSecret string
}

// A CredentialStore saves and loads [Credentials], keyed by a
// caller-supplied identifier that typically names the authorization server
// and resource being accessed. Implementations must serialize Save/Load per
// key: [AuthorizationCodeOAuthHandler] may refresh concurrently from
// multiple goroutines sharing one handler, and a lost update would silently
// resurrect a revoked token.
type CredentialStore interface {
	// Save persists creds under key, overwriting any previous value.
	Save(ctx context.Context, key string, creds *Credentials) error
	// Load returns the credentials saved under key, or [ErrNoCredentials]
	// if none were ever saved (or they were invalidated).
	Load(ctx context.Context, key string) (*Credentials, error)
	// Invalidate removes any credentials saved under key. It is not an
	// error to invalidate a key with nothing saved.
	Invalidate(ctx context.Context, key string) error
}

// NoopCredentialStore is a [CredentialStore] that persists nothing; every
// Load returns [ErrNoCredentials]. It is the zero-value default for
// [AuthorizationCodeOAuthHandler], so credential persistence is strictly
// opt-in.
type NoopCredentialStore struct{}

func (NoopCredentialStore) Save(context.Context, string, *Credentials) error { return nil }

func (NoopCredentialStore) Load(context.Context, string) (*Credentials, error) {
	return nil, ErrNoCredentials
}

func (NoopCredentialStore) Invalidate(context.Context, string) error { return nil }

// FileCredentialStore is a [CredentialStore] backed by a single file on
// disk, encrypted at rest with NaCl secretbox. It is a reference
// implementation for single-instance deployments (a CLI or desktop app
// holding one user's tokens); it is not suited to multi-instance
// deployments that need to share credentials across replicas, since it
// takes an in-process lock and writes a local file.
type FileCredentialStore struct {
	path string
	key  [32]byte

	mu      sync.Mutex
	entries map[string]*Credentials
	loaded  bool
}

// NewFileCredentialStore returns a FileCredentialStore that reads and
// writes path, encrypting its contents with key. Callers are responsible
// for generating and storing key durably (e.g. in an OS keychain); losing
// it makes any saved credentials unrecoverable.
func NewFileCredentialStore(path string, key [32]byte) *FileCredentialStore {
	return &FileCredentialStore{path: path, key: key}
}

// GenerateCredentialKey returns a random key suitable for
// [NewFileCredentialStore].
func GenerateCredentialKey() ([32]byte, error) {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("generating credential key: %w", err)
	}
	return key, nil
}

func (f *FileCredentialStore) Save(ctx context.Context, key string, creds *Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadLocked(); err != nil {
		return err
	}
	f.entries[key] = creds
	return f.flushLocked()
}

func (f *FileCredentialStore) Load(ctx context.Context, key string) (*Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadLocked(); err != nil {
		return nil, err
	}
	creds, ok := f.entries[key]
	if !ok {
		return nil, ErrNoCredentials
	}
	return creds, nil
}

func (f *FileCredentialStore) Invalidate(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadLocked(); err != nil {
		return err
	}
	if _, ok := f.entries[key]; !ok {
		return nil
	}
	delete(f.entries, key)
	return f.flushLocked()
}

// loadLocked populates f.entries from disk on first use. f.mu must be held.
func (f *FileCredentialStore) loadLocked() error {
	if f.loaded {
		return nil
	}
	f.entries = make(map[string]*Credentials)
	f.loaded = true

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading credential store: %w", err)
	}
	if len(data) < 24 {
		return fmt.Errorf("reading credential store: truncated file")
	}
	var nonce [24]byte
	copy(nonce[:], data[:24])
	plain, ok := secretbox.Open(nil, data[24:], &nonce, &f.key)
	if !ok {
		return fmt.Errorf("reading credential store: decryption failed (wrong key?)")
	}
	if err := json.Unmarshal(plain, &f.entries); err != nil {
		return fmt.Errorf("reading credential store: %w", err)
	}
	return nil
}

// flushLocked writes f.entries to disk. f.mu must be held.
func (f *FileCredentialStore) flushLocked() error {
	plain, err := json.Marshal(f.entries)
	if err != nil {
		return fmt.Errorf("encoding credential store: %w", err)
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &f.key)

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("writing credential store: %w", err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("writing credential store: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("writing credential store: %w", err)
	}
	return nil
}
