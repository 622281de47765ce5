// Copyright 2026 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build mcp_go_client_oauth

package auth

import (
	"context"
	"path/filepath"
	"testing"

	"golang.org/x/oauth2"
)

func TestFileCredentialStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	key, err := GenerateCredentialKey()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "credentials.enc")
	store := NewFileCredentialStore(path, key)

	if _, err := store.Load(ctx, "server-a"); err != ErrNoCredentials {
		t.Fatalf("Load on empty store: got %v, want ErrNoCredentials", err)
	}

	want := &Credentials{
		Token:        &oauth2.Token{AccessToken: "at", RefreshToken: "rt"},
		ClientID:     "client-1",
		ClientSecret: "secret-1",
	}
	if err := store.Save(ctx, "server-a", want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A fresh store instance must read back what was persisted to disk.
	reopened := NewFileCredentialStore(path, key)
	got, err := reopened.Load(ctx, "server-a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ClientID != want.ClientID || got.ClientSecret != want.ClientSecret || got.Token.AccessToken != want.Token.AccessToken {
		t.Fatalf("Load returned %+v, want %+v", got, want)
	}

	if err := store.Invalidate(ctx, "server-a"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := store.Load(ctx, "server-a"); err != ErrNoCredentials {
		t.Fatalf("Load after Invalidate: got %v, want ErrNoCredentials", err)
	}
}

func TestFileCredentialStore_WrongKey(t *testing.T) {
	ctx := context.Background()
	key1, _ := GenerateCredentialKey()
	key2, _ := GenerateCredentialKey()
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store := NewFileCredentialStore(path, key1)
	if err := store.Save(ctx, "k", &Credentials{Token: &oauth2.Token{AccessToken: "at"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	wrongKeyStore := NewFileCredentialStore(path, key2)
	if _, err := wrongKeyStore.Load(ctx, "k"); err == nil {
		t.Fatal("Load with wrong key: got nil error, want decryption failure")
	}
}

func TestNoopCredentialStore(t *testing.T) {
	ctx := context.Background()
	var s NoopCredentialStore
	if err := s.Save(ctx, "k", &Credentials{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Load(ctx, "k"); err != ErrNoCredentials {
		t.Fatalf("Load: got %v, want ErrNoCredentials", err)
	}
	if err := s.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
}
