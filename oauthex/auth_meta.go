// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements Authorization Server Metadata discovery.
// See https://www.rfc-editor.org/rfc/rfc8414.html.

//go:build mcp_go_client_oauth

package oauthex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mcpcore/go-runtime/internal/util"
)

// AuthServerMeta is an OAuth 2.0 Authorization Server Metadata document, as
// defined by RFC 8414, section 2, extended with the fields MCP clients need
// for client registration method negotiation.
type AuthServerMeta struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint,omitempty"`
	TokenEndpoint                     string   `json:"token_endpoint,omitempty"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	JWKSURI                           string   `json:"jwks_uri,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported,omitempty"`
	ResponseModesSupported            []string `json:"response_modes_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
	ServiceDocumentation              string   `json:"service_documentation,omitempty"`

	// ClientIDMetadataDocumentSupported advertises support for SEP-991
	// Client ID Metadata Documents as a registration method, in lieu of
	// preregistration or RFC 7591 dynamic client registration.
	ClientIDMetadataDocumentSupported bool `json:"client_id_metadata_document_supported,omitempty"`
}

// wellKnownSuffixes are tried in order at each candidate host/path,
// mirroring RFC 8414 ยง3 with a fallback to the older OpenID Connect
// discovery document for servers that predate RFC 8414.
var wellKnownSuffixes = []string{
	"/.well-known/oauth-authorization-server",
	"/.well-known/openid-configuration",
}

// GetAuthServerMeta fetches Authorization Server Metadata for the server
// identified by issuer, trying the RFC 8414 well-known locations (and a
// legacy OpenID Connect discovery fallback) in order, first inserting the
// well-known path segment before the issuer's own path component (ยง3.1)
// and then, if that fails, appending it after the issuer's path (the
// pre-RFC-8414 convention still used by some authorization servers).
//
// It returns (nil, nil), without error, if no metadata document could be
// found at any candidate location; callers should fall back to predefined
// endpoints per the pre-discovery MCP specification in that case.
func GetAuthServerMeta(ctx context.Context, issuer string, c *http.Client) (_ *AuthServerMeta, err error) {
	defer util.Wrapf(&err, "GetAuthServerMeta(%q)", issuer)

	iu, err := url.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("invalid issuer URL: %w", err)
	}

	var lastErr error
	for _, candidate := range authServerMetadataURLs(*iu) {
		asm, err := getJSON[AuthServerMeta](ctx, c, candidate, 1<<20)
		if err != nil {
			lastErr = err
			continue
		}
		if asm.Issuer != issuer {
			lastErr = fmt.Errorf("metadata at %q has issuer %q, want %q", candidate, asm.Issuer, issuer)
			continue
		}
		return asm, nil
	}
	if lastErr != nil {
		// All candidates failed for non-404-like reasons worth reporting
		// as a diagnostic, but discovery failing entirely is not itself an
		// error: the caller falls back to predefined endpoints.
		_ = lastErr
	}
	return nil, nil
}

// authServerMetadataURLs enumerates the well-known document locations to
// try for iu, per RFC 8414 ยง3.1: the well-known suffix is inserted before
// the issuer's path, with a fallback trying it appended after the path.
func authServerMetadataURLs(iu url.URL) []string {
	path := strings.TrimRight(iu.Path, "/")
	var urls []string
	for _, suffix := range wellKnownSuffixes {
		u := iu
		u.Path = suffix + path
		urls = append(urls, u.String())
	}
	if path != "" {
		for _, suffix := range wellKnownSuffixes {
			u := iu
			u.Path = path + suffix
			urls = append(urls, u.String())
		}
	}
	return urls
}
