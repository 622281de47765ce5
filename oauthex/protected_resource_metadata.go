// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file defines the Protected Resource Metadata document shape
// (RFC 9728 ยง2) and the shared JSON-fetch helper used by it and by
// AS metadata discovery.

//go:build mcp_go_client_oauth

package oauthex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	internaljson "github.com/mcpcore/go-runtime/internal/json"
)

// ProtectedResourceMetadata is a Protected Resource Metadata document as
// defined by RFC 9728, section 2.
type ProtectedResourceMetadata struct {
	Resource                             string   `json:"resource"`
	AuthorizationServers                 []string `json:"authorization_servers,omitempty"`
	JWKSURI                              string   `json:"jwks_uri,omitempty"`
	ScopesSupported                      []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported               []string `json:"bearer_methods_supported,omitempty"`
	ResourceSigningAlgValuesSupported    []string `json:"resource_signing_alg_values_supported,omitempty"`
	ResourceName                         string   `json:"resource_name,omitempty"`
	ResourceDocumentation                string   `json:"resource_documentation,omitempty"`
	ResourcePolicyURI                    string   `json:"resource_policy_uri,omitempty"`
	ResourceTOSURI                       string   `json:"resource_tos_uri,omitempty"`
	TLSClientCertificateBoundAccessToken bool     `json:"tls_client_certificate_bound_access_tokens,omitempty"`
	AuthorizationDetailsTypesSupported   []string `json:"authorization_details_types_supported,omitempty"`
	DPOPSigningAlgValuesSupported        []string `json:"dpop_signing_alg_values_supported,omitempty"`
	DPOPBoundAccessTokensRequired        bool     `json:"dpop_bound_access_tokens_required,omitempty"`
}

// checkURLScheme rejects URLs that are not HTTP(S), preventing schemes
// like "javascript:" from being propagated into, e.g., a browser redirect
// built from metadata fields (see https://github.com/modelcontextprotocol/go-sdk/issues/526).
func checkURLScheme(u string) error {
	pu, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", u, err)
	}
	switch pu.Scheme {
	case "http", "https":
		return nil
	default:
		return fmt.Errorf("URL %q has unsupported scheme %q", u, pu.Scheme)
	}
}

// getJSON issues a GET request for url using c (or [http.DefaultClient] if
// c is nil), and decodes the JSON response body into a value of type T.
// The response body is limited to maxBytes to bound memory use against a
// malicious or misbehaving server.
func getJSON[T any](ctx context.Context, c *http.Client, url string, maxBytes int64) (*T, error) {
	if c == nil {
		c = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %q: unexpected status %s", url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("GET %q: reading body: %w", url, err)
	}
	var v T
	if err := internaljson.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("GET %q: decoding JSON: %w", url, err)
	}
	return &v, nil
}
