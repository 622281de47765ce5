// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements OAuth 2.0 Dynamic Client Registration.
// See https://www.rfc-editor.org/rfc/rfc7591.html.

//go:build mcp_go_client_oauth

package oauthex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	internaljson "github.com/mcpcore/go-runtime/internal/json"
	"github.com/mcpcore/go-runtime/internal/util"
)

// ClientRegistrationMetadata is the client metadata submitted in a Dynamic
// Client Registration request, per RFC 7591, section 2.
type ClientRegistrationMetadata struct {
	RedirectURIs            []string `json:"redirect_uris,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes            []string `json:"response_types,omitempty"`
	ClientName               string   `json:"client_name,omitempty"`
	ClientURI                string   `json:"client_uri,omitempty"`
	LogoURI                  string   `json:"logo_uri,omitempty"`
	Scope                    string   `json:"scope,omitempty"`
	Contacts                 []string `json:"contacts,omitempty"`
	TOSURI                   string   `json:"tos_uri,omitempty"`
	PolicyURI                string   `json:"policy_uri,omitempty"`
	JWKSURI                  string   `json:"jwks_uri,omitempty"`
	SoftwareID               string   `json:"software_id,omitempty"`
	SoftwareVersion          string   `json:"software_version,omitempty"`
}

// ClientRegistrationResponse is the server's response to a successful
// Dynamic Client Registration request, per RFC 7591, section 3.2.1.
type ClientRegistrationResponse struct {
	ClientID                string `json:"client_id"`
	ClientSecret             string `json:"client_secret,omitempty"`
	ClientIDIssuedAt         int64  `json:"client_id_issued_at,omitempty"`
	ClientSecretExpiresAt    int64  `json:"client_secret_expires_at,omitempty"`
	TokenEndpointAuthMethod  string `json:"token_endpoint_auth_method,omitempty"`

	ClientRegistrationMetadata
}

// clientRegistrationError is the error shape defined by RFC 7591, section 3.2.2.
type clientRegistrationError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// RegisterClient registers a new OAuth client at registrationEndpoint using
// the given metadata, and returns the server-assigned client credentials.
func RegisterClient(ctx context.Context, registrationEndpoint string, metadata *ClientRegistrationMetadata, c *http.Client) (_ *ClientRegistrationResponse, err error) {
	defer util.Wrapf(&err, "RegisterClient(%q)", registrationEndpoint)

	if c == nil {
		c = http.DefaultClient
	}
	body, err := internaljson.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshaling registration metadata: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registrationEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var regErr clientRegistrationError
		if err := internaljson.Unmarshal(data, &regErr); err == nil && regErr.Error != "" {
			return nil, fmt.Errorf("registration failed: %s: %s", regErr.Error, regErr.ErrorDescription)
		}
		return nil, fmt.Errorf("registration failed with status %s", resp.Status)
	}

	var regResp ClientRegistrationResponse
	if err := internaljson.Unmarshal(data, &regResp); err != nil {
		return nil, fmt.Errorf("decoding registration response: %w", err)
	}
	if regResp.ClientID == "" {
		return nil, fmt.Errorf("registration response missing client_id")
	}
	return &regResp, nil
}
