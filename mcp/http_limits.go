// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/mcpcore/go-runtime/internal/util"
)

// DefaultMaxBodyBytes is the default maximum size (in bytes) for HTTP request
// bodies accepted by the built-in SSE and streamable HTTP handlers.
//
// This limit exists to prevent accidental or malicious large requests from
// exhausting server resources.
const DefaultMaxBodyBytes int64 = 1_000_000

// effectiveMaxBodyBytes converts the user-configured maxBodyBytes value to an
// effective limit.
//
// Semantics:
//   - maxBodyBytes == 0: use DefaultMaxBodyBytes
//   - maxBodyBytes  < 0: no limit
//   - maxBodyBytes  > 0: use maxBodyBytes
func effectiveMaxBodyBytes(maxBodyBytes int64) int64 {
	switch {
	case maxBodyBytes == 0:
		return DefaultMaxBodyBytes
	case maxBodyBytes < 0:
		return 0
	default:
		return maxBodyBytes
	}
}

func isMaxBytesError(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func writeRequestBodyTooLarge(w http.ResponseWriter) {
	// Even though http.MaxBytesReader will try to close the connection after the
	// limit is exceeded, explicitly request closure here too.
	w.Header().Set("Connection", "close")
	http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
}

// HostOriginPolicy is DNS-rebinding protection shared by the Streamable
// HTTP and legacy SSE transports (§4.2/§4.3): requests whose Host or
// Origin header isn't on an allow-list are rejected. Loopback addresses
// are always allowed, even when a list is configured, so local
// development isn't broken by an incomplete list.
//
// The zero value allows every host and origin.
type HostOriginPolicy struct {
	AllowedHosts   []string
	AllowedOrigins []string
}

// Allowed reports whether req's Host and Origin headers pass this policy.
func (p HostOriginPolicy) Allowed(req *http.Request) bool {
	return p.checkHost(req.Host) && p.checkOrigin(req.Header.Get("Origin"))
}

func (p HostOriginPolicy) checkHost(host string) bool {
	if len(p.AllowedHosts) == 0 || util.IsLoopback(host) {
		return true
	}
	for _, h := range p.AllowedHosts {
		if h == host {
			return true
		}
	}
	return false
}

func (p HostOriginPolicy) checkOrigin(origin string) bool {
	if origin == "" || len(p.AllowedOrigins) == 0 {
		return true
	}
	if u, err := url.Parse(origin); err == nil && util.IsLoopback(u.Host) {
		return true
	}
	for _, o := range p.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

func writeForbiddenHostOrigin(w http.ResponseWriter) {
	http.Error(w, "host or origin not allowed", http.StatusForbidden)
}
