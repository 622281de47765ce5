// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import "sync"

// capabilityGate decides, before a message is transmitted, whether the
// peer has advertised support for a given method. It is populated once
// initialize completes and is nil (permissive) beforehand.
//
// Gating is opt-in: a Session only consults the gate when its Options set
// Strict. Methods with no registered requirement (see
// RegisterMethodCapability) are always allowed.
type capabilityGate struct {
	client *ClientCapabilities
	server *ServerCapabilities
}

// methodCapabilityCheck reports whether method may be sent in direction
// dir ("toServer" or "toClient") given the peer's negotiated
// capabilities. Either capabilities pointer may be nil if initialize
// hasn't completed with that side's capabilities populated.
type methodCapabilityCheck func(dir string, client *ClientCapabilities, server *ServerCapabilities) bool

var (
	methodCapabilitiesMu sync.RWMutex
	methodCapabilities   = map[string]methodCapabilityCheck{
		methodInitialize:           func(string, *ClientCapabilities, *ServerCapabilities) bool { return true },
		notificationInitialized:    func(string, *ClientCapabilities, *ServerCapabilities) bool { return true },
		methodPing:                 func(string, *ClientCapabilities, *ServerCapabilities) bool { return true },
		notificationCancelled:      func(string, *ClientCapabilities, *ServerCapabilities) bool { return true },
		notificationProgress:       func(string, *ClientCapabilities, *ServerCapabilities) bool { return true },
		methodSetLevel:             requireServerLogging,
		notificationLoggingMessage: requireServerLogging,
	}
)

// requireServerLogging allows logging/setLevel requests unconditionally
// (servers are free to ignore a level they can't honor) but gates the
// server->client notifications/message delivery on the server having
// advertised the logging capability.
func requireServerLogging(dir string, _ *ClientCapabilities, server *ServerCapabilities) bool {
	if dir == "toServer" {
		return true
	}
	return server != nil && server.Logging != nil
}

// RegisterMethodCapability registers the negotiated-capability check
// enforced for method in strict-mode sessions. Packages that add methods
// outside this package's core lifecycle surface (such as a
// tools/resources/prompts facade) call this so a session in strict mode
// rejects a call locally with [ErrMethodNotSupported] when the peer
// never advertised the corresponding capability, instead of transmitting
// it anyway. Registering twice for the same method replaces the check.
func RegisterMethodCapability(method string, check func(dir string, client *ClientCapabilities, server *ServerCapabilities) bool) {
	methodCapabilitiesMu.Lock()
	defer methodCapabilitiesMu.Unlock()
	methodCapabilities[method] = check
}

// allows reports whether method may be sent given the negotiated
// capabilities. dir is "toServer" for client->server requests, "toClient"
// for server->client requests. A method with no registered check is
// outside this gate's vocabulary and is always allowed; the gate only
// ever says no for methods it was told to have an opinion about.
func (g *capabilityGate) allows(dir string, method string) bool {
	if g == nil {
		return true
	}
	methodCapabilitiesMu.RLock()
	check, ok := methodCapabilities[method]
	methodCapabilitiesMu.RUnlock()
	if !ok {
		return true
	}
	return check(dir, g.client, g.server)
}
