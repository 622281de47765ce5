// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import "context"

// A Transport connects a logical MCP session to a transport-specific
// Connection. Implementations include the Streamable HTTP, legacy SSE and
// WebSocket transports.
type Transport interface {
	// Connect returns the Connection used to send and receive messages for
	// a single session. It is called exactly once per session.
	Connect(ctx context.Context) (Connection, error)
}

// A Connection is a logical duplex stream of JSON-RPC messages, bound to a
// single session. Read and Write may be called concurrently with each
// other, but each must not be called concurrently with itself.
type Connection interface {
	// Read reads the next message from the connection, blocking until one
	// is available or ctx is done. It returns io.EOF once the connection is
	// closed with no error.
	Read(ctx context.Context) (JSONRPCMessage, error)
	// Write sends a message over the connection.
	Write(ctx context.Context, msg JSONRPCMessage) error
	// SessionID returns the transport-level session identifier, or "" if
	// the transport does not assign one.
	SessionID() string
	// Close releases resources associated with the connection.
	Close() error
}
