// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"github.com/mcpcore/go-runtime/internal/jsonrpc2"
)

// JSONRPCMessage is the wire envelope common to requests, responses and
// notifications. Concrete types are *JSONRPCRequest, *JSONRPCResponse and
// *JSONRPCNotification.
type JSONRPCMessage = jsonrpc2.Message

// JSONRPCID identifies a JSON-RPC request. See [jsonrpc2.ID].
type JSONRPCID = jsonrpc2.ID

// JSONRPCRequest is an outgoing or incoming call expecting a response.
type JSONRPCRequest = jsonrpc2.Request

// JSONRPCResponse is the reply to a JSONRPCRequest.
type JSONRPCResponse = jsonrpc2.Response

// JSONRPCNotification is a call with no ID, for which no response is sent.
type JSONRPCNotification = jsonrpc2.Notification

// JSONRPCError is the wire error object embedded in a JSONRPCResponse.
type JSONRPCError = jsonrpc2.WireError
