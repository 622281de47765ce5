// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// ClientOptions configures a [Client].
type ClientOptions struct {
	// Capabilities are the capabilities this client advertises to the
	// server during initialize. A nil value is equivalent to &ClientCapabilities{}.
	Capabilities *ClientCapabilities
	// Logger receives diagnostic output. If nil, slog.Default is used.
	Logger *slog.Logger
	// Strict enables the capability gate (§4.1).
	Strict bool
}

// A Client is an application host: the MCP-speaking side that issues
// requests to, and receives notifications/requests from, a capability
// provider (Server), over one [ClientSession] per connected transport.
type Client struct {
	impl *Implementation
	opts ClientOptions
	log  *slog.Logger
}

// NewClient creates a Client with the given implementation identity. A
// nil opts is equivalent to &ClientOptions{}.
func NewClient(impl *Implementation, opts *ClientOptions) *Client {
	c := &Client{impl: impl}
	if opts != nil {
		c.opts = *opts
	}
	if c.opts.Capabilities == nil {
		c.opts.Capabilities = &ClientCapabilities{}
	}
	if c.opts.Logger != nil {
		c.log = c.opts.Logger
	} else {
		c.log = slog.Default()
	}
	return c
}

// Connect connects transport and runs the client side of the initialize
// handshake (§4.1): it sends initialize, validates the server's chosen
// protocol version against our supported list, caches the server's
// capabilities and instructions, and sends notifications/initialized.
//
// Connect fails with an error naming the unsupported version if the
// server answers with a protocolVersion we do not support (§8 S3); the
// caller should treat this as a reason to close the transport, per spec.
func (c *Client) Connect(ctx context.Context, transport Transport) (*ClientSession, error) {
	conn, err := transport.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting transport: %w", err)
	}
	sess := newSession(conn, c.log, c.opts.Strict)
	cs := &ClientSession{Session: sess, client: c}

	go sess.receiveLoop(context.WithoutCancel(ctx), "client")

	initReq := &InitializeParams{
		Capabilities:    c.opts.Capabilities.clone(),
		ClientInfo:      c.impl,
		ProtocolVersion: latestProtocolVersion,
	}
	result, err := clientRequest[*InitializeResult](ctx, cs, methodInitialize, initReq, nil)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}
	if !isSupportedProtocolVersion(result.ProtocolVersion) {
		sess.Close()
		return nil, fmt.Errorf("server's protocol version is not supported: %s", result.ProtocolVersion)
	}

	cs.mu.Lock()
	cs.serverCaps = result.Capabilities
	cs.negotiatedVer = result.ProtocolVersion
	cs.instructions = result.Instructions
	cs.serverInfo = result.ServerInfo
	cs.mu.Unlock()

	cs.gate = &capabilityGate{client: c.opts.Capabilities, server: result.Capabilities}

	if err := cs.notify(ctx, "toServer", notificationInitialized, &InitializedParams{}); err != nil {
		sess.Close()
		return nil, fmt.Errorf("sending initialized notification: %w", err)
	}
	cs.markInitialized()

	return cs, nil
}

// A ClientSession is the client side of one logical MCP session.
type ClientSession struct {
	*Session
	client *Client

	mu            sync.Mutex
	serverCaps    *ServerCapabilities
	negotiatedVer string
	instructions  string
	serverInfo    *Implementation
}

// ID returns the transport-level session identifier, or "" if the
// transport does not assign one.
func (cs *ClientSession) ID() string {
	return cs.conn.SessionID()
}

// ServerCapabilities returns the capabilities the server advertised at
// initialize, or nil before the handshake completes.
func (cs *ClientSession) ServerCapabilities() *ServerCapabilities {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.serverCaps
}

// Instructions returns the server's usage instructions from initialize.
func (cs *ClientSession) Instructions() string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.instructions
}

// ServerInfo returns the server's advertised implementation identity.
func (cs *ClientSession) ServerInfo() *Implementation {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.serverInfo
}

// clientRequest issues a client->server request of the given method,
// decoding the response into a value of type R.
func clientRequest[R Result](ctx context.Context, cs *ClientSession, method string, params Params, opts *RequestOptions) (R, error) {
	var zero R
	raw, err := cs.request(ctx, "toServer", method, params, opts)
	if err != nil {
		return zero, err
	}
	if err := remarshalRaw(raw, &zero); err != nil {
		return zero, ErrInternal(err)
	}
	return zero, nil
}

// Ping checks liveness of the server (§8 S1).
func (cs *ClientSession) Ping(ctx context.Context, opts *RequestOptions) error {
	_, err := clientRequest[*emptyResult](ctx, cs, methodPing, &PingParams{}, opts)
	return err
}

// SetLoggingLevel asks the server to restrict notifications/message
// delivery to the given level and above.
func (cs *ClientSession) SetLoggingLevel(ctx context.Context, level LoggingLevel) error {
	_, err := clientRequest[*emptyResult](ctx, cs, methodSetLevel, &SetLoggingLevelParams{Level: level}, nil)
	return err
}

// Notify sends a fire-and-forget notification of the given method to the
// server.
func (cs *ClientSession) Notify(ctx context.Context, method string, params Params) error {
	return cs.notify(ctx, "toServer", method, params)
}

// NotifyProgress sends a notifications/progress notification to the server.
func (cs *ClientSession) NotifyProgress(ctx context.Context, params *ProgressNotificationParams) error {
	return cs.notify(ctx, "toServer", notificationProgress, params)
}

// Request issues a raw client->server request of the given method. Most
// callers should use a typed wrapper (e.g. clientRequest); Request exists
// for methods outside this package's core lifecycle vocabulary (such as
// the tools/resources/prompts façade implemented by other packages).
func (cs *ClientSession) Request(ctx context.Context, method string, params Params, resultPtr Result, opts *RequestOptions) error {
	raw, err := cs.request(ctx, "toServer", method, params, opts)
	if err != nil {
		return err
	}
	return remarshalRaw(raw, resultPtr)
}

// ClientRequest wraps the request a handler is currently processing on
// the client side (e.g. a server-initiated sampling or roots request):
// its decoded Params and the ClientSession it arrived on.
type ClientRequest[P Params] struct {
	Session *ClientSession
	Params  P
}

// RegisterClientRequestHandler registers a typed request handler for
// method on cs, for server->client requests (sampling, roots, elicitation
// and similar). The handler signature mirrors
// [RegisterServerRequestHandler]; see its doc for the per-session
// registration model this package uses instead of a registry on [Client].
func RegisterClientRequestHandler[P Params, R Result](cs *ClientSession, method string, newParams func() Params, handler func(context.Context, *ClientRequest[P]) (R, error)) {
	cs.Session.RegisterRequestHandler(method, newParams, func(ctx context.Context, _ *Session, id JSONRPCID, params Params) (Result, error) {
		p, _ := params.(P)
		return handler(ctx, &ClientRequest[P]{Session: cs, Params: p})
	})
}
