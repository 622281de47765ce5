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

// ServerOptions configures a [Server].
type ServerOptions struct {
	// Instructions are returned to the client in the initialize response,
	// describing how to use the server and its features.
	Instructions string
	// Logger receives diagnostic output. If nil, slog.Default is used.
	Logger *slog.Logger
	// Strict enables the capability gate (§4.1): requests whose method is
	// not permitted by the peer's advertised capabilities fail locally
	// before transmission, instead of being sent and left to the remote
	// side to reject.
	Strict bool
	// SessionStore, if set, receives each session's [SessionState] when
	// initialize completes and on each logging/setLevel. The state is only
	// written: nothing in this package reads it back.
	SessionStore SessionStore
}

// A Server is a capability provider: the MCP-speaking side that answers
// requests and emits notifications, one [ServerSession] per connected
// transport.
//
// The tools/resources/prompts/sampling content façade is out of scope for
// this package (see the package doc); a Server exposes only the core
// lifecycle surface — initialize, ping, logging level control, and
// whatever additional request/notification handlers a caller registers
// directly via [ServerSession].
type Server struct {
	impl *Implementation
	opts ServerOptions
	log  *slog.Logger

	mu       sync.Mutex
	sessions map[*ServerSession]struct{}
}

// NewServer creates a Server with the given implementation identity. A nil
// opts is equivalent to &ServerOptions{}.
func NewServer(impl *Implementation, opts *ServerOptions) *Server {
	s := &Server{impl: impl, sessions: make(map[*ServerSession]struct{})}
	if opts != nil {
		s.opts = *opts
	}
	if s.opts.Logger != nil {
		s.log = s.opts.Logger
	} else {
		s.log = slog.Default()
	}
	return s
}

// capabilities returns the capability set this server advertises during
// initialize. Logging is always on, since [ServerSession.LogMessage] is
// always available; callers wanting additional declared capabilities
// (including for out-of-scope façades implemented externally) should use
// [ServerCapabilities.AddExtension] on the value returned here before
// passing it along, or construct InitializeResult by hand.
func (s *Server) capabilities() *ServerCapabilities {
	return &ServerCapabilities{Logging: &LoggingCapabilities{}}
}

// Sessions returns a snapshot of the server's currently connected sessions.
func (s *Server) Sessions() []*ServerSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ServerSession, 0, len(s.sessions))
	for ss := range s.sessions {
		out = append(out, ss)
	}
	return out
}

func (s *Server) addSession(ss *ServerSession) {
	s.mu.Lock()
	s.sessions[ss] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) dropSession(ss *ServerSession) {
	s.mu.Lock()
	delete(s.sessions, ss)
	s.mu.Unlock()
}

// Connect connects transport and runs the server side of the initialize
// handshake: it registers the lifecycle method handlers, starts the
// receive loop, and returns once the session is ready to accept the
// client's initialize request (initialize itself, like every other
// inbound request, is handled asynchronously by the receive loop).
func (s *Server) Connect(ctx context.Context, transport Transport) (*ServerSession, error) {
	conn, err := transport.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting transport: %w", err)
	}
	sess := newSession(conn, s.log, s.opts.Strict)
	ss := &ServerSession{Session: sess, server: s}

	sess.RegisterRequestHandler(methodInitialize, func() Params { return &InitializeParams{} }, ss.handleInitialize)
	sess.RegisterRequestHandler(methodPing, func() Params { return &PingParams{} }, ss.handlePing)
	sess.RegisterRequestHandler(methodSetLevel, func() Params { return &SetLoggingLevelParams{} }, ss.handleSetLevel)
	sess.RegisterNotificationHandler(notificationInitialized, func() Params { return &InitializedParams{} }, ss.handleInitialized)

	s.addSession(ss)
	go func() {
		sess.receiveLoop(context.WithoutCancel(ctx), "server")
		s.dropSession(ss)
	}()
	return ss, nil
}

// A ServerSession is the server side of one logical MCP session: the
// runtime engine embedded from [Session], plus the negotiated client
// capabilities and session state captured at initialize.
type ServerSession struct {
	*Session
	server *Server

	mu               sync.Mutex
	initParams       *InitializeParams
	clientCaps       *ClientCapabilities
	negotiatedVer    string
	logLevel         LoggingLevel
}

// ID returns the transport-level session identifier, or "" if the
// transport does not assign one.
func (ss *ServerSession) ID() string {
	return ss.conn.SessionID()
}

// InitializeParams returns the params the client sent with initialize, or
// nil before the handshake completes.
func (ss *ServerSession) InitializeParams() *InitializeParams {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.initParams
}

// ClientCapabilities returns the capabilities the client advertised at
// initialize, or nil before the handshake completes.
func (ss *ServerSession) ClientCapabilities() *ClientCapabilities {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.clientCaps
}

func (ss *ServerSession) handleInitialize(ctx context.Context, _ *Session, id JSONRPCID, params Params) (Result, error) {
	p, ok := params.(*InitializeParams)
	if !ok || p == nil {
		return nil, ErrInvalidParams(fmt.Errorf("missing initialize params"))
	}

	// §3 negotiation rule: answer with a version we support that equals
	// the client's proposal when possible; otherwise with the newest one
	// older than the proposal, or our latest if none is older, and let the
	// client decide whether to accept or close (§8 S3).
	version := p.ProtocolVersion
	if !isSupportedProtocolVersion(version) {
		version = latestProtocolVersion
		for _, v := range supportedProtocolVersions { // newest first
			if v < p.ProtocolVersion {
				version = v
				break
			}
		}
	}

	ss.mu.Lock()
	ss.initParams = p
	ss.clientCaps = p.Capabilities
	ss.negotiatedVer = version
	ss.logLevel = LoggingLevelInfo
	ss.mu.Unlock()

	ss.gate = &capabilityGate{client: p.Capabilities, server: ss.server.capabilities()}

	if store := ss.server.opts.SessionStore; store != nil {
		_ = store.Store(ctx, ss.ID(), &SessionState{InitializeParams: p, LogLevel: LoggingLevelInfo})
	}

	return &InitializeResult{
		Capabilities:    ss.server.capabilities(),
		Instructions:    ss.server.opts.Instructions,
		ProtocolVersion: version,
		ServerInfo:      ss.server.impl,
	}, nil
}

func (ss *ServerSession) handleInitialized(ctx context.Context, _ *Session, _ Params) {
	ss.markInitialized()
}

func (ss *ServerSession) handlePing(ctx context.Context, _ *Session, id JSONRPCID, _ Params) (Result, error) {
	return &emptyResult{}, nil
}

func (ss *ServerSession) handleSetLevel(ctx context.Context, _ *Session, id JSONRPCID, params Params) (Result, error) {
	p, ok := params.(*SetLoggingLevelParams)
	if !ok {
		return nil, ErrInvalidParams(fmt.Errorf("missing level"))
	}
	ss.mu.Lock()
	ss.logLevel = p.Level
	initParams := ss.initParams
	ss.mu.Unlock()
	if store := ss.server.opts.SessionStore; store != nil {
		_ = store.Store(ctx, ss.ID(), &SessionState{InitializeParams: initParams, LogLevel: p.Level})
	}
	return &emptyResult{}, nil
}

// LogMessage sends a notifications/message log entry to the client if its
// configured level permits (via logging/setLevel); callers that want
// unconditional delivery can bypass this by calling Notify directly.
func (ss *ServerSession) LogMessage(ctx context.Context, params *LoggingMessageParams) error {
	ss.mu.Lock()
	level := ss.logLevel
	ss.mu.Unlock()
	if !logLevelAtLeast(params.Level, level) {
		return nil
	}
	return ss.notify(ctx, "toClient", notificationLoggingMessage, params)
}

var logLevelOrder = map[LoggingLevel]int{
	LoggingLevelDebug:     0,
	LoggingLevelInfo:      1,
	LoggingLevelNotice:    2,
	LoggingLevelWarning:   3,
	LoggingLevelError:     4,
	LoggingLevelCritical:  5,
	LoggingLevelAlert:     6,
	LoggingLevelEmergency: 7,
}

func logLevelAtLeast(level, floor LoggingLevel) bool {
	return logLevelOrder[level] >= logLevelOrder[floor]
}

// NotifyProgress sends a notifications/progress notification to the client.
func (ss *ServerSession) NotifyProgress(ctx context.Context, params *ProgressNotificationParams) error {
	return ss.notify(ctx, "toClient", notificationProgress, params)
}

// serverRequest issues a server->client request of the given method,
// decoding the response into a value of type R.
func serverRequest[R Result](ctx context.Context, ss *ServerSession, method string, params Params, opts *RequestOptions) (R, error) {
	var zero R
	raw, err := ss.request(ctx, "toClient", method, params, opts)
	if err != nil {
		return zero, err
	}
	if err := remarshalRaw(raw, &zero); err != nil {
		return zero, ErrInternal(err)
	}
	return zero, nil
}

// Notify sends a fire-and-forget notification of the given method to the
// client.
func (ss *ServerSession) Notify(ctx context.Context, method string, params Params) error {
	return ss.notify(ctx, "toClient", method, params)
}

// Ping checks liveness of the client, per §8 S1.
func (ss *ServerSession) Ping(ctx context.Context, opts *RequestOptions) error {
	_, err := serverRequest[*emptyResult](ctx, ss, methodPing, &PingParams{}, opts)
	return err
}

// ServerRequest wraps the request a handler is currently processing: its
// decoded Params and the ServerSession it arrived on, so progress and
// other session operations are a method call away (see [progress.go]).
type ServerRequest[P Params] struct {
	Session *ServerSession
	Params  P
}

// RegisterRequestHandler registers a typed request handler for method on
// every session accepted by server going forward would require a
// per-session hook; since sessions are created at Connect time, register
// handlers on the returned [ServerSession] instead. This helper adapts a
// typed handler function to the untyped signature [Session.RegisterRequestHandler]
// expects, for use on a concrete session.
func RegisterServerRequestHandler[P Params, R Result](ss *ServerSession, method string, newParams func() Params, handler func(context.Context, *ServerRequest[P]) (R, error)) {
	ss.Session.RegisterRequestHandler(method, newParams, func(ctx context.Context, _ *Session, id JSONRPCID, params Params) (Result, error) {
		p, _ := params.(P)
		return handler(ctx, &ServerRequest[P]{Session: ss, Params: p})
	})
}

// emptyResult is returned by methods (ping, setLevel) whose result is the
// empty JSON object.
type emptyResult struct {
	Meta `json:"_meta,omitempty"`
}

func (*emptyResult) isResult() {}
