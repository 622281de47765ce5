// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	internaljson "github.com/mcpcore/go-runtime/internal/json"
	"github.com/mcpcore/go-runtime/internal/jsonrpc2"
)

// jsonRawID returns v coerced to the jsonrpc2.ID it names, accepting both
// the string/int64 raw forms used on the wire and an already-typed ID
// (CancelledParams.RequestID is declared `any` to match arbitrary peers).
func jsonRawID(v any) (JSONRPCID, bool) {
	switch x := v.(type) {
	case JSONRPCID:
		return x, true
	case string:
		return jsonrpc2.NewStringID(x), true
	case float64:
		return jsonrpc2.NewIntID(int64(x)), true
	case int64:
		return jsonrpc2.NewIntID(x), true
	case int:
		return jsonrpc2.NewIntID(int64(x)), true
	default:
		return JSONRPCID{}, false
	}
}

// requestHandlerFunc dispatches a decoded incoming request to user code,
// returning the Result to send back (or an *Error).
type requestHandlerFunc func(ctx context.Context, s *Session, id JSONRPCID, params Params) (Result, error)

// notificationHandlerFunc dispatches a decoded incoming notification.
type notificationHandlerFunc func(ctx context.Context, s *Session, params Params)

// methodSpec associates a method name with a factory for its Params type,
// so the dispatch loop can decode raw JSON before invoking a handler.
type methodSpec struct {
	newParams func() Params
}

// Session is the shared engine behind ClientSession and ServerSession: the
// pending-request table, handler registries, and send/receive loop
// described by the protocol runtime. A Session is not used directly by
// callers; it is embedded in ClientSession and ServerSession.
type Session struct {
	conn   Connection
	logger *slog.Logger
	strict bool

	mu             sync.Mutex
	pending        *pendingTable
	nextID         atomic.Int64
	progressTokens map[any]JSONRPCID
	inflight       map[JSONRPCID]context.CancelFunc

	methods       map[string]methodSpec
	requestFuncs  map[string]requestHandlerFunc
	notifyFuncs   map[string]notificationHandlerFunc
	fallbackReq   requestHandlerFunc
	fallbackNotif notificationHandlerFunc

	gate        *capabilityGate
	initialized atomic.Bool

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

func newSession(conn Connection, logger *slog.Logger, strict bool) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		conn:           conn,
		logger:         logger,
		strict:         strict,
		pending:        newPendingTable(),
		methods:        make(map[string]methodSpec),
		requestFuncs:   make(map[string]requestHandlerFunc),
		notifyFuncs:    make(map[string]notificationHandlerFunc),
		progressTokens: make(map[any]JSONRPCID),
		inflight:       make(map[JSONRPCID]context.CancelFunc),
		closed:         make(chan struct{}),
	}
	s.RegisterNotificationHandler(notificationProgress, func() Params { return &ProgressNotificationParams{} }, s.onProgress)
	s.RegisterNotificationHandler(notificationCancelled, func() Params { return &CancelledParams{} }, s.onCancelled)
	return s
}

// onCancelled implements the inbound half of cancellation (§4.1, §5): fire
// the cancel signal registered for the named request's context, so its
// handler observes ctx.Done() promptly. The runtime does not forcibly
// terminate the handler goroutine; a well-behaved handler returns soon
// after.
func (s *Session) onCancelled(_ context.Context, _ *Session, params Params) {
	p, ok := params.(*CancelledParams)
	if !ok {
		return
	}
	id, ok := jsonRawID(p.RequestID)
	if !ok {
		return
	}
	s.mu.Lock()
	cancel, ok := s.inflight[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// markInitialized records that the initialize/initialized handshake has
// completed, allowing methods beyond initialize/ping to be dispatched.
func (s *Session) markInitialized() {
	s.initialized.Store(true)
}

func (s *Session) isInitialized() bool {
	return s.initialized.Load()
}

// onProgress correlates an inbound progress notification to the pending
// request it belongs to by progress token, invoking that request's
// ProgressHandler and, if configured, resetting its timeout.
func (s *Session) onProgress(ctx context.Context, _ *Session, params Params) {
	p, ok := params.(*ProgressNotificationParams)
	if !ok || p.ProgressToken == nil {
		return
	}
	s.mu.Lock()
	id, ok := s.progressTokens[p.ProgressToken]
	if !ok {
		s.mu.Unlock()
		return
	}
	pr, ok := s.pending.get(id)
	s.mu.Unlock()
	if !ok {
		return
	}
	if pr.resetOnProgress && pr.timer != nil && pr.timeout > 0 {
		pr.timer.Reset(pr.timeout)
	}
	if pr.progressHandler != nil {
		pr.progressHandler(ctx, p)
	}
}

// registerMethod declares the Params type for method, so incoming
// envelopes for it can be decoded before a handler runs.
func (s *Session) registerMethod(method string, newParams func() Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[method] = methodSpec{newParams: newParams}
}

// RegisterRequestHandler registers handler as the responder for incoming
// requests of the given method. Only one handler may be registered per
// method.
func (s *Session) RegisterRequestHandler(method string, newParams func() Params, handler requestHandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[method] = methodSpec{newParams: newParams}
	s.requestFuncs[method] = handler
}

// RegisterNotificationHandler registers handler as the responder for
// incoming notifications of the given method.
func (s *Session) RegisterNotificationHandler(method string, newParams func() Params, handler notificationHandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[method] = methodSpec{newParams: newParams}
	s.notifyFuncs[method] = handler
}

// SetFallbackRequestHandler registers a handler invoked for any request
// method with no specific handler registered.
func (s *Session) SetFallbackRequestHandler(handler requestHandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallbackReq = handler
}

// SetFallbackNotificationHandler registers a handler invoked for any
// notification method with no specific handler registered.
func (s *Session) SetFallbackNotificationHandler(handler notificationHandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallbackNotif = handler
}

// Close terminates the session, failing every pending request with
// ErrConnectionClosed and closing the underlying Connection.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.pending.drain(ErrConnectionClosed())
		s.mu.Unlock()
		close(s.closed)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Wait blocks until the session's receive loop exits, returning the
// reason (nil on a clean Close).
func (s *Session) Wait() error {
	<-s.closed
	return s.closeErr
}

func (s *Session) nextRequestID() JSONRPCID {
	return jsonrpc2.NewIntID(s.nextID.Add(1))
}

// request implements the send algorithm: assign an ID, register a pending
// entry, transmit, then block for the matching response (or ctx/timeout).
//
// If opts.ResetTimeoutOnProgress or opts.ProgressHandler is set, a
// progress token is generated and attached to params so inbound progress
// notifications can be correlated back to this call.
func (s *Session) request(ctx context.Context, dir string, method string, params Params, opts *RequestOptions) (internaljson.Raw, error) {
	if s.strict && !s.gate.allows(dir, method) {
		return nil, ErrMethodNotSupported(method)
	}
	if opts == nil {
		opts = &RequestOptions{}
	}

	timeout := opts.Timeout
	switch timeout {
	case 0:
		timeout = defaultRequestTimeout
	case DisableTimeout:
		timeout = 0
	}

	id := s.nextRequestID()
	resultCh := make(chan pendingResult, 1)
	pr := &pendingRequest{
		method:          method,
		resultCh:        resultCh,
		resetOnProgress: opts.ResetTimeoutOnProgress,
		timeout:         timeout,
		progressHandler: opts.ProgressHandler,
	}

	var progressToken any
	if opts.ProgressHandler != nil || opts.ResetTimeoutOnProgress {
		progressToken = id.String()
		pr.progressToken = progressToken
		if params != nil {
			params.SetProgressToken(progressToken)
		}
	}

	s.mu.Lock()
	s.pending.add(id, pr)
	if progressToken != nil {
		s.progressTokens[progressToken] = id
	}
	s.mu.Unlock()

	cleanup := func() {
		s.mu.Lock()
		s.pending.delete(id)
		if progressToken != nil {
			delete(s.progressTokens, progressToken)
		}
		s.mu.Unlock()
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		pr.timer = timer
		timeoutCh = timer.C
	}
	var maxTotalCh <-chan time.Time
	if opts.MaxTotalTimeout > 0 {
		maxTimer := time.NewTimer(opts.MaxTotalTimeout)
		defer maxTimer.Stop()
		maxTotalCh = maxTimer.C
	}

	req := &JSONRPCRequest{ID: id, Method: method, Params: params}
	if err := s.conn.Write(ctx, req); err != nil {
		cleanup()
		return nil, wrapError(CodeInternalError, "writing request", err)
	}

	for {
		select {
		case <-ctx.Done():
			cleanup()
			s.cancelRemote(method, id, "context done")
			return nil, ctx.Err()
		case <-timeoutCh:
			cleanup()
			s.cancelRemote(method, id, "timeout")
			return nil, ErrRequestTimeout()
		case <-maxTotalCh:
			cleanup()
			s.cancelRemote(method, id, "max total timeout")
			return nil, ErrRequestTimeout()
		case res := <-resultCh:
			cleanup()
			return res.result, res.err
		}
	}
}

// cancelRemote best-effort notifies the peer that a request this side
// issued is no longer wanted.
func (s *Session) cancelRemote(forMethod string, id JSONRPCID, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.conn.Write(ctx, &JSONRPCNotification{
		Method: notificationCancelled,
		Params: &CancelledParams{RequestID: id.Raw(), Reason: reason},
	})
}

// notify implements the one-way send algorithm.
func (s *Session) notify(ctx context.Context, dir string, method string, params Params) error {
	if s.strict && !s.gate.allows(dir, method) {
		return ErrMethodNotSupported(method)
	}
	return s.conn.Write(ctx, &JSONRPCNotification{Method: method, Params: params})
}

// receiveLoop reads from the connection until it closes, dispatching each
// message to the appropriate handler or pending-request resolution.
func (s *Session) receiveLoop(ctx context.Context, dir string) {
	defer s.Close()
	for {
		msg, err := s.conn.Read(ctx)
		if err != nil {
			return
		}
		switch m := msg.(type) {
		case *JSONRPCResponse:
			s.resolveResponse(m)
		case *JSONRPCRequest:
			go s.handleRequest(ctx, dir, m)
		case *JSONRPCNotification:
			s.handleNotification(ctx, dir, m)
		}
	}
}

func (s *Session) resolveResponse(resp *JSONRPCResponse) {
	s.mu.Lock()
	pr, ok := s.pending.get(resp.ID)
	if ok {
		s.pending.delete(resp.ID)
	}
	s.mu.Unlock()
	if !ok {
		s.logger.Warn("received response for unknown request", "id", resp.ID.String())
		return
	}
	var res pendingResult
	if resp.Error != nil {
		res.err = &Error{Code: int(resp.Error.Code), Message: resp.Error.Message, Data: resp.Error.Data}
	} else if raw, ok := resp.Result.(internaljson.Raw); ok {
		res.result = raw
	}
	select {
	case pr.resultCh <- res:
	default:
	}
}

func (s *Session) lookupSpec(method string) (methodSpec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	spec, ok := s.methods[method]
	return spec, ok
}

// methodExemptFromHandshake reports whether method may be dispatched before initialize/initialized
// completes (§3 invariant: "initialize is always the first request on a
// session; no other method succeeds before the handshake completes").
func methodExemptFromHandshake(method string) bool {
	switch method {
	case methodInitialize, methodPing:
		return true
	default:
		return false
	}
}

func (s *Session) handleRequest(ctx context.Context, dir string, req *JSONRPCRequest) {
	if !s.isInitialized() && !methodExemptFromHandshake(req.Method) {
		s.sendErrorResponse(ctx, req.ID, newError(CodeInvalidRequest, "request sent before initialize handshake completed"))
		return
	}

	spec, ok := s.lookupSpec(req.Method)
	var params Params
	if ok {
		params = spec.newParams()
		if raw, isRaw := req.Params.(internaljson.Raw); isRaw && len(raw) > 0 {
			if err := internaljson.Unmarshal(raw, params); err != nil {
				s.sendErrorResponse(ctx, req.ID, ErrInvalidParams(err))
				return
			}
		}
	}

	s.mu.Lock()
	handler, hasHandler := s.requestFuncs[req.Method]
	fallback := s.fallbackReq
	s.mu.Unlock()

	if !hasHandler {
		if fallback == nil {
			s.sendErrorResponse(ctx, req.ID, ErrMethodNotFound(req.Method))
			return
		}
		handler = fallback
	}

	// Register a fresh cancel signal under this request's id, so that an
	// inbound notifications/cancelled can reach the handler via ctx.Done().
	// The request id is also stored under idContextKey, so that transports
	// can route messages sent while handling it (see streamable.go).
	hctx, cancel := context.WithCancel(context.WithValue(ctx, idContextKey{}, req.ID))
	if req.ID.IsValid() {
		s.mu.Lock()
		s.inflight[req.ID] = cancel
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, req.ID)
			s.mu.Unlock()
			cancel()
		}()
	} else {
		defer cancel()
	}

	result, err := handler(hctx, s, req.ID, params)
	if err != nil {
		if hctx.Err() != nil {
			// The handler observed cancellation; a response may still race
			// with the cancel notification, but per §5 a response arriving
			// after cancellation on the caller's side is simply dropped, so
			// sending one here is harmless and keeps the wire well-formed.
			s.sendErrorResponse(ctx, req.ID, ErrCancelled(""))
			return
		}
		s.sendErrorResponse(ctx, req.ID, err)
		return
	}
	if werr := s.conn.Write(ctx, &JSONRPCResponse{ID: req.ID, Result: result}); werr != nil {
		s.logger.Error("writing response", "method", req.Method, "error", werr)
	}
}

func (s *Session) sendErrorResponse(ctx context.Context, id JSONRPCID, err error) {
	var code int = CodeInternalError
	msg := err.Error()
	var data any
	var mcpErr *Error
	if asError(err, &mcpErr) {
		code = mcpErr.Code
		msg = mcpErr.Message
		data = mcpErr.Data
	}
	_ = s.conn.Write(ctx, &JSONRPCResponse{ID: id, Error: &JSONRPCError{Code: int64(code), Message: msg, Data: data}})
}

func asError(err error, target **Error) bool {
	if e, ok := err.(*Error); ok {
		*target = e
		return true
	}
	return false
}

func (s *Session) handleNotification(ctx context.Context, dir string, notif *JSONRPCNotification) {
	spec, ok := s.lookupSpec(notif.Method)
	var params Params
	if ok {
		params = spec.newParams()
		if raw, isRaw := notif.Params.(internaljson.Raw); isRaw && len(raw) > 0 {
			if err := internaljson.Unmarshal(raw, params); err != nil {
				s.logger.Warn("discarding malformed notification", "method", notif.Method, "error", err)
				return
			}
		}
	}

	s.mu.Lock()
	handler, hasHandler := s.notifyFuncs[notif.Method]
	fallback := s.fallbackNotif
	s.mu.Unlock()

	if !hasHandler {
		if fallback == nil {
			return
		}
		handler = fallback
	}
	handler(ctx, s, params)
}
