// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// A ServerSessionStore is a concurrency-safe, in-process registry keyed by
// session ID. Unlike [SessionStore], which persists the serializable
// [SessionState] so it can survive a restart, a ServerSessionStore holds
// live Go values scoped to this process — such as the [SSEHandler]'s
// open [SSEServerTransport] per session.
type ServerSessionStore[T any] interface {
	Set(sessionID string, v T)
	Get(sessionID string) (T, error)
	Delete(sessionID string) error
}

// MemoryServerSessionStore is the default, in-memory [ServerSessionStore].
type MemoryServerSessionStore[T any] struct {
	mu    sync.Mutex
	store map[string]T
}

// NewMemoryServerSessionStore returns an empty MemoryServerSessionStore.
func NewMemoryServerSessionStore[T any]() *MemoryServerSessionStore[T] {
	return &MemoryServerSessionStore[T]{store: make(map[string]T)}
}

func (s *MemoryServerSessionStore[T]) Set(sessionID string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[sessionID] = v
}

// Get returns the value for sessionID, or the zero value of T if absent.
// Absence is not an error: callers distinguish it the same way they would
// a zero value from a plain map, since this store never records "why"
// something is missing.
func (s *MemoryServerSessionStore[T]) Get(sessionID string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store[sessionID], nil
}

func (s *MemoryServerSessionStore[T]) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, sessionID)
	return nil
}

// SSEOptions configures an [SSEHandler].
type SSEOptions struct {
	// MaxBodyBytes caps the size of POST request bodies; see
	// [effectiveMaxBodyBytes].
	MaxBodyBytes int64

	// AllowedHosts and AllowedOrigins configure DNS-rebinding protection;
	// see [HostOriginPolicy].
	AllowedHosts   []string
	AllowedOrigins []string

	// Sessions stores each session's live transport, keyed by its
	// sessionId query parameter. A nil value uses an in-process
	// [MemoryServerSessionStore].
	Sessions ServerSessionStore[*SSEServerTransport]
}

// An SSEHandler is an http.Handler implementing the legacy two-endpoint
// SSE transport (§4.3): GET opens the event stream and hands back the
// POST inbox URL as the first event; POST delivers one JSON-RPC envelope
// to the session named by its sessionId query parameter.
type SSEHandler struct {
	getServer func(*http.Request) *Server
	opts      SSEOptions
	router    *mux.Router

	// onConnection, if set, is called with each newly connected
	// ServerSession; used by tests to observe server-side sessions
	// without threading a channel through getServer.
	onConnection func(*ServerSession)
}

// NewSSEHandler returns a new SSEHandler. A nil opts is equivalent to
// &SSEOptions{}.
func NewSSEHandler(getServer func(*http.Request) *Server, opts *SSEOptions) *SSEHandler {
	h := &SSEHandler{getServer: getServer}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Sessions == nil {
		h.opts.Sessions = NewMemoryServerSessionStore[*SSEServerTransport]()
	}

	router := mux.NewRouter()
	router.Methods(http.MethodGet).HandlerFunc(h.serveGET)
	router.Methods(http.MethodPost).HandlerFunc(h.servePOST)
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
	})
	h.router = router
	return h
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	policy := HostOriginPolicy{AllowedHosts: h.opts.AllowedHosts, AllowedOrigins: h.opts.AllowedOrigins}
	if !policy.Allowed(req) {
		writeForbiddenHostOrigin(w)
		return
	}
	h.router.ServeHTTP(w, req)
}

func (h *SSEHandler) serveGET(w http.ResponseWriter, req *http.Request) {
	sessionID := uuid.NewString()
	endpoint := "?sessionId=" + url.QueryEscape(sessionID)
	tpt := NewSSEServerTransport(endpoint, w)
	tpt.MaxBodyBytes = h.opts.MaxBodyBytes
	h.opts.Sessions.Set(sessionID, tpt)
	defer h.opts.Sessions.Delete(sessionID)

	server := h.getServer(req)
	ss, err := server.Connect(req.Context(), tpt)
	if err != nil {
		http.Error(w, "failed connection", http.StatusInternalServerError)
		return
	}
	if h.onConnection != nil {
		h.onConnection(ss)
	}

	tpt.serveGET(req)
}

func (h *SSEHandler) servePOST(w http.ResponseWriter, req *http.Request) {
	sessionID := req.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId query parameter", http.StatusBadRequest)
		return
	}
	tpt, err := h.opts.Sessions.Get(sessionID)
	if err != nil || tpt == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	tpt.servePOST(w, req)
}

// An SSEServerTransport implements the [Transport] and [Connection]
// interfaces for a single legacy-SSE session: one long-lived GET stream
// carrying server->client messages, paired with a POST inbox for
// client->server messages.
//
// A value is created by [NewSSEServerTransport] and driven by
// [SSEHandler]; it has no independent resumability (§4.3: "no
// resumability" — unlike the streamable transport, it keeps no event log).
type SSEServerTransport struct {
	// MaxBodyBytes caps accepted POST bodies; see [effectiveMaxBodyBytes].
	MaxBodyBytes int64

	endpoint string

	mu     sync.Mutex
	w      http.ResponseWriter
	isDone bool
	done   chan struct{}

	incoming chan JSONRPCMessage
}

// NewSSEServerTransport returns a new SSEServerTransport that streams to w
// and tells connecting clients to POST to endpoint (a URL, typically
// relative, carrying this session's identifying query parameters). The
// stream itself — writing headers, the endpoint event, and blocking for
// the life of the session — starts when [SSEHandler] calls serveGET.
func NewSSEServerTransport(endpoint string, w http.ResponseWriter) *SSEServerTransport {
	return &SSEServerTransport{
		endpoint: endpoint,
		w:        w,
		done:     make(chan struct{}),
		incoming: make(chan JSONRPCMessage, 10),
	}
}

// Connect implements the [Transport] interface.
func (t *SSEServerTransport) Connect(context.Context) (Connection, error) {
	return t, nil
}

func (t *SSEServerTransport) SessionID() string { return "" }

func (t *SSEServerTransport) serveGET(req *http.Request) {
	flush, ok := t.w.(flusher)
	if !ok {
		http.Error(t.w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	t.w.Header().Set("Content-Type", "text/event-stream")
	t.w.Header().Set("Cache-Control", "no-cache, no-transform")
	t.w.Header().Set("Connection", "keep-alive")
	t.w.WriteHeader(http.StatusOK)

	if _, err := writeEvent(t.w, event{name: "endpoint", data: []byte(t.endpoint)}); err != nil {
		return
	}
	flush.Flush()

	select {
	case <-req.Context().Done():
	case <-t.done:
	}
}

func (t *SSEServerTransport) servePOST(w http.ResponseWriter, req *http.Request) {
	if limit := effectiveMaxBodyBytes(t.MaxBodyBytes); limit > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, limit)
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		if isMaxBytesError(err) {
			writeRequestBodyTooLarge(w)
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	msg, err := unmarshalEvent(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("malformed payload: %v", err), http.StatusBadRequest)
		return
	}

	t.mu.Lock()
	done := t.isDone
	t.mu.Unlock()
	if done {
		http.Error(w, "session terminated", http.StatusGone)
		return
	}

	select {
	case t.incoming <- msg:
		w.WriteHeader(http.StatusAccepted)
	case <-t.done:
		http.Error(w, "session terminated", http.StatusGone)
	case <-req.Context().Done():
	}
}

// Read implements the [Connection] interface.
func (t *SSEServerTransport) Read(ctx context.Context) (JSONRPCMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-t.incoming:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-t.done:
		return nil, io.EOF
	}
}

// Write implements the [Connection] interface, sending msg as a "message"
// SSE event over the session's GET stream.
func (t *SSEServerTransport) Write(ctx context.Context, msg JSONRPCMessage) error {
	select {
	case <-t.done:
		return fmt.Errorf("session is closed")
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := marshalEvent(msg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isDone {
		return fmt.Errorf("session is closed")
	}
	if _, err := writeEvent(t.w, event{name: "message", data: data}); err != nil {
		return err
	}
	return nil
}

// Close implements the [Connection] interface.
func (t *SSEServerTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.isDone {
		t.isDone = true
		close(t.done)
	}
	return nil
}

// SSEClientTransport implements the client side of the legacy SSE
// transport (§4.3): it opens the GET stream, reads the endpoint event to
// learn the POST inbox URL, then exchanges messages over the two.
type SSEClientTransport struct {
	// Endpoint is the base URL of the SSE GET stream (e.g. ".../sse").
	Endpoint string
	// HTTPClient, if set, is used for both the GET stream and POST
	// requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

func (t *SSEClientTransport) httpClient() *http.Client {
	if t.HTTPClient != nil {
		return t.HTTPClient
	}
	return http.DefaultClient
}

// Connect implements the [Transport] interface: it opens the GET stream
// and blocks until the server's endpoint event names the POST inbox, or
// the stream fails before that.
func (t *SSEClientTransport) Connect(ctx context.Context) (Connection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting SSE stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, fmt.Errorf("connecting SSE stream: %s: %s", resp.Status, body)
	}

	base, err := url.Parse(t.Endpoint)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}

	conn := &sseClientConn{
		client: t.httpClient(),
		base:   base,
		body:   resp.Body,
		done:   make(chan struct{}),
		msgs:   make(chan JSONRPCMessage, 10),
		ready:  make(chan struct{}),
	}
	go conn.readLoop()

	select {
	case <-conn.ready:
		if conn.endpointErr != nil {
			conn.Close()
			return nil, conn.endpointErr
		}
	case <-conn.done:
		conn.mu.Lock()
		err := conn.err
		conn.mu.Unlock()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("SSE stream closed before endpoint event: %w", err)
	case <-ctx.Done():
		conn.Close()
		return nil, ctx.Err()
	}

	return conn, nil
}

type sseClientConn struct {
	client *http.Client
	base   *url.URL
	body   io.ReadCloser

	ready       chan struct{} // closed once msgEndpoint is set (or endpointErr)
	endpointErr error

	mu          sync.Mutex
	msgEndpoint *url.URL
	isDone      bool
	done        chan struct{}
	err         error

	msgs chan JSONRPCMessage
}

func (c *sseClientConn) readLoop() {
	defer c.Close()
	defer c.body.Close()

	readyClosed := false
	closeReady := func(err error) {
		if !readyClosed {
			c.endpointErr = err
			readyClosed = true
			close(c.ready)
		}
	}

	for evt, err := range scanEvents(c.body) {
		if err != nil {
			if err != io.EOF {
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
			}
			closeReady(fmt.Errorf("SSE stream ended before endpoint event"))
			return
		}
		switch evt.name {
		case "endpoint":
			ref, err := url.Parse(string(evt.data))
			if err != nil {
				closeReady(fmt.Errorf("parsing endpoint event: %w", err))
				return
			}
			c.mu.Lock()
			c.msgEndpoint = c.base.ResolveReference(ref)
			c.mu.Unlock()
			closeReady(nil)
		case "message":
			msg, err := unmarshalEvent(evt.data)
			if err != nil {
				c.mu.Lock()
				c.err = fmt.Errorf("decoding message event: %w", err)
				c.mu.Unlock()
				return
			}
			select {
			case c.msgs <- msg:
			case <-c.done:
				return
			}
		}
	}
}

func (c *sseClientConn) Read(ctx context.Context) (JSONRPCMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-c.msgs:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-c.done:
		c.mu.Lock()
		err := c.err
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
}

func (c *sseClientConn) Write(ctx context.Context, msg JSONRPCMessage) error {
	c.mu.Lock()
	endpoint := c.msgEndpoint
	c.mu.Unlock()
	if endpoint == nil {
		return fmt.Errorf("no POST endpoint known yet")
	}

	data, err := marshalEvent(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("POST to %s: %s: %s", endpoint, resp.Status, body)
	}
	return nil
}

func (c *sseClientConn) SessionID() string { return "" }

func (c *sseClientConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isDone {
		c.isDone = true
		close(c.done)
	}
	return nil
}
