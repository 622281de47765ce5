// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build mcp_go_client_oauth

package auth

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Fetch is the capability an HTTP client exposes to middleware: issue a
// request, get back a response or an error.
type Fetch func(req *http.Request) (*http.Response, error)

// Middleware wraps a Fetch with additional behavior.
type Middleware func(Fetch) Fetch

// ComposeMiddlewares returns a Fetch that applies mw in the order given:
// the first middleware is outermost (runs first on the way out, last on
// the way back).
func ComposeMiddlewares(base Fetch, mw ...Middleware) Fetch {
	for i := len(mw) - 1; i >= 0; i-- {
		base = mw[i](base)
	}
	return base
}

// OAuthMiddleware returns a [Middleware] that authorizes requests using
// handler, following the 401 → Authorize → retry-once pattern: on a 401
// (or 403) response, it calls handler.Authorize once to obtain a token
// source, attaches the resulting access token to a clone of the original
// request, and retries exactly once. A second failure is returned as-is.
//
// Unlike the deprecated [HTTPTransport], this middleware operates at the
// Fetch level so it composes with other middleware (logging, retries)
// instead of requiring an [http.RoundTripper] stack.
func OAuthMiddleware(handler OAuthHandler) Middleware {
	return func(next Fetch) Fetch {
		return func(req *http.Request) (*http.Response, error) {
			bodyBytes, err := drainBody(req)
			if err != nil {
				return nil, err
			}

			resp, err := next(cloneWithBody(req, bodyBytes))
			if err != nil {
				return nil, err
			}
			if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
				return resp, nil
			}

			if err := handler.Authorize(req.Context(), req, resp); err != nil {
				return nil, err
			}

			ts, err := handler.TokenSource(req.Context())
			if err != nil {
				return nil, err
			}
			token, err := ts.Token()
			if err != nil {
				return nil, err
			}

			retryReq := cloneWithBody(req, bodyBytes)
			token.SetAuthHeader(retryReq)
			return next(retryReq)
		}
	}
}

// drainBody reads and closes req.Body (if non-nil), returning its bytes so
// the request can be safely replayed.
func drainBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	return data, err
}

func cloneWithBody(req *http.Request, body []byte) *http.Request {
	clone := req.Clone(req.Context())
	if body != nil {
		clone.Body = io.NopCloser(bytes.NewReader(body))
	}
	return clone
}

// LoggingOptions configures [LoggingMiddleware].
type LoggingOptions struct {
	// Logger receives one record per request. If nil, [slog.Default] is used.
	Logger *slog.Logger
	// StatusLevel, given the response status code (or 0 on transport
	// error), returns the level to log at. If nil, 5xx and transport
	// errors log at [slog.LevelError], 4xx at [slog.LevelWarn], and
	// everything else at [slog.LevelInfo].
	StatusLevel func(status int) slog.Level
}

// LoggingMiddleware returns a [Middleware] that records one structured log
// line per request: method, URL, resulting status, status text, and
// elapsed duration.
func LoggingMiddleware(opts LoggingOptions) Middleware {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	levelFor := opts.StatusLevel
	if levelFor == nil {
		levelFor = defaultStatusLevel
	}
	return func(next Fetch) Fetch {
		return func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next(req)
			elapsed := time.Since(start)

			status := 0
			statusText := ""
			if resp != nil {
				status = resp.StatusCode
				statusText = http.StatusText(status)
			}
			attrs := []any{
				"method", req.Method,
				"url", redactedURL(req),
				"status", status,
				"statusText", statusText,
				"durationMs", elapsed.Milliseconds(),
			}
			if err != nil {
				attrs = append(attrs, "error", err)
			}
			logger.LogAttrs(context.Background(), levelFor(status), "mcp oauth fetch", slogAttrs(attrs)...)
			return resp, err
		}
	}
}

func defaultStatusLevel(status int) slog.Level {
	switch {
	case status == 0, status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// redactedURL returns req.URL with any userinfo stripped.
func redactedURL(req *http.Request) string {
	if req.URL == nil {
		return ""
	}
	u := *req.URL
	u.User = nil
	return u.String()
}

func slogAttrs(kvs []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		key, _ := kvs[i].(string)
		attrs = append(attrs, slog.Any(key, kvs[i+1]))
	}
	return attrs
}
