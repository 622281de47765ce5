// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"time"

	internaljson "github.com/mcpcore/go-runtime/internal/json"
)

// pendingResult is the outcome delivered to a blocked Request call.
type pendingResult struct {
	result internaljson.Raw
	err    error
}

// pendingRequest tracks the state of a single outstanding request: the
// channel its result arrives on, and the timeout bookkeeping described by
// the "resetTimeoutOnProgress" / "maxTotalTimeoutMs" request options.
type pendingRequest struct {
	method string

	resultCh chan pendingResult

	// timeout bookkeeping
	resetOnProgress bool
	timer           *time.Timer
	timeout         time.Duration

	// progress correlation
	progressToken   any
	progressHandler func(context.Context, *ProgressNotificationParams)
}

// pendingTable is the single-writer map of outstanding requests for one
// Session, guarded by the Session's mutex.
type pendingTable struct {
	m map[JSONRPCID]*pendingRequest
}

func newPendingTable() *pendingTable {
	return &pendingTable{m: make(map[JSONRPCID]*pendingRequest)}
}

func (t *pendingTable) add(id JSONRPCID, p *pendingRequest) {
	t.m[id] = p
}

func (t *pendingTable) get(id JSONRPCID) (*pendingRequest, bool) {
	p, ok := t.m[id]
	return p, ok
}

func (t *pendingTable) delete(id JSONRPCID) {
	if p, ok := t.m[id]; ok {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(t.m, id)
	}
}

// drain fails every pending request with err, used when a connection
// closes with requests still outstanding.
func (t *pendingTable) drain(err error) {
	for id, p := range t.m {
		if p.timer != nil {
			p.timer.Stop()
		}
		select {
		case p.resultCh <- pendingResult{err: err}:
		default:
		}
		delete(t.m, id)
	}
}

// defaultRequestTimeout is applied when RequestOptions.Timeout is zero, so
// a call never blocks indefinitely unless a caller opts out with
// DisableTimeout.
const defaultRequestTimeout = 60 * time.Second

// DisableTimeout, passed as RequestOptions.Timeout, turns off the default
// request deadline entirely; only the context's own deadline (if any)
// still applies.
const DisableTimeout time.Duration = -1

// RequestOptions configures a single Request call.
type RequestOptions struct {
	// ProgressHandler, if set, receives progress notifications correlated
	// to this request via its progress token.
	ProgressHandler func(context.Context, *ProgressNotificationParams)
	// Timeout bounds how long to wait for a response. Zero applies
	// defaultRequestTimeout (60s); pass DisableTimeout to wait
	// indefinitely (subject only to the context's own deadline).
	Timeout time.Duration
	// ResetTimeoutOnProgress extends Timeout by another Timeout duration
	// each time a progress notification for this request arrives.
	ResetTimeoutOnProgress bool
	// MaxTotalTimeout bounds the total lifetime of the request regardless
	// of progress notifications. Zero means unbounded.
	MaxTotalTimeout time.Duration
}
