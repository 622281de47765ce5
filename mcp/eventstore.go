// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"sync"

	"github.com/mcpcore/go-runtime/internal/jsonrpc2"
)

// ErrReplayWindowExceeded is returned by an [EventStore]'s Replay when the
// requested event predates everything the store still retains for that
// stream (§9 Open Questions: capacity policies are not standardized, but
// exceeding one must be reported explicitly rather than silently skipping
// events).
var ErrReplayWindowExceeded = errors.New("mcp: requested event id is outside the replay window")

// Event is one message recorded on an [EventStore] stream, tagged with the
// event ID assigned to it at Append time.
type Event struct {
	ID      string
	Message JSONRPCMessage
}

// An EventStore is the append-only log a [StreamableServerTransport] uses
// to support resumable streams (§4.2): every outgoing message is appended
// to the stream it was sent on, and a client reconnecting with
// Last-Event-ID replays everything recorded after that ID before live
// delivery resumes.
//
// Implementations must not lose an event between it being handed to
// Append and it becoming visible to Replay, and must serve concurrent
// Append/Replay calls safely: Append is called by the goroutine delivering
// a single logical stream, while Replay is called by whatever HTTP request
// reconnects it.
type EventStore interface {
	// Append records msg as the next event on stream and returns its
	// assigned event ID.
	Append(ctx context.Context, stream string, msg JSONRPCMessage) (eventID string, err error)

	// Replay yields every event recorded on stream after afterEventID, in
	// order, or from the start of the stream if afterEventID is "". If
	// afterEventID no longer falls within the store's retained window,
	// Replay yields a single (Event{}, ErrReplayWindowExceeded) and stops.
	Replay(ctx context.Context, stream string, afterEventID string) iter.Seq2[Event, error]
}

// DefaultEventStoreCapacity is the number of events [NewMemoryEventStore]
// retains per stream when given a non-positive capacity.
const DefaultEventStoreCapacity = 1000

// MemoryEventStore is the default [EventStore]: a bounded, in-process ring
// buffer per stream. It does not survive a process restart and does not
// share state across replicas; see [RedisEventStore] for that.
type MemoryEventStore struct {
	capacity int

	mu      sync.Mutex
	streams map[string]*memoryStream
}

type memoryStream struct {
	// base is the event index of streams[0]; events with a lower index
	// have been evicted from the ring.
	base   int64
	events []JSONRPCMessage
}

// NewMemoryEventStore returns a MemoryEventStore retaining up to capacity
// events per stream. A non-positive capacity uses [DefaultEventStoreCapacity].
func NewMemoryEventStore(capacity int) *MemoryEventStore {
	if capacity <= 0 {
		capacity = DefaultEventStoreCapacity
	}
	return &MemoryEventStore{capacity: capacity, streams: make(map[string]*memoryStream)}
}

func (m *MemoryEventStore) Append(_ context.Context, stream string, msg JSONRPCMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[stream]
	if !ok {
		s = &memoryStream{}
		m.streams[stream] = s
	}
	idx := s.base + int64(len(s.events))
	s.events = append(s.events, msg)
	if len(s.events) > m.capacity {
		s.events = s.events[1:]
		s.base++
	}
	return strconv.FormatInt(idx, 10), nil
}

func (m *MemoryEventStore) Replay(_ context.Context, stream string, afterEventID string) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		m.mu.Lock()
		s, ok := m.streams[stream]
		if !ok {
			m.mu.Unlock()
			return
		}
		after := int64(-1)
		if afterEventID != "" {
			v, err := strconv.ParseInt(afterEventID, 10, 64)
			if err != nil {
				m.mu.Unlock()
				yield(Event{}, fmt.Errorf("malformed event id %q", afterEventID))
				return
			}
			after = v
		}
		if after+1 < s.base {
			m.mu.Unlock()
			yield(Event{}, ErrReplayWindowExceeded)
			return
		}
		start := after + 1 - s.base
		if start > int64(len(s.events)) {
			start = int64(len(s.events))
		}
		events := append([]JSONRPCMessage(nil), s.events[start:]...)
		base := s.base + start
		m.mu.Unlock()

		for i, msg := range events {
			if !yield(Event{ID: strconv.FormatInt(base+int64(i), 10), Message: msg}, nil) {
				return
			}
		}
	}
}

// marshalEvent and unmarshalEvent let an out-of-process [EventStore] (such
// as [RedisEventStore]) store a JSONRPCMessage as bytes using the same wire
// codec the rest of this package uses.
func marshalEvent(msg JSONRPCMessage) ([]byte, error) {
	return jsonrpc2.EncodeMessage(msg)
}

func unmarshalEvent(data []byte) (JSONRPCMessage, error) {
	return jsonrpc2.DecodeMessage(data)
}
