// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonrpc2 implements the wire encoding for JSON-RPC 2.0 messages
// as used by the Model Context Protocol: single envelopes and batches of
// requests, responses and notifications.
package jsonrpc2

import (
	"fmt"

	internaljson "github.com/mcpcore/go-runtime/internal/json"
)

const protocolVersion = "2.0"

// ID is a JSON-RPC request identifier. Per the spec it is either a string,
// a number, or (for notifications) absent. The zero ID is not valid; use
// IsValid to test.
type ID struct {
	value any // nil, string, or int64
}

// NewStringID returns an ID holding a string value.
func NewStringID(s string) ID { return ID{value: s} }

// NewIntID returns an ID holding an integer value.
func NewIntID(n int64) ID { return ID{value: n} }

// IsValid reports whether the ID is set.
func (id ID) IsValid() bool { return id.value != nil }

// Raw returns the underlying value: nil, string, or int64.
func (id ID) Raw() any { return id.value }

func (id ID) String() string {
	switch v := id.value.(type) {
	case string:
		return v
	case int64:
		return fmt.Sprintf("%d", v)
	default:
		return "<invalid>"
	}
}

func (id ID) MarshalJSON() ([]byte, error) {
	return internaljson.Marshal(id.value)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var v any
	if err := internaljson.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		id.value = nil
	case string:
		id.value = x
	case float64:
		id.value = int64(x)
	default:
		return fmt.Errorf("jsonrpc2: invalid id %#v", v)
	}
	return nil
}

// Message is implemented by Request, Response and Notification: the three
// kinds of top-level JSON-RPC 2.0 envelope.
type Message interface {
	isMessage()
}

// Request is an outgoing or incoming JSON-RPC call expecting a Response.
type Request struct {
	ID     ID     `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

func (*Request) isMessage() {}

// wireRequest is the on-the-wire shape, carrying the required jsonrpc
// version tag and raw params for delayed decoding.
type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Method  string          `json:"method"`
	Params  internaljson.Raw `json:"params,omitempty"`
}

// Notification is a JSON-RPC call with no ID, for which no Response is
// sent.
type Notification struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

func (*Notification) isMessage() {}

type wireNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  internaljson.Raw `json:"params,omitempty"`
}

// WireError is the JSON-RPC error object embedded in a Response.
type WireError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *WireError) Error() string {
	return fmt.Sprintf("jsonrpc2: code %d: %s", e.Code, e.Message)
}

// Response is the reply to a Request: exactly one of Result or Error is
// set.
type Response struct {
	ID     ID         `json:"id"`
	Result any        `json:"result,omitempty"`
	Error  *WireError `json:"error,omitempty"`
}

func (*Response) isMessage() {}

type wireResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      ID               `json:"id"`
	Result  internaljson.Raw `json:"result,omitempty"`
	Error   *WireError       `json:"error,omitempty"`
}

// EncodeMessage marshals msg into its wire form, adding the jsonrpc
// version tag and dispatching on its concrete type.
func EncodeMessage(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case *Request:
		return internaljson.Marshal(wireRequestFrom(m))
	case *Notification:
		return internaljson.Marshal(wireNotificationFrom(m))
	case *Response:
		return internaljson.Marshal(wireResponseFrom(m))
	default:
		return nil, fmt.Errorf("jsonrpc2: unknown message type %T", msg)
	}
}

func wireRequestFrom(r *Request) *wireRequest {
	w := &wireRequest{JSONRPC: protocolVersion, ID: r.ID, Method: r.Method}
	if r.Params != nil {
		raw, err := internaljson.Marshal(r.Params)
		if err == nil {
			w.Params = raw
		}
	}
	return w
}

func wireNotificationFrom(n *Notification) *wireNotification {
	w := &wireNotification{JSONRPC: protocolVersion, Method: n.Method}
	if n.Params != nil {
		raw, err := internaljson.Marshal(n.Params)
		if err == nil {
			w.Params = raw
		}
	}
	return w
}

func wireResponseFrom(r *Response) *wireResponse {
	w := &wireResponse{JSONRPC: protocolVersion, ID: r.ID, Error: r.Error}
	if r.Result != nil {
		raw, err := internaljson.Marshal(r.Result)
		if err == nil {
			w.Result = raw
		}
	}
	return w
}

// probe is used to sniff the shape of an incoming envelope before
// deciding which concrete type to decode into.
type probe struct {
	Method *string          `json:"method"`
	ID     *ID              `json:"id"`
	Result internaljson.Raw `json:"result"`
	Error  *WireError       `json:"error"`
}

// DecodeMessage unmarshals a single JSON-RPC envelope, returning the
// concrete Request, Notification or Response it represents. Field-case
// smuggling is rejected via StrictUnmarshal.
func DecodeMessage(data []byte) (Message, error) {
	var p probe
	if err := internaljson.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("jsonrpc2: decoding message: %w", err)
	}

	switch {
	case p.Method != nil && p.ID != nil && p.ID.IsValid():
		var w wireRequest
		if err := StrictUnmarshal(data, &w); err != nil {
			return nil, err
		}
		return &Request{ID: w.ID, Method: w.Method, Params: w.Params}, nil
	case p.Method != nil:
		var w wireNotification
		if err := StrictUnmarshal(data, &w); err != nil {
			return nil, err
		}
		return &Notification{Method: w.Method, Params: w.Params}, nil
	case p.Result != nil || p.Error != nil:
		var w wireResponse
		if err := StrictUnmarshal(data, &w); err != nil {
			return nil, err
		}
		var result any = w.Result
		return &Response{ID: w.ID, Result: result, Error: w.Error}, nil
	default:
		return nil, fmt.Errorf("jsonrpc2: message is neither a request, notification, nor response")
	}
}

// EncodeBatch marshals a slice of messages as a JSON array, per the
// JSON-RPC 2.0 batch extension.
func EncodeBatch(msgs []Message) ([]byte, error) {
	raws := make([]internaljson.Raw, len(msgs))
	for i, m := range msgs {
		data, err := EncodeMessage(m)
		if err != nil {
			return nil, err
		}
		raws[i] = data
	}
	return internaljson.Marshal(raws)
}

// DecodeBatch unmarshals either a single envelope or a JSON array of
// envelopes, always returning a slice.
func DecodeBatch(data []byte) ([]Message, error) {
	trimmed := firstNonSpace(data)
	if trimmed != '[' {
		msg, err := DecodeMessage(data)
		if err != nil {
			return nil, err
		}
		return []Message{msg}, nil
	}
	var raws []internaljson.Raw
	if err := internaljson.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("jsonrpc2: decoding batch: %w", err)
	}
	msgs := make([]Message, len(raws))
	for i, raw := range raws {
		msg, err := DecodeMessage(raw)
		if err != nil {
			return nil, err
		}
		msgs[i] = msg
	}
	return msgs, nil
}

func firstNonSpace(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}
