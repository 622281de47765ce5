// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/mcpcore/go-runtime/internal/jsonrpc2"
)

// event is a single parsed (or to-be-written) Server-Sent Event: an
// optional name, an optional id (used for Last-Event-ID resumption), and
// the JSON-RPC payload carried in its data field.
type event struct {
	name string
	id   string
	data []byte
}

// flusher matches http.Flusher without importing net/http, so writeEvent
// can be exercised against any io.Writer in tests.
type flusher interface {
	Flush()
}

// writeEvent writes e to w in the SSE wire format described by §4.2/§4.3:
// an optional "event:" line, an "id:" line when e.id is set, and one or
// more "data:" lines, terminated by a blank line. It flushes w when it
// implements flusher.
func writeEvent(w io.Writer, e event) (int, error) {
	var buf bytes.Buffer
	if e.name != "" {
		fmt.Fprintf(&buf, "event: %s\n", e.name)
	}
	if e.id != "" {
		fmt.Fprintf(&buf, "id: %s\n", e.id)
	}
	for _, line := range bytes.Split(e.data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')

	n, err := w.Write(buf.Bytes())
	if err != nil {
		return n, err
	}
	if f, ok := w.(flusher); ok {
		f.Flush()
	}
	return n, nil
}

// scanEvents reads r as a stream of SSE frames, yielding each complete
// event as it is parsed. It yields a final io.EOF when r is exhausted
// cleanly, or a non-nil error if the stream cannot be read further.
//
// Lines beginning with ":" are comments and ignored, as are field names
// other than "event", "id" and "data" — both per the SSE spec.
func scanEvents(r io.Reader) func(yield func(event, error) bool) {
	return func(yield func(event, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

		var cur event
		var dataLines []string
		haveEvent := false

		emit := func() bool {
			if !haveEvent {
				return true
			}
			cur.data = []byte(strings.Join(dataLines, "\n"))
			ok := yield(cur, nil)
			cur = event{}
			dataLines = dataLines[:0]
			haveEvent = false
			return ok
		}

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				if !emit() {
					return
				}
				continue
			}
			if strings.HasPrefix(line, ":") {
				continue
			}
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				cur.name = value
				haveEvent = true
			case "id":
				cur.id = value
				haveEvent = true
			case "data":
				dataLines = append(dataLines, value)
				haveEvent = true
			default:
				// Unknown field: ignore per the SSE spec.
			}
		}
		if err := scanner.Err(); err != nil {
			yield(event{}, err)
			return
		}
		if haveEvent {
			if !emit() {
				return
			}
		}
		yield(event{}, io.EOF)
	}
}

// readBatch decodes an HTTP POST body into the ordered list of JSON-RPC
// messages it contains, reporting whether the body was a JSON array
// (batch) rather than a single envelope.
func readBatch(data []byte) ([]JSONRPCMessage, bool, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	isBatch := len(trimmed) > 0 && trimmed[0] == '['
	msgs, err := jsonrpc2.DecodeBatch(data)
	if err != nil {
		return nil, false, err
	}
	return msgs, isBatch, nil
}
