// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package json centralizes the module's JSON encode/decode path so it can
// be swapped for a faster implementation without touching call sites.
package json

import (
	"bytes"
	"encoding/json"
	"fmt"

	segjson "github.com/segmentio/encoding/json"
)

// Raw is a drop-in for json.RawMessage that delays decoding, used for the
// params/result payloads of a JSON-RPC envelope.
type Raw = json.RawMessage

// Unmarshal decodes data into v using the module's configured JSON
// implementation. Object keys match struct field names case-sensitively,
// and data after the top-level value is an error.
func Unmarshal(data []byte, v any) error {
	rest, err := segjson.Parse(data, v, segjson.DontMatchCaseInsensitiveStructFields)
	if err != nil {
		return err
	}
	if rest = bytes.TrimSpace(rest); len(rest) != 0 {
		return fmt.Errorf("invalid character %q after top-level value", rest[0])
	}
	return nil
}

// Marshal encodes v using the module's configured JSON implementation.
func Marshal(v any) ([]byte, error) {
	return segjson.Marshal(v)
}
