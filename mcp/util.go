// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"crypto/rand"
	"encoding/json"

	internaljson "github.com/mcpcore/go-runtime/internal/json"
)

func assert(cond bool, msg string) {
	if !cond {
		panic(msg)
	}
}

func randText() string {
	return rand.Text()
}

// remarshal marshals from to JSON, and then unmarshals into to, which must be
// a pointer type.
func remarshal(from, to any) error {
	data, err := json.Marshal(from)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, to); err != nil {
		return err
	}
	return nil
}

// remarshalRaw decodes raw (already-serialized JSON, typically a response
// result) into to, which must be a pointer type. A nil/empty raw leaves to
// unmodified, matching results with no payload (e.g. the empty object).
func remarshalRaw(raw internaljson.Raw, to any) error {
	if len(raw) == 0 {
		return nil
	}
	return internaljson.Unmarshal(raw, to)
}
