// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

// testImpl is the Implementation identity shared by tests that need one
// but don't care about its contents.
var testImpl = &Implementation{Name: "test", Version: "v1.0.0"}
