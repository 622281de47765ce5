// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.
package util

import "fmt"

// Wrapf wraps *err with a message built from format and args, unless *err is
// nil. It is meant to be called via defer at the top of a function:
//
//	func f(...) (_ T, err error) {
//		defer util.Wrapf(&err, "f(%v)", x)
//		...
//	}
func Wrapf(err *error, format string, args ...any) {
	if *err == nil {
		return
	}
	*err = fmt.Errorf(format+": %w", append(args, *err)...)
}
