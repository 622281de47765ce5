// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file parses WWW-Authenticate header fields per RFC 9110 ยง11.6.1.
// https://www.rfc-editor.org/rfc/rfc9110.html#section-11.6.1

//go:build mcp_go_client_oauth

package oauthex

import (
	"fmt"
	"strings"
)

// challenge is a single authentication challenge from a WWW-Authenticate
// header field, e.g. `Bearer realm="example", error="invalid_token"`.
type challenge struct {
	Scheme string
	Params map[string]string
}

// ParseWWWAuthenticate parses one or more WWW-Authenticate header field
// values (as found in an [http.Header] under the "WWW-Authenticate" key)
// into a list of challenges.
//
// Each header value may itself contain multiple challenges; the scheme
// name that introduces each challenge is recognized by being followed
// either by nothing, by a single token68 (no '=' before the next comma),
// or by a comma-separated list of auth-param pairs.
func ParseWWWAuthenticate(headers []string) ([]challenge, error) {
	var challenges []challenge
	for _, h := range headers {
		cs, err := parseChallengeList(h)
		if err != nil {
			return nil, fmt.Errorf("parsing WWW-Authenticate header %q: %w", h, err)
		}
		challenges = append(challenges, cs...)
	}
	return challenges, nil
}

func parseChallengeList(s string) ([]challenge, error) {
	var challenges []challenge
	for len(s) > 0 {
		s = strings.TrimLeft(s, " \t,")
		if s == "" {
			break
		}
		scheme, rest := splitToken(s)
		if scheme == "" {
			return nil, fmt.Errorf("expected scheme token at %q", s)
		}
		c := challenge{Scheme: strings.ToLower(scheme), Params: make(map[string]string)}
		rest = strings.TrimLeft(rest, " \t")

		// A bare scheme with no parameters (end of string, or next scheme starts).
		if rest == "" || looksLikeNextScheme(rest) {
			challenges = append(challenges, c)
			s = rest
			continue
		}

		// token68 form: no '=' before the next ',' and no further ',' separated
		// key=value pairs. We only need to recognize and skip it since MCP
		// challenges are always auth-param based (realm=, resource_metadata=, etc).
		if !strings.Contains(firstSegment(rest), "=") {
			_, rest = splitToken68(rest)
			challenges = append(challenges, c)
			s = rest
			continue
		}

		var consumed string
		consumed, s = consumeAuthParams(rest, c.Params)
		_ = consumed
		challenges = append(challenges, c)
	}
	return challenges, nil
}

// firstSegment returns s up to (not including) the first top-level comma,
// ignoring commas inside quoted strings.
func firstSegment(s string) string {
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				return s[:i]
			}
		}
	}
	return s
}

// looksLikeNextScheme reports whether rest begins with another scheme token
// (heuristically: a token immediately followed by whitespace and another
// token, with no '=' in between at the top level), which signals the
// current challenge had no parameters.
func looksLikeNextScheme(rest string) bool {
	seg := firstSegment(rest)
	if strings.Contains(seg, "=") {
		return false
	}
	tok, after := splitToken(seg)
	trimmed := strings.TrimLeft(after, " \t")
	next, _ := splitToken(trimmed)
	return tok != "" && len(trimmed) < len(after) && next != ""
}

// consumeAuthParams parses a comma-separated list of auth-param pairs
// (key=value or key="quoted value") starting at s, storing them into
// params, and returns the parsed portion and the remainder of the string
// (after the params, at the start of the next challenge if any).
func consumeAuthParams(s string, params map[string]string) (consumed, rest string) {
	orig := s
	for {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			break
		}
		key, after := splitToken(s)
		if key == "" {
			break
		}
		after = strings.TrimLeft(after, " \t")
		if !strings.HasPrefix(after, "=") {
			// Not a param; this token starts the next challenge.
			s = key + after
			break
		}
		after = after[1:] // consume '='
		after = strings.TrimLeft(after, " \t")
		var val string
		if strings.HasPrefix(after, `"`) {
			val, after = splitQuoted(after)
		} else {
			val, after = splitToken(after)
		}
		params[key] = val
		s = strings.TrimLeft(after, " \t")
		if strings.HasPrefix(s, ",") {
			s = s[1:]
			// Peek: if what follows isn't "key=", it's the next scheme.
			peek := strings.TrimLeft(s, " \t")
			if tok, after2 := splitToken(peek); tok != "" {
				after2 = strings.TrimLeft(after2, " \t")
				if !strings.HasPrefix(after2, "=") {
					break
				}
			}
			continue
		}
		break
	}
	return orig[:len(orig)-len(s)], s
}

func splitToken(s string) (tok, rest string) {
	i := 0
	for i < len(s) && isTokenChar(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func splitToken68(s string) (tok, rest string) {
	i := 0
	for i < len(s) && (isTokenChar(s[i]) || s[i] == '+' || s[i] == '/' || s[i] == '=') {
		i++
	}
	return s[:i], strings.TrimLeft(s[i:], " \t,")
}

func splitQuoted(s string) (val, rest string) {
	if !strings.HasPrefix(s, `"`) {
		return "", s
	}
	var b strings.Builder
	i := 1
	for i < len(s) {
		switch s[i] {
		case '\\':
			if i+1 < len(s) {
				b.WriteByte(s[i+1])
				i += 2
				continue
			}
			i++
		case '"':
			return b.String(), s[i+1:]
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String(), ""
}

func isTokenChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}
