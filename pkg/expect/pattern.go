// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-sclogin.
//
// go-sclogin is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package expect

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

// Pattern matches against the unconsumed output of a session. Implementations
// are supplied by Literal, Literalf, Regexp and MustRegexp.
type Pattern interface {
	// Index returns the [start, end) byte offsets of the first occurrence of
	// the pattern in b, or nil if b does not contain a match.
	Index(b []byte) []int

	// String describes the pattern in diagnostics and error messages.
	String() string
}

// Match is the result of a successful Expect call.
type Match struct {
	// Text is the output that matched the pattern.
	Text string

	// Before is the output that preceded the match. It has been consumed from
	// the session stream along with the match itself.
	Before string
}

type literalPattern string

// Literal returns a Pattern matching the exact substring s.
func Literal(s string) Pattern {
	return literalPattern(s)
}

// Literalf returns a Pattern matching the exact formatted substring.
// It is the usual way to build prompt patterns such as "PIN for alice:".
func Literalf(format string, args ...any) Pattern {
	return literalPattern(fmt.Sprintf(format, args...))
}

func (p literalPattern) Index(b []byte) []int {
	i := bytes.Index(b, []byte(p))
	if i < 0 {
		return nil
	}
	return []int{i, i + len(p)}
}

func (p literalPattern) String() string {
	return strconv.Quote(string(p))
}

type regexpPattern struct {
	re *regexp.Regexp
}

// Regexp returns a Pattern matching the given regular expression.
func Regexp(re *regexp.Regexp) Pattern {
	return &regexpPattern{re: re}
}

// MustRegexp compiles expr and returns it as a Pattern. It panics if expr is
// not a valid regular expression, mirroring regexp.MustCompile.
func MustRegexp(expr string) Pattern {
	return Regexp(regexp.MustCompile(expr))
}

func (p *regexpPattern) Index(b []byte) []int {
	return p.re.FindIndex(b)
}

func (p *regexpPattern) String() string {
	return "/" + p.re.String() + "/"
}
