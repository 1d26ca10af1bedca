// Package matcher tests repository paths against a set of glob or regular
// expression patterns.
//
// A pattern is a regular expression when it starts with "^" or ends with "$";
// otherwise it is a glob where "**" crosses directory boundaries, "*" and "?"
// do not, and a trailing "/" matches everything below that directory.
// A path matches the set when any pattern matches it; there is no negation,
// so the result never depends on pattern order.
package matcher

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPattern is returned when a pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid path pattern")

// Matcher is an immutable compiled pattern set. The zero value matches nothing.
type Matcher struct {
	patterns []string
	compiled []*regexp.Regexp
}

// New compiles patterns. Blank patterns are skipped.
func New(patterns ...string) (*Matcher, error) {
	m := &Matcher{
		patterns: make([]string, 0, len(patterns)),
		compiled: make([]*regexp.Regexp, 0, len(patterns)),
	}

	for _, raw := range patterns {
		pattern := strings.TrimSpace(raw)
		if pattern == "" {
			continue
		}

		expr, err := compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidPattern, pattern, err)
		}

		m.patterns = append(m.patterns, pattern)
		m.compiled = append(m.compiled, expr)
	}

	return m, nil
}

// MustNew is like [New] but panics on an invalid pattern.
// Use only with constant patterns.
func MustNew(patterns ...string) *Matcher {
	m, err := New(patterns...)
	if err != nil {
		panic(err)
	}

	return m
}

// Match reports whether any pattern matches path.
func (m *Matcher) Match(path string) bool {
	if m == nil {
		return false
	}

	for _, expr := range m.compiled {
		if expr.MatchString(path) {
			return true
		}
	}

	return false
}

// MatchAny reports whether any of paths matches.
func (m *Matcher) MatchAny(paths []string) bool {
	for _, path := range paths {
		if m.Match(path) {
			return true
		}
	}

	return false
}

// Empty reports whether the set has no patterns.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.compiled) == 0
}

// Patterns returns the normalized patterns in their original order.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}

	return append([]string(nil), m.patterns...)
}

func compile(pattern string) (*regexp.Regexp, error) {
	if IsRegex(pattern) {
		return regexp.Compile(pattern)
	}

	return regexp.Compile(GlobToRegex(pattern))
}

// IsRegex reports whether a pattern is treated as a regular expression.
func IsRegex(pattern string) bool {
	return strings.HasPrefix(pattern, "^") || strings.HasSuffix(pattern, "$")
}

// GlobToRegex translates a glob into an anchored regular expression.
func GlobToRegex(glob string) string {
	var sb strings.Builder

	sb.WriteString("^")

	if strings.HasPrefix(glob, "./") {
		glob = glob[2:]
	}

	for i := 0; i < len(glob); i++ {
		ch := glob[i]

		switch ch {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				i++

				// "**/" also matches zero directories.
				if i+1 < len(glob) && glob[i+1] == '/' {
					i++
					sb.WriteString("(?:.*/)?")

					continue
				}

				sb.WriteString(".*")

				continue
			}

			sb.WriteString("[^/]*")
		case '?':
			sb.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(glob[i+1:], ']')
			if end < 0 {
				sb.WriteString(`\[`)

				continue
			}

			class := glob[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}

			sb.WriteString("[" + class + "]")
			i += end + 1
		default:
			sb.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}

	if strings.HasSuffix(glob, "/") {
		sb.WriteString(".*")
	}

	sb.WriteString("$")

	return sb.String()
}
