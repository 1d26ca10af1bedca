// Package pathfix builds the path fixer handed to builder sessions: it
// normalizes paths reported by CI tools into repository-relative paths and
// rejects files that must not appear in a report.
package pathfix

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/covfold/internal/builder"
	"github.com/Sumatoshi-tech/covfold/pkg/matcher"
)

// FixSeparator splits a fix into its before and after parts.
const FixSeparator = "::"

// ErrInvalidFix is returned for a fix without a separator or with a bad pattern.
var ErrInvalidFix = errors.New("invalid path fix")

// Config selects the rewrites and filters of a fixer.
type Config struct {
	// StripPrefixes are removed from the front of a path, first match wins.
	StripPrefixes []string
	// Fixes are "before::after" rewrites. A before starting with "^" is a
	// regular expression, otherwise a literal prefix.
	Fixes []string
	// Ignore lists glob or regex patterns of files to drop.
	Ignore []string
	// IgnoreVendored drops third-party paths such as vendor/ and node_modules/.
	IgnoreVendored bool
}

type rewrite struct {
	prefix  string
	pattern *regexp.Regexp
	after   string
}

func (r rewrite) apply(p string) (string, bool) {
	if r.pattern != nil {
		loc := r.pattern.FindStringSubmatchIndex(p)
		if loc == nil {
			return p, false
		}

		var out []byte

		out = r.pattern.ExpandString(out, r.after, p, loc)

		return string(out) + p[loc[1]:], true
	}

	if !strings.HasPrefix(p, r.prefix) {
		return p, false
	}

	return r.after + strings.TrimPrefix(p, r.prefix), true
}

// Fixer is a compiled path fixer. It is immutable and safe for concurrent use.
type Fixer struct {
	rewrites       []rewrite
	prefixes       []string
	ignore         *matcher.Matcher
	ignoreVendored bool
}

// New compiles cfg.
func New(cfg Config) (*Fixer, error) {
	ignore, err := matcher.New(cfg.Ignore...)
	if err != nil {
		return nil, fmt.Errorf("ignore patterns: %w", err)
	}

	f := &Fixer{ignore: ignore, ignoreVendored: cfg.IgnoreVendored}

	for _, fix := range cfg.Fixes {
		compiled, fixErr := parseFix(fix)
		if fixErr != nil {
			return nil, fixErr
		}

		f.rewrites = append(f.rewrites, compiled)
	}

	for _, prefix := range cfg.StripPrefixes {
		prefix = strings.TrimSuffix(normalize(prefix), "/")
		if prefix != "" && prefix != "." {
			f.prefixes = append(f.prefixes, prefix)
		}
	}

	return f, nil
}

func parseFix(fix string) (rewrite, error) {
	before, after, ok := strings.Cut(fix, FixSeparator)
	if !ok || before == "" {
		return rewrite{}, fmt.Errorf("%w: %q", ErrInvalidFix, fix)
	}

	if !strings.HasPrefix(before, "^") {
		return rewrite{prefix: before, after: after}, nil
	}

	pattern, err := regexp.Compile(before)
	if err != nil {
		return rewrite{}, fmt.Errorf("%w: %q: %w", ErrInvalidFix, fix, err)
	}

	return rewrite{pattern: pattern, after: after}, nil
}

// Fix maps raw to a repository path. The boolean is false when the file is ignored.
func (f *Fixer) Fix(raw string) (string, bool) {
	p := normalize(raw)

	for _, r := range f.rewrites {
		if rewritten, applied := r.apply(p); applied {
			p = normalize(rewritten)

			break
		}
	}

	p = f.stripPrefix(p)

	if p == "" || p == "." {
		return "", false
	}

	if f.ignore.Match(p) {
		return "", false
	}

	if f.ignoreVendored && enry.IsVendor(p) {
		return "", false
	}

	return p, true
}

// PathFixer adapts f to the builder contract.
func (f *Fixer) PathFixer() builder.PathFixer {
	return f.Fix
}

func (f *Fixer) stripPrefix(p string) string {
	for _, prefix := range f.prefixes {
		if p == prefix {
			return ""
		}

		if strings.HasPrefix(p, prefix+"/") {
			return strings.TrimPrefix(p[len(prefix):], "/")
		}
	}

	return p
}

func normalize(raw string) string {
	p := strings.TrimSpace(strings.ReplaceAll(raw, `\`, "/"))
	if p == "" {
		return ""
	}

	return path.Clean(p)
}
