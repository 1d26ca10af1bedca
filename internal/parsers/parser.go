// Package parsers decodes the coverage payloads of individual CI tools into
// line records submitted to a builder session.
//
// Every format is a closed variant behind [Parser]. A [Registry] holds them in
// a fixed detection order; the first parser whose MatchesContent claims a
// payload wins.
package parsers

import (
	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

// Builder receives line records for one upload. *builder.Session implements it.
type Builder interface {
	// AddRawLine resolves rawPath through the session's path fixer and records
	// the line unless the file is ignored.
	AddRawLine(rawPath string, line int, value coverage.Value, branches []coverage.Branch) error
}

// Parser decodes one coverage format.
type Parser interface {
	// Name returns the stable format identifier.
	Name() string

	// MatchesContent reports whether payload looks like this format.
	// firstLine is the first non-blank line; name is the upload's file name
	// and may be empty.
	MatchesContent(payload []byte, firstLine, name string) bool

	// Parse decodes payload into session. Shape violations are reported as
	// [ErrMalformedInput].
	Parse(payload []byte, session Builder) error
}

// Format names.
const (
	FormatVB2       = "vb2"
	FormatClover    = "clover"
	FormatCoveralls = "coveralls"
	FormatLcov      = "lcov"
	FormatGo        = "go"
	FormatXcode     = "xcode"
)

// maxLineNumber bounds the line ranges that block formats expand.
const maxLineNumber = 10_000_000

// All returns one instance of every supported parser in detection order.
func All() []Parser {
	return []Parser{
		NewVB2Parser(),
		NewCloverParser(),
		NewCoverallsParser(),
		NewLcovParser(),
		NewGoParser(),
		NewXcodeParser(),
	}
}
