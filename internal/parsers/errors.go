package parsers

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

// Sentinel parser errors.
var (
	// ErrMalformedInput is returned when a payload does not have the shape the
	// selected format expects.
	ErrMalformedInput = errors.New("malformed coverage input")

	// ErrAmbiguousFormat is returned when no registered parser claims a payload.
	ErrAmbiguousFormat = errors.New("no parser recognizes the payload")

	// ErrUnknownFormat is returned for an explicit format name that is not registered.
	ErrUnknownFormat = errors.New("unknown coverage format")

	// ErrDuplicateFormat is returned when a registry receives two parsers with one name.
	ErrDuplicateFormat = errors.New("duplicate coverage format")
)

// MalformedError describes why a payload was rejected. It matches
// [ErrMalformedInput] with errors.Is. Decoder errors are rendered into Reason
// and are not part of the error chain.
type MalformedError struct {
	Format string
	Reason string
}

// Error implements error.
func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrMalformedInput, e.Format, e.Reason)
}

// Unwrap returns [ErrMalformedInput].
func (e *MalformedError) Unwrap() error {
	return ErrMalformedInput
}

func malformed(format, reason string, args ...any) error {
	return &MalformedError{Format: format, Reason: fmt.Sprintf(reason, args...)}
}

// addLine submits a normalized record, turning model violations such as
// non-positive line numbers into malformed-input errors.
func addLine(format string, session Builder, path string, line int, value coverage.Value, branches []coverage.Branch) error {
	err := session.AddRawLine(path, line, value, branches)
	if err == nil {
		return nil
	}

	if errors.Is(err, coverage.ErrInvalidLine) {
		return malformed(format, "%s line %d: line numbers start at 1", path, line)
	}

	return err
}
