package parsers

import (
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/covfold/pkg/textutil"
)

// Registry stores parsers with deterministic detection order.
type Registry struct {
	ordered []Parser
	index   map[string]Parser
}

// NewRegistry creates a registry; detection follows the argument order.
func NewRegistry(parsers ...Parser) (*Registry, error) {
	r := &Registry{
		ordered: make([]Parser, 0, len(parsers)),
		index:   make(map[string]Parser, len(parsers)),
	}

	for _, parser := range parsers {
		name := parser.Name()
		if _, exists := r.index[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFormat, name)
		}

		r.index[name] = parser
		r.ordered = append(r.ordered, parser)
	}

	return r, nil
}

// DefaultRegistry returns a registry of every supported format.
func DefaultRegistry() *Registry {
	registry, err := NewRegistry(All()...)
	if err != nil {
		panic(err)
	}

	return registry
}

// Names returns format names in detection order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, parser := range r.ordered {
		names = append(names, parser.Name())
	}

	return names
}

// Lookup returns the parser registered under name.
func (r *Registry) Lookup(name string) (Parser, error) {
	parser, ok := r.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}

	return parser, nil
}

// Reorder returns a registry that detects with the given names first, in the
// given order, followed by the remaining parsers in their current order.
func (r *Registry) Reorder(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}

	ordered := make([]Parser, 0, len(r.ordered))
	seen := make(map[string]struct{}, len(names))

	for _, name := range names {
		parser, err := r.Lookup(name)
		if err != nil {
			return nil, err
		}

		if _, dup := seen[parser.Name()]; dup {
			continue
		}

		seen[parser.Name()] = struct{}{}
		ordered = append(ordered, parser)
	}

	for _, parser := range r.ordered {
		if _, done := seen[parser.Name()]; !done {
			ordered = append(ordered, parser)
		}
	}

	return NewRegistry(ordered...)
}

// Detect returns the first parser, in registry order, that claims payload.
func (r *Registry) Detect(payload []byte, name string) (Parser, error) {
	if len(payload) == 0 || textutil.IsBinary(payload) {
		return nil, ErrAmbiguousFormat
	}

	firstLine := textutil.FirstLine(payload)

	for _, parser := range r.ordered {
		if parser.MatchesContent(payload, firstLine, name) {
			return parser, nil
		}
	}

	if name != "" {
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousFormat, name)
	}

	return nil, ErrAmbiguousFormat
}

// Parse decodes payload with the parser named format, or with the detected
// parser when format is empty. It returns the format actually used.
func (r *Registry) Parse(format string, payload []byte, name string, session Builder) (string, error) {
	var (
		parser Parser
		err    error
	)

	if format == "" {
		parser, err = r.Detect(payload, name)
	} else {
		parser, err = r.Lookup(format)
	}

	if err != nil {
		return "", err
	}

	parseErr := parser.Parse(textutil.TrimBOM(payload), session)
	if parseErr != nil {
		return parser.Name(), fmt.Errorf("parse %s: %w", parser.Name(), parseErr)
	}

	return parser.Name(), nil
}
