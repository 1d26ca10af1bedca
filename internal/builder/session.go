// Package builder accumulates per-line records emitted by format parsers and
// materializes them into a canonical [coverage.Report].
package builder

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

// ErrFinalized is returned when lines are added after OutputReport.
var ErrFinalized = errors.New("builder session already finalized")

// PathFixer maps a raw reported path to a normalized repository path.
// The boolean is false when the file must be ignored.
type PathFixer func(raw string) (string, bool)

// IdentityFixer keeps every path unchanged and rejects only empty ones.
func IdentityFixer(raw string) (string, bool) {
	return raw, raw != ""
}

// Stats counts what a session accepted and dropped.
type Stats struct {
	Lines        int
	IgnoredLines int
	EmptyValues  int
}

// Session is a single-owner accumulator for one upload. It is not safe for
// concurrent use; every parser invocation gets its own Session.
type Session struct {
	meta   coverage.Session
	fixer  PathFixer
	logger *slog.Logger

	files   map[string]*coverage.FileCoverage
	order   []string
	fixed   map[string]fixResult
	stats   Stats
	emitted bool
}

type fixResult struct {
	path string
	keep bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for ignored-file diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a builder session for the upload described by meta.
// A nil fixer keeps every non-empty path.
func New(meta coverage.Session, fixer PathFixer, opts ...Option) *Session {
	if fixer == nil {
		fixer = IdentityFixer
	}

	if meta.Type == "" {
		meta.Type = coverage.SessionUploaded
	}

	s := &Session{
		meta:   meta,
		fixer:  fixer,
		logger: slog.Default(),
		files:  make(map[string]*coverage.FileCoverage),
		fixed:  make(map[string]fixResult),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SessionID returns the id every record of this builder is tagged with.
func (s *Session) SessionID() int {
	return s.meta.ID
}

// FixPath resolves a raw path through the path fixer. Results are memoized
// since parsers resolve the same file once per record.
func (s *Session) FixPath(raw string) (string, bool) {
	if cached, ok := s.fixed[raw]; ok {
		return cached.path, cached.keep
	}

	path, keep := s.fixer(raw)
	if keep && path == "" {
		keep = false
	}

	if !keep {
		s.logger.Debug("ignoring file", "path", raw, "session", s.meta.ID)
	}

	s.fixed[raw] = fixResult{path: path, keep: keep}

	return path, keep
}

// AddLine records one line observation for an already normalized filename.
// NoData values create no entry. Duplicate submissions merge.
func (s *Session) AddLine(filename string, line int, value coverage.Value, branches []coverage.Branch) error {
	if s.emitted {
		return ErrFinalized
	}

	if value.IsNoData() && len(branches) == 0 {
		s.stats.EmptyValues++

		return nil
	}

	file, ok := s.files[filename]
	if !ok {
		file = coverage.NewFileCoverage(filename)
		s.files[filename] = file
		s.order = append(s.order, filename)
	}

	err := file.Add(line, s.meta.ID, value, branches)
	if err != nil {
		return fmt.Errorf("add line: %w", err)
	}

	s.stats.Lines++

	return nil
}

// AddRawLine resolves rawPath through the path fixer and records the line
// unless the file is ignored.
func (s *Session) AddRawLine(rawPath string, line int, value coverage.Value, branches []coverage.Branch) error {
	path, keep := s.FixPath(rawPath)
	if !keep {
		s.stats.IgnoredLines++

		return nil
	}

	return s.AddLine(path, line, value, branches)
}

// Stats returns the counters collected so far.
func (s *Session) Stats() Stats {
	return s.stats
}

// OutputReport finalizes the accumulated records into a fresh report holding
// exactly this session. Files without lines are omitted. The session can be
// finalized once; later calls return an empty-file report with the session.
func (s *Session) OutputReport() *coverage.Report {
	report := coverage.NewReport()

	meta := s.meta
	report.AddSession(meta.Clone())

	if s.emitted {
		return report
	}

	for _, name := range s.order {
		report.AddFile(s.files[name])
	}

	s.emitted = true
	s.files = nil

	return report
}
