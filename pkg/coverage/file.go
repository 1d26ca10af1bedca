package coverage

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// ErrInvalidLine is returned for line numbers below 1.
var ErrInvalidLine = errors.New("line numbers start at 1")

// FileCoverage holds the coverage of one source file keyed by 1-based line.
type FileCoverage struct {
	Name  string
	lines map[int]*LineCoverage
}

// NewFileCoverage creates an empty file entry.
func NewFileCoverage(name string) *FileCoverage {
	return &FileCoverage{Name: name, lines: make(map[int]*LineCoverage)}
}

// Add records a session observation for a line. Repeated observations of the
// same line merge.
func (f *FileCoverage) Add(line, sessionID int, value Value, branches []Branch) error {
	if line < 1 {
		return fmt.Errorf("%w: %s:%d", ErrInvalidLine, f.Name, line)
	}

	entry, ok := f.lines[line]
	if !ok {
		entry = &LineCoverage{}
		f.lines[line] = entry
	}

	entry.Add(sessionID, value, branches)

	return nil
}

// SetLine stores a line verbatim, merging with an existing entry.
func (f *FileCoverage) SetLine(line int, coverage LineCoverage) error {
	if line < 1 {
		return fmt.Errorf("%w: %s:%d", ErrInvalidLine, f.Name, line)
	}

	entry, ok := f.lines[line]
	if !ok {
		clone := coverage.Clone()
		f.lines[line] = &clone

		return nil
	}

	entry.Merge(coverage)

	return nil
}

// Line returns the coverage of a line.
func (f *FileCoverage) Line(line int) (LineCoverage, bool) {
	entry, ok := f.lines[line]
	if !ok {
		return LineCoverage{}, false
	}

	return *entry, true
}

// LineNumbers returns the covered line numbers in ascending order.
func (f *FileCoverage) LineNumbers() []int {
	return slices.Sorted(maps.Keys(f.lines))
}

// Len returns the number of line entries.
func (f *FileCoverage) Len() int {
	return len(f.lines)
}

// Merge folds every line of other into f.
func (f *FileCoverage) Merge(other *FileCoverage) {
	for number, line := range other.lines {
		_ = f.SetLine(number, *line)
	}
}

// RemoveSessions strips the given sessions from every line and reports how
// many lines were touched.
func (f *FileCoverage) RemoveSessions(ids map[int]struct{}) int {
	touched := 0

	for _, line := range f.lines {
		if line.RemoveSessions(ids) {
			touched++
		}
	}

	return touched
}

// SessionIDs returns the distinct session ids referenced by the file.
func (f *FileCoverage) SessionIDs() []int {
	seen := make(map[int]struct{})

	for _, line := range f.lines {
		for _, contribution := range line.Sessions {
			seen[contribution.SessionID] = struct{}{}
		}
	}

	return slices.Sorted(maps.Keys(seen))
}

// Totals aggregates the file's lines.
func (f *FileCoverage) Totals() Totals {
	var totals Totals

	for _, line := range f.lines {
		totals.addLine(*line)
	}

	if totals.Lines > 0 {
		totals.Files = 1
	}

	totals.finish()

	return totals
}

// SessionTotals aggregates only what one session contributed to the file.
func (f *FileCoverage) SessionTotals(sessionID int) Totals {
	var totals Totals

	for _, line := range f.lines {
		for _, contribution := range line.Sessions {
			if contribution.SessionID != sessionID {
				continue
			}

			totals.addLine(LineCoverage{Value: contribution.Value, Branches: contribution.Branches})
		}
	}

	if totals.Lines > 0 {
		totals.Files = 1
	}

	totals.finish()

	return totals
}

// Clone returns a deep copy of the file.
func (f *FileCoverage) Clone() *FileCoverage {
	clone := NewFileCoverage(f.Name)

	for number, line := range f.lines {
		copied := line.Clone()
		clone.lines[number] = &copied
	}

	return clone
}

// MarshalJSON encodes the lines as an object keyed by line number.
func (f *FileCoverage) MarshalJSON() ([]byte, error) {
	out := make(map[string]LineCoverage, len(f.lines))
	for number, line := range f.lines {
		out[strconv.Itoa(number)] = *line
	}

	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of [FileCoverage.MarshalJSON]. Name is not
// part of the encoding and is restored by the owning report.
func (f *FileCoverage) UnmarshalJSON(data []byte) error {
	var raw map[string]LineCoverage

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("decode file lines: %w", err)
	}

	f.lines = make(map[int]*LineCoverage, len(raw))

	for key, line := range raw {
		number, convErr := strconv.Atoi(key)
		if convErr != nil || number < 1 {
			return fmt.Errorf("%w: %q", ErrInvalidLine, key)
		}

		copied := line
		f.lines[number] = &copied
	}

	return nil
}
