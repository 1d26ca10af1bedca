package coverage

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Sentinel report errors.
var (
	// ErrSessionConflict is returned when merging a report whose session id
	// is already present.
	ErrSessionConflict = errors.New("session id already present in report")

	// ErrDanglingSession is returned by Validate when a line references a
	// session the report does not know.
	ErrDanglingSession = errors.New("line references unknown session")
)

// Report is the canonical coverage report: files keyed by normalized path and
// sessions keyed by id. A Report has a single owner at a time and performs no
// locking.
type Report struct {
	files    map[string]*FileCoverage
	sessions map[int]*Session
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{
		files:    make(map[string]*FileCoverage),
		sessions: make(map[int]*Session),
	}
}

// Files returns file names in lexical order.
func (r *Report) Files() []string {
	return slices.Sorted(maps.Keys(r.files))
}

// File returns the coverage of one file.
func (r *Report) File(name string) (*FileCoverage, bool) {
	file, ok := r.files[name]

	return file, ok
}

// AddFile inserts a file, merging line by line when the name already exists.
// Files without lines are not stored.
func (r *Report) AddFile(file *FileCoverage) {
	if file == nil || file.Len() == 0 {
		return
	}

	existing, ok := r.files[file.Name]
	if !ok {
		r.files[file.Name] = file

		return
	}

	existing.Merge(file)
}

// DeleteFile removes a file and all its line data.
func (r *Report) DeleteFile(name string) {
	delete(r.files, name)
}

// DeleteFiles removes every file for which drop returns true and returns the
// removed names in lexical order.
func (r *Report) DeleteFiles(drop func(name string) bool) []string {
	var removed []string

	for _, name := range r.Files() {
		if drop(name) {
			delete(r.files, name)
			removed = append(removed, name)
		}
	}

	return removed
}

// Sessions returns session ids in ascending order.
func (r *Report) Sessions() []int {
	return slices.Sorted(maps.Keys(r.sessions))
}

// Session returns a session by id.
func (r *Report) Session(id int) (*Session, bool) {
	session, ok := r.sessions[id]

	return session, ok
}

// AddSession registers or replaces a session.
func (r *Report) AddSession(session *Session) {
	r.sessions[session.ID] = session
}

// DeleteSessions removes sessions and strips their contributions from every
// line. Lines left without contributions become NoData. It returns the
// number of lines touched.
func (r *Report) DeleteSessions(ids ...int) int {
	if len(ids) == 0 {
		return 0
	}

	set := make(map[int]struct{}, len(ids))

	for _, id := range ids {
		set[id] = struct{}{}
		delete(r.sessions, id)
	}

	touched := 0
	for _, file := range r.files {
		touched += file.RemoveSessions(set)
	}

	return touched
}

// Merge folds other into r. Session ids must not collide; on conflict r is
// left unmodified.
func (r *Report) Merge(other *Report) error {
	for id := range other.sessions {
		if _, exists := r.sessions[id]; exists {
			return fmt.Errorf("%w: %d", ErrSessionConflict, id)
		}
	}

	for id, session := range other.sessions {
		r.sessions[id] = session.Clone()
	}

	for _, name := range other.Files() {
		r.AddFile(other.files[name].Clone())
	}

	return nil
}

// IsEmpty reports whether the report holds neither files nor sessions.
func (r *Report) IsEmpty() bool {
	return len(r.files) == 0 && len(r.sessions) == 0
}

// Totals recomputes the report-wide aggregate.
func (r *Report) Totals() Totals {
	var totals Totals

	for _, file := range r.files {
		totals.Add(file.Totals())
	}

	totals.Sessions = len(r.sessions)

	return totals
}

// SessionTotals aggregates the contributions of one session.
func (r *Report) SessionTotals(id int) Totals {
	var totals Totals

	for _, file := range r.files {
		totals.Add(file.SessionTotals(id))
	}

	if _, ok := r.sessions[id]; ok {
		totals.Sessions = 1
	}

	return totals
}

// Validate checks that every session id referenced by a line exists.
func (r *Report) Validate() error {
	for _, name := range r.Files() {
		for _, id := range r.files[name].SessionIDs() {
			if _, ok := r.sessions[id]; !ok {
				return fmt.Errorf("%w: %s references session %d", ErrDanglingSession, name, id)
			}
		}
	}

	return nil
}

// Clone returns a deep copy of the report.
func (r *Report) Clone() *Report {
	clone := NewReport()

	for name, file := range r.files {
		clone.files[name] = file.Clone()
	}

	for id, session := range r.sessions {
		clone.sessions[id] = session.Clone()
	}

	return clone
}

// reportJSON is the persisted shape of a Report. Totals are written for
// readers but ignored on decode.
type reportJSON struct {
	Files    map[string]*FileCoverage `json:"files"`
	Sessions map[int]*Session         `json:"sessions"`
	Totals   *Totals                  `json:"totals,omitempty"`
}

// MarshalJSON encodes the report together with freshly computed totals.
func (r *Report) MarshalJSON() ([]byte, error) {
	totals := r.Totals()

	return json.Marshal(reportJSON{Files: r.files, Sessions: r.sessions, Totals: &totals})
}

// UnmarshalJSON decodes a report and rejects dangling session references.
func (r *Report) UnmarshalJSON(data []byte) error {
	var raw reportJSON

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("decode report: %w", err)
	}

	r.files = make(map[string]*FileCoverage, len(raw.Files))
	r.sessions = make(map[int]*Session, len(raw.Sessions))

	for name, file := range raw.Files {
		if file == nil {
			continue
		}

		file.Name = name
		r.files[name] = file
	}

	for id, session := range raw.Sessions {
		if session == nil {
			continue
		}

		session.ID = id
		r.sessions[id] = session
	}

	return r.Validate()
}
