package coverage

import (
	"maps"
	"slices"
)

// SessionType tells fresh uploads apart from sessions reused by carryforward.
type SessionType string

// Session types.
const (
	SessionUploaded       SessionType = "uploaded"
	SessionCarriedForward SessionType = "carriedforward"
)

// Session is one upload's contribution to a report.
type Session struct {
	ID       int            `json:"id"`
	Flags    []string       `json:"flags,omitempty"`
	Name     string         `json:"name,omitempty"`
	Type     SessionType    `json:"session_type"`
	Extras   map[string]any `json:"session_extras,omitempty"`
	Provider string         `json:"provider,omitempty"`
	Build    string         `json:"build,omitempty"`
	Job      string         `json:"job,omitempty"`
	URL      string         `json:"url,omitempty"`
	Archive  string         `json:"archive,omitempty"`
	Time     int64          `json:"time,omitempty"`
}

// HasAnyFlag reports whether the session carries at least one of flags.
func (s *Session) HasAnyFlag(flags []string) bool {
	for _, flag := range s.Flags {
		if slices.Contains(flags, flag) {
			return true
		}
	}

	return false
}

// Clone returns a copy that shares no slices or maps with s.
func (s *Session) Clone() *Session {
	clone := *s
	clone.Flags = slices.Clone(s.Flags)

	if s.Extras != nil {
		clone.Extras = maps.Clone(s.Extras)
	}

	return &clone
}
