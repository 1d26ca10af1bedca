package coverage

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidContribution is returned when a session contribution cannot be
// decoded from its [id, value, branches] array form.
var ErrInvalidContribution = errors.New("invalid session contribution")

// Branch is one branch outcome of a line.
type Branch struct {
	ID    string `json:"id"`
	Value Value  `json:"value"`
}

// MarshalJSON encodes a branch as a two-element [id, value] array.
func (b Branch) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{b.ID, b.Value})
}

// UnmarshalJSON decodes a two-element [id, value] array.
func (b *Branch) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage

	err := json.Unmarshal(data, &parts)
	if err != nil || len(parts) != 2 {
		return fmt.Errorf("%w: branch %s", ErrInvalidContribution, data)
	}

	idErr := json.Unmarshal(parts[0], &b.ID)
	if idErr != nil {
		return fmt.Errorf("%w: branch id %s", ErrInvalidContribution, parts[0])
	}

	return b.Value.UnmarshalJSON(parts[1])
}

// MergeBranches unions two branch lists by ID. Values that share an ID are
// merged with [Value.Merge]. The result is sorted by ID and never aliases
// its inputs.
func MergeBranches(a, b []Branch) []Branch {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}

	byID := make(map[string]Value, len(a)+len(b))

	for _, branch := range a {
		byID[branch.ID] = byID[branch.ID].Merge(branch.Value)
	}

	for _, branch := range b {
		byID[branch.ID] = byID[branch.ID].Merge(branch.Value)
	}

	merged := make([]Branch, 0, len(byID))
	for id, value := range byID {
		merged = append(merged, Branch{ID: id, Value: value})
	}

	slices.SortFunc(merged, func(x, y Branch) int { return strings.Compare(x.ID, y.ID) })

	return merged
}

// Contribution is what one session observed for a line.
type Contribution struct {
	SessionID int
	Value     Value
	Branches  []Branch
}

// MarshalJSON encodes a contribution as [id, value] or [id, value, branches].
func (c Contribution) MarshalJSON() ([]byte, error) {
	if len(c.Branches) == 0 {
		return json.Marshal([]any{c.SessionID, c.Value})
	}

	return json.Marshal([]any{c.SessionID, c.Value, c.Branches})
}

// UnmarshalJSON is the inverse of [Contribution.MarshalJSON].
func (c *Contribution) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage

	err := json.Unmarshal(data, &parts)
	if err != nil || len(parts) < 2 || len(parts) > 3 {
		return fmt.Errorf("%w: %s", ErrInvalidContribution, data)
	}

	idErr := json.Unmarshal(parts[0], &c.SessionID)
	if idErr != nil {
		return fmt.Errorf("%w: session id %s", ErrInvalidContribution, parts[0])
	}

	valueErr := c.Value.UnmarshalJSON(parts[1])
	if valueErr != nil {
		return valueErr
	}

	if len(parts) == 3 {
		branchErr := json.Unmarshal(parts[2], &c.Branches)
		if branchErr != nil {
			return fmt.Errorf("%w: branches %s", ErrInvalidContribution, parts[2])
		}
	}

	return nil
}

// LineCoverage is the aggregate coverage of one source line.
// When Sessions is non-empty, Value and Branches are derived from it.
type LineCoverage struct {
	Value    Value          `json:"value"`
	Sessions []Contribution `json:"sessions,omitempty"`
	Branches []Branch       `json:"branches,omitempty"`
}

// Add folds one session observation into the line, merging with an
// existing contribution of the same session instead of replacing it.
func (l *LineCoverage) Add(sessionID int, value Value, branches []Branch) {
	for i := range l.Sessions {
		if l.Sessions[i].SessionID != sessionID {
			continue
		}

		l.Sessions[i].Value = l.Sessions[i].Value.Merge(value)
		l.Sessions[i].Branches = MergeBranches(l.Sessions[i].Branches, branches)
		l.Recompute()

		return
	}

	l.Sessions = append(l.Sessions, Contribution{
		SessionID: sessionID,
		Value:     value,
		Branches:  MergeBranches(nil, branches),
	})
	l.Recompute()
}

// Merge folds another line's contributions into l. Lines without session
// contributions merge their aggregates directly.
func (l *LineCoverage) Merge(other LineCoverage) {
	if len(other.Sessions) == 0 {
		l.Value = l.Value.Merge(other.Value)
		l.Branches = MergeBranches(l.Branches, other.Branches)

		return
	}

	for _, contribution := range other.Sessions {
		l.Add(contribution.SessionID, contribution.Value, contribution.Branches)
	}
}

// Recompute derives Value and Branches from the session contributions.
// A line without contributions is left untouched.
func (l *LineCoverage) Recompute() {
	if len(l.Sessions) == 0 {
		return
	}

	value := NoData()

	var branches []Branch

	for _, contribution := range l.Sessions {
		value = value.Merge(contribution.Value)
		branches = MergeBranches(branches, contribution.Branches)
	}

	l.Value = value
	l.Branches = branches
}

// RemoveSessions drops contributions of the given sessions. It reports
// whether the line referenced any of them. A line whose contributions are
// all removed becomes NoData.
func (l *LineCoverage) RemoveSessions(ids map[int]struct{}) bool {
	if len(l.Sessions) == 0 {
		return false
	}

	kept := l.Sessions[:0]

	for _, contribution := range l.Sessions {
		if _, drop := ids[contribution.SessionID]; drop {
			continue
		}

		kept = append(kept, contribution)
	}

	if len(kept) == len(l.Sessions) {
		return false
	}

	if len(kept) == 0 {
		l.Sessions = nil
		l.Value = NoData()
		l.Branches = nil

		return true
	}

	l.Sessions = kept
	l.Recompute()

	return true
}

// Partial reports whether a hit line has at least one missed branch.
func (l LineCoverage) Partial() bool {
	if !l.Value.Hit() {
		return false
	}

	for _, branch := range l.Branches {
		if !branch.Value.Hit() {
			return true
		}
	}

	return false
}

// Clone returns a deep copy of the line.
func (l LineCoverage) Clone() LineCoverage {
	clone := LineCoverage{Value: l.Value, Branches: slices.Clone(l.Branches)}

	if len(l.Sessions) > 0 {
		clone.Sessions = make([]Contribution, len(l.Sessions))
		for i, contribution := range l.Sessions {
			clone.Sessions[i] = Contribution{
				SessionID: contribution.SessionID,
				Value:     contribution.Value,
				Branches:  slices.Clone(contribution.Branches),
			}
		}
	}

	return clone
}
