// Package carryforward turns a prior commit's report into the baseline of a
// new commit: files outside the requested paths are dropped, sessions without
// a requested flag are removed, and the remaining sessions are relabeled as
// carried forward.
package carryforward

import (
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
	"github.com/Sumatoshi-tech/covfold/pkg/matcher"
)

// DefaultName is given to carried sessions that had no name.
const DefaultName = "Carriedforward"

const legacyMarker = "CF "

var bracketMarker = regexp.MustCompile(`^CF\[(\d+)\]`)

// Request selects what a carryforward keeps.
type Request struct {
	// Flags keeps sessions carrying at least one of them. Empty keeps all.
	Flags []string
	// Paths keeps files matched by at least one glob or regex. Empty keeps all.
	Paths []string
	// Extras, when non-nil, replaces the extras of every kept session.
	Extras map[string]any
}

// Summary describes what a carryforward changed.
type Summary struct {
	RemovedFiles    []string
	RemovedSessions []int
	CarriedSessions []int
	TouchedLines    int
}

// GenerateCarryforwardReport applies req to report in place and returns it.
// Invalid path patterns are reported before anything is modified. A result
// without files or sessions is valid.
func GenerateCarryforwardReport(report *coverage.Report, req Request) (*coverage.Report, Summary, error) {
	var summary Summary

	keep, err := matcher.New(req.Paths...)
	if err != nil {
		return report, summary, fmt.Errorf("carryforward paths: %w", err)
	}

	if !keep.Empty() {
		summary.RemovedFiles = report.DeleteFiles(func(name string) bool {
			return !keep.Match(name)
		})
	}

	for _, id := range report.Sessions() {
		session, _ := report.Session(id)

		if len(req.Flags) > 0 && !session.HasAnyFlag(req.Flags) {
			summary.RemovedSessions = append(summary.RemovedSessions, id)

			continue
		}

		if req.Extras != nil {
			session.Extras = maps.Clone(req.Extras)
		}

		session.Name = Name(session.Name)
		session.Type = coverage.SessionCarriedForward
		summary.CarriedSessions = append(summary.CarriedSessions, id)
	}

	summary.TouchedLines = report.DeleteSessions(summary.RemovedSessions...)

	return report, summary, nil
}

// Name returns the label of a session after one more carryforward:
//
//	""             -> "Carriedforward"
//	"CF CF build"  -> "CF[3] - build"
//	"CF[2] - unit" -> "CF[3] - unit"
//	"unit"         -> "CF[1] - unit"
func Name(name string) string {
	if name == "" {
		return DefaultName
	}

	if strings.HasPrefix(name, legacyMarker) {
		rest := name
		count := 0

		for strings.HasPrefix(rest, legacyMarker) {
			rest = rest[len(legacyMarker):]
			count++
		}

		return label(count+1, rest)
	}

	if loc := bracketMarker.FindStringSubmatchIndex(name); loc != nil {
		n, err := strconv.Atoi(name[loc[2]:loc[3]])
		if err == nil {
			return "CF[" + strconv.Itoa(n+1) + "]" + name[loc[1]:]
		}
	}

	return label(1, name)
}

func label(generation int, name string) string {
	return fmt.Sprintf("CF[%d] - %s", generation, name)
}
