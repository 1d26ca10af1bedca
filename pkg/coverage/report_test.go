package coverage_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

func buildReport(t *testing.T) *coverage.Report {
	t.Helper()

	report := coverage.NewReport()
	report.AddSession(&coverage.Session{ID: 0, Flags: []string{"unit"}, Type: coverage.SessionUploaded})
	report.AddSession(&coverage.Session{ID: 1, Flags: []string{"integration"}, Type: coverage.SessionUploaded})

	file := coverage.NewFileCoverage("src/a.go")
	require.NoError(t, file.Add(1, 0, coverage.Int(1), nil))
	require.NoError(t, file.Add(1, 1, coverage.Int(2), nil))
	require.NoError(t, file.Add(2, 0, coverage.Int(0), nil))
	require.NoError(t, file.Add(3, 1, coverage.Int(4), []coverage.Branch{
		{ID: "0", Value: coverage.Int(1)},
		{ID: "1", Value: coverage.Int(0)},
	}))
	report.AddFile(file)

	return report
}

func TestFileCoverage_AddMergesDuplicates(t *testing.T) {
	t.Parallel()

	file := coverage.NewFileCoverage("a.py")
	require.NoError(t, file.Add(5, 0, coverage.Int(1), []coverage.Branch{{ID: "a", Value: coverage.Int(1)}}))
	require.NoError(t, file.Add(5, 0, coverage.Int(2), []coverage.Branch{{ID: "b", Value: coverage.Int(0)}}))

	line, ok := file.Line(5)
	require.True(t, ok)
	assert.Equal(t, coverage.Int(3), line.Value)
	require.Len(t, line.Sessions, 1)
	assert.Equal(t, coverage.Int(3), line.Sessions[0].Value)
	assert.Equal(t, []coverage.Branch{
		{ID: "a", Value: coverage.Int(1)},
		{ID: "b", Value: coverage.Int(0)},
	}, line.Branches)
}

func TestFileCoverage_RejectsLineZero(t *testing.T) {
	t.Parallel()

	file := coverage.NewFileCoverage("a.py")
	require.ErrorIs(t, file.Add(0, 0, coverage.Int(1), nil), coverage.ErrInvalidLine)
}

func TestReport_Totals(t *testing.T) {
	t.Parallel()

	totals := buildReport(t).Totals()

	assert.Equal(t, 1, totals.Files)
	assert.Equal(t, 3, totals.Lines)
	assert.Equal(t, 1, totals.Hits)
	assert.Equal(t, 1, totals.Misses)
	assert.Equal(t, 1, totals.Partials)
	assert.Equal(t, 2, totals.Branches)
	assert.Equal(t, 2, totals.Sessions)
	assert.InDelta(t, 33.333, totals.Coverage, 0.001)
}

func TestReport_SessionTotals(t *testing.T) {
	t.Parallel()

	totals := buildReport(t).SessionTotals(0)

	assert.Equal(t, 2, totals.Lines)
	assert.Equal(t, 1, totals.Hits)
	assert.Equal(t, 1, totals.Misses)
}

func TestReport_DeleteSessions(t *testing.T) {
	t.Parallel()

	report := buildReport(t)
	touched := report.DeleteSessions(1)

	assert.Equal(t, 2, touched)
	assert.Equal(t, []int{0}, report.Sessions())

	file, ok := report.File("src/a.go")
	require.True(t, ok)

	line1, _ := file.Line(1)
	assert.Equal(t, coverage.Int(1), line1.Value)
	require.Len(t, line1.Sessions, 1)
	assert.Equal(t, 0, line1.Sessions[0].SessionID)

	line3, _ := file.Line(3)
	assert.True(t, line3.Value.IsNoData())
	assert.Empty(t, line3.Sessions)
	assert.Empty(t, line3.Branches)

	require.NoError(t, report.Validate())
}

func TestReport_MergeConflict(t *testing.T) {
	t.Parallel()

	base := buildReport(t)
	other := coverage.NewReport()
	other.AddSession(&coverage.Session{ID: 1})

	err := base.Merge(other)
	require.ErrorIs(t, err, coverage.ErrSessionConflict)
	assert.Equal(t, []int{0, 1}, base.Sessions())
}

func TestReport_Merge(t *testing.T) {
	t.Parallel()

	base := buildReport(t)

	other := coverage.NewReport()
	other.AddSession(&coverage.Session{ID: 2, Type: coverage.SessionUploaded})

	file := coverage.NewFileCoverage("src/a.go")
	require.NoError(t, file.Add(2, 2, coverage.Int(5), nil))
	other.AddFile(file)

	extra := coverage.NewFileCoverage("src/b.go")
	require.NoError(t, extra.Add(1, 2, coverage.Bool(true), nil))
	other.AddFile(extra)

	require.NoError(t, base.Merge(other))

	assert.Equal(t, []string{"src/a.go", "src/b.go"}, base.Files())

	merged, _ := base.File("src/a.go")
	line2, _ := merged.Line(2)
	assert.Equal(t, coverage.Int(5), line2.Value)
	assert.Len(t, line2.Sessions, 2)
	require.NoError(t, base.Validate())
}

func TestReport_Validate_Dangling(t *testing.T) {
	t.Parallel()

	report := coverage.NewReport()
	file := coverage.NewFileCoverage("x.c")
	require.NoError(t, file.Add(1, 9, coverage.Int(1), nil))
	report.AddFile(file)

	require.ErrorIs(t, report.Validate(), coverage.ErrDanglingSession)
}

func TestReport_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	report := buildReport(t)
	report.AddSession(&coverage.Session{
		ID:     1,
		Flags:  []string{"integration"},
		Name:   "CI",
		Type:   coverage.SessionCarriedForward,
		Extras: map[string]any{"carriedforward_from": "abc"},
	})

	data, err := json.Marshal(report)
	require.NoError(t, err)

	decoded := coverage.NewReport()
	require.NoError(t, json.Unmarshal(data, decoded))

	assert.Equal(t, report.Files(), decoded.Files())
	assert.Equal(t, report.Sessions(), decoded.Sessions())
	assert.Equal(t, report.Totals(), decoded.Totals())

	session, ok := decoded.Session(1)
	require.True(t, ok)
	assert.Equal(t, "CI", session.Name)
	assert.Equal(t, coverage.SessionCarriedForward, session.Type)
	assert.Equal(t, "abc", session.Extras["carriedforward_from"])
}

func TestReport_UnmarshalRejectsDangling(t *testing.T) {
	t.Parallel()

	payload := `{"files":{"a.go":{"1":{"value":1,"sessions":[[3,1]]}}},"sessions":{}}`

	err := json.Unmarshal([]byte(payload), coverage.NewReport())
	require.ErrorIs(t, err, coverage.ErrDanglingSession)
}
