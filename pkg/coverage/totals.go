package coverage

// percentScale converts a hit ratio to a percentage.
const percentScale = 100

// Totals is an aggregate over files and sessions. It is always derived
// from line data and never stored as the source of truth.
type Totals struct {
	Files    int     `json:"files"`
	Lines    int     `json:"lines"`
	Hits     int     `json:"hits"`
	Misses   int     `json:"misses"`
	Partials int     `json:"partials"`
	Branches int     `json:"branches"`
	Sessions int     `json:"sessions"`
	Coverage float64 `json:"coverage"`
}

// addLine counts one line. NoData lines do not count.
func (t *Totals) addLine(line LineCoverage) {
	if line.Value.IsNoData() {
		return
	}

	t.Lines++
	t.Branches += len(line.Branches)

	switch {
	case line.Partial():
		t.Partials++
	case line.Value.Hit():
		t.Hits++
	default:
		t.Misses++
	}
}

// Add accumulates another totals value. Coverage is recomputed.
func (t *Totals) Add(other Totals) {
	t.Files += other.Files
	t.Lines += other.Lines
	t.Hits += other.Hits
	t.Misses += other.Misses
	t.Partials += other.Partials
	t.Branches += other.Branches
	t.finish()
}

func (t *Totals) finish() {
	if t.Lines == 0 {
		t.Coverage = 0

		return
	}

	t.Coverage = float64(t.Hits) * percentScale / float64(t.Lines)
}
