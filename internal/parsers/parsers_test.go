package parsers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/covfold/internal/builder"
	"github.com/Sumatoshi-tech/covfold/internal/parsers"
	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

const sessionID = 1

func parse(t *testing.T, parser parsers.Parser, payload string) *coverage.Report {
	t.Helper()

	session := builder.New(coverage.Session{ID: sessionID}, nil)
	require.NoError(t, parser.Parse([]byte(payload), session))

	report := session.OutputReport()
	require.NoError(t, report.Validate())

	return report
}

func lineValue(t *testing.T, report *coverage.Report, file string, line int) coverage.Value {
	t.Helper()

	fc, ok := report.File(file)
	require.True(t, ok, "file %s missing", file)

	lc, ok := fc.Line(line)
	require.True(t, ok, "line %s:%d missing", file, line)

	return lc.Value
}

func TestCoveralls_LineArray(t *testing.T) {
	t.Parallel()

	report := parse(t, parsers.NewCoverallsParser(), `{"source_files":[{"name":"a.py","coverage":[0,1,null]}]}`)

	assert.Equal(t, coverage.Int(0), lineValue(t, report, "a.py", 1))
	assert.Equal(t, coverage.Int(1), lineValue(t, report, "a.py", 2))

	file, _ := report.File("a.py")
	assert.Equal(t, []int{1, 2}, file.LineNumbers())
}

func TestCoveralls_StringifiedArray(t *testing.T) {
	t.Parallel()

	report := parse(t, parsers.NewCoverallsParser(),
		`{"source_files":[{"name":"b.rb","coverage":"[null,null,1,null,1]"}]}`)

	file, ok := report.File("b.rb")
	require.True(t, ok)
	assert.Equal(t, []int{3, 5}, file.LineNumbers())
	assert.Equal(t, coverage.Int(1), lineValue(t, report, "b.rb", 3))
}

func TestCoveralls_AllNullFileIsAbsent(t *testing.T) {
	t.Parallel()

	report := parse(t, parsers.NewCoverallsParser(), `{"source_files":[{"name":"c.js","coverage":[null,null]}]}`)

	assert.Empty(t, report.Files())
	assert.Equal(t, []int{sessionID}, report.Sessions())
}

func TestVB2_RangeExpansion(t *testing.T) {
	t.Parallel()

	payload := `<?xml version="1.0" standalone="yes"?>
<CoverageDSPriv>
  <Lines>
    <LnStart>261</LnStart>
    <ColStart>9</ColStart>
    <LnEnd>262</LnEnd>
    <ColEnd>10</ColEnd>
    <Coverage>2</Coverage>
    <SourceFileID>1</SourceFileID>
    <LineID>0</LineID>
  </Lines>
  <Lines>
    <LnStart>12</LnStart>
    <LnEnd>12</LnEnd>
    <Coverage>1</Coverage>
    <SourceFileID>1</SourceFileID>
  </Lines>
  <Lines>
    <LnStart>1</LnStart>
    <LnEnd>1</LnEnd>
    <Coverage>1</Coverage>
    <SourceFileID>9</SourceFileID>
  </Lines>
  <SourceFileNames>
    <SourceFileID>1</SourceFileID>
    <SourceFileName>C:\src\Program.cs</SourceFileName>
  </SourceFileNames>
</CoverageDSPriv>`

	report := parse(t, parsers.NewVB2Parser(), payload)

	assert.Equal(t, []string{`C:\src\Program.cs`}, report.Files())
	assert.Equal(t, coverage.Int(0), lineValue(t, report, `C:\src\Program.cs`, 261))
	assert.Equal(t, coverage.Int(0), lineValue(t, report, `C:\src\Program.cs`, 262))
	assert.Equal(t, coverage.Int(1), lineValue(t, report, `C:\src\Program.cs`, 12))
}

func TestClover_Lines(t *testing.T) {
	t.Parallel()

	payload := `<?xml version="1.0" encoding="UTF-8"?>
<coverage generated="1">
  <project timestamp="1">
    <file name="src/a.php">
      <line num="3" type="method" count="1"/>
      <line num="4" type="stmt" count="2"/>
      <line num="5" type="cond" count="1" truecount="1" falsecount="0"/>
    </file>
    <package name="lib">
      <file name="b.php" path="lib/b.php">
        <line num="1" type="stmt" count="0"/>
      </file>
    </package>
  </project>
</coverage>`

	report := parse(t, parsers.NewCloverParser(), payload)

	assert.Equal(t, []string{"lib/b.php", "src/a.php"}, report.Files())
	assert.Equal(t, coverage.Int(2), lineValue(t, report, "src/a.php", 4))
	assert.Equal(t, coverage.Int(0), lineValue(t, report, "lib/b.php", 1))

	file, _ := report.File("src/a.php")
	_, hasMethod := file.Line(3)
	assert.False(t, hasMethod)

	cond, ok := file.Line(5)
	require.True(t, ok)
	assert.ElementsMatch(t, []coverage.Branch{
		{ID: "true", Value: coverage.Int(1)},
		{ID: "false", Value: coverage.Int(0)},
	}, cond.Branches)
	assert.True(t, cond.Partial())
}

func TestLcov_Records(t *testing.T) {
	t.Parallel()

	payload := `TN:
SF:/src/a.c
DA:1,3
DA:2,0
BRDA:2,0,0,1
BRDA:2,0,1,-
end_of_record
SF:/src/b.c
DA:7,1
`

	report := parse(t, parsers.NewLcovParser(), payload)

	assert.Equal(t, []string{"/src/a.c", "/src/b.c"}, report.Files())
	assert.Equal(t, coverage.Int(3), lineValue(t, report, "/src/a.c", 1))
	assert.Equal(t, coverage.Int(0), lineValue(t, report, "/src/a.c", 2))
	assert.Equal(t, coverage.Int(1), lineValue(t, report, "/src/b.c", 7))

	file, _ := report.File("/src/a.c")
	line, _ := file.Line(2)
	assert.ElementsMatch(t, []coverage.Branch{
		{ID: "0:0", Value: coverage.Int(1)},
		{ID: "0:1", Value: coverage.Int(0)},
	}, line.Branches)
}

func TestGo_SetMode(t *testing.T) {
	t.Parallel()

	payload := `mode: set
example.com/m/a.go:3.10,5.2 1 1
example.com/m/a.go:5.2,6.3 1 0
example.com/m/a.go:3.10,5.2 1 1
`

	report := parse(t, parsers.NewGoParser(), payload)

	for _, line := range []int{3, 4, 5} {
		assert.Equal(t, coverage.Bool(true), lineValue(t, report, "example.com/m/a.go", line))
	}

	assert.Equal(t, coverage.Bool(false), lineValue(t, report, "example.com/m/a.go", 6))
}

func TestGo_CountModeKeepsHighestBlock(t *testing.T) {
	t.Parallel()

	payload := `mode: count
example.com/m/a.go:3.10,5.2 1 2
example.com/m/a.go:5.2,6.3 1 5
`

	report := parse(t, parsers.NewGoParser(), payload)

	assert.Equal(t, coverage.Int(2), lineValue(t, report, "example.com/m/a.go", 3))
	assert.Equal(t, coverage.Int(5), lineValue(t, report, "example.com/m/a.go", 5))
	assert.Equal(t, coverage.Int(5), lineValue(t, report, "example.com/m/a.go", 6))
}

func TestGo_ConcatenatedModes(t *testing.T) {
	t.Parallel()

	payload := `mode: set
example.com/m/a.go:1.1,2.2 1 1
example.com/m/b.go:1.1,1.9 1 1
mode: count
example.com/m/a.go:2.1,3.2 1 7
example.com/m/c.go:1.1,1.9 1 0
`

	report := parse(t, parsers.NewGoParser(), payload)

	assert.Equal(t, coverage.Bool(true), lineValue(t, report, "example.com/m/a.go", 1))
	assert.Equal(t, coverage.Int(7), lineValue(t, report, "example.com/m/a.go", 2))
	assert.Equal(t, coverage.Int(7), lineValue(t, report, "example.com/m/a.go", 3))
	assert.Equal(t, coverage.Bool(true), lineValue(t, report, "example.com/m/b.go", 1))
	assert.Equal(t, coverage.Int(0), lineValue(t, report, "example.com/m/c.go", 1))
}

func TestXcode_Blocks(t *testing.T) {
	t.Parallel()

	payload := "/src/App/Empty.swift:\n" +
		"    1|       |import Foundation\n" +
		"    2|       |\n" +
		"/src/App/Main.swift:\n" +
		"    1|       |import Foundation\n" +
		"    2|      1|func main() {\n" +
		"\x1b[0;36m    3|\x1b[0m     1k|  loop()\n" +
		"    4|     1m|  hot()\n" +
		"    5|      0|}\n"

	report := parse(t, parsers.NewXcodeParser(), payload)

	assert.Equal(t, []string{"/src/App/Main.swift"}, report.Files())

	file, _ := report.File("/src/App/Main.swift")
	assert.Equal(t, []int{2, 3, 4, 5}, file.LineNumbers())
	assert.Equal(t, coverage.Int(1), lineValue(t, report, "/src/App/Main.swift", 2))
	assert.Equal(t, coverage.Int(1000), lineValue(t, report, "/src/App/Main.swift", 3))
	assert.Equal(t, coverage.Int(parsers.XcodeMaxCount), lineValue(t, report, "/src/App/Main.swift", 4))
	assert.Equal(t, coverage.Int(0), lineValue(t, report, "/src/App/Main.swift", 5))
}

func TestParseXcodeCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want coverage.Value
		ok   bool
	}{
		{raw: "", want: coverage.NoData(), ok: false},
		{raw: "0", want: coverage.Int(0), ok: true},
		{raw: "17", want: coverage.Int(17), ok: true},
		{raw: "1k", want: coverage.Int(1000), ok: true},
		{raw: "2.5K", want: coverage.Int(2500), ok: true},
		{raw: "1m", want: coverage.Int(parsers.XcodeMaxCount), ok: true},
		{raw: "99999999999999m", want: coverage.Int(parsers.XcodeMaxCount), ok: true},
		{raw: "99999999999999999999", want: coverage.Int(parsers.XcodeMaxCount), ok: true},
		{raw: "NaN", want: coverage.NoData(), ok: false},
		{raw: "abc", want: coverage.NoData(), ok: false},
	}

	for _, tt := range tests {
		got, ok := parsers.ParseXcodeCount(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestParsers_MalformedInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		parser  parsers.Parser
		payload string
	}{
		{name: "coveralls missing coverage", parser: parsers.NewCoverallsParser(), payload: `{"source_files":[{"name":"a"}]}`},
		{name: "coveralls not json", parser: parsers.NewCoverallsParser(), payload: `{"source_files":`},
		{name: "coveralls negative count", parser: parsers.NewCoverallsParser(), payload: `{"source_files":[{"name":"a","coverage":[-1]}]}`},
		{name: "vb2 bad range", parser: parsers.NewVB2Parser(), payload: `<CoverageDSPriv><Lines><LnStart>x</LnStart><LnEnd>2</LnEnd>` +
			`<SourceFileID>1</SourceFileID></Lines><SourceFileNames><SourceFileID>1</SourceFileID>` +
			`<SourceFileName>a.cs</SourceFileName></SourceFileNames></CoverageDSPriv>`},
		{name: "clover truncated", parser: parsers.NewCloverParser(), payload: `<coverage><project><file name="a">`},
		{name: "clover line zero", parser: parsers.NewCloverParser(), payload: `<coverage><project><file name="a"><line num="0" type="stmt" count="1"/></file></project></coverage>`},
		{name: "lcov bad DA", parser: parsers.NewLcovParser(), payload: "SF:a.c\nDA:x,1\nend_of_record\n"},
		{name: "lcov bad BRDA", parser: parsers.NewLcovParser(), payload: "SF:a.c\nBRDA:1,0\nend_of_record\n"},
		{name: "go unknown mode", parser: parsers.NewGoParser(), payload: "mode: sometimes\n"},
		{name: "go bad block", parser: parsers.NewGoParser(), payload: "mode: set\nnot a block\n"},
		{name: "go no header", parser: parsers.NewGoParser(), payload: "a.go:1.1,2.2 1 1\n"},
		{name: "go range overflow", parser: parsers.NewGoParser(), payload: "mode: set\na.go:1.1,99999999999999999999.2 1 1\n"},
		{name: "go range too long", parser: parsers.NewGoParser(), payload: "mode: set\na.go:1.1,9000000000.2 1 1\n"},
		{name: "go line zero", parser: parsers.NewGoParser(), payload: "mode: set\na.go:0.1,2.2 1 1\n"},
		{name: "vb2 range too long", parser: parsers.NewVB2Parser(), payload: `<CoverageDSPriv><Lines><LnStart>1</LnStart><LnEnd>9000000000</LnEnd>` +
			`<SourceFileID>1</SourceFileID></Lines><SourceFileNames><SourceFileID>1</SourceFileID>` +
			`<SourceFileName>a.cs</SourceFileName></SourceFileNames></CoverageDSPriv>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			session := builder.New(coverage.Session{ID: sessionID}, nil)
			err := tt.parser.Parse([]byte(tt.payload), session)
			require.ErrorIs(t, err, parsers.ErrMalformedInput)

			var malformed *parsers.MalformedError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tt.parser.Name(), malformed.Format)
		})
	}
}
