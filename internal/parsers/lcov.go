package parsers

import (
	"bufio"
	"bytes"
	"path"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

// lcov record prefixes.
const (
	lcovTestName   = "TN:"
	lcovSourceFile = "SF:"
	lcovLine       = "DA:"
	lcovBranch     = "BRDA:"
	lcovEnd        = "end_of_record"
	lcovNotTaken   = "-"
)

// LcovParser reads lcov tracefiles. DA records carry line hits; BRDA records
// add branches identified as "<block>:<branch>" to their line.
type LcovParser struct{}

// NewLcovParser creates the parser.
func NewLcovParser() *LcovParser { return &LcovParser{} }

// Name implements Parser.
func (p *LcovParser) Name() string { return FormatLcov }

// MatchesContent claims tracefiles by their first record or the .info extension.
func (p *LcovParser) MatchesContent(payload []byte, firstLine, name string) bool {
	if strings.HasPrefix(firstLine, lcovTestName) || strings.HasPrefix(firstLine, lcovSourceFile) {
		return true
	}

	if path.Ext(name) == ".info" || strings.HasSuffix(name, ".lcov") {
		return bytes.Contains(payload, []byte(lcovSourceFile))
	}

	return false
}

type lcovFile struct {
	name     string
	lines    map[int]coverage.Value
	branches map[int][]coverage.Branch
	order    []int
}

func (f *lcovFile) touch(line int) {
	_, seenLine := f.lines[line]
	_, seenBranch := f.branches[line]

	if !seenLine && !seenBranch {
		f.order = append(f.order, line)
	}
}

// Parse implements Parser.
func (p *LcovParser) Parse(payload []byte, session Builder) error {
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineLength)

	var current *lcovFile

	for scanner.Scan() {
		record := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(record, lcovSourceFile):
			current = &lcovFile{
				name:     strings.TrimSpace(strings.TrimPrefix(record, lcovSourceFile)),
				lines:    make(map[int]coverage.Value),
				branches: make(map[int][]coverage.Branch),
			}
		case record == lcovEnd:
			err := flushLcovFile(current, session)
			if err != nil {
				return err
			}

			current = nil
		case current == nil:
			continue
		case strings.HasPrefix(record, lcovLine):
			err := parseLcovLine(current, strings.TrimPrefix(record, lcovLine))
			if err != nil {
				return err
			}
		case strings.HasPrefix(record, lcovBranch):
			err := parseLcovBranch(current, strings.TrimPrefix(record, lcovBranch))
			if err != nil {
				return err
			}
		}
	}

	scanErr := scanner.Err()
	if scanErr != nil {
		return malformed(FormatLcov, "read: %v", scanErr)
	}

	// Tolerate a missing trailing end_of_record.
	return flushLcovFile(current, session)
}

func parseLcovLine(file *lcovFile, body string) error {
	fields := strings.Split(body, ",")
	if len(fields) < 2 {
		return malformed(FormatLcov, "%s: bad DA record %q", file.name, body)
	}

	line, lineErr := strconv.Atoi(strings.TrimSpace(fields[0]))
	hits, hitsErr := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)

	if lineErr != nil || hitsErr != nil {
		return malformed(FormatLcov, "%s: bad DA record %q", file.name, body)
	}

	file.touch(line)
	file.lines[line] = file.lines[line].Merge(coverage.Int(hits))

	return nil
}

func parseLcovBranch(file *lcovFile, body string) error {
	fields := strings.Split(body, ",")
	if len(fields) != 4 {
		return malformed(FormatLcov, "%s: bad BRDA record %q", file.name, body)
	}

	line, lineErr := strconv.Atoi(strings.TrimSpace(fields[0]))
	if lineErr != nil {
		return malformed(FormatLcov, "%s: bad BRDA record %q", file.name, body)
	}

	taken := int64(0)

	if raw := strings.TrimSpace(fields[3]); raw != lcovNotTaken {
		parsed, takenErr := strconv.ParseInt(raw, 10, 64)
		if takenErr != nil {
			return malformed(FormatLcov, "%s: bad BRDA record %q", file.name, body)
		}

		taken = parsed
	}

	file.touch(line)
	file.branches[line] = append(file.branches[line], coverage.Branch{
		ID:    strings.TrimSpace(fields[1]) + ":" + strings.TrimSpace(fields[2]),
		Value: coverage.Int(taken),
	})

	return nil
}

func flushLcovFile(file *lcovFile, session Builder) error {
	if file == nil {
		return nil
	}

	for _, line := range file.order {
		value := file.lines[line]
		branches := file.branches[line]

		// A line known only from BRDA records was reached iff a branch was taken.
		if value.IsNoData() {
			value = coverage.Int(0)

			for _, branch := range branches {
				value = value.Merge(coverage.Int(min(branch.Value.Count(), 1)))
			}
		}

		err := addLine(FormatLcov, session, file.name, line, value, branches)
		if err != nil {
			return err
		}
	}

	return nil
}
