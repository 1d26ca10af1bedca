package parsers

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

const goModePrefix = "mode:"

// Go cover modes.
const (
	goModeSet    = "set"
	goModeCount  = "count"
	goModeAtomic = "atomic"
)

// goBlock matches "<file>:<l0>.<c0>,<l1>.<c1> <statements> <count>".
var goBlock = regexp.MustCompile(`^(.+):(\d+)\.\d+,(\d+)\.\d+ (\d+) (\d+)$`)

// GoParser reads profiles written by "go test -coverprofile". Each block is
// expanded over its line range. A line shared by several blocks keeps the
// highest count. Blocks read under set mode yield booleans unless a counting
// block covers the same line.
type GoParser struct{}

// NewGoParser creates the parser.
func NewGoParser() *GoParser { return &GoParser{} }

// Name implements Parser.
func (p *GoParser) Name() string { return FormatGo }

// MatchesContent claims payloads that open with a mode header.
func (p *GoParser) MatchesContent(_ []byte, firstLine, _ string) bool {
	return strings.HasPrefix(firstLine, goModePrefix)
}

type goLine struct {
	count   int64
	counted bool
}

type goFile struct {
	lines map[int]goLine
	order []int
}

// Parse implements Parser.
func (p *GoParser) Parse(payload []byte, session Builder) error {
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineLength)

	mode := ""
	files := make(map[string]*goFile)
	order := make([]string, 0)
	seen := make(map[string]struct{})

	for scanner.Scan() {
		record := strings.TrimSpace(scanner.Text())
		if record == "" {
			continue
		}

		if strings.HasPrefix(record, goModePrefix) {
			parsed, err := parseGoMode(record)
			if err != nil {
				return err
			}

			mode = parsed

			continue
		}

		if mode == "" {
			return malformed(FormatGo, "block before mode header")
		}

		// Profiles concatenated from several packages repeat blocks verbatim.
		if _, dup := seen[record]; dup {
			continue
		}

		seen[record] = struct{}{}

		match := goBlock.FindStringSubmatch(record)
		if match == nil {
			return malformed(FormatGo, "bad block %q", record)
		}

		start, startErr := strconv.Atoi(match[2])
		end, endErr := strconv.Atoi(match[3])

		if startErr != nil || endErr != nil || start < 1 || end > maxLineNumber {
			return malformed(FormatGo, "bad line range in %q", record)
		}

		count, countErr := strconv.ParseInt(match[5], 10, 64)
		if countErr != nil {
			return malformed(FormatGo, "bad count in %q", record)
		}

		if end < start {
			return malformed(FormatGo, "block %q ends before it starts", record)
		}

		file, ok := files[match[1]]
		if !ok {
			file = &goFile{lines: make(map[int]goLine)}
			files[match[1]] = file
			order = append(order, match[1])
		}

		counted := mode != goModeSet

		for line := start; line <= end; line++ {
			previous, known := file.lines[line]
			if !known {
				file.order = append(file.order, line)
			}

			file.lines[line] = goLine{count: max(previous.count, count), counted: previous.counted || counted}
		}
	}

	scanErr := scanner.Err()
	if scanErr != nil {
		return malformed(FormatGo, "read: %v", scanErr)
	}

	for _, name := range order {
		file := files[name]

		for _, line := range file.order {
			err := addLine(FormatGo, session, name, line, goValue(file.lines[line]), nil)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func parseGoMode(record string) (string, error) {
	mode := strings.TrimSpace(strings.TrimPrefix(record, goModePrefix))

	switch mode {
	case goModeSet, goModeCount, goModeAtomic:
		return mode, nil
	default:
		return "", malformed(FormatGo, "unknown mode %q", mode)
	}
}

func goValue(line goLine) coverage.Value {
	if !line.counted {
		return coverage.Bool(line.count > 0)
	}

	return coverage.Int(line.count)
}
