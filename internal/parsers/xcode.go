package parsers

import (
	"bufio"
	"bytes"
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
	"github.com/Sumatoshi-tech/covfold/pkg/textutil"
)

// XcodeMaxCount clamps scaled hit counts such as "3.2m".
const XcodeMaxCount = 99999

// Hit count suffix multipliers.
const (
	xcodeKilo = 1_000
	xcodeMega = 1_000_000
)

// xcodeRecord matches "<line>| <count>|<source>" records.
var xcodeRecord = regexp.MustCompile(`^\s*(\d+)\|\s*([0-9.]*[kmKM]?)\s*\|`)

// maxLineLength bounds a single record; generated sources can be wide.
const maxLineLength = 4 << 20

// XcodeParser reads llvm-cov / xccov "show" text output: every file block
// starts with a "<path>:" header followed by "<line>| <count>|<source>"
// records. Terminal color sequences are stripped first. Counts may carry a
// k or m suffix. Blocks without a single counted line leave no trace.
type XcodeParser struct{}

// NewXcodeParser creates the parser.
func NewXcodeParser() *XcodeParser { return &XcodeParser{} }

// Name implements Parser.
func (p *XcodeParser) Name() string { return FormatXcode }

// MatchesContent claims text whose first line is a path header or a
// line record, and .txt/.log uploads holding line records.
func (p *XcodeParser) MatchesContent(payload []byte, firstLine, name string) bool {
	first := string(textutil.StripANSI([]byte(firstLine)))

	if xcodeRecord.MatchString(first) {
		return true
	}

	if isXcodeHeader(first) {
		return true
	}

	ext := path.Ext(name)
	if ext == ".txt" || ext == ".log" {
		return xcodeRecord.Match(firstRecordLine(textutil.StripANSI(payload)))
	}

	return false
}

// Parse implements Parser.
func (p *XcodeParser) Parse(payload []byte, session Builder) error {
	scanner := bufio.NewScanner(bytes.NewReader(textutil.StripANSI(payload)))
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineLength)

	current := ""

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		match := xcodeRecord.FindStringSubmatch(line)
		if match == nil {
			if isXcodeHeader(strings.TrimSpace(line)) {
				current = strings.TrimSuffix(strings.TrimSpace(line), ":")
			}

			continue
		}

		if current == "" {
			continue
		}

		number, numErr := strconv.Atoi(match[1])
		if numErr != nil {
			return malformed(FormatXcode, "%s: bad line number %q", current, match[1])
		}

		value, ok := ParseXcodeCount(match[2])
		if !ok {
			continue
		}

		err := addLine(FormatXcode, session, current, number, value, nil)
		if err != nil {
			return err
		}
	}

	scanErr := scanner.Err()
	if scanErr != nil {
		return malformed(FormatXcode, "read: %v", scanErr)
	}

	return nil
}

// ParseXcodeCount decodes a count column. Blank means no data; k and m
// scale by a thousand and a million and the result is clamped to
// [XcodeMaxCount].
func ParseXcodeCount(raw string) (coverage.Value, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return coverage.NoData(), false
	}

	multiplier := 1.0

	switch suffix := strings.ToLower(raw[len(raw)-1:]); suffix {
	case "k":
		multiplier = xcodeKilo
		raw = raw[:len(raw)-1]
	case "m":
		multiplier = xcodeMega
		raw = raw[:len(raw)-1]
	}

	number, err := strconv.ParseFloat(raw, 64)
	if err != nil || number < 0 || math.IsNaN(number) {
		return coverage.NoData(), false
	}

	scaled := number * multiplier
	if scaled > XcodeMaxCount {
		return coverage.Int(XcodeMaxCount), true
	}

	return coverage.Int(int64(scaled)), true
}

func isXcodeHeader(line string) bool {
	if !strings.HasSuffix(line, ":") || strings.Contains(line, "|") {
		return false
	}

	name := strings.TrimSuffix(line, ":")
	if name == "" {
		return false
	}

	return strings.ContainsAny(name, "/\\") || path.Ext(name) != ""
}

func firstRecordLine(payload []byte) []byte {
	for line := range bytes.SplitSeq(payload, []byte{'\n'}) {
		if bytes.IndexByte(line, '|') >= 0 {
			return line
		}
	}

	return nil
}
