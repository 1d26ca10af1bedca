package parsers

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

// vb2Root is the document element of Visual Studio coverage exports.
const vb2Root = "CoverageDSPriv"

// Visual Studio coverage codes.
const (
	vb2Miss = "0"
	vb2Hit  = "1"
)

// VB2Parser reads Visual Studio CoverageDSPriv XML. File names are declared
// by SourceFileNames records and referenced by numeric id from Lines records;
// each Lines record covers LnStart..LnEnd inclusive.
type VB2Parser struct{}

// NewVB2Parser creates the parser.
func NewVB2Parser() *VB2Parser { return &VB2Parser{} }

// Name implements Parser.
func (p *VB2Parser) Name() string { return FormatVB2 }

// MatchesContent claims XML documents rooted at CoverageDSPriv.
func (p *VB2Parser) MatchesContent(payload []byte, firstLine, _ string) bool {
	if !strings.HasPrefix(firstLine, "<") {
		return false
	}

	return bytes.Contains(payload, []byte("<"+vb2Root))
}

type vb2Document struct {
	XMLName   xml.Name          `xml:"CoverageDSPriv"`
	Lines     []vb2Lines        `xml:"Lines"`
	FileNames []vb2SourceFile   `xml:"SourceFileNames"`
	Modules   []vb2ModuleRecord `xml:"Module"`
}

// vb2ModuleRecord holds Lines nested under Module/NamespaceTable/Class/Method
// as Visual Studio writes them; flattened exports put Lines at the root.
type vb2ModuleRecord struct {
	Lines []vb2Lines `xml:"NamespaceTable>Class>Method>Lines"`
}

type vb2Lines struct {
	LnStart      string `xml:"LnStart"`
	LnEnd        string `xml:"LnEnd"`
	Coverage     string `xml:"Coverage"`
	SourceFileID string `xml:"SourceFileID"`
}

type vb2SourceFile struct {
	SourceFileID   string `xml:"SourceFileID"`
	SourceFileName string `xml:"SourceFileName"`
}

// Parse implements Parser.
func (p *VB2Parser) Parse(payload []byte, session Builder) error {
	var doc vb2Document

	decodeErr := xml.Unmarshal(payload, &doc)
	if decodeErr != nil {
		return malformed(FormatVB2, "decode: %v", decodeErr)
	}

	names := make(map[string]string, len(doc.FileNames))
	for _, file := range doc.FileNames {
		names[strings.TrimSpace(file.SourceFileID)] = strings.TrimSpace(file.SourceFileName)
	}

	records := doc.Lines
	for _, module := range doc.Modules {
		records = append(records, module.Lines...)
	}

	for _, record := range records {
		name, ok := names[strings.TrimSpace(record.SourceFileID)]
		if !ok || name == "" {
			continue
		}

		start, startErr := strconv.Atoi(strings.TrimSpace(record.LnStart))
		end, endErr := strconv.Atoi(strings.TrimSpace(record.LnEnd))

		if startErr != nil || endErr != nil || end > maxLineNumber {
			return malformed(FormatVB2, "%s: bad line range %q..%q", name, record.LnStart, record.LnEnd)
		}

		if end < start {
			return malformed(FormatVB2, "%s: line range %d..%d ends before it starts", name, start, end)
		}

		value := vb2Value(strings.TrimSpace(record.Coverage))

		for line := start; line <= end; line++ {
			err := addLine(FormatVB2, session, name, line, value, nil)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// vb2Value maps a coverage code to a value: 1 is a hit, 0 and every other
// code (partial included) are recorded as a miss.
func vb2Value(code string) coverage.Value {
	switch code {
	case vb2Hit:
		return coverage.Int(1)
	case vb2Miss:
		return coverage.Int(0)
	default:
		return coverage.Int(0)
	}
}
