package parsers

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

// Clover line types.
const (
	cloverStatement   = "stmt"
	cloverConditional = "cond"
	cloverMethod      = "method"
)

// Clover branch ids.
const (
	cloverBranchTrue  = "true"
	cloverBranchFalse = "false"
)

// CloverParser reads Clover XML reports. Files may sit directly under
// project or inside package elements.
type CloverParser struct{}

// NewCloverParser creates the parser.
func NewCloverParser() *CloverParser { return &CloverParser{} }

// Name implements Parser.
func (p *CloverParser) Name() string { return FormatClover }

// MatchesContent claims XML documents with a coverage root and a project element.
func (p *CloverParser) MatchesContent(payload []byte, firstLine, _ string) bool {
	if !strings.HasPrefix(firstLine, "<") {
		return false
	}

	return bytes.Contains(payload, []byte("<coverage")) && bytes.Contains(payload, []byte("<project"))
}

type cloverDocument struct {
	XMLName  xml.Name        `xml:"coverage"`
	Projects []cloverProject `xml:"project"`
}

type cloverProject struct {
	Files    []cloverFile    `xml:"file"`
	Packages []cloverPackage `xml:"package"`
}

type cloverPackage struct {
	Name  string       `xml:"name,attr"`
	Files []cloverFile `xml:"file"`
}

type cloverFile struct {
	Name  string       `xml:"name,attr"`
	Path  string       `xml:"path,attr"`
	Lines []cloverLine `xml:"line"`
}

type cloverLine struct {
	Num        int    `xml:"num,attr"`
	Type       string `xml:"type,attr"`
	Count      int64  `xml:"count,attr"`
	TrueCount  int64  `xml:"truecount,attr"`
	FalseCount int64  `xml:"falsecount,attr"`
}

// filename prefers the path attribute that some generators emit next to a bare name.
func (f cloverFile) filename() string {
	if path := strings.TrimSpace(f.Path); path != "" {
		return path
	}

	return strings.TrimSpace(f.Name)
}

// Parse implements Parser.
func (p *CloverParser) Parse(payload []byte, session Builder) error {
	var doc cloverDocument

	decodeErr := xml.Unmarshal(payload, &doc)
	if decodeErr != nil {
		return malformed(FormatClover, "decode: %v", decodeErr)
	}

	for _, project := range doc.Projects {
		files := project.Files
		for _, pkg := range project.Packages {
			files = append(files, pkg.Files...)
		}

		for _, file := range files {
			err := parseCloverFile(file, session)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func parseCloverFile(file cloverFile, session Builder) error {
	name := file.filename()
	if name == "" {
		return malformed(FormatClover, "file without a name")
	}

	for _, line := range file.Lines {
		var branches []coverage.Branch

		switch strings.ToLower(line.Type) {
		case cloverMethod:
			continue
		case cloverConditional:
			branches = []coverage.Branch{
				{ID: cloverBranchTrue, Value: coverage.Int(line.TrueCount)},
				{ID: cloverBranchFalse, Value: coverage.Int(line.FalseCount)},
			}
		case cloverStatement, "":
		default:
			continue
		}

		err := addLine(FormatClover, session, name, line.Num, coverage.Int(line.Count), branches)
		if err != nil {
			return err
		}
	}

	return nil
}
