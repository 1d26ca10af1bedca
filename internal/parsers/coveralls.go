package parsers

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

// coverallsSchema describes the subset of the Coveralls job format we read.
const coverallsSchema = `{
  "type": "object",
  "required": ["source_files"],
  "properties": {
    "source_files": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "coverage"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "coverage": {"type": ["array", "string"]}
        }
      }
    }
  }
}`

// maxSchemaErrors bounds how many schema violations end up in an error message.
const maxSchemaErrors = 3

// CoverallsParser reads Coveralls-style JSON where every file carries a
// line array: offset i describes line i+1, null is no data, 0 a miss and a
// positive integer the hit count.
type CoverallsParser struct {
	schema *gojsonschema.Schema
}

// NewCoverallsParser creates the parser and compiles its payload schema.
func NewCoverallsParser() *CoverallsParser {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(coverallsSchema))
	if err != nil {
		panic(err)
	}

	return &CoverallsParser{schema: schema}
}

// Name implements Parser.
func (p *CoverallsParser) Name() string { return FormatCoveralls }

// MatchesContent claims JSON objects that carry a source_files key.
func (p *CoverallsParser) MatchesContent(payload []byte, firstLine, _ string) bool {
	if !strings.HasPrefix(firstLine, "{") {
		return false
	}

	return bytes.Contains(payload, []byte(`"source_files"`))
}

type coverallsFile struct {
	Name     string          `json:"name"`
	Coverage json.RawMessage `json:"coverage"`
}

type coverallsJob struct {
	SourceFiles []coverallsFile `json:"source_files"`
}

// Parse implements Parser.
func (p *CoverallsParser) Parse(payload []byte, session Builder) error {
	result, validateErr := p.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if validateErr != nil {
		return malformed(FormatCoveralls, "invalid json: %v", validateErr)
	}

	if !result.Valid() {
		return malformed(FormatCoveralls, "%s", describeSchemaErrors(result.Errors()))
	}

	var job coverallsJob

	decodeErr := json.Unmarshal(payload, &job)
	if decodeErr != nil {
		return malformed(FormatCoveralls, "decode: %v", decodeErr)
	}

	for _, file := range job.SourceFiles {
		values, lineErr := DecodeLineArray(file.Coverage)
		if lineErr != nil {
			return malformed(FormatCoveralls, "%s: %v", file.Name, lineErr)
		}

		for offset, value := range values {
			if value.IsNoData() {
				continue
			}

			err := addLine(FormatCoveralls, session, file.Name, offset+1, value, nil)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// DecodeLineArray decodes a line array given either as a JSON array or as a
// JSON string holding a stringified array such as "[null,1,0]".
func DecodeLineArray(raw json.RawMessage) ([]coverage.Value, error) {
	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) > 0 && trimmed[0] == '"' {
		var inner string

		err := json.Unmarshal(trimmed, &inner)
		if err != nil {
			return nil, err
		}

		trimmed = bytes.TrimSpace([]byte(inner))
		if len(trimmed) == 0 {
			return nil, nil
		}
	}

	var values []coverage.Value

	err := json.Unmarshal(trimmed, &values)
	if err != nil {
		return nil, err
	}

	return values, nil
}

func describeSchemaErrors(errs []gojsonschema.ResultError) string {
	parts := make([]string, 0, maxSchemaErrors)

	for i, resultErr := range errs {
		if i == maxSchemaErrors {
			break
		}

		parts = append(parts, resultErr.Field()+": "+resultErr.Description())
	}

	return strings.Join(parts, "; ")
}
