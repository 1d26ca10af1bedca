package parsers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/covfold/internal/builder"
	"github.com/Sumatoshi-tech/covfold/internal/parsers"
	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

func TestDefaultRegistry_Order(t *testing.T) {
	t.Parallel()

	registry := parsers.DefaultRegistry()

	assert.Equal(t, []string{
		parsers.FormatVB2,
		parsers.FormatClover,
		parsers.FormatCoveralls,
		parsers.FormatLcov,
		parsers.FormatGo,
		parsers.FormatXcode,
	}, registry.Names())
}

func TestRegistry_Detect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		payload  string
		want     string
	}{
		{name: "vb2", payload: "<?xml version=\"1.0\"?>\n<CoverageDSPriv><Lines/></CoverageDSPriv>", want: parsers.FormatVB2},
		{name: "clover", payload: "<?xml version=\"1.0\"?>\n<coverage generated=\"1\"><project/></coverage>", want: parsers.FormatClover},
		{name: "coveralls", payload: "\n\n  {\"source_files\": []}", want: parsers.FormatCoveralls},
		{name: "coveralls with bom", payload: "\ufeff{\"source_files\": []}", want: parsers.FormatCoveralls},
		{name: "lcov", payload: "TN:\nSF:a.c\nDA:1,1\nend_of_record\n", want: parsers.FormatLcov},
		{name: "lcov by name", filename: "coverage.info", payload: "# generated\nSF:a.c\nDA:1,1\n", want: parsers.FormatLcov},
		{name: "go", payload: "mode: atomic\na.go:1.1,2.2 1 1\n", want: parsers.FormatGo},
		{name: "xcode header", payload: "/src/a.swift:\n    1|      1|let x = 1\n", want: parsers.FormatXcode},
		{name: "xcode by name", filename: "coverage.txt", payload: "Summary\n    1|      1|let x = 1\n", want: parsers.FormatXcode},
	}

	registry := parsers.DefaultRegistry()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			parser, err := registry.Detect([]byte(tt.payload), tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.want, parser.Name())
		})
	}
}

func TestRegistry_DetectAmbiguous(t *testing.T) {
	t.Parallel()

	registry := parsers.DefaultRegistry()

	for _, payload := range [][]byte{
		nil,
		[]byte("just some words\nand more words\n"),
		{0x89, 'P', 'N', 'G', 0x00, 0x01},
	} {
		_, err := registry.Detect(payload, "")
		require.ErrorIs(t, err, parsers.ErrAmbiguousFormat)
	}
}

func TestRegistry_ParseExplicitFormat(t *testing.T) {
	t.Parallel()

	registry := parsers.DefaultRegistry()
	session := builder.New(coverage.Session{ID: 2}, nil)

	format, err := registry.Parse(" LCOV ", []byte("SF:a.c\nDA:4,2\nend_of_record\n"), "", session)
	require.NoError(t, err)
	assert.Equal(t, parsers.FormatLcov, format)

	report := session.OutputReport()
	file, ok := report.File("a.c")
	require.True(t, ok)

	line, _ := file.Line(4)
	assert.Equal(t, coverage.Int(2), line.Value)
}

func TestRegistry_ParseWrapsMalformed(t *testing.T) {
	t.Parallel()

	registry := parsers.DefaultRegistry()
	session := builder.New(coverage.Session{ID: 2}, nil)

	format, err := registry.Parse("", []byte("mode: set\ngarbage\n"), "", session)
	require.ErrorIs(t, err, parsers.ErrMalformedInput)
	assert.Equal(t, parsers.FormatGo, format)
	assert.Contains(t, err.Error(), "parse go")
}

func TestRegistry_LookupUnknown(t *testing.T) {
	t.Parallel()

	_, err := parsers.DefaultRegistry().Lookup("cobertura")
	require.ErrorIs(t, err, parsers.ErrUnknownFormat)
}

func TestRegistry_Reorder(t *testing.T) {
	t.Parallel()

	registry, err := parsers.DefaultRegistry().Reorder([]string{"xcode", "go", "xcode"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		parsers.FormatXcode,
		parsers.FormatGo,
		parsers.FormatVB2,
		parsers.FormatClover,
		parsers.FormatCoveralls,
		parsers.FormatLcov,
	}, registry.Names())

	_, err = parsers.DefaultRegistry().Reorder([]string{"nope"})
	require.ErrorIs(t, err, parsers.ErrUnknownFormat)
}

func TestNewRegistry_Duplicate(t *testing.T) {
	t.Parallel()

	_, err := parsers.NewRegistry(parsers.NewGoParser(), parsers.NewGoParser())
	require.ErrorIs(t, err, parsers.ErrDuplicateFormat)
}
