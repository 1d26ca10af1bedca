package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"

	coverageGood = 80.0
	coverageFair = 60.0
)

// ErrUnknownOutputFormat is returned for an unsupported --format value.
var ErrUnknownOutputFormat = errors.New("output format must be table, json or yaml")

type reportView struct {
	Key      string          `json:"key"             yaml:"key"`
	Totals   coverage.Totals `json:"totals"          yaml:"totals"`
	Sessions []sessionView   `json:"sessions"        yaml:"sessions"`
	Files    []fileView      `json:"files,omitempty" yaml:"files,omitempty"`
}

type sessionView struct {
	ID     int             `json:"id"              yaml:"id"`
	Name   string          `json:"name,omitempty"  yaml:"name,omitempty"`
	Type   string          `json:"type"            yaml:"type"`
	Flags  []string        `json:"flags,omitempty" yaml:"flags,omitempty"`
	Totals coverage.Totals `json:"totals"          yaml:"totals"`
}

type fileView struct {
	Name   string          `json:"name"   yaml:"name"`
	Totals coverage.Totals `json:"totals" yaml:"totals"`
}

func newShowCommand(a *app) *cobra.Command {
	var (
		format    string
		withFiles bool
	)

	cmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Print totals of a stored report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != outputTable && format != outputJSON && format != outputYAML {
				return fmt.Errorf("%w: %q", ErrUnknownOutputFormat, format)
			}

			return a.run(cmd, func(ctx context.Context) error {
				store, err := a.openStore()
				if err != nil {
					return err
				}

				defer closeStore(store, a.logger())

				report, err := store.Load(ctx, args[0])
				if err != nil {
					return fmt.Errorf("load %s: %w", args[0], err)
				}

				return writeReport(cmd.OutOrStdout(), buildView(args[0], report, withFiles), format)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", outputTable, "output format: table, json or yaml")
	cmd.Flags().BoolVar(&withFiles, "files", false, "include per-file totals")

	return cmd
}

func buildView(key string, report *coverage.Report, withFiles bool) reportView {
	view := reportView{
		Key:      key,
		Totals:   report.Totals(),
		Sessions: make([]sessionView, 0, len(report.Sessions())),
	}

	for _, id := range report.Sessions() {
		session, _ := report.Session(id)

		view.Sessions = append(view.Sessions, sessionView{
			ID:     id,
			Name:   session.Name,
			Type:   string(session.Type),
			Flags:  session.Flags,
			Totals: report.SessionTotals(id),
		})
	}

	if withFiles {
		for _, name := range report.Files() {
			file, _ := report.File(name)
			view.Files = append(view.Files, fileView{Name: name, Totals: file.Totals()})
		}
	}

	return view
}

func writeReport(w io.Writer, view reportView, format string) error {
	switch format {
	case outputJSON:
		data, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		_, err = fmt.Fprintln(w, string(data))

		return err
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		err := enc.Encode(view)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return enc.Close()
	default:
		return writeTables(w, view)
	}
}

func writeTables(w io.Writer, view reportView) error {
	sessions := newTable()
	sessions.SetTitle("Report " + view.Key)
	sessions.AppendHeader(table.Row{"Session", "Name", "Type", "Flags", "Lines", "Hits", "Misses", "Partials", "Coverage"})

	for _, session := range view.Sessions {
		sessions.AppendRow(append(table.Row{
			session.ID, session.Name, session.Type, strings.Join(session.Flags, ","),
		}, totalsCells(session.Totals)...))
	}

	sessions.AppendFooter(append(table.Row{"Total", strconv.Itoa(view.Totals.Files) + " files", "", ""}, totalsCells(view.Totals)...))

	_, err := fmt.Fprintln(w, sessions.Render())
	if err != nil {
		return err
	}

	if len(view.Files) == 0 {
		return nil
	}

	files := newTable()
	files.AppendHeader(table.Row{"File", "Lines", "Hits", "Misses", "Partials", "Coverage"})

	for _, file := range view.Files {
		files.AppendRow(append(table.Row{file.Name}, totalsCells(file.Totals)...))
	}

	_, err = fmt.Fprintln(w, files.Render())

	return err
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	return tbl
}

func totalsCells(totals coverage.Totals) table.Row {
	return table.Row{
		humanize.Comma(int64(totals.Lines)),
		humanize.Comma(int64(totals.Hits)),
		humanize.Comma(int64(totals.Misses)),
		humanize.Comma(int64(totals.Partials)),
		colorCoverage(totals.Coverage),
	}
}

func colorCoverage(pct float64) string {
	text := fmt.Sprintf("%.2f%%", pct)

	switch {
	case pct >= coverageGood:
		return color.GreenString(text)
	case pct >= coverageFair:
		return color.YellowString(text)
	default:
		return color.RedString(text)
	}
}
