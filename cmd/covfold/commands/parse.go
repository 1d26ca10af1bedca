package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/covfold/internal/processing"
	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

const stdinPayload = "-"

// ErrAllUploadsFailed is returned when no payload of a parse run was merged.
var ErrAllUploadsFailed = errors.New("no upload could be processed")

// ErrMissingKey is returned when a command needs a --key value.
var ErrMissingKey = errors.New("report key is required (use --key)")

type parseOptions struct {
	sessionID int
	flags     []string
	name      string
	format    string
	key       string
	base      string
	provider  string
	build     string
	job       string
	url       string
}

func newParseCommand(a *app) *cobra.Command {
	var opts parseOptions

	cmd := &cobra.Command{
		Use:   "parse <payload>...",
		Short: "Parse coverage payloads and merge them into a stored report",
		Long: `Parse one or more coverage payloads ("-" reads stdin) and merge them into
the report stored under --key. Each payload becomes its own session; session
ids are assigned from --session-id upwards in argument order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.key == "" {
				return ErrMissingKey
			}

			return a.run(cmd, func(ctx context.Context) error {
				return runParse(ctx, a, cmd, opts, args)
			})
		},
	}

	cmd.Flags().IntVar(&opts.sessionID, "session-id", 0, "session id of the first payload")
	cmd.Flags().StringSliceVar(&opts.flags, "flag", nil, "flag attached to every session (repeatable)")
	cmd.Flags().StringVar(&opts.name, "name", "", "session name")
	cmd.Flags().StringVar(&opts.format, "format", "", "payload format; detected when empty")
	cmd.Flags().StringVar(&opts.key, "key", "", "storage key of the resulting report")
	cmd.Flags().StringVar(&opts.base, "base", "", "storage key of the report to merge into (default: --key)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "CI provider recorded on the session")
	cmd.Flags().StringVar(&opts.build, "build", "", "CI build id recorded on the session")
	cmd.Flags().StringVar(&opts.job, "job", "", "CI job id recorded on the session")
	cmd.Flags().StringVar(&opts.url, "build-url", "", "CI build URL recorded on the session")

	return cmd
}

func runParse(ctx context.Context, a *app, cmd *cobra.Command, opts parseOptions, args []string) error {
	uploads := make([]processing.Upload, 0, len(args))
	now := time.Now().Unix()

	for i, arg := range args {
		payload, readErr := readPayload(cmd.InOrStdin(), arg)
		if readErr != nil {
			return readErr
		}

		uploads = append(uploads, processing.Upload{
			Session: coverage.Session{
				ID:       opts.sessionID + i,
				Flags:    opts.flags,
				Name:     opts.name,
				Type:     coverage.SessionUploaded,
				Provider: opts.provider,
				Build:    opts.build,
				Job:      opts.job,
				URL:      opts.url,
				Archive:  arg,
				Time:     now,
			},
			Format:  opts.format,
			Name:    filepath.Base(arg),
			Payload: payload,
		})
	}

	proc, err := a.processor()
	if err != nil {
		return err
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}

	defer closeStore(store, a.logger())

	report, results, err := proc.Ingest(ctx, store, opts.base, opts.key, uploads)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0

	for i, result := range results {
		if !result.OK() {
			failed++

			color.New(color.FgRed).Fprintf(out, "session %d (%s): %v\n", result.SessionID, args[i], result.Err)

			continue
		}

		color.New(color.FgGreen).Fprintf(out, "session %d (%s): %s, %s lines, %s ignored\n",
			result.SessionID, args[i], result.Format,
			humanize.Comma(int64(result.Stats.Lines)), humanize.Comma(int64(result.Stats.IgnoredLines)))
	}

	if failed == len(results) {
		return ErrAllUploadsFailed
	}

	totals := report.Totals()
	fmt.Fprintf(out, "saved %s: %d files, %s%% covered\n", opts.key, totals.Files, humanize.FtoaWithDigits(totals.Coverage, 2))

	return nil
}

func readPayload(stdin io.Reader, arg string) ([]byte, error) {
	if arg == stdinPayload {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}

		return data, nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	return data, nil
}
