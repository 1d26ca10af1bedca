package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/covfold/internal/carryforward"
)

// ErrMissingParent is returned when carryforward has no --parent key.
var ErrMissingParent = errors.New("parent report key is required (use --parent)")

type carryforwardOptions struct {
	parent string
	key    string
	flags  []string
	paths  []string
	extras map[string]string
}

func newCarryforwardCommand(a *app) *cobra.Command {
	var opts carryforwardOptions

	cmd := &cobra.Command{
		Use:   "carryforward",
		Short: "Build a baseline report from a parent commit's report",
		Long: `Load the report stored under --parent, keep only files matching --path and
sessions carrying one of --flag, relabel the kept sessions as carried forward
and save the result under --key. A missing parent report is not an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.parent == "" {
				return ErrMissingParent
			}

			if opts.key == "" {
				return ErrMissingKey
			}

			return a.run(cmd, func(ctx context.Context) error {
				return runCarryforward(ctx, a, cmd, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.parent, "parent", "", "storage key of the parent report")
	cmd.Flags().StringVar(&opts.key, "key", "", "storage key of the baseline report")
	cmd.Flags().StringSliceVar(&opts.flags, "flag", nil, "keep sessions carrying this flag (repeatable)")
	cmd.Flags().StringSliceVar(&opts.paths, "path", nil, "keep files matching this glob or regex (repeatable)")
	cmd.Flags().StringToStringVar(&opts.extras, "extra", nil, "session extras override as key=value (repeatable)")

	return cmd
}

func runCarryforward(ctx context.Context, a *app, cmd *cobra.Command, opts carryforwardOptions) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}

	defer closeStore(store, a.logger())

	proc, err := a.processor()
	if err != nil {
		return err
	}

	req := carryforward.Request{Flags: opts.flags, Paths: opts.paths}

	if len(opts.extras) > 0 {
		req.Extras = make(map[string]any, len(opts.extras))
		for k, v := range opts.extras {
			req.Extras[k] = v
		}
	}

	outcome, err := proc.Carryforward(ctx, store, opts.parent, opts.key, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if !outcome.ParentFound {
		color.New(color.FgYellow).Fprintf(out, "no report under %s, nothing carried forward\n", opts.parent)

		return nil
	}

	summary := outcome.Summary

	fmt.Fprintf(out, "saved %s: carried %d sessions, removed %d sessions, removed %d files\n",
		opts.key, len(summary.CarriedSessions), len(summary.RemovedSessions), len(summary.RemovedFiles))

	if len(summary.RemovedFiles) > 0 {
		fmt.Fprintf(out, "removed files: %s\n", strings.Join(summary.RemovedFiles, ", "))
	}

	return nil
}
