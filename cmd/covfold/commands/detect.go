package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newDetectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "detect <payload>...",
		Short: "Print the detected format of payloads",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(_ context.Context) error {
				registry, err := a.registry()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()

				for _, arg := range args {
					payload, readErr := readPayload(cmd.InOrStdin(), arg)
					if readErr != nil {
						return readErr
					}

					parser, detectErr := registry.Detect(payload, filepath.Base(arg))
					if detectErr != nil {
						return fmt.Errorf("%s: %w", arg, detectErr)
					}

					fmt.Fprintf(out, "%s\t%s\n", arg, parser.Name())
				}

				return nil
			})
		},
	}
}
