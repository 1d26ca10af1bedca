package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/covfold/pkg/version"
)

// NewRootCommand creates the covfold command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "covfold",
		Short: "covfold - coverage report ingestion and carryforward",
		Long: `covfold normalizes coverage uploads from many CI tools into one
line-coverage report and builds carryforward baselines from stored reports.

Commands:
  parse         Parse coverage payloads and merge them into a stored report
  carryforward  Build a baseline report from a parent commit's report
  show          Print totals of a stored report
  detect        Print the detected format of payloads`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: .covfold.yaml in CWD or $HOME)")

	root.AddCommand(newParseCommand(a))
	root.AddCommand(newCarryforwardCommand(a))
	root.AddCommand(newShowCommand(a))
	root.AddCommand(newDetectCommand(a))
	root.AddCommand(newVersionCommand())

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
