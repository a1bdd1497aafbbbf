package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/dittodir/cmd/ddir/cmdutil"
	"github.com/marmos91/dittodir/internal/cli/output"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after merging flags, environment
variables, the config file and defaults. The bind password is redacted.`,
	Args: cobra.NoArgs,
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	redacted := *cfg
	if redacted.BindPassword != "" {
		redacted.BindPassword = "********"
	}
	return output.PrintYAML(cmd.OutOrStdout(), &redacted)
}
