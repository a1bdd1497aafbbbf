package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittodir/cmd/ddir/cmdutil"
	"github.com/marmos91/dittodir/pkg/ldap"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Check the merged configuration for consistency: required fields,
value ranges, and that the server URL parses.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}
	if _, err := ldap.ParseURL(cfg.URL); err != nil {
		return fmt.Errorf("url %q: %w", cfg.URL, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
	return nil
}
