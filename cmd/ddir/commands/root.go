// Package commands implements the CLI commands for the ddir client.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittodir/cmd/ddir/cmdutil"
	configcmd "github.com/marmos91/dittodir/cmd/ddir/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ddir",
	Short: "DittoDir - LDAP directory client",
	Long: `ddir is a command-line LDAP v3 client.

It speaks to any LDAPv3 server over ldap://, ldaps:// or ldapi:// URLs,
with optional StartTLS, and covers the standard operations: search, add,
delete, modify, modifydn, compare, plus the Who Am I and password modify
extended operations.

Use "ddir [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Sync flags to cmdutil.Flags for subcommands.
		cmdutil.Flags.ConfigPath, _ = cmd.Flags().GetString("config")
		cmdutil.Flags.URL, _ = cmd.Flags().GetString("url")
		cmdutil.Flags.BindDN, _ = cmd.Flags().GetString("bind-dn")
		cmdutil.Flags.BindPassword, _ = cmd.Flags().GetString("bind-password")
		cmdutil.Flags.StartTLS, _ = cmd.Flags().GetBool("starttls")
		cmdutil.Flags.Insecure, _ = cmd.Flags().GetBool("insecure")
		cmdutil.Flags.Timeout, _ = cmd.Flags().GetDuration("timeout")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.Verbose, _ = cmd.Flags().GetBool("verbose")
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ~/.config/ddir/config.yaml)")
	rootCmd.PersistentFlags().StringP("url", "H", "", "Server URL (ldap://, ldaps://, ldapi://)")
	rootCmd.PersistentFlags().StringP("bind-dn", "D", "", "DN to bind as (empty: anonymous)")
	rootCmd.PersistentFlags().StringP("bind-password", "w", "", "Bind password (empty with --bind-dn: prompt)")
	rootCmd.PersistentFlags().BoolP("starttls", "Z", false, "Upgrade ldap:// connections with StartTLS")
	rootCmd.PersistentFlags().Bool("insecure", false, "Skip TLS certificate verification")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Per-operation timeout (0: config default)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(modifyCmd)
	rootCmd.AddCommand(modifyDNCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(passwdCmd)
	rootCmd.AddCommand(configcmd.Cmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)

	// Hide the default completion command (we provide our own).
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}
