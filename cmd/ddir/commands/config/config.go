// Package config implements the ddir config subcommands.
package config

import "github.com/spf13/cobra"

// Cmd is the parent "config" command.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate the ddir configuration",
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(schemaCmd)
	Cmd.AddCommand(validateCmd)
}
