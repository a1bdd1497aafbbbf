package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittodir/cmd/ddir/cmdutil"
)

var compareCmd = &cobra.Command{
	Use:   "compare <dn> <attribute> <value>",
	Short: "Compare an attribute value server-side",
	Long: `Ask the server whether the entry carries the given attribute value.

Prints TRUE or FALSE; exits non-zero only on errors.`,
	Args: cobra.ExactArgs(3),
	RunE: runCompare,
}

func runCompare(cmd *cobra.Command, args []string) error {
	conn, err := cmdutil.Connect(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	equal, err := conn.Compare(cmd.Context(), args[0], args[1], []byte(args[2]))
	if err != nil {
		return err
	}
	if equal {
		fmt.Fprintln(cmd.OutOrStdout(), "TRUE")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "FALSE")
	}
	return nil
}
