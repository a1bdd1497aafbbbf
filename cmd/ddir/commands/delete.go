package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittodir/cmd/ddir/cmdutil"
	"github.com/marmos91/dittodir/internal/cli/prompt"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <dn>",
	Short: "Delete an entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	if !deleteYes {
		ok, err := prompt.Confirm(fmt.Sprintf("Delete %s", args[0]))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	conn, err := cmdutil.Connect(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}
