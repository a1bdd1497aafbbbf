package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittodir/cmd/ddir/cmdutil"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the connection's authorization identity",
	Long: `Run the Who Am I extended operation (RFC 4532) and print the
authorization identity the server associates with this connection,
typically "dn:<dn>" or "u:<user>". Prints "anonymous" for unbound
connections.`,
	Args: cobra.NoArgs,
	RunE: runWhoami,
}

func runWhoami(cmd *cobra.Command, args []string) error {
	conn, err := cmdutil.Connect(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	authzID, err := conn.WhoAmI(cmd.Context())
	if err != nil {
		return err
	}
	if authzID == "" {
		authzID = "anonymous"
	}
	fmt.Fprintln(cmd.OutOrStdout(), authzID)
	return nil
}
