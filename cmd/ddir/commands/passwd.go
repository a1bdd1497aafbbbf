package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittodir/cmd/ddir/cmdutil"
	"github.com/marmos91/dittodir/internal/cli/prompt"
)

var (
	passwdOld string
	passwdNew string
)

var passwdCmd = &cobra.Command{
	Use:   "passwd [dn]",
	Short: "Change a password",
	Long: `Change a password via the password modify extended operation
(RFC 3062).

Without a DN the bound identity's password is changed. Without --new the
new password is prompted for; with an empty new password the server
generates one and prints it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPasswd,
}

func init() {
	passwdCmd.Flags().StringVar(&passwdOld, "old", "", "Current password")
	passwdCmd.Flags().StringVar(&passwdNew, "new", "", "New password (empty: prompt)")
}

func runPasswd(cmd *cobra.Command, args []string) error {
	var dn string
	if len(args) > 0 {
		dn = args[0]
	}

	newPassword := passwdNew
	if newPassword == "" {
		var err error
		newPassword, err = prompt.PasswordWithConfirmation("New password", "Confirm new password")
		if err != nil {
			return err
		}
	}

	conn, err := cmdutil.Connect(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	generated, err := conn.PasswordModify(cmd.Context(), dn, passwdOld, newPassword)
	if err != nil {
		return err
	}
	if generated != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "generated password: %s\n", generated)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "password changed")
	return nil
}
