package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittodir/cmd/ddir/cmdutil"
	"github.com/marmos91/dittodir/pkg/ldap"
)

var (
	modifyDNKeepOld     bool
	modifyDNNewSuperior string
)

var modifyDNCmd = &cobra.Command{
	Use:   "modifydn <dn> <new-rdn>",
	Short: "Rename or move an entry",
	Long: `Rename an entry's RDN, optionally moving it under a new parent.

Examples:
  ddir modifydn cn=jdoe,ou=People,dc=example,dc=org cn=johnd
  ddir modifydn cn=jdoe,ou=People,dc=example,dc=org cn=jdoe \
      --new-superior ou=Alumni,dc=example,dc=org`,
	Args: cobra.ExactArgs(2),
	RunE: runModifyDN,
}

func init() {
	modifyDNCmd.Flags().BoolVar(&modifyDNKeepOld, "keep-old-rdn", false, "Keep the old RDN as an attribute")
	modifyDNCmd.Flags().StringVar(&modifyDNNewSuperior, "new-superior", "", "Move the entry under this DN")
}

func runModifyDN(cmd *cobra.Command, args []string) error {
	conn, err := cmdutil.Connect(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	req := &ldap.ModifyDNRequest{
		DN:           args[0],
		NewRDN:       args[1],
		DeleteOldRDN: !modifyDNKeepOld,
		NewSuperior:  modifyDNNewSuperior,
	}
	if _, err := conn.ModifyDN(cmd.Context(), req); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %s\n", args[0], args[1])
	return nil
}
