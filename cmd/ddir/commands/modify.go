package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittodir/cmd/ddir/cmdutil"
	"github.com/marmos91/dittodir/pkg/ldap"
)

var (
	modifyAdds     []string
	modifyDeletes  []string
	modifyReplaces []string
)

var modifyCmd = &cobra.Command{
	Use:   "modify <dn>",
	Short: "Modify an entry",
	Long: `Apply attribute changes to an entry.

Each --add/--replace takes attr=value; --delete takes attr or attr=value.
The request lists every --add, then every --replace, then every --delete;
the server applies them atomically in that order.

Examples:
  ddir modify cn=jdoe,ou=People,dc=example,dc=org --replace mail=new@example.org
  ddir modify cn=jdoe,ou=People,dc=example,dc=org --add memberOf=cn=staff --delete description`,
	Args: cobra.ExactArgs(1),
	RunE: runModify,
}

func init() {
	modifyCmd.Flags().StringArrayVar(&modifyAdds, "add", nil, "Add a value (attr=value)")
	modifyCmd.Flags().StringArrayVar(&modifyDeletes, "delete", nil, "Delete a value (attr=value) or a whole attribute (attr)")
	modifyCmd.Flags().StringArrayVar(&modifyReplaces, "replace", nil, "Replace an attribute's values (attr=value)")
}

func runModify(cmd *cobra.Command, args []string) error {
	req := ldap.NewModifyRequest(args[0])

	for _, arg := range modifyAdds {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return fmt.Errorf("malformed --add %q, want attr=value", arg)
		}
		req.Add(name, []byte(value))
	}
	for _, arg := range modifyReplaces {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return fmt.Errorf("malformed --replace %q, want attr=value", arg)
		}
		req.Replace(name, []byte(value))
	}
	for _, arg := range modifyDeletes {
		name, value, ok := strings.Cut(arg, "=")
		if name == "" {
			return fmt.Errorf("malformed --delete %q", arg)
		}
		if ok {
			req.Delete(name, []byte(value))
		} else {
			req.Delete(name)
		}
	}

	if len(req.Changes) == 0 {
		return fmt.Errorf("nothing to do: give at least one --add, --replace or --delete")
	}

	conn, err := cmdutil.Connect(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Modify(cmd.Context(), req); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "modified %s\n", args[0])
	return nil
}
