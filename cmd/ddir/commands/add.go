package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittodir/cmd/ddir/cmdutil"
	"github.com/marmos91/dittodir/pkg/ldap"
)

var addCmd = &cobra.Command{
	Use:   "add <dn> <attr=value>...",
	Short: "Add an entry",
	Long: `Add a new entry with the given attributes.

Repeat an attribute to give it multiple values.

Example:
  ddir add cn=jdoe,ou=People,dc=example,dc=org \
      objectClass=inetOrgPerson cn=jdoe sn=Doe mail=jdoe@example.org`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	attrs, err := parseAttributeArgs(args[1:])
	if err != nil {
		return err
	}

	conn, err := cmdutil.Connect(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Add(cmd.Context(), &ldap.AddRequest{DN: args[0], Attributes: attrs}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", args[0])
	return nil
}

// parseAttributeArgs folds repeated attr=value arguments into attributes
// with multiple values.
func parseAttributeArgs(args []string) ([]ldap.Attribute, error) {
	index := map[string]int{}
	var attrs []ldap.Attribute
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed attribute %q, want name=value", arg)
		}
		if i, seen := index[name]; seen {
			attrs[i].Values = append(attrs[i].Values, []byte(value))
			continue
		}
		index[name] = len(attrs)
		attrs = append(attrs, ldap.Attribute{Name: name, Values: [][]byte{[]byte(value)}})
	}
	return attrs, nil
}
