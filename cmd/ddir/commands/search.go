package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittodir/cmd/ddir/cmdutil"
	"github.com/marmos91/dittodir/pkg/ldap"
)

var (
	searchScope     string
	searchPageSize  uint32
	searchSizeLimit int
	searchTimeLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <base-dn> [filter] [attributes...]",
	Short: "Search the directory",
	Long: `Search the directory beneath a base DN.

The filter defaults to (objectClass=*). Attribute names after the filter
restrict which attributes the server returns.

Examples:
  # Everything under the base
  ddir search dc=example,dc=org

  # Localities starting with "ma", names only
  ddir search ou=Places,dc=example,dc=org "(&(objectClass=locality)(l=ma*))" l

  # Page through a large subtree
  ddir search dc=example,dc=org "(objectClass=person)" --page-size 500`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchScope, "scope", "s", "sub", "Search scope (base|one|sub)")
	searchCmd.Flags().Uint32Var(&searchPageSize, "page-size", 0, "Use paged results with this page size")
	searchCmd.Flags().IntVar(&searchSizeLimit, "size-limit", 0, "Server-side entry limit (0: none)")
	searchCmd.Flags().IntVar(&searchTimeLimit, "time-limit", 0, "Server-side time limit in seconds (0: none)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	var scope ldap.Scope
	switch searchScope {
	case "base":
		scope = ldap.ScopeBaseObject
	case "one":
		scope = ldap.ScopeSingleLevel
	case "sub":
		scope = ldap.ScopeWholeSubtree
	default:
		return fmt.Errorf("unknown scope %q", searchScope)
	}

	filter := "(objectClass=*)"
	if len(args) > 1 {
		filter = args[1]
	}
	var attrs []string
	if len(args) > 2 {
		attrs = args[2:]
	}

	req, err := ldap.NewSearchRequest(args[0], scope, ldap.NeverDerefAliases,
		searchSizeLimit, searchTimeLimit, false, filter, attrs...)
	if err != nil {
		return err
	}

	conn, err := cmdutil.Connect(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	var result *ldap.SearchResult
	if searchPageSize > 0 {
		result, err = conn.SearchWithPaging(cmd.Context(), req, searchPageSize)
	} else {
		result, err = conn.Search(cmd.Context(), req)
	}
	if err != nil {
		return err
	}

	if err := cmdutil.RenderEntries(cmd.OutOrStdout(), cmdutil.Flags.Output, result.Entries); err != nil {
		return err
	}
	for _, referral := range result.Referrals {
		fmt.Fprintf(cmd.ErrOrStderr(), "referral: %s\n", referral)
	}
	return nil
}
