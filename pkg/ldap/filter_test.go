package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodir/internal/protocol/ber"
)

func mustCompile(t *testing.T, s string) Filter {
	t.Helper()
	f, err := CompileFilter(s)
	require.NoError(t, err, "compile %q", s)
	return f
}

func TestCompileFilterShapes(t *testing.T) {
	cases := []struct {
		in   string
		want Filter
	}{
		{"(cn=admin)", &EqualityFilter{Attribute: "cn", Value: []byte("admin")}},
		{"(objectClass=*)", &PresentFilter{Attribute: "objectClass"}},
		{"(uidNumber>=1000)", &GreaterOrEqualFilter{Attribute: "uidNumber", Value: []byte("1000")}},
		{"(uidNumber<=2000)", &LessOrEqualFilter{Attribute: "uidNumber", Value: []byte("2000")}},
		{"(givenName~=Jon)", &ApproxMatchFilter{Attribute: "givenName", Value: []byte("Jon")}},
		{"(l=ma*)", &SubstringsFilter{Attribute: "l", Initial: []byte("ma")}},
		{"(l=*drid)", &SubstringsFilter{Attribute: "l", Final: []byte("drid")}},
		{"(l=m*dr*d)", &SubstringsFilter{Attribute: "l", Initial: []byte("m"), Any: [][]byte{[]byte("dr")}, Final: []byte("d")}},
		{"(l=*a*o*)", &SubstringsFilter{Attribute: "l", Any: [][]byte{[]byte("a"), []byte("o")}}},
		{"(cn:=John)", &ExtensibleMatchFilter{Attribute: "cn", Value: []byte("John")}},
		{"(cn:dn:=John)", &ExtensibleMatchFilter{Attribute: "cn", Value: []byte("John"), DNAttributes: true}},
		{"(cn:caseExactMatch:=John)", &ExtensibleMatchFilter{Attribute: "cn", MatchingRule: "caseExactMatch", Value: []byte("John")}},
		{"(:2.5.13.5:=John)", &ExtensibleMatchFilter{MatchingRule: "2.5.13.5", Value: []byte("John")}},
		{"(!(cn=admin))", &NotFilter{Filter: &EqualityFilter{Attribute: "cn", Value: []byte("admin")}}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, mustCompile(t, tc.in), "filter %q", tc.in)
	}
}

func TestCompileFilterEscapes(t *testing.T) {
	f := mustCompile(t, `(cn=smith \28ret.\29)`)
	eq, ok := f.(*EqualityFilter)
	require.True(t, ok)
	assert.Equal(t, []byte("smith (ret.)"), eq.Value)

	// Escaped asterisk is a literal, not a substring separator.
	f = mustCompile(t, `(cn=five\2astar)`)
	eq, ok = f.(*EqualityFilter)
	require.True(t, ok)
	assert.Equal(t, []byte("five*star"), eq.Value)
}

func TestCompileFilterErrors(t *testing.T) {
	cases := []string{
		"",
		"cn=admin",
		"(cn=admin",
		"(&)",
		"(cn=a)(cn=b)",
		`(cn=bad\9)`,
		`(cn=bad\zz)`,
		"(=value)",
	}
	for _, in := range cases {
		_, err := CompileFilter(in)
		require.Error(t, err, "filter %q", in)
		var ldapErr *Error
		require.ErrorAs(t, err, &ldapErr)
		assert.Equal(t, KindFilterParse, ldapErr.Kind, "filter %q", in)
	}
}

func TestFilterEncodeDecodeRoundTrip(t *testing.T) {
	// The nested shape from the protocol test suite: re-encoding the
	// decoded tree must be byte-identical.
	f := mustCompile(t, "(!(&(cn=foo*bar)(|(o=x)(o=y))))")

	encoded := f.encode().Encode()
	elem, n, err := ber.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, len(encoded), n)

	decoded, err := decodeFilter(elem)
	require.NoError(t, err)
	assert.Equal(t, encoded, decoded.encode().Encode())
	assert.Equal(t, f, decoded)
}

func TestFilterString(t *testing.T) {
	cases := []string{
		"(cn=admin)",
		"(objectClass=*)",
		"(&(objectClass=locality)(l=ma*))",
		"(!(&(cn=foo*bar)(|(o=x)(o=y))))",
		"(uidNumber>=1000)",
		"(cn:dn:caseExactMatch:=John)",
	}
	for _, in := range cases {
		f := mustCompile(t, in)
		assert.Equal(t, in, f.String(), "round trip of %q", in)
	}
}

func TestSubstringsOrderingEnforcedOnDecode(t *testing.T) {
	// Hand-built wire bytes with final before any: must be rejected.
	bad := ber.Constructed(ber.ContextConstructed(filterSubstrings),
		ber.NewString("cn"),
		ber.NewSequence(
			ber.Primitive(ber.ContextPrimitive(2), []byte("x")),
			ber.Primitive(ber.ContextPrimitive(1), []byte("y")),
		),
	)
	_, err := decodeFilter(bad)
	require.Error(t, err)

	// Likewise a second initial.
	bad = ber.Constructed(ber.ContextConstructed(filterSubstrings),
		ber.NewString("cn"),
		ber.NewSequence(
			ber.Primitive(ber.ContextPrimitive(0), []byte("a")),
			ber.Primitive(ber.ContextPrimitive(0), []byte("b")),
		),
	)
	_, err = decodeFilter(bad)
	require.Error(t, err)
}
