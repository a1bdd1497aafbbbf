package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURLBasic(t *testing.T) {
	u, err := ParseURL("ldap://ldap.example.org")
	require.NoError(t, err)
	assert.Equal(t, "ldap", u.Scheme)
	assert.Equal(t, "ldap.example.org", u.Host)
	assert.Equal(t, DefaultPort, u.Port)
	assert.Equal(t, "ldap.example.org:389", u.Addr())
	assert.False(t, u.UseTLS())
}

func TestParseURLSchemes(t *testing.T) {
	u, err := ParseURL("ldaps://ldap.example.org")
	require.NoError(t, err)
	assert.Equal(t, DefaultTLSPort, u.Port)
	assert.True(t, u.UseTLS())

	u, err = ParseURL("ldap://ldap.example.org:10389")
	require.NoError(t, err)
	assert.Equal(t, 10389, u.Port)

	u, err = ParseURL("ldapi://%2Fvar%2Frun%2Fslapd%2Fldapi")
	require.NoError(t, err)
	assert.Equal(t, "/var/run/slapd/ldapi", u.SocketPath)

	u, err = ParseURL("ldap://[2001:db8::1]:636")
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", u.Host)
	assert.Equal(t, 636, u.Port)
}

func TestParseURLFullForm(t *testing.T) {
	u, err := ParseURL("ldap://host/ou=People,dc=example,dc=org?cn,mail?sub?(objectClass=person)?!bindname=cn=admin,x-ext=1")
	require.NoError(t, err)
	assert.Equal(t, "ou=People,dc=example,dc=org", u.DN)
	assert.Equal(t, []string{"cn", "mail"}, u.Attributes)
	assert.True(t, u.HasScope)
	assert.Equal(t, ScopeWholeSubtree, u.Scope)
	assert.Equal(t, "(objectClass=person)", u.Filter)
	require.Len(t, u.Extensions, 2)
	assert.Equal(t, URLExtension{Name: "bindname", Value: "cn=admin", Critical: true}, u.Extensions[0])
	assert.Equal(t, URLExtension{Name: "x-ext", Value: "1", Critical: false}, u.Extensions[1])
}

func TestParseURLPercentEncoding(t *testing.T) {
	u, err := ParseURL("ldap://host/ou=Caf%C3%A9,dc=example??one?%28cn%3Dsmith%29")
	require.NoError(t, err)
	assert.Equal(t, "ou=Café,dc=example", u.DN)
	assert.Empty(t, u.Attributes)
	assert.Equal(t, ScopeSingleLevel, u.Scope)
	assert.Equal(t, "(cn=smith)", u.Filter)
}

func TestParseURLDefaultScope(t *testing.T) {
	u, err := ParseURL("ldap://host/dc=example")
	require.NoError(t, err)
	assert.False(t, u.HasScope)
	assert.Equal(t, ScopeBaseObject, u.Scope)
}

func TestParseURLErrors(t *testing.T) {
	cases := []string{
		"example.org",
		"http://example.org",
		"ldap://",
		"ldap://host:notaport",
		"ldap://host:70000",
		"ldap://host/dc=example??weird",
	}
	for _, in := range cases {
		_, err := ParseURL(in)
		require.Error(t, err, "url %q", in)
		var ldapErr *Error
		require.ErrorAs(t, err, &ldapErr)
		assert.Equal(t, KindURLParse, ldapErr.Kind, "url %q", in)
	}
}
