package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodir/pkg/ldap"
)

func TestParseAttributeArgs(t *testing.T) {
	attrs, err := parseAttributeArgs([]string{
		"objectClass=inetOrgPerson",
		"objectClass=person",
		"cn=jdoe",
		"mail=jdoe@example.org",
	})
	require.NoError(t, err)

	require.Len(t, attrs, 3)
	assert.Equal(t, ldap.Attribute{
		Name:   "objectClass",
		Values: [][]byte{[]byte("inetOrgPerson"), []byte("person")},
	}, attrs[0])
	assert.Equal(t, "cn", attrs[1].Name)
	assert.Equal(t, "mail", attrs[2].Name)
}

func TestParseAttributeArgsRejectsMalformed(t *testing.T) {
	_, err := parseAttributeArgs([]string{"no-equals-sign"})
	assert.Error(t, err)

	_, err = parseAttributeArgs([]string{"=value-without-name"})
	assert.Error(t, err)
}

func TestParseAttributeArgsAllowsEmptyValue(t *testing.T) {
	attrs, err := parseAttributeArgs([]string{"description="})
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, [][]byte{[]byte("")}, attrs[0].Values)
}
