package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExternalMechanism(t *testing.T) {
	mech := &ExternalMechanism{}
	assert.Equal(t, "EXTERNAL", mech.Name())

	token, done, err := mech.Step(nil)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Empty(t, token)

	mech = &ExternalMechanism{AuthzID: "dn:cn=admin,dc=example,dc=org"}
	token, _, err = mech.Step(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("dn:cn=admin,dc=example,dc=org"), token)
}

func TestPlainMechanism(t *testing.T) {
	mech := &PlainMechanism{AuthcID: "jdoe", Password: "secret"}
	assert.Equal(t, "PLAIN", mech.Name())

	token, done, err := mech.Step(nil)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, []byte("\x00jdoe\x00secret"), token)

	mech.AuthzID = "admin"
	token, _, _ = mech.Step(nil)
	assert.Equal(t, []byte("admin\x00jdoe\x00secret"), token)
}
