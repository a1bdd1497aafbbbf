package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodir/internal/protocol/ber"
)

func TestControlsRoundTrip(t *testing.T) {
	controls := []Control{
		{OID: ControlManageDsaIT, Criticality: true},
		{OID: "1.2.3.4.5", Value: []byte{0x01, 0x02}},
		{OID: ControlProxyAuthorization, Criticality: true, Value: []byte("dn:cn=admin")},
	}

	pdu := encodeMessage(7, resultOp(appDelResponse, ResultSuccess, "", ""), controls)
	env, err := parseEnvelope(pdu)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), env.MessageID)
	assert.Equal(t, controls, env.Controls)
}

func TestControlCriticalityDefaultOmitted(t *testing.T) {
	// criticality FALSE must not be encoded (DEFAULT FALSE).
	elem := encodeControls([]Control{{OID: "1.2.3"}})
	require.Len(t, elem.Children, 1)
	assert.Len(t, elem.Children[0].Children, 1)

	elem = encodeControls([]Control{{OID: "1.2.3", Criticality: true}})
	require.Len(t, elem.Children, 1)
	assert.Len(t, elem.Children[0].Children, 2)
}

func TestUnknownControlPassesThroughByteExact(t *testing.T) {
	// An opaque control value must survive envelope round trips
	// untouched, whatever its contents.
	opaque := []byte{0x30, 0x06, 0x04, 0x01, 0xFF, 0x02, 0x01, 0x2A}
	pdu := encodeMessage(3, resultOp(appModifyResponse, ResultSuccess, "", ""), []Control{
		{OID: "1.3.6.1.4.1.99999.1", Value: opaque},
	})
	env, err := parseEnvelope(pdu)
	require.NoError(t, err)
	require.Len(t, env.Controls, 1)
	assert.Equal(t, opaque, env.Controls[0].Value)
}

func TestPagedResultsControlCodec(t *testing.T) {
	ctrl := PagedResultsControl(100, []byte("cookie"))
	assert.Equal(t, ControlPagedResults, ctrl.OID)

	size, cookie, err := ParsePagedResults(&ctrl)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), size)
	assert.Equal(t, []byte("cookie"), cookie)

	// Empty cookie (end of results).
	ctrl = PagedResultsControl(0, nil)
	_, cookie, err = ParsePagedResults(&ctrl)
	require.NoError(t, err)
	assert.Empty(t, cookie)
}

func TestParsePagedResultsRejectsForeignControl(t *testing.T) {
	ctrl := Control{OID: ControlManageDsaIT}
	_, _, err := ParsePagedResults(&ctrl)
	assert.Error(t, err)

	_, _, err = ParsePagedResults(nil)
	assert.Error(t, err)
}

func TestFindControl(t *testing.T) {
	controls := []Control{
		{OID: "1.1"},
		{OID: "2.2", Value: []byte("x")},
	}
	require.NotNil(t, FindControl(controls, "2.2"))
	assert.Equal(t, []byte("x"), FindControl(controls, "2.2").Value)
	assert.Nil(t, FindControl(controls, "3.3"))
}

func TestEnvelopeRejectsMalformedMessages(t *testing.T) {
	// Not a SEQUENCE.
	_, err := parseEnvelope(ber.NewInteger(1).Encode())
	require.Error(t, err)

	// Message ID out of range.
	pdu := ber.NewSequence(
		ber.NewInteger(1<<31),
		resultOp(appDelResponse, ResultSuccess, "", ""),
	).Encode()
	_, err = parseEnvelope(pdu)
	require.Error(t, err)

	// Missing protocol op.
	pdu = ber.NewSequence(ber.NewInteger(1)).Encode()
	_, err = parseEnvelope(pdu)
	require.Error(t, err)
}
