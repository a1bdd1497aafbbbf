package ber

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// INTEGER Encoding Tests
// ============================================================================

func TestIntegerMinimalEncoding(t *testing.T) {
	cases := []struct {
		value int64
		want  []byte
	}{
		{0, []byte{0x02, 0x01, 0x00}},
		{1, []byte{0x02, 0x01, 0x01}},
		{127, []byte{0x02, 0x01, 0x7F}},
		{128, []byte{0x02, 0x02, 0x00, 0x80}},
		{256, []byte{0x02, 0x02, 0x01, 0x00}},
		{-1, []byte{0x02, 0x01, 0xFF}},
		{-128, []byte{0x02, 0x01, 0x80}},
		{-129, []byte{0x02, 0x02, 0xFF, 0x7F}},
		{2147483647, []byte{0x02, 0x04, 0x7F, 0xFF, 0xFF, 0xFF}},
	}
	for _, tc := range cases {
		got := NewInteger(tc.value).Encode()
		assert.Equal(t, tc.want, got, "encoding of %d", tc.value)

		elem, n, err := Decode(got)
		require.NoError(t, err)
		assert.Equal(t, len(got), n)
		v, err := elem.Int64()
		require.NoError(t, err)
		assert.Equal(t, tc.value, v)
	}
}

func TestIntegerOverflow(t *testing.T) {
	// Nine contents octets cannot fit an int64.
	elem := Primitive(Integer, bytes.Repeat([]byte{0x7F}, 9))
	_, err := elem.Int64()
	assert.ErrorIs(t, err, ErrIntegerOverflow)

	// Negative values do not fit a uint32.
	_, err = NewInteger(-5).Uint32()
	assert.ErrorIs(t, err, ErrIntegerOverflow)
}

// ============================================================================
// BOOLEAN Tests
// ============================================================================

func TestBooleanEncoding(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x01, 0xFF}, NewBoolean(true).Encode())
	assert.Equal(t, []byte{0x01, 0x01, 0x00}, NewBoolean(false).Encode())
}

func TestBooleanDecodeAcceptsAnyNonZero(t *testing.T) {
	// AD encodes true as 0x01 rather than 0xFF.
	for _, b := range []byte{0x01, 0x7F, 0xFF} {
		elem, _, err := Decode([]byte{0x01, 0x01, b})
		require.NoError(t, err)
		v, err := elem.Bool()
		require.NoError(t, err)
		assert.True(t, v, "octet 0x%02x", b)
	}

	elem, _, err := Decode([]byte{0x01, 0x01, 0x00})
	require.NoError(t, err)
	v, err := elem.Bool()
	require.NoError(t, err)
	assert.False(t, v)

	_, err = Primitive(Boolean, []byte{0x00, 0x00}).Bool()
	assert.ErrorIs(t, err, ErrInvalidBoolean)
}

// ============================================================================
// Length Form Tests
// ============================================================================

func TestLongFormLength(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 200)
	enc := NewOctetString(payload).Encode()
	// 0x04, 0x81, 0xC8, contents
	require.Equal(t, []byte{0x04, 0x81, 0xC8}, enc[:3])

	elem, n, err := Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, len(enc), n)
	assert.Equal(t, payload, elem.Bytes())
}

func TestLongFormLengthLeadingZeroPadding(t *testing.T) {
	// 0x84 with three redundant zero octets; still length 5.
	in := []byte{0x04, 0x84, 0x00, 0x00, 0x00, 0x05, 'h', 'e', 'l', 'l', 'o'}
	elem, n, err := Decode(in)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)
	assert.Equal(t, "hello", elem.Str())
}

func TestIndefiniteLengthRejected(t *testing.T) {
	_, _, err := Decode([]byte{0x30, 0x80, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrIndefiniteLength)
}

func TestOverlongLengthRejected(t *testing.T) {
	// Five significant length octets.
	_, err := ParseHeader([]byte{0x04, 0x85, 0x01, 0x02, 0x03, 0x04, 0x05})
	assert.ErrorIs(t, err, ErrOverlongLength)
}

func TestTruncatedInput(t *testing.T) {
	full := NewSequence(NewInteger(1), NewString("cn=admin")).Encode()
	for i := 0; i < len(full); i++ {
		_, _, err := Decode(full[:i])
		assert.ErrorIs(t, err, ErrTruncated, "prefix of %d octets", i)
	}
}

// ============================================================================
// Tag Tests
// ============================================================================

func TestHighTagNumberRoundTrip(t *testing.T) {
	tag := Tag{Class: ClassPrivate, Number: 1000}
	enc := Primitive(tag, []byte{0x42}).Encode()

	elem, n, err := Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, len(enc), n)
	assert.Equal(t, tag, elem.Tag)
	assert.Equal(t, []byte{0x42}, elem.Bytes())
}

func TestExpect(t *testing.T) {
	elem := NewInteger(7)
	require.NoError(t, elem.Expect(Integer))

	err := elem.Expect(OctetString)
	assert.ErrorIs(t, err, ErrTagMismatch)
	var tagErr *TagError
	require.ErrorAs(t, err, &tagErr)
	assert.Equal(t, OctetString, tagErr.Expected)
	assert.Equal(t, Integer, tagErr.Got)
}

// ============================================================================
// Structural Round-trip Tests
// ============================================================================

func TestStructuralRoundTrip(t *testing.T) {
	msg := NewSequence(
		NewInteger(3),
		Constructed(Application(3, true),
			NewString("dc=example,dc=org"),
			NewEnumerated(2),
			NewEnumerated(0),
			NewInteger(0),
			NewInteger(0),
			NewBoolean(false),
			Primitive(ContextPrimitive(7), []byte("objectClass")),
			NewSequence(NewString("cn"), NewString("mail")),
		),
	)

	enc := msg.Encode()
	require.Equal(t, msg.EncodedLen(), len(enc))

	dec, n, err := Decode(enc)
	require.NoError(t, err)
	require.Equal(t, len(enc), n)
	assert.Equal(t, msg.Tag, dec.Tag)
	require.Len(t, dec.Children, 2)
	assert.Equal(t, enc, dec.Encode(), "re-encode must be byte-identical")
}

func TestDecodeConsumesExactlyOneElement(t *testing.T) {
	first := NewInteger(1).Encode()
	second := NewString("x").Encode()
	joined := append(append([]byte{}, first...), second...)

	_, n, err := Decode(joined)
	require.NoError(t, err)
	assert.Equal(t, len(first), n)
}
