package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeFilter(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"five*star", `five\2astar`},
		{"(parens)", `\28parens\29`},
		{`back\slash`, `back\5cslash`},
		{"nul\x00byte", `nul\00byte`},
		// Non-ASCII UTF-8 passes through untouched.
		{"Lučić", "Lučić"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, EscapeFilter(tc.in), "escape %q", tc.in)
	}
}

func TestEscapeFilterRoundTripsThroughCompiler(t *testing.T) {
	value := `weird (value) with * and \`
	f := mustCompile(t, "(cn="+EscapeFilter(value)+")")
	eq, ok := f.(*EqualityFilter)
	assert.True(t, ok)
	assert.Equal(t, []byte(value), eq.Value)
}

func TestEscapeDN(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Smith, James", `Smith\, James`},
		{"a+b", `a\+b`},
		{`quote"me`, `quote\"me`},
		{"angle<bracket>", `angle\<bracket\>`},
		{"semi;colon", `semi\;colon`},
		{`back\slash`, `back\\slash`},
		{" leading space", `\ leading space`},
		{"trailing space ", `trailing space\ `},
		{"#leading hash", `\#leading hash`},
		{"inner # is fine", "inner # is fine"},
		{"nul\x00byte", `nul\00byte`},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, EscapeDN(tc.in), "escape %q", tc.in)
	}
}
