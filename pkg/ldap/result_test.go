package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultSuccess(t *testing.T) {
	ok := &Result{Code: ResultSuccess}
	assert.NoError(t, ok.Success("bind"))
	assert.NoError(t, ok.NonError("bind"))

	busy := &Result{Code: ResultBusy, DiagnosticMessage: "try later"}
	err := busy.Success("bind")
	require.Error(t, err)
	var ldapErr *Error
	require.ErrorAs(t, err, &ldapErr)
	assert.Equal(t, KindResult, ldapErr.Kind)
	assert.Same(t, busy, ldapErr.Result)
	assert.Contains(t, err.Error(), "busy")
	assert.Contains(t, err.Error(), "try later")
}

func TestResultNonErrorAdmitsReferral(t *testing.T) {
	ref := &Result{Code: ResultReferral, Referrals: []string{"ldap://other/dc=example"}}
	assert.Error(t, ref.Success("search"))
	assert.NoError(t, ref.NonError("search"))
}

func TestCompareResultEquals(t *testing.T) {
	eq := &CompareResult{Result: Result{Code: ResultCompareTrue}}
	got, err := eq.Equals()
	require.NoError(t, err)
	assert.True(t, got)

	ne := &CompareResult{Result: Result{Code: ResultCompareFalse}}
	got, err = ne.Equals()
	require.NoError(t, err)
	assert.False(t, got)

	bad := &CompareResult{Result: Result{Code: ResultNoSuchObject}}
	_, err = bad.Equals()
	require.Error(t, err)
	var ldapErr *Error
	require.ErrorAs(t, err, &ldapErr)
	assert.Equal(t, ResultNoSuchObject, ldapErr.Result.Code)
}

func TestErrorSentinelMatching(t *testing.T) {
	full := &Error{Kind: KindTimeout, Op: "search", Err: assert.AnError}
	assert.ErrorIs(t, full, ErrTimeout)
	assert.NotErrorIs(t, full, ErrAborted)

	assert.ErrorIs(t, &Error{Kind: KindAborted}, ErrAborted)
	assert.ErrorIs(t, &Error{Kind: KindTooManyOutstanding}, ErrTooManyOutstanding)
}

func TestResultCodeName(t *testing.T) {
	assert.Equal(t, "success", ResultCodeName(0))
	assert.Equal(t, "invalidCredentials", ResultCodeName(49))
	assert.Equal(t, "unknown", ResultCodeName(9999))
}
