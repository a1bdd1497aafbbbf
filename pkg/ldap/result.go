package ldap

// LDAP result codes per RFC 4511 appendix A.
const (
	ResultSuccess                      uint32 = 0
	ResultOperationsError              uint32 = 1
	ResultProtocolError                uint32 = 2
	ResultTimeLimitExceeded            uint32 = 3
	ResultSizeLimitExceeded            uint32 = 4
	ResultCompareFalse                 uint32 = 5
	ResultCompareTrue                  uint32 = 6
	ResultAuthMethodNotSupported       uint32 = 7
	ResultStrongerAuthRequired         uint32 = 8
	ResultReferral                     uint32 = 10
	ResultAdminLimitExceeded           uint32 = 11
	ResultUnavailableCriticalExtension uint32 = 12
	ResultConfidentialityRequired      uint32 = 13
	ResultSaslBindInProgress           uint32 = 14
	ResultNoSuchAttribute              uint32 = 16
	ResultUndefinedAttributeType       uint32 = 17
	ResultInappropriateMatching        uint32 = 18
	ResultConstraintViolation          uint32 = 19
	ResultAttributeOrValueExists       uint32 = 20
	ResultInvalidAttributeSyntax       uint32 = 21
	ResultNoSuchObject                 uint32 = 32
	ResultAliasProblem                 uint32 = 33
	ResultInvalidDNSyntax              uint32 = 34
	ResultAliasDereferencingProblem    uint32 = 36
	ResultInappropriateAuthentication  uint32 = 48
	ResultInvalidCredentials           uint32 = 49
	ResultInsufficientAccessRights     uint32 = 50
	ResultBusy                         uint32 = 51
	ResultUnavailable                  uint32 = 52
	ResultUnwillingToPerform           uint32 = 53
	ResultLoopDetect                   uint32 = 54
	ResultNamingViolation              uint32 = 64
	ResultObjectClassViolation         uint32 = 65
	ResultNotAllowedOnNonLeaf          uint32 = 66
	ResultNotAllowedOnRDN              uint32 = 67
	ResultEntryAlreadyExists           uint32 = 68
	ResultObjectClassModsProhibited    uint32 = 69
	ResultAffectsMultipleDSAs          uint32 = 71
	ResultOther                        uint32 = 80
)

var resultCodeNames = map[uint32]string{
	ResultSuccess:                      "success",
	ResultOperationsError:              "operationsError",
	ResultProtocolError:                "protocolError",
	ResultTimeLimitExceeded:            "timeLimitExceeded",
	ResultSizeLimitExceeded:            "sizeLimitExceeded",
	ResultCompareFalse:                 "compareFalse",
	ResultCompareTrue:                  "compareTrue",
	ResultAuthMethodNotSupported:       "authMethodNotSupported",
	ResultStrongerAuthRequired:         "strongerAuthRequired",
	ResultReferral:                     "referral",
	ResultAdminLimitExceeded:           "adminLimitExceeded",
	ResultUnavailableCriticalExtension: "unavailableCriticalExtension",
	ResultConfidentialityRequired:      "confidentialityRequired",
	ResultSaslBindInProgress:           "saslBindInProgress",
	ResultNoSuchAttribute:              "noSuchAttribute",
	ResultUndefinedAttributeType:       "undefinedAttributeType",
	ResultInappropriateMatching:        "inappropriateMatching",
	ResultConstraintViolation:          "constraintViolation",
	ResultAttributeOrValueExists:       "attributeOrValueExists",
	ResultInvalidAttributeSyntax:       "invalidAttributeSyntax",
	ResultNoSuchObject:                 "noSuchObject",
	ResultAliasProblem:                 "aliasProblem",
	ResultInvalidDNSyntax:              "invalidDNSyntax",
	ResultAliasDereferencingProblem:    "aliasDereferencingProblem",
	ResultInappropriateAuthentication:  "inappropriateAuthentication",
	ResultInvalidCredentials:           "invalidCredentials",
	ResultInsufficientAccessRights:     "insufficientAccessRights",
	ResultBusy:                         "busy",
	ResultUnavailable:                  "unavailable",
	ResultUnwillingToPerform:           "unwillingToPerform",
	ResultLoopDetect:                   "loopDetect",
	ResultNamingViolation:              "namingViolation",
	ResultObjectClassViolation:         "objectClassViolation",
	ResultNotAllowedOnNonLeaf:          "notAllowedOnNonLeaf",
	ResultNotAllowedOnRDN:              "notAllowedOnRDN",
	ResultEntryAlreadyExists:           "entryAlreadyExists",
	ResultObjectClassModsProhibited:    "objectClassModsProhibited",
	ResultAffectsMultipleDSAs:          "affectsMultipleDSAs",
	ResultOther:                        "other",
}

// ResultCodeName returns the RFC 4511 name for a result code, or "unknown".
func ResultCodeName(code uint32) string {
	if name, ok := resultCodeNames[code]; ok {
		return name
	}
	return "unknown"
}

// Result is the LdapResult body carried by most responses.
type Result struct {
	// Code is the server's result code.
	Code uint32

	// MatchedDN is the longest matched DN prefix for naming errors.
	MatchedDN string

	// DiagnosticMessage is the server's human-readable diagnostic.
	DiagnosticMessage string

	// Referrals holds referral URIs when Code is ResultReferral.
	Referrals []string

	// Controls holds response controls from the enclosing message.
	Controls []Control
}

// Success returns nil iff the result code is success; otherwise a
// KindResult error carrying the full result.
func (r *Result) Success(op string) error {
	if r.Code == ResultSuccess {
		return nil
	}
	return &Error{Kind: KindResult, Op: op, Result: r}
}

// NonError is like Success but also admits referral (rc 10), which is not a
// failure: the caller may chase the referral or surface it.
func (r *Result) NonError(op string) error {
	if r.Code == ResultSuccess || r.Code == ResultReferral {
		return nil
	}
	return &Error{Kind: KindResult, Op: op, Result: r}
}

// CompareResult is the outcome of a Compare operation. The server answers
// with compareTrue or compareFalse rather than success.
type CompareResult struct {
	Result
}

// Equals maps compareTrue to true and compareFalse to false. Any other
// result code is surfaced as an error.
func (c *CompareResult) Equals() (bool, error) {
	switch c.Code {
	case ResultCompareTrue:
		return true, nil
	case ResultCompareFalse:
		return false, nil
	default:
		return false, &Error{Kind: KindResult, Op: "compare", Result: &c.Result}
	}
}
