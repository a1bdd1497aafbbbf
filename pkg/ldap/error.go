package ldap

import (
	"errors"
	"fmt"
)

// Kind classifies client errors so callers can branch on failure class
// without string matching.
type Kind int

const (
	// KindCodec: malformed BER or unexpected structure while decoding.
	KindCodec Kind = iota

	// KindIO: underlying transport failure; terminal for the connection.
	KindIO

	// KindTLS: handshake or certificate verification failure.
	KindTLS

	// KindProtocol: a response that violates LDAP structure (wrong tag,
	// missing field).
	KindProtocol

	// KindResult: the server returned a non-success result code.
	KindResult

	// KindTimeout: the per-operation deadline fired; the server was sent
	// an Abandon.
	KindTimeout

	// KindAborted: the operation was cancelled by Abandon or connection
	// teardown.
	KindAborted

	// KindFilterParse: a filter string failed to compile.
	KindFilterParse

	// KindURLParse: an LDAP URL failed to parse.
	KindURLParse

	// KindTooManyOutstanding: message-ID exhaustion or driver
	// backpressure.
	KindTooManyOutstanding
)

func (k Kind) String() string {
	switch k {
	case KindCodec:
		return "codec"
	case KindIO:
		return "io"
	case KindTLS:
		return "tls"
	case KindProtocol:
		return "protocol"
	case KindResult:
		return "result"
	case KindTimeout:
		return "timeout"
	case KindAborted:
		return "aborted"
	case KindFilterParse:
		return "filter parse"
	case KindURLParse:
		return "url parse"
	case KindTooManyOutstanding:
		return "too many outstanding"
	default:
		return "unknown"
	}
}

// Error is the client's error type. Failures surfaced by this package are
// (or wrap) an *Error, except that ErrConnClosed and ErrBindInProgress are
// returned bare on some paths and Settings.Validate returns plain errors.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Op names the operation that failed ("bind", "search", ...). Empty
	// for connection-level failures.
	Op string

	// Result holds the server's LdapResult for KindResult errors.
	Result *Result

	// Err is the wrapped cause, if any.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Result != nil:
		msg := fmt.Sprintf("ldap: %s: %s (%d)", e.Op, ResultCodeName(e.Result.Code), e.Result.Code)
		if e.Result.DiagnosticMessage != "" {
			msg += ": " + e.Result.DiagnosticMessage
		}
		return msg
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("ldap: %s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("ldap: %s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("ldap: %s: %s", e.Op, e.Kind)
	default:
		return fmt.Sprintf("ldap: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches bare-kind sentinels such as ErrTimeout, so
// errors.Is(err, ldap.ErrTimeout) works on fully-populated errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Err == nil && t.Result == nil && t.Op == ""
}

// Sentinel errors for the driver's terminal states. Compare with errors.Is.
var (
	// ErrTimeout reports a per-operation deadline expiry.
	ErrTimeout = &Error{Kind: KindTimeout}

	// ErrAborted reports cancellation via Abandon or teardown.
	ErrAborted = &Error{Kind: KindAborted}

	// ErrTooManyOutstanding reports submission rejection due to a full
	// waiter registry or an exhausted message-ID space.
	ErrTooManyOutstanding = &Error{Kind: KindTooManyOutstanding}

	// ErrConnClosed reports an operation on a connection that has been
	// unbound or torn down.
	ErrConnClosed = errors.New("ldap: connection closed")

	// ErrBindInProgress reports a submission attempted while a bind is in
	// flight. RFC 4511 forbids other operations during a bind.
	ErrBindInProgress = errors.New("ldap: bind in progress")
)

func codecErr(op string, err error) *Error {
	return &Error{Kind: KindCodec, Op: op, Err: err}
}

func protocolErr(op string, format string, args ...any) *Error {
	return &Error{Kind: KindProtocol, Op: op, Err: fmt.Errorf(format, args...)}
}
