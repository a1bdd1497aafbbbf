package logger

import "log/slog"

// Standard field keys for structured logging. Used consistently across the
// client so logs aggregate cleanly by connection and operation.
const (
	KeyConnID     = "conn_id"     // client-generated connection UUID
	KeyMessageID  = "msg_id"      // LDAP message ID
	KeyOp         = "op"          // operation name: bind, search, modify, ...
	KeyServerAddr = "server_addr" // server host:port or socket path
	KeyBindDN     = "bind_dn"     // DN presented in a bind
	KeyBaseDN     = "base_dn"     // search base
	KeyScope      = "scope"       // search scope
	KeyFilter     = "filter"      // search filter (string form)
	KeyResultCode = "result_code" // LDAP result code
	KeyDiagnostic = "diagnostic"  // server diagnostic message
	KeyOID        = "oid"         // control or extended operation OID
	KeyEntries    = "entries"     // entries delivered by a search
	KeyDurationMs = "duration_ms" // operation duration
	KeyError      = "error"       // error message
	KeyTLS        = "tls"         // whether the stream is TLS-wrapped
	KeyPDUBytes   = "pdu_bytes"   // size of a PDU on the wire
)

// Typed field constructors.

// ConnID returns a slog.Attr for the connection UUID.
func ConnID(id string) slog.Attr {
	return slog.String(KeyConnID, id)
}

// MessageID returns a slog.Attr for an LDAP message ID.
func MessageID(id uint32) slog.Attr {
	return slog.Uint64(KeyMessageID, uint64(id))
}

// Op returns a slog.Attr for the operation name.
func Op(name string) slog.Attr {
	return slog.String(KeyOp, name)
}

// ServerAddr returns a slog.Attr for the server address.
func ServerAddr(addr string) slog.Attr {
	return slog.String(KeyServerAddr, addr)
}

// BindDN returns a slog.Attr for a bind DN.
func BindDN(dn string) slog.Attr {
	return slog.String(KeyBindDN, dn)
}

// ResultCode returns a slog.Attr for an LDAP result code.
func ResultCode(rc uint32) slog.Attr {
	return slog.Uint64(KeyResultCode, uint64(rc))
}

// OID returns a slog.Attr for a control or exop OID.
func OID(oid string) slog.Attr {
	return slog.String(KeyOID, oid)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
