package ldap

import (
	"context"
	"crypto/tls"
	"errors"
	"net"

	"github.com/marmos91/dittodir/internal/protocol/ber"
)

// Well-known extended operation OIDs.
const (
	// StartTLSOID upgrades the connection to TLS in place (RFC 4511 4.14).
	StartTLSOID = "1.3.6.1.4.1.1466.20037"

	// WhoAmIOID returns the connection's authorization identity (RFC 4532).
	WhoAmIOID = "1.3.6.1.4.1.4203.1.11.3"

	// PasswordModifyOID changes a password (RFC 3062).
	PasswordModifyOID = "1.3.6.1.4.1.4203.1.11.1"
)

// ExtendedResponse is the typed result of an extended operation. Name and
// Value are optional on the wire; a nil Value means absent.
type ExtendedResponse struct {
	Result
	Name  string
	Value []byte
}

// encodeExtendedRequest builds the ExtendedRequest op:
//
//	ExtendedRequest ::= [APPLICATION 23] SEQUENCE {
//	     requestName  [0] LDAPOID,
//	     requestValue [1] OCTET STRING OPTIONAL }
func encodeExtendedRequest(name string, value []byte) ber.Element {
	children := []ber.Element{ber.Primitive(ber.ContextPrimitive(0), []byte(name))}
	if value != nil {
		children = append(children, ber.Primitive(ber.ContextPrimitive(1), value))
	}
	return ber.Constructed(ber.Application(appExtendedRequest, true), children...)
}

func decodeExtendedResponse(op ber.Element, controls []Control) (*ExtendedResponse, error) {
	result, err := decodeResult(op)
	if err != nil {
		return nil, err
	}
	result.Controls = controls

	resp := &ExtendedResponse{Result: *result}
	// responseName [10], responseValue [11], both OPTIONAL.
	for _, child := range op.Children[3:] {
		switch child.Tag {
		case ber.ContextPrimitive(10):
			resp.Name = child.Str()
		case ber.ContextPrimitive(11):
			if child.Value == nil {
				resp.Value = []byte{}
			} else {
				resp.Value = child.Bytes()
			}
		}
	}
	return resp, nil
}

// Extended performs an extended operation by OID. A nil value omits the
// requestValue field. The response is returned even for non-success result
// codes, alongside the KindResult error.
func (c *Conn) Extended(ctx context.Context, name string, value []byte, controls ...Control) (*ExtendedResponse, error) {
	env, err := c.do(ctx, "extended", encodeExtendedRequest(name, value), controls)
	if err != nil {
		return nil, err
	}
	if env.opTag() != appExtendedResponse {
		return nil, protocolErr("extended", "unexpected response tag %s", env.Op.Tag)
	}
	resp, err := decodeExtendedResponse(env.Op, env.Controls)
	if err != nil {
		return nil, err
	}
	return resp, resp.Success("extended")
}

// StartTLS upgrades the connection to TLS in place (RFC 4511 4.14). No
// other operation may be outstanding: the driver quiesces the writer, the
// reader parks after delivering the StartTLS response, and only then does
// the handshake take over the raw stream. A nil config uses the settings'
// TLS configuration without a server name; prefer passing one.
func (c *Conn) StartTLS(cfg *tls.Config) error {
	d := c.d
	if cfg == nil {
		cfg = d.settings.tlsConfig("")
	}

	sub := &submission{
		opName:    "starttls",
		op:        encodeExtendedRequest(StartTLSOID, nil),
		timeout:   c.reqTimeout,
		exclusive: true,
		pause:     true,
		resp:      make(chan *opOutcome, 1),
		idCh:      make(chan submitResult, 1),
	}
	env, err := c.doSubmission(context.Background(), sub)
	if err != nil {
		if errors.Is(err, ErrTimeout) || errors.Is(err, ErrAborted) {
			// The request went out but no response came back; a late
			// response would park the reader with nobody to resume
			// it, and the stream state is unknowable anyway. Fail the
			// connection.
			select {
			case d.fatalCh <- &Error{Kind: KindTLS, Op: "starttls", Err: err}:
			default:
			}
			return err
		}
		// Rejected at submission; no PDU was written and the reader
		// never armed.
		d.pauseID.Store(0)
		return err
	}
	if env.opTag() != appExtendedResponse {
		d.resumeReader()
		return protocolErr("starttls", "unexpected response tag %s", env.Op.Tag)
	}
	resp, err := decodeExtendedResponse(env.Op, env.Controls)
	if err != nil {
		d.resumeReader()
		return err
	}
	if resErr := resp.Success("starttls"); resErr != nil {
		// Refused: the stream stays plaintext and usable.
		d.resumeReader()
		return resErr
	}

	upgradeErr := d.framer.Upgrade(func(nc net.Conn) (net.Conn, error) {
		tlsConn := tls.Client(nc, cfg)
		if err := tlsConn.Handshake(); err != nil {
			return nil, err
		}
		return tlsConn, nil
	})
	if upgradeErr != nil {
		// Half-upgraded streams cannot be recovered; fail the
		// connection.
		tlsErr := &Error{Kind: KindTLS, Op: "starttls", Err: upgradeErr}
		select {
		case d.fatalCh <- tlsErr:
		default:
		}
		d.resumeReader()
		return tlsErr
	}

	d.resumeReader()
	d.log.Debug("stream upgraded to tls")
	return nil
}

// resumeReader releases a reader parked by a pause submission. The reader
// clears the pause marker itself on wake-up.
func (d *driver) resumeReader() {
	select {
	case d.resumeCh <- struct{}{}:
	case <-d.closed:
	}
}

// WhoAmI asks the server for the connection's authorization identity
// (RFC 4532). The returned string is typically "dn:<dn>" or "u:<user>",
// empty for anonymous connections.
func (c *Conn) WhoAmI(ctx context.Context) (string, error) {
	resp, err := c.Extended(ctx, WhoAmIOID, nil)
	if err != nil {
		return "", err
	}
	return string(resp.Value), nil
}

// PasswordModify changes a password via RFC 3062. Empty userIdentity
// targets the bound entry; empty newPassword asks the server to generate
// one, returned as genPassword.
func (c *Conn) PasswordModify(ctx context.Context, userIdentity, oldPassword, newPassword string) (genPassword string, err error) {
	var fields []ber.Element
	if userIdentity != "" {
		fields = append(fields, ber.Primitive(ber.ContextPrimitive(0), []byte(userIdentity)))
	}
	if oldPassword != "" {
		fields = append(fields, ber.Primitive(ber.ContextPrimitive(1), []byte(oldPassword)))
	}
	if newPassword != "" {
		fields = append(fields, ber.Primitive(ber.ContextPrimitive(2), []byte(newPassword)))
	}
	value := ber.NewSequence(fields...).Encode()

	resp, err := c.Extended(ctx, PasswordModifyOID, value)
	if err != nil {
		return "", err
	}
	if len(resp.Value) == 0 {
		return "", nil
	}

	elem, _, err := ber.Decode(resp.Value)
	if err != nil {
		return "", codecErr("extended", err)
	}
	for _, child := range elem.Children {
		if child.Tag == ber.ContextPrimitive(0) {
			return child.Str(), nil
		}
	}
	return "", nil
}
