package ldap

import (
	"github.com/marmos91/dittodir/internal/protocol/ber"
)

// Application tag numbers for LDAP protocol ops per RFC 4511 section 4.
const (
	appBindRequest           uint32 = 0
	appBindResponse          uint32 = 1
	appUnbindRequest         uint32 = 2
	appSearchRequest         uint32 = 3
	appSearchResultEntry     uint32 = 4
	appSearchResultDone      uint32 = 5
	appModifyRequest         uint32 = 6
	appModifyResponse        uint32 = 7
	appAddRequest            uint32 = 8
	appAddResponse           uint32 = 9
	appDelRequest            uint32 = 10
	appDelResponse           uint32 = 11
	appModifyDNRequest       uint32 = 12
	appModifyDNResponse      uint32 = 13
	appCompareRequest        uint32 = 14
	appCompareResponse       uint32 = 15
	appAbandonRequest        uint32 = 16
	appSearchResultReference uint32 = 19
	appExtendedRequest       uint32 = 23
	appExtendedResponse      uint32 = 24
	appIntermediateResponse  uint32 = 25
)

// opNames maps request and response tags to operation names for logs and
// metrics.
var opNames = map[uint32]string{
	appBindRequest:           "bind",
	appBindResponse:          "bind",
	appUnbindRequest:         "unbind",
	appSearchRequest:         "search",
	appSearchResultEntry:     "search",
	appSearchResultDone:      "search",
	appSearchResultReference: "search",
	appModifyRequest:         "modify",
	appModifyResponse:        "modify",
	appAddRequest:            "add",
	appAddResponse:           "add",
	appDelRequest:            "delete",
	appDelResponse:           "delete",
	appModifyDNRequest:       "modifydn",
	appModifyDNResponse:      "modifydn",
	appCompareRequest:        "compare",
	appCompareResponse:       "compare",
	appAbandonRequest:        "abandon",
	appExtendedRequest:       "extended",
	appExtendedResponse:      "extended",
	appIntermediateResponse:  "intermediate",
}

// maxMessageID is the largest legal message ID (maxInt, RFC 4511 4.1.1.1).
const maxMessageID = 1<<31 - 1

// envelope is one decoded LDAPMessage: the ID, the protocol op element and
// any attached controls.
type envelope struct {
	MessageID uint32
	Op        ber.Element
	Controls  []Control
}

// opTag returns the tag number of the protocol op. The tag class is not
// checked here or by callers, which compare the number alone.
func (e *envelope) opTag() uint32 { return e.Op.Tag.Number }

// encodeMessage wraps a protocol op into the LDAPMessage envelope:
//
//	LDAPMessage ::= SEQUENCE {
//	     messageID  MessageID,
//	     protocolOp CHOICE { ... },
//	     controls   [0] Controls OPTIONAL }
func encodeMessage(id uint32, op ber.Element, controls []Control) []byte {
	children := []ber.Element{ber.NewInteger(int64(id)), op}
	if len(controls) > 0 {
		children = append(children, encodeControls(controls))
	}
	return ber.NewSequence(children...).Encode()
}

// parseEnvelope decodes one inbound PDU into an envelope.
func parseEnvelope(pdu []byte) (*envelope, error) {
	root, _, err := ber.Decode(pdu)
	if err != nil {
		return nil, codecErr("", err)
	}
	if err := root.Expect(ber.Sequence); err != nil {
		return nil, codecErr("", err)
	}
	if len(root.Children) < 2 {
		return nil, protocolErr("", "ldapmessage has %d children, need at least 2", len(root.Children))
	}

	idElem := root.Children[0]
	if err := idElem.Expect(ber.Integer); err != nil {
		return nil, codecErr("", err)
	}
	id, err := idElem.Uint32()
	if err != nil {
		return nil, codecErr("", err)
	}
	if id > maxMessageID {
		return nil, protocolErr("", "message id %d out of range", id)
	}

	env := &envelope{MessageID: id, Op: root.Children[1]}

	if len(root.Children) > 2 {
		ctrlElem := root.Children[2]
		if ctrlElem.Tag != ber.ContextConstructed(0) {
			return nil, protocolErr("", "unexpected trailing element %s in ldapmessage", ctrlElem.Tag)
		}
		env.Controls, err = parseControls(ctrlElem)
		if err != nil {
			return nil, err
		}
	}
	return env, nil
}

// decodeResult decodes the LdapResult fields at the front of a response op:
// resultCode, matchedDN, diagnosticMessage, then optional referral [3].
// Extra trailing children (BindResponse creds, ExtendedResponse name/value)
// are left to the caller.
func decodeResult(op ber.Element) (*Result, error) {
	if len(op.Children) < 3 {
		return nil, protocolErr("", "ldapresult has %d children, need at least 3", len(op.Children))
	}

	rc, err := op.Children[0].Uint32()
	if err != nil {
		return nil, codecErr("", err)
	}
	res := &Result{
		Code:              rc,
		MatchedDN:         op.Children[1].Str(),
		DiagnosticMessage: op.Children[2].Str(),
	}

	// Referral ::= [3] SEQUENCE SIZE (1..MAX) OF uri URI
	for _, child := range op.Children[3:] {
		if child.Tag == ber.ContextConstructed(3) {
			for _, uri := range child.Children {
				res.Referrals = append(res.Referrals, uri.Str())
			}
		}
	}
	return res, nil
}
