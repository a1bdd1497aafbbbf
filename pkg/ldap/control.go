package ldap

import (
	"github.com/marmos91/dittodir/internal/protocol/ber"
)

// Well-known control OIDs. The core carries control values opaquely; only
// the paged-results value has a typed codec here, everything else is
// attach/extract by OID.
const (
	// ControlPagedResults is the simple paged results control (RFC 2696).
	ControlPagedResults = "1.2.840.113556.1.4.319"

	// ControlManageDsaIT makes referral objects visible as plain entries
	// (RFC 3296).
	ControlManageDsaIT = "2.16.840.1.113730.3.4.2"

	// ControlProxyAuthorization asserts a different authorization identity
	// (RFC 4370).
	ControlProxyAuthorization = "2.16.840.1.113730.3.4.18"

	// ControlMatchedValues restricts returned attribute values (RFC 3876).
	ControlMatchedValues = "1.2.826.0.1.3344810.2.3"

	// ControlAssertion makes an operation conditional on a filter
	// (RFC 4528).
	ControlAssertion = "1.3.6.1.1.12"

	// ControlPreRead and ControlPostRead return entry state around an
	// update (RFC 4527).
	ControlPreRead  = "1.3.6.1.1.13.1"
	ControlPostRead = "1.3.6.1.1.13.2"
)

// Control is request or response metadata identified by OID
// (RFC 4511 4.1.11). Value is the raw controlValue octets; nil means the
// value field is absent, which is distinct from present-but-empty.
type Control struct {
	OID         string
	Criticality bool
	Value       []byte
}

// NewControl builds a control without a value.
func NewControl(oid string, critical bool) Control {
	return Control{OID: oid, Criticality: critical}
}

// FindControl returns the first control with the given OID, or nil.
func FindControl(controls []Control, oid string) *Control {
	for i := range controls {
		if controls[i].OID == oid {
			return &controls[i]
		}
	}
	return nil
}

// encodeControls builds the [0] Controls element of an LDAPMessage.
func encodeControls(controls []Control) ber.Element {
	children := make([]ber.Element, 0, len(controls))
	for _, c := range controls {
		ctrl := []ber.Element{ber.NewString(c.OID)}
		// criticality BOOLEAN DEFAULT FALSE: omitted when false.
		if c.Criticality {
			ctrl = append(ctrl, ber.NewBoolean(true))
		}
		if c.Value != nil {
			ctrl = append(ctrl, ber.NewOctetString(c.Value))
		}
		children = append(children, ber.NewSequence(ctrl...))
	}
	return ber.Constructed(ber.ContextConstructed(0), children...)
}

// parseControls decodes the [0] Controls element of an inbound message.
func parseControls(elem ber.Element) ([]Control, error) {
	controls := make([]Control, 0, len(elem.Children))
	for _, child := range elem.Children {
		if err := child.Expect(ber.Sequence); err != nil {
			return nil, codecErr("", err)
		}
		if len(child.Children) == 0 {
			return nil, protocolErr("", "empty control sequence")
		}
		c := Control{OID: child.Children[0].Str()}
		for _, field := range child.Children[1:] {
			switch field.Tag {
			case ber.Boolean:
				crit, err := field.Bool()
				if err != nil {
					return nil, codecErr("", err)
				}
				c.Criticality = crit
			case ber.OctetString:
				// Preserve present-but-empty as non-nil.
				if field.Value == nil {
					c.Value = []byte{}
				} else {
					c.Value = field.Bytes()
				}
			default:
				return nil, protocolErr("", "unexpected control field %s", field.Tag)
			}
		}
		controls = append(controls, c)
	}
	return controls, nil
}

// PagedResultsControl builds a paged-results request control (RFC 2696).
// Size is the requested page size; cookie is empty for the first page and
// echoed from the previous response afterwards.
func PagedResultsControl(size uint32, cookie []byte) Control {
	value := ber.NewSequence(
		ber.NewInteger(int64(size)),
		ber.NewOctetString(cookie),
	).Encode()
	return Control{OID: ControlPagedResults, Value: value}
}

// ParsePagedResults decodes a paged-results response control value into the
// server's size estimate and continuation cookie. An empty cookie means the
// result set is exhausted.
func ParsePagedResults(c *Control) (size uint32, cookie []byte, err error) {
	if c == nil || c.OID != ControlPagedResults {
		return 0, nil, protocolErr("search", "not a paged results control")
	}
	elem, _, err := ber.Decode(c.Value)
	if err != nil {
		return 0, nil, codecErr("search", err)
	}
	if err := elem.Expect(ber.Sequence); err != nil {
		return 0, nil, codecErr("search", err)
	}
	if len(elem.Children) != 2 {
		return 0, nil, protocolErr("search", "paged results value has %d children, want 2", len(elem.Children))
	}
	size, err = elem.Children[0].Uint32()
	if err != nil {
		return 0, nil, codecErr("search", err)
	}
	return size, elem.Children[1].Bytes(), nil
}
