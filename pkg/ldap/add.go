package ldap

import (
	"context"

	"github.com/marmos91/dittodir/internal/protocol/ber"
)

// Attribute is one attribute description with its values, as raw bytes.
// Values that are text are just UTF-8 bytes; the wire format does not
// distinguish.
type Attribute struct {
	Name   string
	Values [][]byte
}

// StringValues builds an Attribute from string values.
func StringValues(name string, values ...string) Attribute {
	attr := Attribute{Name: name, Values: make([][]byte, len(values))}
	for i, v := range values {
		attr.Values[i] = []byte(v)
	}
	return attr
}

func (a Attribute) encode() ber.Element {
	values := make([]ber.Element, len(a.Values))
	for i, v := range a.Values {
		values[i] = ber.NewOctetString(v)
	}
	return ber.NewSequence(ber.NewString(a.Name), ber.NewSet(values...))
}

// AddRequest describes an Add operation (RFC 4511 4.7).
type AddRequest struct {
	DN         string
	Attributes []Attribute
	Controls   []Control
}

// Add creates a new entry.
func (c *Conn) Add(ctx context.Context, req *AddRequest) (*Result, error) {
	attrs := make([]ber.Element, len(req.Attributes))
	for i, attr := range req.Attributes {
		attrs[i] = attr.encode()
	}
	op := ber.Constructed(ber.Application(appAddRequest, true),
		ber.NewString(req.DN),
		ber.NewSequence(attrs...),
	)

	env, err := c.do(ctx, "add", op, req.Controls)
	if err != nil {
		return nil, err
	}
	result, err := decodeResponse(env, appAddResponse, "add")
	if err != nil {
		return nil, err
	}
	return result, result.Success("add")
}

// decodeResponse checks the response tag and decodes the LdapResult,
// attaching response controls.
func decodeResponse(env *envelope, wantTag uint32, op string) (*Result, error) {
	if env.opTag() != wantTag {
		return nil, protocolErr(op, "unexpected response tag %s", env.Op.Tag)
	}
	result, err := decodeResult(env.Op)
	if err != nil {
		return nil, err
	}
	result.Controls = env.Controls
	return result, nil
}
