package ldap

import (
	"context"

	"github.com/marmos91/dittodir/internal/protocol/ber"
)

// Delete removes the entry named by dn (RFC 4511 4.8). The DelRequest is
// unusual on the wire: the DN is the contents of the application tag
// itself, with no enclosing SEQUENCE.
func (c *Conn) Delete(ctx context.Context, dn string, controls ...Control) (*Result, error) {
	op := ber.Primitive(ber.Application(appDelRequest, false), []byte(dn))

	env, err := c.do(ctx, "delete", op, controls)
	if err != nil {
		return nil, err
	}
	result, err := decodeResponse(env, appDelResponse, "delete")
	if err != nil {
		return nil, err
	}
	return result, result.Success("delete")
}
