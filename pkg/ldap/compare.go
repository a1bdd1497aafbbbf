package ldap

import (
	"context"

	"github.com/marmos91/dittodir/internal/protocol/ber"
)

// Compare asks the server whether the entry carries the given attribute
// value (RFC 4511 4.10). The server answers compareTrue or compareFalse;
// both are successful outcomes and map to the returned bool. Any other
// result code is an error.
func (c *Conn) Compare(ctx context.Context, dn, attribute string, value []byte, controls ...Control) (bool, error) {
	op := ber.Constructed(ber.Application(appCompareRequest, true),
		ber.NewString(dn),
		ber.NewSequence(
			ber.NewString(attribute),
			ber.NewOctetString(value),
		),
	)

	env, err := c.do(ctx, "compare", op, controls)
	if err != nil {
		return false, err
	}
	result, err := decodeResponse(env, appCompareResponse, "compare")
	if err != nil {
		return false, err
	}
	cr := &CompareResult{Result: *result}
	return cr.Equals()
}
