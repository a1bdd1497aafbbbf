package ldap

import (
	"context"

	"github.com/marmos91/dittodir/internal/protocol/ber"
)

// ModifyDNRequest describes a ModifyDN (rename/move) operation
// (RFC 4511 4.9).
type ModifyDNRequest struct {
	DN           string
	NewRDN       string
	DeleteOldRDN bool

	// NewSuperior, when non-empty, moves the entry under a new parent.
	NewSuperior string

	Controls []Control
}

// ModifyDN renames an entry and optionally moves it.
func (c *Conn) ModifyDN(ctx context.Context, req *ModifyDNRequest) (*Result, error) {
	children := []ber.Element{
		ber.NewString(req.DN),
		ber.NewString(req.NewRDN),
		ber.NewBoolean(req.DeleteOldRDN),
	}
	if req.NewSuperior != "" {
		children = append(children, ber.Primitive(ber.ContextPrimitive(0), []byte(req.NewSuperior)))
	}
	op := ber.Constructed(ber.Application(appModifyDNRequest, true), children...)

	env, err := c.do(ctx, "modifydn", op, req.Controls)
	if err != nil {
		return nil, err
	}
	result, err := decodeResponse(env, appModifyDNResponse, "modifydn")
	if err != nil {
		return nil, err
	}
	return result, result.Success("modifydn")
}
