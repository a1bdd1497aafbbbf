package ldap

import (
	"context"

	"github.com/marmos91/dittodir/internal/protocol/ber"
)

// ModifyOp is the change kind of one modification.
type ModifyOp int64

const (
	ModifyAdd     ModifyOp = 0
	ModifyDelete  ModifyOp = 1
	ModifyReplace ModifyOp = 2

	// ModifyIncrement is the increment extension (RFC 4525).
	ModifyIncrement ModifyOp = 3
)

// Change is one modification applied by a Modify operation. Values are raw
// bytes, not strings: directory attribute values may be binary.
type Change struct {
	Op        ModifyOp
	Attribute Attribute
}

// ModifyRequest describes a Modify operation (RFC 4511 4.6). Build changes
// with the Add/Delete/Replace/Increment helpers or append to Changes
// directly.
type ModifyRequest struct {
	DN       string
	Changes  []Change
	Controls []Control
}

// NewModifyRequest starts an empty modify for the given entry.
func NewModifyRequest(dn string) *ModifyRequest {
	return &ModifyRequest{DN: dn}
}

// Add appends an add-values change.
func (r *ModifyRequest) Add(name string, values ...[]byte) *ModifyRequest {
	return r.change(ModifyAdd, name, values)
}

// Delete appends a delete-values change; no values deletes the attribute.
func (r *ModifyRequest) Delete(name string, values ...[]byte) *ModifyRequest {
	return r.change(ModifyDelete, name, values)
}

// Replace appends a replace-values change; no values removes the attribute.
func (r *ModifyRequest) Replace(name string, values ...[]byte) *ModifyRequest {
	return r.change(ModifyReplace, name, values)
}

// Increment appends an increment change (RFC 4525) with the given delta.
func (r *ModifyRequest) Increment(name string, delta []byte) *ModifyRequest {
	return r.change(ModifyIncrement, name, [][]byte{delta})
}

func (r *ModifyRequest) change(op ModifyOp, name string, values [][]byte) *ModifyRequest {
	r.Changes = append(r.Changes, Change{Op: op, Attribute: Attribute{Name: name, Values: values}})
	return r
}

// Modify applies the request's changes atomically server-side.
func (c *Conn) Modify(ctx context.Context, req *ModifyRequest) (*Result, error) {
	changes := make([]ber.Element, len(req.Changes))
	for i, change := range req.Changes {
		changes[i] = ber.NewSequence(
			ber.NewEnumerated(int64(change.Op)),
			change.Attribute.encode(),
		)
	}
	op := ber.Constructed(ber.Application(appModifyRequest, true),
		ber.NewString(req.DN),
		ber.NewSequence(changes...),
	)

	env, err := c.do(ctx, "modify", op, req.Controls)
	if err != nil {
		return nil, err
	}
	result, err := decodeResponse(env, appModifyResponse, "modify")
	if err != nil {
		return nil, err
	}
	return result, result.Success("modify")
}
