package ldap

import (
	"context"

	"github.com/marmos91/dittodir/internal/protocol/ber"
)

// ldapVersion is the protocol version sent in every BindRequest.
const ldapVersion = 3

// BindResult is the outcome of a Bind: the LdapResult plus any server SASL
// credentials (challenge or final verification token).
type BindResult struct {
	Result
	ServerSASLCreds []byte
}

// Bind performs a simple bind (RFC 4511 4.2). An empty DN and password is
// an anonymous bind; an empty password with a non-empty DN is an
// unauthenticated bind, which many servers reject.
//
// While the bind is outstanding, the driver rejects concurrent submissions
// with ErrBindInProgress, since RFC 4511 forbids other operations during a
// bind.
func (c *Conn) Bind(ctx context.Context, dn, password string) (*BindResult, error) {
	op := ber.Constructed(ber.Application(appBindRequest, true),
		ber.NewInteger(ldapVersion),
		ber.NewString(dn),
		ber.Primitive(ber.ContextPrimitive(0), []byte(password)),
	)
	env, err := c.doBind(ctx, op)
	if err != nil {
		return nil, err
	}
	br, err := decodeBindResponse(env)
	if err != nil {
		return nil, err
	}
	return br, br.Success("bind")
}

// BindSASL performs a SASL bind (RFC 4511 4.2, RFC 4422), driving the
// mechanism through as many challenge rounds as the server requires. The
// core only shuttles opaque tokens; the mechanism computes them.
func (c *Conn) BindSASL(ctx context.Context, mech SASLMechanism) (*BindResult, error) {
	var challenge []byte
	first := true

	for {
		token, _, err := mech.Step(challenge)
		if err != nil {
			return nil, &Error{Kind: KindProtocol, Op: "bind", Err: err}
		}

		children := []ber.Element{ber.NewString(mech.Name())}
		// credentials OPTIONAL: always present after the first round,
		// and on the first round whenever the mechanism produced one
		// (an empty initial response is distinct from none, RFC 4422).
		if token != nil || !first {
			children = append(children, ber.NewOctetString(token))
		}
		op := ber.Constructed(ber.Application(appBindRequest, true),
			ber.NewInteger(ldapVersion),
			ber.NewString(""),
			ber.Constructed(ber.ContextConstructed(3), children...),
		)

		env, err := c.doBind(ctx, op)
		if err != nil {
			return nil, err
		}
		br, err := decodeBindResponse(env)
		if err != nil {
			return nil, err
		}

		if br.Code == ResultSaslBindInProgress {
			challenge = br.ServerSASLCreds
			first = false
			continue
		}
		return br, br.Success("bind")
	}
}

// doBind submits a bind with the exclusive gate set.
func (c *Conn) doBind(ctx context.Context, op ber.Element) (*envelope, error) {
	return c.doSubmission(ctx, &submission{
		opName:    "bind",
		op:        op,
		controls:  c.mergeControls(nil),
		timeout:   c.reqTimeout,
		exclusive: true,
		resp:      make(chan *opOutcome, 1),
		idCh:      make(chan submitResult, 1),
	})
}

func decodeBindResponse(env *envelope) (*BindResult, error) {
	if env.opTag() != appBindResponse {
		return nil, protocolErr("bind", "unexpected response tag %s", env.Op.Tag)
	}
	result, err := decodeResult(env.Op)
	if err != nil {
		return nil, err
	}
	result.Controls = env.Controls

	br := &BindResult{Result: *result}
	// serverSaslCreds [7] OCTET STRING OPTIONAL
	for _, child := range env.Op.Children[3:] {
		if child.Tag == ber.ContextPrimitive(7) {
			br.ServerSASLCreds = child.Bytes()
		}
	}
	return br, nil
}
