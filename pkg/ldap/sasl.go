package ldap

// SASLMechanism produces the client tokens of a SASL exchange carried
// inside Bind (RFC 4422). The core shuttles opaque tokens only; concrete
// mechanisms (GSSAPI, DIGEST-MD5, ...) live outside this module and plug in
// through this interface.
type SASLMechanism interface {
	// Name returns the SASL mechanism name sent to the server, e.g.
	// "EXTERNAL" or "GSSAPI".
	Name() string

	// Step consumes the server's challenge (nil on the first round) and
	// returns the next client token. done reports that the mechanism
	// needs no further rounds from its side; the server may still answer
	// the final token with success or failure.
	Step(challenge []byte) (response []byte, done bool, err error)
}

// ExternalMechanism implements SASL EXTERNAL (RFC 4422 appendix A): the
// authentication identity is established by lower-layer credentials, such
// as a TLS client certificate or a Unix socket peer. The optional AuthzID
// requests a different authorization identity.
type ExternalMechanism struct {
	AuthzID string
}

// Name implements SASLMechanism.
func (m *ExternalMechanism) Name() string { return "EXTERNAL" }

// Step implements SASLMechanism. EXTERNAL is a single-round mechanism whose
// only token is the (possibly empty) authorization identity.
func (m *ExternalMechanism) Step(challenge []byte) ([]byte, bool, error) {
	return []byte(m.AuthzID), true, nil
}

// PlainMechanism implements SASL PLAIN (RFC 4616): authorization identity,
// authentication identity and password separated by NUL. Only use over TLS.
type PlainMechanism struct {
	AuthzID  string
	AuthcID  string
	Password string
}

// Name implements SASLMechanism.
func (m *PlainMechanism) Name() string { return "PLAIN" }

// Step implements SASLMechanism.
func (m *PlainMechanism) Step(challenge []byte) ([]byte, bool, error) {
	token := make([]byte, 0, len(m.AuthzID)+len(m.AuthcID)+len(m.Password)+2)
	token = append(token, m.AuthzID...)
	token = append(token, 0x00)
	token = append(token, m.AuthcID...)
	token = append(token, 0x00)
	token = append(token, m.Password...)
	return token, true, nil
}
