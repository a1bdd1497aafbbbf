package ldap

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodir/internal/protocol/ber"
	"github.com/marmos91/dittodir/internal/transport"
)

// fakeServer is a single-connection scripted LDAP server: every inbound
// message except an UnbindRequest is handed to the test's handler, which
// replies through the serverConn. All requests, the Unbind included, are
// recorded for invariant checks.
type fakeServer struct {
	t  *testing.T
	ln net.Listener

	mu       sync.Mutex
	requests []*envelope

	handler func(sc *serverConn, env *envelope)
}

// serverConn is the server side of the accepted connection.
type serverConn struct {
	t      *testing.T
	framer *transport.Framer
	raw    net.Conn
}

func newFakeServer(t *testing.T, handler func(sc *serverConn, env *envelope)) *fakeServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeServer{t: t, ln: ln, handler: handler}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeServer) addr() string { return s.ln.Addr().String() }

func (s *fakeServer) serve() {
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	sc := &serverConn{t: s.t, framer: transport.NewFramer(conn, 0), raw: conn}
	defer sc.framer.Close()

	for {
		pdu, err := sc.framer.ReadPDU()
		if err != nil {
			return
		}
		env, err := parseEnvelope(pdu)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.requests = append(s.requests, env)
		s.mu.Unlock()

		// An Unbind has no response, and every test's cleanup sends one
		// through Close, so handlers never see it.
		if env.opTag() == appUnbindRequest {
			continue
		}
		s.handler(sc, env)
	}
}

// seen returns the request ops recorded so far.
func (s *fakeServer) seen() []*envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*envelope, len(s.requests))
	copy(out, s.requests)
	return out
}

// waitFor polls until a request with the given application tag arrives.
func (s *fakeServer) waitFor(tag uint32, timeout time.Duration) *envelope {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, env := range s.seen() {
			if env.opTag() == tag {
				return env
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

// send writes one LDAPMessage to the client.
func (sc *serverConn) send(id uint32, op ber.Element, controls []Control) {
	if err := sc.framer.WritePDU(encodeMessage(id, op, controls)); err != nil {
		sc.t.Logf("fake server write: %v", err)
	}
}

// upgradeTLS wraps the server side of the stream after a StartTLS grant.
func (sc *serverConn) upgradeTLS(cfg *tls.Config) {
	err := sc.framer.Upgrade(func(nc net.Conn) (net.Conn, error) {
		tlsConn := tls.Server(nc, cfg)
		if err := tlsConn.Handshake(); err != nil {
			return nil, err
		}
		return tlsConn, nil
	})
	if err != nil {
		sc.t.Logf("fake server tls upgrade: %v", err)
	}
}

// ============================================================================
// Response builders
// ============================================================================

// resultOp builds a response op carrying a bare LdapResult.
func resultOp(tag, rc uint32, matchedDN, diag string) ber.Element {
	return ber.Constructed(ber.Application(tag, true),
		ber.NewEnumerated(int64(rc)),
		ber.NewString(matchedDN),
		ber.NewString(diag),
	)
}

// entryOp builds a SearchResultEntry with string attribute values.
func entryOp(dn string, attrs map[string][]string) ber.Element {
	attrElems := make([]ber.Element, 0, len(attrs))
	for name, values := range attrs {
		valElems := make([]ber.Element, len(values))
		for i, v := range values {
			valElems[i] = ber.NewString(v)
		}
		attrElems = append(attrElems, ber.NewSequence(ber.NewString(name), ber.NewSet(valElems...)))
	}
	return ber.Constructed(ber.Application(appSearchResultEntry, true),
		ber.NewString(dn),
		ber.NewSequence(attrElems...),
	)
}

// binaryEntryOp builds a SearchResultEntry with one raw-bytes attribute.
func binaryEntryOp(dn, attr string, values ...[]byte) ber.Element {
	valElems := make([]ber.Element, len(values))
	for i, v := range values {
		valElems[i] = ber.NewOctetString(v)
	}
	return ber.Constructed(ber.Application(appSearchResultEntry, true),
		ber.NewString(dn),
		ber.NewSequence(ber.NewSequence(ber.NewString(attr), ber.NewSet(valElems...))),
	)
}

// referenceOp builds a SearchResultReference.
func referenceOp(uris ...string) ber.Element {
	children := make([]ber.Element, len(uris))
	for i, uri := range uris {
		children[i] = ber.NewString(uri)
	}
	return ber.Constructed(ber.Application(appSearchResultReference, true), children...)
}

// extendedOp builds an ExtendedResponse with optional name and value.
func extendedOp(rc uint32, diag, name string, value []byte) ber.Element {
	children := []ber.Element{
		ber.NewEnumerated(int64(rc)),
		ber.NewString(""),
		ber.NewString(diag),
	}
	if name != "" {
		children = append(children, ber.Primitive(ber.ContextPrimitive(10), []byte(name)))
	}
	if value != nil {
		children = append(children, ber.Primitive(ber.ContextPrimitive(11), value))
	}
	return ber.Constructed(ber.Application(appExtendedResponse, true), children...)
}

// ============================================================================
// TLS test material
// ============================================================================

// newTestTLSConfigs builds a self-signed server config and a client config
// trusting it.
func newTestTLSConfigs(t *testing.T) (server, client *tls.Config) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	pool.AddCert(leaf)

	server = &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
	}
	client = &tls.Config{RootCAs: pool, ServerName: "127.0.0.1"}
	return server, client
}
