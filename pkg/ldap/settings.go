package ldap

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
)

// Defaults applied by Dial for zero-valued settings.
const (
	DefaultConnTimeout      = 10 * time.Second
	DefaultSearchQueueDepth = 64
)

// Settings configures a connection. The zero value is usable; Dial fills in
// defaults. Validate rejects inconsistent combinations before any network
// traffic.
type Settings struct {
	// ConnTimeout bounds TCP/UDS connection establishment.
	ConnTimeout time.Duration `validate:"min=0"`

	// Timeout is the default per-operation deadline. Zero means no
	// deadline; WithTimeout overrides per call.
	Timeout time.Duration `validate:"min=0"`

	// TLSConfig is used for ldaps and StartTLS. Nil selects a default
	// config with the dialed hostname as ServerName.
	TLSConfig *tls.Config

	// NoTLSVerify disables certificate chain and hostname verification.
	NoTLSVerify bool

	// NoTLSVerifyHostnames keeps chain verification but skips hostname
	// matching. Ignored when NoTLSVerify is set.
	NoTLSVerifyHostnames bool

	// StartTLS upgrades ldap:// connections immediately after dialing.
	StartTLS bool

	// Resolver overrides the system resolver for hostname lookup.
	Resolver *net.Resolver

	// DialFunc replaces the built-in dialer entirely, for proxies and
	// tests.
	DialFunc func(network, addr string) (net.Conn, error)

	// MaxPDUSize bounds inbound PDUs. Zero selects the transport default.
	MaxPDUSize int `validate:"min=0"`

	// SearchQueueDepth bounds each search stream's entry queue. When the
	// consumer stalls with a full queue, backpressure reaches the socket.
	SearchQueueDepth int `validate:"min=0"`

	// MetricsRegisterer, when set, registers the driver's Prometheus
	// collectors (use prometheus.DefaultRegisterer for the global
	// registry).
	MetricsRegisterer prometheus.Registerer
}

var settingsValidator = validator.New()

// Validate checks the settings for inconsistencies.
func (s *Settings) Validate() error {
	if err := settingsValidator.Struct(s); err != nil {
		return fmt.Errorf("ldap: invalid settings: %w", err)
	}
	return nil
}

// withDefaults returns a copy with zero values replaced by defaults.
func (s Settings) withDefaults() Settings {
	if s.ConnTimeout == 0 {
		s.ConnTimeout = DefaultConnTimeout
	}
	if s.SearchQueueDepth == 0 {
		s.SearchQueueDepth = DefaultSearchQueueDepth
	}
	return s
}

// tlsConfig derives the TLS client config for the given server host.
func (s *Settings) tlsConfig(host string) *tls.Config {
	var cfg *tls.Config
	if s.TLSConfig != nil {
		cfg = s.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	if s.NoTLSVerify {
		cfg.InsecureSkipVerify = true
	} else if s.NoTLSVerifyHostnames {
		// Keep chain verification but skip the hostname match: verify
		// manually against an empty DNSName.
		cfg.InsecureSkipVerify = true
		roots := cfg.RootCAs
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			opts := x509VerifyOptions(roots)
			for _, cert := range cs.PeerCertificates[1:] {
				opts.Intermediates.AddCert(cert)
			}
			_, err := cs.PeerCertificates[0].Verify(opts)
			return err
		}
	}
	return cfg
}
