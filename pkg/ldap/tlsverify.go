package ldap

import "crypto/x509"

// x509VerifyOptions builds chain-only verification options (no DNSName, so
// hostname matching is skipped) for NoTLSVerifyHostnames.
func x509VerifyOptions(roots *x509.CertPool) x509.VerifyOptions {
	return x509.VerifyOptions{
		Roots:         roots,
		Intermediates: x509.NewCertPool(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
}
