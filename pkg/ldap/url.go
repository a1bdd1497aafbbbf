package ldap

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Default ports per scheme.
const (
	DefaultPort    = 389
	DefaultTLSPort = 636
)

// URLExtension is one extension from the trailing field of an LDAP URL.
type URLExtension struct {
	Name     string
	Value    string
	Critical bool
}

// URL is a parsed RFC 4516 LDAP URL:
//
//	scheme://host[:port][/dn[?attrs[?scope[?filter[?extensions]]]]]
//
// For ldapi URLs the authority component is a percent-encoded Unix socket
// path exposed in SocketPath; Host and Port are empty.
type URL struct {
	Scheme     string
	Host       string
	Port       int
	SocketPath string

	DN         string
	Attributes []string
	Scope      Scope
	// HasScope reports whether the URL named a scope explicitly; the
	// RFC default otherwise is base.
	HasScope   bool
	Filter     string
	Extensions []URLExtension
}

// Addr returns the dial address for TCP schemes.
func (u *URL) Addr() string {
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}

// UseTLS reports whether the scheme requires implicit TLS.
func (u *URL) UseTLS() bool { return u.Scheme == "ldaps" }

func urlErr(format string, args ...any) error {
	return &Error{Kind: KindURLParse, Err: fmt.Errorf(format, args...)}
}

// ParseURL parses an RFC 4516 LDAP URL. Supported schemes: ldap (default
// port 389), ldaps (implicit TLS, default port 636) and ldapi (Unix domain
// socket with percent-encoded path).
func ParseURL(raw string) (*URL, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return nil, urlErr("missing scheme in %q", raw)
	}
	scheme = strings.ToLower(scheme)

	u := &URL{Scheme: scheme}

	authority, tail, hasPath := strings.Cut(rest, "/")

	switch scheme {
	case "ldap", "ldaps":
		if err := parseAuthority(u, authority); err != nil {
			return nil, err
		}
	case "ldapi":
		path, err := url.PathUnescape(authority)
		if err != nil {
			return nil, urlErr("bad socket path %q: %v", authority, err)
		}
		u.SocketPath = path
	default:
		return nil, urlErr("unsupported scheme %q", scheme)
	}

	if !hasPath {
		return u, nil
	}
	return u, parseURLTail(u, tail)
}

func parseAuthority(u *URL, authority string) error {
	host := authority
	port := DefaultPort
	if u.Scheme == "ldaps" {
		port = DefaultTLSPort
	}

	// Bracketed IPv6 literal, optionally followed by :port.
	if strings.HasPrefix(authority, "[") {
		end := strings.IndexByte(authority, ']')
		if end < 0 {
			return urlErr("unterminated IPv6 literal in %q", authority)
		}
		host = authority[1:end]
		if rest := authority[end+1:]; rest != "" {
			if !strings.HasPrefix(rest, ":") {
				return urlErr("junk after IPv6 literal in %q", authority)
			}
			p, err := strconv.Atoi(rest[1:])
			if err != nil || p < 1 || p > 65535 {
				return urlErr("bad port in %q", authority)
			}
			port = p
		}
	} else if h, p, ok := strings.Cut(authority, ":"); ok {
		host = h
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return urlErr("bad port in %q", authority)
		}
		port = n
	}

	if host == "" {
		return urlErr("missing host")
	}
	u.Host = host
	u.Port = port
	return nil
}

// parseURLTail handles the dn?attrs?scope?filter?extensions fields.
func parseURLTail(u *URL, tail string) error {
	fields := strings.SplitN(tail, "?", 5)

	dn, err := url.PathUnescape(fields[0])
	if err != nil {
		return urlErr("bad dn %q: %v", fields[0], err)
	}
	u.DN = dn

	if len(fields) > 1 && fields[1] != "" {
		for _, attr := range strings.Split(fields[1], ",") {
			unescaped, err := url.PathUnescape(attr)
			if err != nil {
				return urlErr("bad attribute %q: %v", attr, err)
			}
			u.Attributes = append(u.Attributes, unescaped)
		}
	}

	if len(fields) > 2 && fields[2] != "" {
		switch strings.ToLower(fields[2]) {
		case "base":
			u.Scope = ScopeBaseObject
		case "one":
			u.Scope = ScopeSingleLevel
		case "sub":
			u.Scope = ScopeWholeSubtree
		default:
			return urlErr("unknown scope %q", fields[2])
		}
		u.HasScope = true
	}

	if len(fields) > 3 && fields[3] != "" {
		filter, err := url.PathUnescape(fields[3])
		if err != nil {
			return urlErr("bad filter %q: %v", fields[3], err)
		}
		u.Filter = filter
	}

	if len(fields) > 4 && fields[4] != "" {
		for _, ext := range strings.Split(fields[4], ",") {
			parsed, err := parseURLExtension(ext)
			if err != nil {
				return err
			}
			u.Extensions = append(u.Extensions, parsed)
		}
	}
	return nil
}

func parseURLExtension(ext string) (URLExtension, error) {
	var e URLExtension
	if strings.HasPrefix(ext, "!") {
		e.Critical = true
		ext = ext[1:]
	}
	name, value, _ := strings.Cut(ext, "=")
	unescapedName, err := url.PathUnescape(name)
	if err != nil {
		return e, urlErr("bad extension name %q: %v", name, err)
	}
	unescapedValue, err := url.PathUnescape(value)
	if err != nil {
		return e, urlErr("bad extension value %q: %v", value, err)
	}
	e.Name = unescapedName
	e.Value = unescapedValue
	if e.Name == "" {
		return e, urlErr("empty extension name in %q", ext)
	}
	return e, nil
}
