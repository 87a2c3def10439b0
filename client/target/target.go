// Package target describes what a fetch is aimed at: a URL broken into
// the parts an HTTP/1.0 request needs, plus optional post data and the
// referring URL.
package target

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// ErrInvalid is returned for URLs that cannot be fetched.
var ErrInvalid = errors.New("invalid target")

// Target is immutable per attempt; redirects produce a new Target.
type Target struct {
	Scheme   string
	Host     string
	Port     int
	Path     string
	RawQuery string
	PostData []byte
	PostType string
	Referrer string
}

// DefaultPort returns the well-known port for scheme, or 0.
func DefaultPort(scheme string) int {
	switch scheme {
	case "http":
		return 80
	case "https":
		return 443
	default:
		return 0
	}
}

// Native reports whether the scheme is fetched over HTTP by this module.
func (t Target) Native() bool {
	return t.Scheme == "http" || t.Scheme == "https"
}

// Secure reports whether the connection must be wrapped in TLS.
func (t Target) Secure() bool {
	return t.Scheme == "https"
}

// Method returns POST when the target carries post data, GET otherwise.
func (t Target) Method() string {
	if t.PostData != nil {
		return "POST"
	}

	return "GET"
}

// RequestURI returns the path and query as sent on a direct request line.
func (t Target) RequestURI() string {
	p := t.Path
	if p == "" {
		p = "/"
	}
	if t.RawQuery != "" {
		p += "?" + t.RawQuery
	}

	return p
}

// HostPort returns the host, with the port appended only when it is not
// the scheme's default. This is the Host header value.
func (t Target) HostPort() string {
	if t.Port == 0 || t.Port == DefaultPort(t.Scheme) {
		if strings.Contains(t.Host, ":") {
			return "[" + t.Host + "]"
		}
		return t.Host
	}

	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Addr returns host:port for dialing.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// String returns the absolute URL, as sent on a proxied request line.
func (t Target) String() string {
	return t.Scheme + "://" + t.HostPort() + t.RequestURI()
}

// Name identifies the requested resource in error messages: the URL
// without its query.
func (t Target) Name() string {
	p := t.Path
	if p == "" {
		p = "/"
	}

	return t.Scheme + "://" + t.HostPort() + p
}

// URL returns t as a *url.URL.
func (t Target) URL() *url.URL {
	u := &url.URL{
		Scheme:   t.Scheme,
		Host:     t.HostPort(),
		RawQuery: t.RawQuery,
	}
	if path, err := url.PathUnescape(t.Path); err == nil {
		u.Path = path
		u.RawPath = t.Path
	} else {
		u.Path = t.Path
	}

	return u
}

// WithPost returns a copy of t carrying data, sent with contentType.
func (t Target) WithPost(data []byte, contentType string) Target {
	if data == nil {
		data = []byte{}
	}
	t.PostData = data
	t.PostType = contentType

	return t
}

// WithoutPost returns a copy of t with any post data dropped.
func (t Target) WithoutPost() Target {
	t.PostData = nil
	t.PostType = ""

	return t
}

// Parse parses an absolute URL. http and https require a host; the port
// defaults per scheme, the host is lower-cased and IDNA-normalized, and
// an empty path becomes "/".
func Parse(raw string) (Target, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Target{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	return fromURL(u)
}

func fromURL(u *url.URL) (Target, error) {
	if u.Scheme == "" {
		return Target{}, fmt.Errorf("%w: %q has no scheme", ErrInvalid, u.String())
	}

	t := Target{
		Scheme:   strings.ToLower(u.Scheme),
		Path:     u.EscapedPath(),
		RawQuery: u.RawQuery,
	}
	if u.Opaque != "" {
		t.Path = u.Opaque
	}

	host, err := normalizeHost(u.Hostname())
	if err != nil {
		return Target{}, fmt.Errorf("%w: host %q: %w", ErrInvalid, u.Hostname(), err)
	}
	t.Host = host

	t.Port = DefaultPort(t.Scheme)
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return Target{}, fmt.Errorf("%w: port %q out of range", ErrInvalid, p)
		}
		t.Port = port
	}

	if t.Native() {
		if t.Host == "" {
			return Target{}, fmt.Errorf("%w: %q has no host", ErrInvalid, u.String())
		}
		if t.Path == "" {
			t.Path = "/"
		}
	}

	return t, nil
}

func normalizeHost(host string) (string, error) {
	if host == "" || net.ParseIP(host) != nil {
		return host, nil
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", err
	}

	return strings.ToLower(ascii), nil
}
