package client

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

var (
	// ErrConnect is wrapped by [ConnectError]: the host could not be reached.
	ErrConnect = errors.New("connect failed")
	// ErrProtocol marks a malformed or rejected exchange, including 400 and 402.
	ErrProtocol = errors.New("protocol error")
	// ErrServer marks a 500 or 501 reply.
	ErrServer = errors.New("server error")
	// ErrRedirectLimit is returned once a fetch is redirected more often
	// than the configured bound.
	ErrRedirectLimit = errors.New("too many redirects")
	// ErrAuthenticationFailed is returned when a retry with credentials is
	// rejected for the same realm again.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrNotFound marks a 404 reply.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks a 403 reply.
	ErrForbidden = errors.New("forbidden")
	// ErrUnsupportedScheme is returned for a target whose scheme has no
	// registered [Fetcher].
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	// ErrUnexpectedStatusCode is returned by [Client.Download] for
	// replies outside the 2xx range.
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
)

// StatusError is returned for replies that end a fetch. StatusLine is the
// raw line the server sent, and Name the resource that was requested.
type StatusError struct {
	StatusCode int
	StatusLine string
	Name       string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%v: %q", e.Err, e.StatusLine)
	}

	return fmt.Sprintf("%v: %s: %q", e.Err, e.Name, e.StatusLine)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// ConnectError is returned when host:port cannot be reached, either
// because the dial failed or because the reply only said so in prose.
type ConnectError struct {
	Host       string
	Port       int
	StatusLine string
	Err        error
}

func (e *ConnectError) Error() string {
	addr := net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	if e.StatusLine != "" {
		return fmt.Sprintf("%v: %s: %q", ErrConnect, addr, e.StatusLine)
	}

	return fmt.Sprintf("%v: %s: %v", ErrConnect, addr, e.Err)
}

// Unwrap exposes both ErrConnect and the underlying cause.
func (e *ConnectError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConnect}
	}

	return []error{ErrConnect, e.Err}
}
