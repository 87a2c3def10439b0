package client

import (
	"context"
	"io"

	"github.com/adamwoolhether/hfetch/client/auth"
	"github.com/adamwoolhether/hfetch/client/response"
	"github.com/adamwoolhether/hfetch/client/target"
)

const (
	// DefaultUserAgent is sent when no [WithUserAgent] option is given.
	DefaultUserAgent = "hfetch/1.0"
	// DefaultAccept is sent when no [WithAccept] option is given.
	DefaultAccept = "text/html, image/gif, image/jpeg, *; q=.2, */*; q=.2"
	// DefaultMaxRedirects is the number of redirect hops followed before
	// a fetch fails with [ErrRedirectLimit].
	DefaultMaxRedirects = 3
	// DefaultMaxAuthRetries is the number of 401 replies a fetch answers
	// with a credential before it fails with [ErrAuthenticationFailed].
	DefaultMaxAuthRetries = 3
)

// Response is the outcome of a successful fetch. The caller must close Body.
type Response struct {
	// Target is the final target after redirects.
	Target target.Target
	Status response.Status
	Header response.Header
	// ContentType is "content/unknown" when the body is encoded and
	// should be saved rather than interpreted.
	ContentType string
	// ContentLength is -1 when the reply did not state it.
	ContentLength int64
	UsingProxy    bool
	// Body yields exactly ContentLength bytes when it is positive.
	Body io.ReadCloser
}

// Close closes the body.
func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}

	return r.Body.Close()
}

// Fetcher fetches targets of a scheme the client does not speak itself.
type Fetcher interface {
	Fetch(ctx context.Context, t target.Target) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, t target.Target) (*Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, t target.Target) (*Response, error) {
	return f(ctx, t)
}

// FetchOption is a functional option for [Client.Fetch].
type FetchOption func(*fetchOpts) error

type fetchOpts struct {
	credential auth.Credential
}

// WithCredential attaches cred to the first request of the fetch.
func WithCredential(cred auth.Credential) FetchOption {
	return func(o *fetchOpts) error {
		if cred.IsZero() {
			return errInvalidCredential
		}
		cred.Key = cred.Key.Normalize()
		o.credential = cred
		return nil
	}
}

// state names the steps of a fetch for logs and spans.
type state int

const (
	stateConnecting state = iota
	stateSending
	stateReadingStatus
	stateRedirecting
	stateAuthenticating
	stateDelivering
	stateDone
	stateFailed
)

var stateNames = [...]string{
	stateConnecting:     "connecting",
	stateSending:        "sending",
	stateReadingStatus:  "reading_status",
	stateRedirecting:    "redirecting",
	stateAuthenticating: "authenticating",
	stateDelivering:     "delivering",
	stateDone:           "done",
	stateFailed:         "failed",
}

func (s state) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}

	return "unknown"
}
