package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/hfetch/client/auth"
	"github.com/adamwoolhether/hfetch/client/conn"
	"github.com/adamwoolhether/hfetch/client/response"
	"github.com/adamwoolhether/hfetch/client/target"
)

// Fetch requests t and returns the body of the final reply. Redirects and
// authentication challenges are answered internally; every other failure
// is returned to the caller. The caller must close the returned body.
// Cancelling ctx closes the connection, failing pending body reads.
func (c *Client) Fetch(ctx context.Context, t target.Target, optFns ...FetchOption) (*Response, error) {
	var opts fetchOpts
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying fetch option: %w", err)
		}
	}

	ctx, span := c.tracer.Start(ctx, "hfetch.fetch")
	defer span.End()

	id := span.SpanContext().TraceID().String()
	if !span.SpanContext().TraceID().IsValid() {
		id = uuid.New().String()
	}
	span.SetAttributes(attribute.String("fetch.id", id), attribute.String("url.full", t.String()))

	f := &fetch{
		client:     c,
		logger:     c.logger.With("fetch_id", id),
		credential: opts.credential,
		tried:      make(map[auth.Key]auth.Credential),
	}

	resp, err := f.run(ctx, t)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.logger.Info("fetch failed", "target", t.String(), "state", stateFailed, "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.Status.Code))
	f.logger.Info("fetch complete", "target", resp.Target.String(), "state", stateDone,
		"status", resp.Status.Code, "content_type", resp.ContentType, "content_length", resp.ContentLength)

	return resp, nil
}

// fetch is the state of one call to Fetch. It is owned by a single
// goroutine.
type fetch struct {
	client *Client
	logger *slog.Logger

	// credential is attached to the next request.
	credential auth.Credential
	// tried holds the credential retried for each protection space, so
	// every distinct realm gets exactly one retry.
	tried       map[auth.Key]auth.Credential
	redirects   int
	authRetries int
	attempts    int
}

// exchange is one request and the status and headers of its reply. The
// connection stays open so the body can be delivered.
type exchange struct {
	target     target.Target
	conn       *conn.Conn
	resp       *response.Response
	credential auth.Credential
	usingProxy bool
}

func (f *fetch) run(ctx context.Context, t target.Target) (*Response, error) {
	for {
		if !t.Native() {
			return f.delegate(ctx, t)
		}

		ex, err := f.exchange(ctx, t)
		if err != nil {
			return nil, err
		}

		next, resp, err := f.dispatch(ctx, ex)
		if err != nil {
			ex.conn.Close()
			return nil, err
		}
		if resp != nil {
			return resp, nil
		}

		t = next
	}
}

// exchange opens a connection for t, sends the request and reads the
// status line and headers.
func (f *fetch) exchange(ctx context.Context, t target.Target) (*exchange, error) {
	f.attempts++

	ctx, span := f.client.tracer.Start(ctx, "hfetch.attempt", trace.WithAttributes(
		attribute.Int("attempt", f.attempts),
		attribute.String("url.full", t.String()),
	))
	defer span.End()

	f.logger.Debug("attempt", "state", stateConnecting, "target", t.String(), "attempt", f.attempts)

	c, usingProxy, absolute, err := f.connect(ctx, t)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	ex := &exchange{
		target:     t,
		conn:       c,
		credential: f.credential,
		usingProxy: usingProxy,
	}

	f.logger.Debug("attempt", "state", stateSending, "method", t.Method(), "proxy", usingProxy)

	req := request{
		target:     t,
		absolute:   absolute,
		userAgent:  f.client.userAgent,
		accept:     f.client.accept,
		credential: f.credential,
		extra:      propagated(ctx),
	}
	if err := req.write(c); err != nil {
		c.Close()
		span.RecordError(err)
		return nil, fmt.Errorf("sending request to %s: %w", t.Addr(), err)
	}

	f.logger.Debug("attempt", "state", stateReadingStatus)

	parsed, err := response.Parse(c)
	if err != nil {
		c.Close()
		span.RecordError(err)
		return nil, readError(t, parsed, err)
	}
	ex.resp = parsed

	if parsed.Status.Noisy {
		f.logger.Warn("status line preceded by noise", "first", parsed.Status.First, "status", parsed.Status.Line)
	}
	span.SetAttributes(attribute.Int("http.status_code", parsed.Status.Code))

	return ex, nil
}

// connect opens a connection for t: through the proxy when one is
// configured, otherwise directly, falling back to the firewall when the
// host name does not resolve. absolute reports whether the request line
// must carry the full URL.
func (f *fetch) connect(ctx context.Context, t target.Target) (c *conn.Conn, usingProxy, absolute bool, err error) {
	if p := f.client.proxy; p != nil {
		c, err := f.viaProxy(ctx, p, t)
		if err != nil {
			return nil, false, false, &ConnectError{Host: p.Host, Port: p.Port, Err: err}
		}
		return c, true, !t.Secure(), nil
	}

	d := f.client.dialer
	if t.Secure() {
		c, err = d.OpenTLS(ctx, t.Host, t.Port)
	} else {
		c, err = d.Open(ctx, t.Host, t.Port)
	}
	if err == nil {
		return c, false, false, nil
	}

	if fw := f.client.firewall; fw != nil && conn.IsNameResolution(err) {
		f.logger.Warn("direct connection failed, retrying through firewall",
			"target", t.Addr(), "firewall", fw.Host, "port", fw.Port, "error", err)

		c, err := f.viaProxy(ctx, fw, t)
		if err != nil {
			return nil, false, false, &ConnectError{Host: fw.Host, Port: fw.Port, Err: err}
		}
		return c, true, !t.Secure(), nil
	}

	return nil, false, false, &ConnectError{Host: t.Host, Port: t.Port, Err: err}
}

func (f *fetch) viaProxy(ctx context.Context, p *endpoint, t target.Target) (*conn.Conn, error) {
	if t.Secure() {
		return f.client.dialer.OpenTunnel(ctx, p.Host, p.Port, t.Host, t.Port, true)
	}

	return f.client.dialer.Open(ctx, p.Host, p.Port)
}

// dispatch decides what follows a reply: a new target to request, a
// response to deliver, or an error.
func (f *fetch) dispatch(ctx context.Context, ex *exchange) (target.Target, *Response, error) {
	st := ex.resp.Status
	t := ex.target

	if !st.Recognized() {
		return f.unrecognized(ex)
	}

	switch st.Code {
	case 301, 302, 303, 307, 308:
		loc := strings.TrimSpace(ex.resp.Header.Get("Location"))
		if loc == "" || !f.client.followRedirects {
			return f.deliver(ex)
		}
		next, err := f.redirect(ex, loc)
		return next, nil, err

	case 401:
		return f.authenticate(ctx, ex)

	case 400, 402:
		return target.Target{}, nil, &StatusError{StatusCode: st.Code, StatusLine: st.Line, Name: t.Name(), Err: ErrProtocol}

	case 500, 501:
		return target.Target{}, nil, &StatusError{StatusCode: st.Code, StatusLine: st.Line, Name: t.Name(), Err: ErrServer}

	case 403:
		return target.Target{}, nil, &StatusError{StatusCode: st.Code, StatusLine: st.Line, Name: t.Name(), Err: ErrForbidden}

	case 404:
		return target.Target{}, nil, &StatusError{StatusCode: st.Code, StatusLine: st.Line, Name: t.Name(), Err: ErrNotFound}
	}

	return f.deliver(ex)
}

// unrecognized recovers from a reply without a status line. Prose
// reporting an unreachable host becomes a ConnectError; a reply that
// still states its length is delivered as is.
func (f *fetch) unrecognized(ex *exchange) (target.Target, *Response, error) {
	first := ex.resp.Status.First
	lower := strings.ToLower(first)

	for _, marker := range []string{"hostname unknown", "unknown host", "refused"} {
		if strings.Contains(lower, marker) {
			return target.Target{}, nil, &ConnectError{Host: ex.target.Host, Port: ex.target.Port, StatusLine: first}
		}
	}

	if _, ok := ex.resp.Header.Lookup("Content-Length"); ok {
		f.logger.Warn("delivering reply without status line", "first", first)
		return f.deliver(ex)
	}

	return target.Target{}, nil, &StatusError{StatusCode: response.Unrecognized, StatusLine: first, Name: ex.target.Name(), Err: ErrProtocol}
}

// redirect closes the current connection and returns the target named by
// loc. 307 and 308 keep the method and body; the others become a GET.
func (f *fetch) redirect(ex *exchange, loc string) (target.Target, error) {
	ex.conn.Close()

	f.redirects++
	if f.redirects > f.client.maxRedirects {
		return target.Target{}, fmt.Errorf("%w: %d hops from %s", ErrRedirectLimit, f.client.maxRedirects, ex.target.Name())
	}

	next, err := f.client.resolver.Resolve(ex.target, loc)
	if err != nil {
		return target.Target{}, &StatusError{
			StatusCode: ex.resp.Status.Code,
			StatusLine: ex.resp.Status.Line,
			Name:       ex.target.Name(),
			Err:        fmt.Errorf("%w: bad Location %q: %w", ErrProtocol, loc, err),
		}
	}

	if code := ex.resp.Status.Code; (code == 307 || code == 308) && ex.target.PostData != nil {
		next = next.WithPost(ex.target.PostData, ex.target.PostType)
	}

	if next.Host != ex.target.Host || next.Port != ex.target.Port || next.Scheme != ex.target.Scheme {
		f.credential = auth.Credential{}
	}

	f.logger.Info("following redirect", "state", stateRedirecting,
		"status", ex.resp.Status.Code, "from", ex.target.String(), "location", next.String(), "hop", f.redirects)

	return next, nil
}

// authenticate answers a 401. A realm that already failed with a
// credential invalidates it and ends the fetch; otherwise a credential is
// looked up or prompted for and the same target is requested again. When
// none can be had the 401 itself is delivered.
func (f *fetch) authenticate(ctx context.Context, ex *exchange) (target.Target, *Response, error) {
	ch, ok := challenge(ex.resp.Header)
	if !ok {
		f.logger.Warn("no usable authentication challenge", "www_authenticate", ex.resp.Header.Values("WWW-Authenticate"))
		return f.deliver(ex)
	}

	key := auth.Key{Host: strings.ToLower(ex.target.Host), Port: ex.target.Port, Realm: ch.Realm}

	failed := func(cred auth.Credential) (target.Target, *Response, error) {
		if f.client.auth.Cache().Invalidate(cred) {
			f.logger.Info("credential invalidated", "host", key.Host, "port", key.Port, "realm", key.Realm)
		}
		return target.Target{}, nil, &StatusError{
			StatusCode: ex.resp.Status.Code,
			StatusLine: ex.resp.Status.Line,
			Name:       ex.target.Name(),
			Err:        ErrAuthenticationFailed,
		}
	}

	if sent := ex.credential; !sent.IsZero() && sent.Host == key.Host && sent.Port == key.Port &&
		(sent.Realm == key.Realm || sent.Realm == "") {
		return failed(sent)
	}
	if prev, ok := f.tried[key]; ok {
		return failed(prev)
	}
	if f.authRetries >= f.client.maxAuthRetries {
		f.logger.Warn("authentication retry limit reached", "limit", f.client.maxAuthRetries, "realm", key.Realm)
		return failed(auth.Credential{})
	}

	f.logger.Info("authentication required", "state", stateAuthenticating, "host", key.Host, "port", key.Port, "realm", key.Realm)

	cred, ok, err := f.client.auth.Obtain(ctx, ch.Scheme, key)
	if err != nil {
		return target.Target{}, nil, fmt.Errorf("obtaining credentials for %s: %w", key, err)
	}
	if !ok {
		return f.deliver(ex)
	}

	ex.conn.Close()
	f.authRetries++
	f.tried[key] = cred
	f.credential = cred

	return ex.target, nil, nil
}

// challenge returns the first WWW-Authenticate challenge with a scheme
// the client can answer.
func challenge(h response.Header) (auth.Challenge, bool) {
	for _, v := range h.Values("WWW-Authenticate") {
		ch, err := auth.ParseChallenge(v)
		if err != nil || !ch.Scheme.Supported() {
			continue
		}
		return ch, true
	}

	return auth.Challenge{}, false
}

// delegate hands a target of a foreign scheme to its registered Fetcher.
func (f *fetch) delegate(ctx context.Context, t target.Target) (*Response, error) {
	h, ok := f.client.handlers[t.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrUnsupportedScheme, t.Scheme, t.String())
	}

	f.logger.Info("delegating to scheme handler", "scheme", t.Scheme, "target", t.String())

	return h.Fetch(ctx, t)
}

// readError describes a failure while reading the status and headers,
// keeping whatever first line arrived.
func readError(t target.Target, parsed *response.Response, err error) error {
	var first string
	if parsed != nil {
		first = parsed.Status.First
	}

	if errors.Is(err, response.ErrEmptyResponse) || errors.Is(err, response.ErrHeaderTooLarge) {
		return &StatusError{StatusCode: response.Unrecognized, StatusLine: first, Name: t.Name(), Err: fmt.Errorf("%w: %w", ErrProtocol, err)}
	}
	if first == "" {
		return fmt.Errorf("reading reply from %s: %w", t.Addr(), err)
	}

	return fmt.Errorf("reading reply from %s after %q: %w", t.Addr(), first, err)
}
