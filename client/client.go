package client

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/hfetch/client/auth"
	"github.com/adamwoolhether/hfetch/client/conn"
	"github.com/adamwoolhether/hfetch/client/contenttype"
	"github.com/adamwoolhether/hfetch/client/meter"
	"github.com/adamwoolhether/hfetch/client/target"
	"github.com/adamwoolhether/hfetch/client/throttle"
)

// Client fetches targets over HTTP/1.0, one connection per request.
// A Client is safe for concurrent use; fetches share only its credential
// cache and progress counter.
type Client struct {
	logger *slog.Logger
	tracer trace.Tracer
	dialer *conn.Dialer

	userAgent       string
	accept          string
	proxy           *endpoint
	firewall        *endpoint
	maxRedirects    int
	maxAuthRetries  int
	followRedirects bool
	progressLog     bool

	auth     *auth.Coordinator
	counter  *meter.Counter
	types    *contenttype.Table
	resolver target.Resolver
	handlers map[string]Fetcher
}

// Build returns a Client configured by optFns.
func Build(optFns ...Option) (*Client, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	cfg := settings{
		UserAgent:      DefaultUserAgent,
		Accept:         DefaultAccept,
		MaxRedirects:   DefaultMaxRedirects,
		MaxAuthRetries: DefaultMaxAuthRetries,
		Proxy:          opts.proxy,
		Firewall:       opts.firewall,
	}
	if opts.userAgent != nil {
		cfg.UserAgent = *opts.userAgent
	}
	if opts.accept != nil {
		cfg.Accept = *opts.accept
	}
	if opts.maxRedirects != nil {
		cfg.MaxRedirects = *opts.maxRedirects
	}
	if opts.maxAuthRetries != nil {
		cfg.MaxAuthRetries = *opts.maxAuthRetries
	}
	if err := check(cfg); err != nil {
		return nil, fmt.Errorf("validating client options: %w", err)
	}

	client := &Client{
		logger:          slog.Default(),
		tracer:          noop.NewTracerProvider().Tracer(""),
		userAgent:       cfg.UserAgent,
		accept:          cfg.Accept,
		proxy:           cfg.Proxy,
		firewall:        cfg.Firewall,
		maxRedirects:    cfg.MaxRedirects,
		maxAuthRetries:  cfg.MaxAuthRetries,
		followRedirects: !opts.noFollowRedirects,
		progressLog:     opts.progressLog,
		counter:         meter.NewCounter(),
		types:           contenttype.Default(),
		resolver:        target.URLResolver{},
		handlers:        opts.handlers,
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}
	if opts.tracer != nil {
		client.tracer = opts.tracer
	}
	if opts.counter != nil {
		client.counter = opts.counter
	}
	if opts.types != nil {
		client.types = opts.types
	}
	if opts.resolver != nil {
		client.resolver = opts.resolver
	}

	cache := opts.cache
	if cache == nil {
		cache = auth.NewCache()
	}
	client.auth = auth.NewCoordinator(cache, opts.prompter)

	dial := opts.dial
	if opts.throttle != nil {
		d, err := throttle.NewDialFunc(opts.throttle.RPS, opts.throttle.Burst, func() *slog.Logger { return client.logger }, dial)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		dial = d
	}

	client.dialer = &conn.Dialer{
		Timeout:     opts.timeout,
		ReadTimeout: opts.readTimeout,
		TLSConfig:   opts.tlsConfig,
		Logger:      client.logger,
	}
	if dial != nil {
		client.dialer.DialContext = conn.DialFunc(dial)
	}

	return client, nil
}

// Progress returns the combined progress of every open metered body.
func (c *Client) Progress() meter.Progress {
	return c.counter.Snapshot()
}

// Credentials returns the cache holding credentials obtained by c.
func (c *Client) Credentials() *auth.Cache {
	return c.auth.Cache()
}

// Get fetches rawURL.
func (c *Client) Get(ctx context.Context, rawURL string, opts ...FetchOption) (*Response, error) {
	t, err := c.resolver.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}

	return c.Fetch(ctx, t, opts...)
}

// Post sends data to rawURL with the given content type.
func (c *Client) Post(ctx context.Context, rawURL, contentType string, data []byte, opts ...FetchOption) (*Response, error) {
	t, err := c.resolver.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}

	return c.Fetch(ctx, t.WithPost(data, contentType), opts...)
}
