package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/hfetch/client/auth"
	"github.com/adamwoolhether/hfetch/client/contenttype"
	"github.com/adamwoolhether/hfetch/client/meter"
	"github.com/adamwoolhether/hfetch/client/target"
	"github.com/adamwoolhether/hfetch/client/throttle"
)

var errInvalidCredential = errors.New("credential must carry an authorization value")

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	logger            *slog.Logger
	tracer            trace.Tracer
	userAgent         *string
	accept            *string
	timeout           time.Duration
	readTimeout       time.Duration
	throttle          *throttle.Config
	proxy             *endpoint
	firewall          *endpoint
	maxRedirects      *int
	maxAuthRetries    *int
	noFollowRedirects bool
	cache             *auth.Cache
	prompter          auth.Prompter
	counter           *meter.Counter
	types             *contenttype.Table
	resolver          target.Resolver
	handlers          map[string]Fetcher
	dial              throttle.DialFunc
	tlsConfig         *tls.Config
	progressLog       bool
}

// endpoint is a proxy or firewall address.
type endpoint struct {
	Host string `json:"host" validate:"required,hostname_rfc1123|ip"`
	Port int    `json:"port" validate:"gte=1,lte=65535"`
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithTracer records a span per fetch and per attempt. The default tracer
// discards them.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}

// WithUserAgent replaces the User-Agent header sent with every request.
func WithUserAgent(header string) Option {
	return func(o *options) error {
		o.userAgent = &header
		return nil
	}
}

// WithAccept replaces the Accept header sent with every request.
func WithAccept(header string) Option {
	return func(o *options) error {
		o.accept = &header
		return nil
	}
}

// WithTimeout bounds each connection attempt. By default a connect may
// take as long as the operating system allows.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		o.timeout = d
		return nil
	}
}

// WithReadTimeout fails a read that makes no progress for d. By default
// reads wait indefinitely.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("read timeout must not be negative")
		}
		o.readTimeout = d
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting of connection opens with
// the given rate per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(o *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		o.throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithProxy sends every request through the proxy at host:port.
func WithProxy(host string, port int) Option {
	return func(o *options) error {
		o.proxy = &endpoint{Host: strings.ToLower(host), Port: port}
		return nil
	}
}

// WithFirewall retries through the proxy at host:port when a target's
// host name cannot be resolved directly.
func WithFirewall(host string, port int) Option {
	return func(o *options) error {
		o.firewall = &endpoint{Host: strings.ToLower(host), Port: port}
		return nil
	}
}

// WithMaxRedirects sets how many redirect hops a fetch follows.
func WithMaxRedirects(n int) Option {
	return func(o *options) error {
		o.maxRedirects = &n
		return nil
	}
}

// WithMaxAuthRetries sets how many 401 replies a fetch answers with a
// credential, across all protection spaces.
func WithMaxAuthRetries(n int) Option {
	return func(o *options) error {
		o.maxAuthRetries = &n
		return nil
	}
}

// WithNoFollowRedirects delivers redirect replies to the caller instead
// of following them.
func WithNoFollowRedirects() Option {
	return func(o *options) error {
		o.noFollowRedirects = true
		return nil
	}
}

// WithAuthCache shares a credential cache between clients.
func WithAuthCache(cache *auth.Cache) Option {
	return func(o *options) error {
		if cache == nil {
			return errors.New("auth cache must not be nil")
		}
		o.cache = cache
		return nil
	}
}

// WithPrompter asks p for credentials when a server demands them and the
// cache has none.
func WithPrompter(p auth.Prompter) Option {
	return func(o *options) error {
		if p == nil {
			return errors.New("prompter must not be nil")
		}
		o.prompter = p
		return nil
	}
}

// WithCounter aggregates the progress of all bodies into c.
func WithCounter(c *meter.Counter) Option {
	return func(o *options) error {
		if c == nil {
			return errors.New("counter must not be nil")
		}
		o.counter = c
		return nil
	}
}

// WithProgressLogging logs the progress of every metered body.
func WithProgressLogging() Option {
	return func(o *options) error {
		o.progressLog = true
		return nil
	}
}

// WithContentTypes replaces the extension table used when a reply has no
// Content-Type header.
func WithContentTypes(t *contenttype.Table) Option {
	return func(o *options) error {
		if t == nil {
			return errors.New("content type table must not be nil")
		}
		o.types = t
		return nil
	}
}

// WithResolver replaces the URL resolver.
func WithResolver(r target.Resolver) Option {
	return func(o *options) error {
		if r == nil {
			return errors.New("resolver must not be nil")
		}
		o.resolver = r
		return nil
	}
}

// WithSchemeHandler fetches targets of scheme through f, including
// redirects into that scheme.
func WithSchemeHandler(scheme string, f Fetcher) Option {
	return func(o *options) error {
		scheme = strings.ToLower(scheme)
		if scheme == "http" || scheme == "https" {
			return fmt.Errorf("scheme %q is handled natively", scheme)
		}
		if scheme == "" || f == nil {
			return errors.New("scheme and fetcher must be set")
		}
		if o.handlers == nil {
			o.handlers = make(map[string]Fetcher)
		}
		o.handlers[scheme] = f
		return nil
	}
}

// WithDialFunc replaces the function used to open TCP connections.
func WithDialFunc(dial func(ctx context.Context, network, addr string) (net.Conn, error)) Option {
	return func(o *options) error {
		if dial == nil {
			return errors.New("dial func must not be nil")
		}
		o.dial = dial
		return nil
	}
}

// WithTLSConfig sets the TLS configuration for https targets.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("tls config must not be nil")
		}
		o.tlsConfig = cfg
		return nil
	}
}
