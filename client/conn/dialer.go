package conn

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

// DialFunc matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Dialer opens Conns. A Dialer holds configuration only and is safe
// for concurrent use.
type Dialer struct {
	// Timeout bounds the TCP connect. Zero means no timeout.
	Timeout time.Duration
	// ReadTimeout is applied as a deadline before every read. Zero means no timeout.
	ReadTimeout time.Duration
	// TLSConfig is used for targets opened with OpenTLS. A nil config
	// uses the zero tls.Config with ServerName set to the host.
	TLSConfig *tls.Config
	// DialContext replaces the default net.Dialer.
	DialContext DialFunc
	// Logger receives debug output for opened connections.
	Logger *slog.Logger
}

// Error describes a failure to reach host:port.
type Error struct {
	Host string
	Port int
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("connect %s: %v", net.JoinHostPort(e.Host, strconv.Itoa(e.Port)), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNameResolution reports whether err was caused by a failure to resolve
// the host name, the only failure that triggers a firewall fallback.
func IsNameResolution(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// Open connects to host:port. Cancelling ctx at any point closes the
// connection, unblocking pending reads with ErrCanceled.
func (d *Dialer) Open(ctx context.Context, host string, port int) (*Conn, error) {
	nc, err := d.dial(ctx, host, port)
	if err != nil {
		return nil, err
	}

	d.logger().Debug("connection opened", "host", host, "port", port, "remote", nc.RemoteAddr().String())

	return newConn(ctx, nc, host, port, d.ReadTimeout), nil
}

// OpenTLS connects to host:port and completes a TLS handshake.
func (d *Dialer) OpenTLS(ctx context.Context, host string, port int) (*Conn, error) {
	nc, err := d.dial(ctx, host, port)
	if err != nil {
		return nil, err
	}

	tc, err := d.handshake(ctx, nc, host)
	if err != nil {
		return nil, &Error{Host: host, Port: port, Err: err}
	}

	return newConn(ctx, tc, host, port, d.ReadTimeout), nil
}

// OpenTunnel connects to the proxy at proxyHost:proxyPort and asks it to
// CONNECT to host:port. When secure is set the tunnel is wrapped in TLS for
// host. The returned Conn reports host and port, not the proxy's.
func (d *Dialer) OpenTunnel(ctx context.Context, proxyHost string, proxyPort int, host string, port int, secure bool) (*Conn, error) {
	pc, err := d.Open(ctx, proxyHost, proxyPort)
	if err != nil {
		return nil, err
	}

	if err := connect(pc, host, port); err != nil {
		_ = pc.Close()
		return nil, &Error{Host: proxyHost, Port: proxyPort, Err: err}
	}

	if pc.Buffered() > 0 {
		_ = pc.Close()
		return nil, &Error{Host: proxyHost, Port: proxyPort, Err: errors.New("proxy sent data before tunnel was established")}
	}

	// Detach the raw socket from the proxy Conn so the tunnel gets its own.
	pc.stop()
	nc := pc.nc

	if secure {
		tc, err := d.handshake(ctx, nc, host)
		if err != nil {
			_ = nc.Close()
			return nil, &Error{Host: host, Port: port, Err: err}
		}
		nc = tc
	}

	return newConn(ctx, nc, host, port, d.ReadTimeout), nil
}

func (d *Dialer) dial(ctx context.Context, host string, port int) (net.Conn, error) {
	if host == "" {
		return nil, &Error{Host: host, Port: port, Err: errors.New("empty host")}
	}

	dialCtx := ctx
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	dial := d.DialContext
	if dial == nil {
		var zero net.Dialer
		dial = zero.DialContext
	}

	nc, err := dial(dialCtx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, &Error{Host: host, Port: port, Err: err}
	}

	return nc, nil
}

func (d *Dialer) handshake(ctx context.Context, nc net.Conn, host string) (*tls.Conn, error) {
	cfg := d.TLSConfig.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}

	tc := tls.Client(nc, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		_ = nc.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tc, nil
}

func (d *Dialer) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}

	return slog.Default()
}

// connect writes a CONNECT request and reads the proxy's reply up to
// the blank line.
//
//	CONNECT www.example.com:443 HTTP/1.0\r\n
//	Host: www.example.com:443\r\n
//	\r\n
func connect(c *Conn, host string, port int) error {
	hp := net.JoinHostPort(host, strconv.Itoa(port))
	if err := c.WriteLine("CONNECT " + hp + " HTTP/1.0"); err != nil {
		return err
	}
	if err := c.WriteLine("Host: " + hp); err != nil {
		return err
	}
	if err := c.WriteLine(""); err != nil {
		return err
	}
	if err := c.Flush(); err != nil {
		return err
	}

	status, err := c.ReadLine()
	if err != nil {
		return fmt.Errorf("reading proxy reply: %w", err)
	}

	_, rest, _ := strings.Cut(status, " ")
	if !strings.HasPrefix(status, "HTTP/1.") || !strings.HasPrefix(rest, "200") {
		return fmt.Errorf("proxy refused tunnel: %q", status)
	}

	for {
		line, err := c.ReadLine()
		if err != nil {
			return fmt.Errorf("reading proxy reply: %w", err)
		}
		if line == "" {
			return nil
		}
	}
}
