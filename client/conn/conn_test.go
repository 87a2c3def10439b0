package conn

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"
)

// serve accepts a single connection on a loopback listener and hands it to fn.
func serve(t *testing.T, fn func(net.Conn)) (string, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		fn(c)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestConn_ReadLine(t *testing.T) {
	host, port := serve(t, func(c net.Conn) {
		io.WriteString(c, "HTTP/1.0 200 OK\r\nServer: test\nlast")
	})

	var d Dialer
	c, err := d.Open(t.Context(), host, port)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	for _, exp := range []string{"HTTP/1.0 200 OK", "Server: test", "last"} {
		line, err := c.ReadLine()
		if err != nil {
			t.Fatalf("read line: %v", err)
		}
		if line != exp {
			t.Errorf("exp line %q, got %q", exp, line)
		}
	}

	if _, err := c.ReadLine(); !errors.Is(err, io.EOF) {
		t.Errorf("exp io.EOF, got %v", err)
	}
}

func TestConn_WriteLineFlush(t *testing.T) {
	got := make(chan string, 1)
	host, port := serve(t, func(c net.Conn) {
		line, _ := bufio.NewReader(c).ReadString('\n')
		got <- line
	})

	var d Dialer
	c, err := d.Open(t.Context(), host, port)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	if err := c.WriteLine("GET / HTTP/1.0"); err != nil {
		t.Fatalf("write line: %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	select {
	case line := <-got:
		if line != "GET / HTTP/1.0\r\n" {
			t.Errorf("exp request line with CRLF, got %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the line")
	}
}

func TestConn_CloseIdempotent(t *testing.T) {
	host, port := serve(t, func(c net.Conn) { io.Copy(io.Discard, c) })

	var d Dialer
	c, err := d.Open(t.Context(), host, port)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !c.Closed() {
		t.Error("exp Closed to report true")
	}

	if _, err := c.ReadLine(); !errors.Is(err, ErrClosed) {
		t.Errorf("exp ErrClosed, got %v", err)
	}
}

func TestConn_CancelUnblocksRead(t *testing.T) {
	release := make(chan struct{})
	host, port := serve(t, func(c net.Conn) { <-release })
	defer close(release)

	ctx, cancel := context.WithCancel(t.Context())

	var d Dialer
	c, err := d.Open(ctx, host, port)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	errs := make(chan error, 1)
	go func() {
		buf := make([]byte, 16)
		_, err := c.Read(buf)
		errs <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errs:
		if errors.Is(err, io.EOF) {
			t.Fatalf("cancellation must not look like a clean EOF: %v", err)
		}
		if !errors.Is(err, ErrCanceled) {
			t.Errorf("exp ErrCanceled, got %v", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("exp context.Canceled in chain, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read was not unblocked by cancellation")
	}
}

func TestConn_ReadTimeout(t *testing.T) {
	release := make(chan struct{})
	host, port := serve(t, func(c net.Conn) { <-release })
	defer close(release)

	d := Dialer{ReadTimeout: 50 * time.Millisecond}
	c, err := d.Open(t.Context(), host, port)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	_, err = c.ReadLine()
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("exp timeout error, got %v", err)
	}
}

func TestDialer_OpenErrors(t *testing.T) {
	testCases := []struct {
		name       string
		dial       DialFunc
		nameFailed bool
	}{
		{
			name: "unknown host",
			dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return nil, &net.OpError{Op: "dial", Net: network, Err: &net.DNSError{Err: "no such host", Name: addr, IsNotFound: true}}
			},
			nameFailed: true,
		},
		{
			name: "refused",
			dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return nil, &net.OpError{Op: "dial", Net: network, Err: errors.New("connection refused")}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := Dialer{DialContext: tc.dial}

			_, err := d.Open(t.Context(), "example.test", 80)
			var ce *Error
			if !errors.As(err, &ce) {
				t.Fatalf("exp *Error, got %T: %v", err, err)
			}
			if ce.Host != "example.test" || ce.Port != 80 {
				t.Errorf("exp example.test:80, got %s:%d", ce.Host, ce.Port)
			}
			if got := IsNameResolution(err); got != tc.nameFailed {
				t.Errorf("exp IsNameResolution %v, got %v", tc.nameFailed, got)
			}
		})
	}
}

func TestDialer_OpenTunnel(t *testing.T) {
	connectLine := make(chan string, 1)
	proxyHost, proxyPort := serve(t, func(c net.Conn) {
		r := bufio.NewReader(c)
		line, _ := r.ReadString('\n')
		connectLine <- strings.TrimSpace(line)
		for {
			l, err := r.ReadString('\n')
			if err != nil || l == "\r\n" {
				break
			}
		}
		io.WriteString(c, "HTTP/1.0 200 Connection established\r\n\r\n")
		if _, err := r.ReadString('\n'); err != nil {
			return
		}
		io.WriteString(c, "tunnelled\n")
	})

	var d Dialer
	c, err := d.OpenTunnel(t.Context(), proxyHost, proxyPort, "origin.test", 8443, false)
	if err != nil {
		t.Fatalf("open tunnel: %v", err)
	}
	defer c.Close()

	if got := <-connectLine; got != "CONNECT origin.test:8443 HTTP/1.0" {
		t.Errorf("unexpected CONNECT line %q", got)
	}
	if c.Host() != "origin.test" || c.Port() != 8443 {
		t.Errorf("exp tunnel to report origin.test:8443, got %s:%s", c.Host(), strconv.Itoa(c.Port()))
	}

	if err := c.WriteLine("ping"); err != nil {
		t.Fatalf("write through tunnel: %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("flush through tunnel: %v", err)
	}

	line, err := c.ReadLine()
	if err != nil {
		t.Fatalf("read through tunnel: %v", err)
	}
	if line != "tunnelled" {
		t.Errorf("exp %q, got %q", "tunnelled", line)
	}
}

func TestDialer_OpenTunnelRefused(t *testing.T) {
	proxyHost, proxyPort := serve(t, func(c net.Conn) {
		bufio.NewReader(c).ReadString('\n')
		io.WriteString(c, "HTTP/1.0 403 Forbidden\r\n\r\n")
	})

	var d Dialer
	_, err := d.OpenTunnel(t.Context(), proxyHost, proxyPort, "origin.test", 443, false)
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("exp *Error, got %v", err)
	}
	if ce.Port != proxyPort {
		t.Errorf("exp error against the proxy port %d, got %d", proxyPort, ce.Port)
	}
}
