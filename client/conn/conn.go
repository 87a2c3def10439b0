// Package conn owns the TCP socket behind a single fetch attempt. A Conn is
// never shared between fetches; it exposes line oriented reads for the status
// and header block and plain byte reads for the body.
package conn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrCanceled is returned by reads and writes once the context the
	// connection was opened with has ended.
	ErrCanceled = errors.New("connection canceled")
	// ErrClosed is returned by reads and writes on a closed connection.
	ErrClosed = errors.New("connection closed")
)

// Conn is a byte and line oriented wrapper over a net.Conn.
type Conn struct {
	host string
	port int

	nc          net.Conn
	r           *bufio.Reader
	w           *bufio.Writer
	readTimeout time.Duration

	ctx      context.Context
	stop     func() bool
	canceled atomic.Bool
	closed   atomic.Bool
	once     sync.Once
	closeErr error
}

func newConn(ctx context.Context, nc net.Conn, host string, port int, readTimeout time.Duration) *Conn {
	c := &Conn{
		host:        host,
		port:        port,
		nc:          nc,
		r:           bufio.NewReader(nc),
		w:           bufio.NewWriter(nc),
		readTimeout: readTimeout,
		ctx:         ctx,
	}

	c.stop = context.AfterFunc(ctx, func() {
		c.canceled.Store(true)
		_ = c.close()
	})

	return c
}

// Host returns the host this connection was opened against.
func (c *Conn) Host() string { return c.host }

// Port returns the port this connection was opened against.
func (c *Conn) Port() int { return c.port }

// RemoteAddr returns the address of the peer.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// WriteLine buffers s followed by CRLF. Call Flush to send.
func (c *Conn) WriteLine(s string) error {
	if err := c.usable(); err != nil {
		return err
	}

	if _, err := c.w.WriteString(s); err != nil {
		return c.wrap(err)
	}
	if _, err := c.w.WriteString("\r\n"); err != nil {
		return c.wrap(err)
	}

	return nil
}

// Write buffers p. Call Flush to send.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.usable(); err != nil {
		return 0, err
	}

	n, err := c.w.Write(p)
	if err != nil {
		return n, c.wrap(err)
	}

	return n, nil
}

// Flush sends everything buffered by WriteLine and Write.
func (c *Conn) Flush() error {
	if err := c.usable(); err != nil {
		return err
	}

	if err := c.w.Flush(); err != nil {
		return c.wrap(err)
	}

	return nil
}

// ReadLine returns the next line without its CRLF or LF terminator.
// A final unterminated line is returned with a nil error; io.EOF is
// only returned when nothing is left.
func (c *Conn) ReadLine() (string, error) {
	if err := c.usable(); err != nil {
		return "", err
	}
	c.armDeadline()

	line, err := c.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" && !c.canceled.Load() {
			return strings.TrimRight(line, "\r"), nil
		}
		return "", c.wrap(err)
	}

	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	return line, nil
}

// Read implements io.Reader over the body bytes that follow the header block.
func (c *Conn) Read(p []byte) (int, error) {
	if err := c.usable(); err != nil {
		return 0, err
	}
	c.armDeadline()

	n, err := c.r.Read(p)
	if err != nil {
		return n, c.wrap(err)
	}

	return n, nil
}

// ReadBytes reads up to len(buf) bytes. It is the byte oriented
// counterpart of ReadLine and behaves like Read.
func (c *Conn) ReadBytes(buf []byte) (int, error) {
	return c.Read(buf)
}

// Peek returns the next n bytes without consuming them. Fewer bytes
// are returned along with the error when the stream ends first.
func (c *Conn) Peek(n int) ([]byte, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	c.armDeadline()

	b, err := c.r.Peek(n)
	if err != nil {
		return b, c.wrap(err)
	}

	return b, nil
}

// Buffered returns the number of bytes already read from the socket but
// not yet consumed.
func (c *Conn) Buffered() int {
	return c.r.Buffered()
}

// Close releases the socket. It is safe to call more than once and from
// another goroutine; pending reads fail with ErrClosed.
func (c *Conn) Close() error {
	if c.stop != nil {
		c.stop()
	}

	return c.close()
}

// Closed reports whether Close has been called or the context ended.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

func (c *Conn) close() error {
	c.once.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.nc.Close()
	})

	return c.closeErr
}

func (c *Conn) usable() error {
	if c.canceled.Load() {
		return fmt.Errorf("%w: %w", ErrCanceled, context.Cause(c.ctx))
	}
	if c.closed.Load() {
		return ErrClosed
	}

	return nil
}

func (c *Conn) armDeadline() {
	if c.readTimeout > 0 {
		_ = c.nc.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
}

// wrap turns errors caused by a cancellation or local close into
// ErrCanceled and ErrClosed so callers never mistake them for a clean
// end of stream.
func (c *Conn) wrap(err error) error {
	switch {
	case c.canceled.Load():
		return fmt.Errorf("%w: %w", ErrCanceled, context.Cause(c.ctx))
	case c.closed.Load():
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}

	return err
}
