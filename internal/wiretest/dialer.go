package wiretest

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
)

// Dialer maps made-up host:port pairs onto local servers and counts the
// connections a client opens and closes through it.
type Dialer struct {
	// Hosts maps a dialed address to the address actually used.
	Hosts map[string]string
	// Unresolvable lists host names that fail as a DNS lookup would.
	Unresolvable []string

	opened atomic.Int32
	closed atomic.Int32

	mu     sync.Mutex
	dialed []string
}

// DialContext dials addr, or the address Hosts maps it to.
func (d *Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	d.mu.Lock()
	d.dialed = append(d.dialed, addr)
	d.mu.Unlock()

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	for _, h := range d.Unresolvable {
		if h == host {
			return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
		}
	}

	if mapped, ok := d.Hosts[addr]; ok {
		addr = mapped
	}

	var nd net.Dialer
	c, err := nd.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	d.opened.Add(1)

	return &countedConn{Conn: c, closed: &d.closed}, nil
}

// Opened returns the number of connections established.
func (d *Dialer) Opened() int {
	return int(d.opened.Load())
}

// Closed returns the number of established connections closed by the client.
func (d *Dialer) Closed() int {
	return int(d.closed.Load())
}

// Dialed returns every address passed to DialContext, in order.
func (d *Dialer) Dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]string, len(d.dialed))
	copy(out, d.dialed)

	return out
}

type countedConn struct {
	net.Conn
	once   sync.Once
	closed *atomic.Int32
}

func (c *countedConn) Close() error {
	c.once.Do(func() { c.closed.Add(1) })
	return c.Conn.Close()
}
