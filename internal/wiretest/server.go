// Package wiretest runs scripted HTTP/1.0 servers on loopback for tests.
// Replies are written byte for byte, so tests can send the malformed
// status lines and banners real intermediaries produce.
package wiretest

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// Request is a request as received on the wire.
type Request struct {
	Line   string
	Method string
	URI    string
	Proto  string
	Header map[string]string
	Body   []byte
}

// Path returns the path and query of the request URI, which is absolute
// when the client talks to a proxy.
func (r Request) Path() string {
	if strings.HasPrefix(r.URI, "/") {
		return r.URI
	}

	u, err := url.Parse(r.URI)
	if err != nil {
		return r.URI
	}

	return u.RequestURI()
}

// Handler writes the raw reply for r. The connection is closed once it
// returns.
type Handler func(w io.Writer, r Request)

// Reply answers every request with raw.
func Reply(raw string) Handler {
	return func(w io.Writer, _ Request) {
		io.WriteString(w, raw)
	}
}

// Routes answers by request path. Unknown paths get a bare 404.
func Routes(routes map[string]string) Handler {
	return func(w io.Writer, r Request) {
		raw, ok := routes[r.Path()]
		if !ok {
			raw = "HTTP/1.0 404 Not Found\r\n\r\n"
		}
		io.WriteString(w, raw)
	}
}

// Sequence answers the nth request with replies[n], repeating the last.
func Sequence(replies ...string) Handler {
	var n atomic.Int32

	return func(w io.Writer, _ Request) {
		i := int(n.Add(1)) - 1
		if i >= len(replies) {
			i = len(replies) - 1
		}
		io.WriteString(w, replies[i])
	}
}

// Server is a loopback listener serving one request per connection.
type Server struct {
	ln      net.Listener
	handler Handler

	wg       sync.WaitGroup
	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	requests []Request
	accepted atomic.Int32
	once     sync.Once
}

// Start listens on 127.0.0.1 and serves h until the test ends.
func Start(t testing.TB, h Handler) *Server {
	t.Helper()

	s, err := New(h)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(s.Close)

	return s
}

// New listens on 127.0.0.1 and serves h until Close.
func New(h Handler) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{
		ln:      ln,
		handler: h,
		conns:   make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.serve()

	return s, nil
}

// Host returns the listener's IP.
func (s *Server) Host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listener's port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// URL returns an http URL for path on this server.
func (s *Server) URL(path string) string {
	return "http://" + s.Addr() + path
}

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() int {
	return int(s.accepted.Load())
}

// Requests returns the requests received so far, in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Request, len(s.requests))
	copy(out, s.requests)

	return out
}

// Close stops the listener, closes open connections and waits for
// handlers to return.
func (s *Server) Close() {
	s.once.Do(func() {
		s.ln.Close()

		s.mu.Lock()
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()

		s.wg.Wait()
	})
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.accepted.Add(1)

		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				c.Close()
				s.mu.Lock()
				delete(s.conns, c)
				s.mu.Unlock()
			}()

			r, err := ReadRequest(bufio.NewReader(c))
			if err != nil {
				return
			}

			s.mu.Lock()
			s.requests = append(s.requests, r)
			s.mu.Unlock()

			s.handler(c, r)
		}()
	}
}

// ReadRequest reads a request line, header block and Content-Length body.
func ReadRequest(br *bufio.Reader) (Request, error) {
	tp := textproto.NewReader(br)

	line, err := tp.ReadLine()
	if err != nil {
		return Request{}, err
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return Request{}, errors.New("malformed request line: " + line)
	}

	r := Request{
		Line:   line,
		Method: parts[0],
		URI:    parts[1],
		Proto:  parts[2],
		Header: make(map[string]string),
	}

	for {
		hl, err := tp.ReadLine()
		if err != nil {
			return Request{}, err
		}
		if hl == "" {
			break
		}

		name, value, ok := strings.Cut(hl, ":")
		if !ok {
			continue
		}
		key := textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))
		if _, dup := r.Header[key]; !dup {
			r.Header[key] = strings.TrimSpace(value)
		}
	}

	if cl, ok := r.Header["Content-Length"]; ok {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return Request{}, errors.New("bad Content-Length: " + cl)
		}
		r.Body = make([]byte, n)
		if _, err := io.ReadFull(br, r.Body); err != nil {
			return Request{}, err
		}
	}

	return r, nil
}
