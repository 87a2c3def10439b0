package meter

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("metered stream closed")

// Option configures a Stream.
type Option func(*Stream)

// WithProgressLog logs transfer progress to logger at most once per second.
func WithProgressLog(logger *slog.Logger) Option {
	return func(s *Stream) {
		s.LogProgress(logger)
	}
}

// Stream is an io.ReadCloser that yields at most expected bytes from the
// wrapped body and reports every byte read to a Counter.
type Stream struct {
	body     io.ReadCloser
	counter  *Counter
	expected int64

	mu       sync.Mutex
	read     int64
	closed   bool
	progress *progressLog
}

// Wrap registers a new open transfer of expected bytes with c and returns
// the instrumented body. A nil Counter gets a private one.
func Wrap(body io.ReadCloser, expected int64, c *Counter, opts ...Option) *Stream {
	if c == nil {
		c = NewCounter()
	}
	if expected < 0 {
		expected = 0
	}

	s := &Stream{
		body:     body,
		counter:  c,
		expected: expected,
	}
	for _, opt := range opts {
		opt(s)
	}

	c.opened(expected)

	return s
}

// Expected returns the length the stream was sized to.
func (s *Stream) Expected() int64 {
	return s.expected
}

// Consumed returns the bytes read so far.
func (s *Stream) Consumed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read
}

// LogProgress enables progress logging. Call it before the first Read.
func (s *Stream) LogProgress(logger *slog.Logger) {
	if logger == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress = &progressLog{logger: logger, total: s.expected, start: time.Now()}
}

// Read reads from the wrapped body, stopping at the expected length.
// A body that ends early yields io.ErrUnexpectedEOF.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	remaining := s.expected - s.read
	s.mu.Unlock()

	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, err := s.body.Read(p)

	s.mu.Lock()
	delta := int64(n)
	if s.read+delta > s.expected {
		delta = s.expected - s.read
	}
	s.read += delta
	if !s.closed {
		s.counter.add(delta)
	}
	done := s.read >= s.expected
	if s.progress != nil {
		s.progress.update(s.read)
	}
	s.mu.Unlock()

	if errors.Is(err, io.EOF) && !done {
		return n, io.ErrUnexpectedEOF
	}
	if done && errors.Is(err, io.EOF) {
		err = nil
	}

	return n, err
}

// Close closes the wrapped body. Bytes that were never read are counted
// as read so the Counter's totals stay balanced. Only the first call has
// any effect.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	remainder := s.expected - s.read
	if remainder < 0 {
		remainder = 0
	}
	s.counter.closed(remainder)
	s.mu.Unlock()

	return s.body.Close()
}
