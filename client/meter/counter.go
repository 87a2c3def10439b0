// Package meter instruments response bodies with byte counts measured
// against their expected Content-Length and aggregates the counts of all
// open bodies into a shared Counter.
package meter

import "sync"

// Progress is a snapshot of a Counter.
type Progress struct {
	Read     int64
	Expected int64
	Open     int
}

// Done reports whether every expected byte has been accounted for.
func (p Progress) Done() bool {
	return p.Read >= p.Expected
}

// Percent returns Read as a percentage of Expected, or 100 when nothing is expected.
func (p Progress) Percent() float64 {
	if p.Expected <= 0 {
		return 100
	}

	return float64(p.Read) / float64(p.Expected) * 100
}

// Counter aggregates progress across concurrently open Streams. The zero
// value is ready to use. Totals reset to zero once the last open Stream
// closes, so the next batch of transfers starts from a clean slate.
type Counter struct {
	mu       sync.Mutex
	read     int64
	expected int64
	open     int
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Snapshot returns the current totals. It never blocks on I/O and is
// safe to call from any number of goroutines.
func (c *Counter) Snapshot() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Progress{
		Read:     c.read,
		Expected: c.expected,
		Open:     c.open,
	}
}

func (c *Counter) opened(expected int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expected += expected
	c.open++
}

func (c *Counter) add(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.read += n
}

// closed folds the unread remainder of a stream into the read total and
// releases its slot.
func (c *Counter) closed(remainder int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.read += remainder
	c.open--
	if c.open <= 0 {
		c.open = 0
		c.read = 0
		c.expected = 0
	}
}
