package download

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/adamwoolhether/hfetch/client/meter"
	"github.com/adamwoolhether/hfetch/client/target"
)

// SaveFunc fetches t and saves its body to destPath. Client.Download
// satisfies it.
type SaveFunc func(ctx context.Context, t target.Target, destPath string, opts ...Option) error

// Queue runs the downloads of a batch with bounded concurrency. Every
// download in the queue reports to one progress counter, and each failure
// is recorded as a *TargetError naming its target.
type Queue struct {
	save    SaveFunc
	counter *meter.Counter

	wg       sync.WaitGroup
	sem      chan struct{}
	shutdown atomic.Bool

	mu   sync.Mutex
	errs []error
}

// NewQueue creates a Queue saving through save and reporting progress
// from counter. If maxConcurrent <= 0, concurrency is unlimited.
func NewQueue(save SaveFunc, counter *meter.Counter, maxConcurrent int) *Queue {
	if counter == nil {
		counter = meter.NewCounter()
	}

	q := &Queue{save: save, counter: counter}
	if maxConcurrent > 0 {
		q.sem = make(chan struct{}, maxConcurrent)
	}

	return q
}

// Start opens a queue sized by WithBatch, unbounded without it, and
// queues t as its first download.
func Start(ctx context.Context, save SaveFunc, counter *meter.Counter, t target.Target, destPath string, optFns ...Option) (*Result, error) {
	opts, err := apply(optFns)
	if err != nil {
		return nil, err
	}

	var limit int
	if opts.batch != nil {
		limit = *opts.batch
	}

	return NewQueue(save, counter, limit).add(ctx, t, destPath, optFns, true), nil
}

// Add queues the download of t to destPath. Invalid requests (an empty
// destPath, bad options, WithBatch) fail the returned Result at once and
// are recorded for Wait.
func (q *Queue) Add(ctx context.Context, t target.Target, destPath string, optFns ...Option) *Result {
	return q.add(ctx, t, destPath, optFns, false)
}

func (q *Queue) add(ctx context.Context, t target.Target, destPath string, optFns []Option, first bool) *Result {
	r := &Result{
		Target: t,
		Path:   destPath,
		queue:  q,
		done:   make(chan struct{}),
		cancel: func() {},
	}

	if err := q.check(destPath, optFns, first); err != nil {
		q.fail(r, err)
		close(r.done)
		return r
	}

	ctx, r.cancel = context.WithCancel(ctx)

	q.wg.Add(1)
	go q.run(ctx, r, optFns)

	return r
}

func (q *Queue) check(destPath string, optFns []Option, first bool) error {
	if destPath == "" {
		return errors.New("destPath must not be empty")
	}

	opts, err := apply(optFns)
	if err != nil {
		return err
	}
	if opts.batch != nil && !first {
		return ErrBatchConfigured
	}

	return nil
}

func (q *Queue) run(ctx context.Context, r *Result, optFns []Option) {
	defer func() {
		r.cancel()
		close(r.done)
		q.wg.Done()
	}()

	if q.sem != nil {
		select {
		case q.sem <- struct{}{}:
			defer func() { <-q.sem }()
		case <-ctx.Done():
			q.fail(r, fmt.Errorf("%w: %w", ErrDownloadCancelled, ctx.Err()))
			return
		}
	}

	if q.shutdown.Load() {
		q.fail(r, ErrGroupShutdown)
		return
	}

	if err := q.save(ctx, r.Target, r.Path, optFns...); err != nil {
		q.fail(r, err)
	}
}

// fail records err against r's target.
func (q *Queue) fail(r *Result, err error) {
	r.err = &TargetError{Name: r.Target.Name(), Path: r.Path, Err: err}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.errs = append(q.errs, r.err)
}

// Wait blocks until every queued download completes and returns their
// failures joined.
func (q *Queue) Wait() error {
	q.wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()

	return errors.Join(q.errs...)
}

// Shutdown stops downloads that have not started yet; they fail with
// ErrGroupShutdown.
func (q *Queue) Shutdown() {
	q.shutdown.Store(true)
}

// Progress returns the counter shared by the queue's downloads.
func (q *Queue) Progress() meter.Progress {
	return q.counter.Snapshot()
}
