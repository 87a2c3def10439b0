package download

import (
	"context"

	"github.com/adamwoolhether/hfetch/client/target"
)

// Result is one queued download.
type Result struct {
	Target target.Target
	Path   string

	queue  *Queue
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

// Add queues another download on the same queue. See [Queue.Add].
func (r *Result) Add(ctx context.Context, t target.Target, destPath string, optFns ...Option) *Result {
	return r.queue.Add(ctx, t, destPath, optFns...)
}

// Queue returns the queue r belongs to.
func (r *Result) Queue() *Queue { return r.queue }

// Done returns a channel that is closed when this download completes.
func (r *Result) Done() <-chan struct{} { return r.done }

// Err blocks until this download completes and returns its error, a
// *TargetError when it failed.
func (r *Result) Err() error {
	<-r.done
	return r.err
}

// Wait blocks until every download on the queue completes.
func (r *Result) Wait() error {
	return r.queue.Wait()
}

// Cancel cancels this download.
func (r *Result) Cancel() {
	r.cancel()
}
