package actors

import (
	"context"
	"sync"
)

// Future is the pending result of an ask. It completes with either the
// first reply message or an error (ErrAskTimeout when the deadline passes).
type Future struct {
	mu        sync.RWMutex
	value     any
	err       error
	completed bool
	done      chan struct{}
	cleanup   func()
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// complete resolves the future once and reports whether this call won;
// later calls are ignored.
func (f *Future) complete(value any, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.value = value
	f.err = err
	f.completed = true
	f.mu.Unlock()
	close(f.done)
	return true
}

// setCleanup registers the teardown run when the future is cancelled,
// typically stopping the pending reply actor.
func (f *Future) setCleanup(fn func()) {
	f.mu.Lock()
	f.cleanup = fn
	f.mu.Unlock()
}

// Cancel resolves a pending future with ErrFutureCancelled and reports
// whether this call did the cancelling. A completed future is unaffected.
func (f *Future) Cancel() bool {
	if !f.complete(nil, ErrFutureCancelled) {
		return false
	}
	f.mu.RLock()
	cleanup := f.cleanup
	f.mu.RUnlock()
	if cleanup != nil {
		cleanup()
	}
	return true
}

// Await blocks until the future completes or ctx is cancelled.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		f.mu.RLock()
		defer f.mu.RUnlock()
		return f.value, f.err
	}
}

// Done reports whether the future has completed.
func (f *Future) Done() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.completed
}

// Result returns the value if completed, ErrNotCompleted otherwise.
func (f *Future) Result() (any, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.completed {
		return nil, ErrNotCompleted
	}
	return f.value, f.err
}
