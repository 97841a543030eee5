// Package future provides a single-assignment result cell that bridges
// callback-driven device events into a blocking wait.
//
// A Future is resolved at most once, by whichever Set or Fail call arrives
// first; every later attempt is a silent no-op. This is the mechanism behind
// "first discovered camera wins": any number of background callbacks may try
// to resolve the same future, and exactly one of them succeeds.
package future

import (
	"context"
	"sync"
)

// Future is a one-shot, thread-safe value/error cell.
//
// Lifecycle: created by the issuer of an asynchronous operation, resolved by
// a background callback via Set or Fail, consumed by a single Wait call.
//
// Internally this is a single-slot mailbox guarded by a mutex and condition
// variable. Unlike a channel, resolving a future with no waiter present does
// not block and does not lose the value.
type Future[T any] struct {
	mu   sync.Mutex
	cond *sync.Cond

	resolved bool
	value    T
	err      error
}

// New creates an unresolved future.
func New[T any]() *Future[T] {
	f := &Future[T]{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Set resolves the future with a value. It reports whether this call won the
// resolution race; a false return means the future was already resolved and
// the value was discarded.
func (f *Future[T]) Set(value T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.resolved {
		return false
	}
	f.value = value
	f.resolved = true
	f.cond.Broadcast()
	return true
}

// Fail resolves the future with an error. Like Set, it reports whether this
// call won the resolution race.
func (f *Future[T]) Fail(err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.resolved {
		return false
	}
	f.err = err
	f.resolved = true
	f.cond.Broadcast()
	return true
}

// Resolved reports whether the future has been assigned, without blocking.
func (f *Future[T]) Resolved() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved
}

// Wait blocks until the future is resolved or the context is done, then
// returns the assigned value or error. A future that is never resolved does
// not block forever: cancelling the context releases the waiter with ctx.Err().
//
// Callers read a future at most once; the result of concurrent Wait calls on
// the same future is the same resolved value.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.resolved && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			// Wake the waiter so it can observe ctx.Err().
			f.mu.Lock()
			f.cond.Broadcast()
			f.mu.Unlock()
		})
		defer stop()
	}

	for !f.resolved {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		f.cond.Wait()
	}
	return f.value, f.err
}
