package runtime

import (
	"sync"

	"github.com/wippyai/modbus-bridge/errors"
)

// Future is a single-assignment result shared between the task that produces
// it and whoever consumes it, either by blocking (Wait) or by callback
// (OnComplete).
type Future[T any] struct {
	done      chan struct{}
	callbacks []callback[T]
	value     T
	err       error
	mu        sync.Mutex
	completed bool
}

type callback[T any] struct {
	rt *Runtime
	fn func(T, error)
}

// NewFuture returns an unresolved future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Complete resolves the future. Only the first call has any effect; it
// reports whether this call was the one that resolved it.
func (f *Future[T]) Complete(value T, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.value = value
	f.err = err
	cbs := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range cbs {
		dispatch(cb, value, err)
	}
	return true
}

// Fail resolves the future with an error and the zero value.
func (f *Future[T]) Fail(err error) bool {
	var zero T
	return f.Complete(zero, err)
}

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result returns the resolved value. It must only be called after Done is closed.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.value, f.err
}

// Wait blocks until the future resolves or cancel is closed, whichever is
// first. Cancellation resolves the future as Shutdown, so a result that
// arrives later is discarded.
func (f *Future[T]) Wait(cancel <-chan struct{}) (T, error) {
	select {
	case <-f.done:
	case <-cancel:
		f.Fail(errors.Shutdown(errors.PhaseRuntime))
	}
	return f.Result()
}

// OnComplete runs fn on one of rt's workers once the future resolves.
// fn runs exactly once. When rt no longer accepts work, fn runs on the
// goroutine that resolved the future (or the caller, if already resolved).
func (f *Future[T]) OnComplete(rt *Runtime, fn func(T, error)) {
	cb := callback[T]{rt: rt, fn: fn}

	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	dispatch(cb, f.value, f.err)
}

func dispatch[T any](cb callback[T], value T, err error) {
	if cb.rt != nil {
		if cb.rt.Submit(func() { cb.fn(value, err) }) == nil {
			return
		}
	}
	cb.fn(value, err)
}
