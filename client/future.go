package client

import (
	"context"
	"sync"
)

// Future is the eventual outcome of an operation. It is resolved exactly once.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done is closed when the outcome is known.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the outcome is known or the context is done. Giving up
// on a future does not cancel the operation, it is still resolved by
// its replies or its deadline.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result blocks until the outcome is known.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.value, f.err
}
