package pool

import "sync"

// Future is a handle to an asynchronous computation submitted to a
// Pool. It settles exactly once with either a value or an error.
//
// Futures are not cancellable: once the task is queued it runs to
// completion or failure. Shutdown only prevents new submissions.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) settle(val T, err error) {
	f.once.Do(func() {
		f.val = val
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the future settles and returns its value or error.
// It may be called from any number of goroutines and any number of
// times; every call returns the same result.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.val, f.err
}

// TryWait returns the result without blocking. ok is false while the
// computation is still in flight.
func (f *Future[T]) TryWait() (val T, err error, ok bool) {
	select {
	case <-f.done:
		return f.val, f.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// Done returns a channel that is closed when the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}
