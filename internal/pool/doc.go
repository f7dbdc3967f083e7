// Package pool provides a fixed-size worker pool with future-style
// result handles.
//
// # Pool
//
// A Pool runs submitted tasks on a fixed number of worker goroutines.
// The worker count is the only admission control: excess submissions
// queue (unbounded) rather than spawning more workers.
//
//	p := pool.New(5)
//	defer p.Shutdown(true)
//
// # Futures
//
// Submit returns immediately with a typed Future:
//
//	fut := pool.Submit(p, func() ([]byte, error) {
//	    return fetch(url)
//	})
//	data, err := fut.Wait()
//
// Tasks may themselves submit nested tasks to the same pool; the
// unbounded queue guarantees this never deadlocks as long as a task
// does not Wait on work queued behind it.
//
// # Shutdown
//
// Shutdown(true) stops admission and blocks until all accepted work
// has finished, so the usual scoped pattern is:
//
//	p := pool.New(n)
//	defer p.Shutdown(true)
package pool
