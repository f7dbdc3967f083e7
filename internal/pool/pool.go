package pool

import (
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is the error on futures returned by Submit after the pool
// has been shut down.
var ErrClosed = errors.New("pool: shut down")

// Pool is a fixed-size worker pool.
//
// Exactly maxWorkers goroutines execute submitted tasks; excess
// submissions queue rather than spawn additional workers. The queue is
// unbounded so tasks running on a worker can safely submit follow-up
// tasks to the same pool without risking deadlock.
//
// Example:
//
//	p := pool.New(5)
//	defer p.Shutdown(true)
//
//	fut := pool.Submit(p, func() (int, error) {
//	    return expensiveWork()
//	})
//	n, err := fut.Wait()
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	workers sync.WaitGroup
}

// New creates a pool with the given number of workers.
// maxWorkers must be at least 1; smaller values are treated as 1.
func New(maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	p := &Pool{}
	p.cond = sync.NewCond(&p.mu)

	p.workers.Add(maxWorkers)
	for range maxWorkers {
		go p.worker()
	}

	return p
}

// Submit enqueues fn for execution and returns a Future that settles
// with fn's result. Submit never blocks the caller.
//
// A panic inside fn is recovered and surfaced as an error on the
// future, so a misbehaving task cannot kill a pool worker.
//
// If the pool has been shut down, the returned future is already
// settled with ErrClosed.
func Submit[T any](p *Pool, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()

	task := func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.settle(zero, fmt.Errorf("pool: task panic: %v", r))
			}
		}()
		f.settle(fn())
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		var zero T
		f.settle(zero, ErrClosed)
		return f
	}
	p.queue = append(p.queue, task)
	p.cond.Signal()
	p.mu.Unlock()

	return f
}

// Shutdown stops the pool from accepting new work. If wait is true it
// blocks until every previously queued task has finished; otherwise it
// returns immediately while workers drain the queue in the background.
//
// Shutdown is safe to call more than once; later calls only wait.
func (p *Pool) Shutdown(wait bool) {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		p.cond.Broadcast()
	}
	p.mu.Unlock()

	if wait {
		p.workers.Wait()
	}
}

// worker runs queued tasks until the pool is closed and drained.
func (p *Pool) worker() {
	defer p.workers.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			// closed and drained
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		task()
	}
}
