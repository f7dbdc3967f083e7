package pool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmit_ReturnsResult(t *testing.T) {
	p := New(2)
	defer p.Shutdown(true)

	fut := Submit(p, func() (int, error) {
		return 42, nil
	})

	got, err := fut.Wait()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("Wait() = %d, want 42", got)
	}
}

func TestSubmit_PropagatesError(t *testing.T) {
	p := New(1)
	defer p.Shutdown(true)

	want := errors.New("boom")
	fut := Submit(p, func() (string, error) {
		return "", want
	})

	if _, err := fut.Wait(); !errors.Is(err, want) {
		t.Errorf("Wait() error = %v, want %v", err, want)
	}
}

func TestPool_ConcurrencyBound(t *testing.T) {
	const workers = 2
	const jobs = 10

	p := New(workers)

	var running, peak, total int32
	var mu sync.Mutex

	futures := make([]*Future[struct{}], 0, jobs)
	for range jobs {
		fut := Submit(p, func() (struct{}, error) {
			n := atomic.AddInt32(&running, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			atomic.AddInt32(&total, 1)
			return struct{}{}, nil
		})
		futures = append(futures, fut)
	}

	p.Shutdown(true)

	if got := atomic.LoadInt32(&total); got != jobs {
		t.Errorf("completed %d jobs, want %d", got, jobs)
	}
	if peak > workers {
		t.Errorf("peak concurrency %d exceeds worker count %d", peak, workers)
	}

	// After Shutdown(true), every future must already be settled.
	for i, fut := range futures {
		if _, _, ok := fut.TryWait(); !ok {
			t.Errorf("future %d not settled after Shutdown(wait=true)", i)
		}
	}
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	p := New(1)
	p.Shutdown(true)

	fut := Submit(p, func() (int, error) { return 1, nil })
	if _, err := fut.Wait(); !errors.Is(err, ErrClosed) {
		t.Errorf("Wait() error = %v, want ErrClosed", err)
	}
}

func TestPool_ShutdownIdempotent(t *testing.T) {
	p := New(2)

	Submit(p, func() (struct{}, error) {
		time.Sleep(5 * time.Millisecond)
		return struct{}{}, nil
	})

	p.Shutdown(true)
	p.Shutdown(true) // must not panic or hang
	p.Shutdown(false)
}

func TestPool_NestedSubmission(t *testing.T) {
	// A task submitting follow-up work to its own pool must not
	// deadlock, even with a single worker.
	p := New(1)
	defer p.Shutdown(true)

	outer := Submit(p, func() (*Future[int], error) {
		inner := Submit(p, func() (int, error) { return 7, nil })
		return inner, nil
	})

	inner, err := outer.Wait()
	if err != nil {
		t.Fatalf("outer failed: %v", err)
	}
	got, err := inner.Wait()
	if err != nil {
		t.Fatalf("inner failed: %v", err)
	}
	if got != 7 {
		t.Errorf("inner result = %d, want 7", got)
	}
}

func TestSubmit_RecoversPanic(t *testing.T) {
	p := New(1)
	defer p.Shutdown(true)

	fut := Submit(p, func() (int, error) {
		panic("kaboom")
	})

	if _, err := fut.Wait(); err == nil {
		t.Error("expected error from panicking task")
	}

	// The worker must survive the panic.
	ok := Submit(p, func() (int, error) { return 1, nil })
	if got, err := ok.Wait(); err != nil || got != 1 {
		t.Errorf("pool unusable after panic: got %d, err %v", got, err)
	}
}

func TestFuture_TryWait(t *testing.T) {
	p := New(1)
	defer p.Shutdown(true)

	release := make(chan struct{})
	fut := Submit(p, func() (int, error) {
		<-release
		return 9, nil
	})

	if _, _, ok := fut.TryWait(); ok {
		t.Error("TryWait should report not ready while task is blocked")
	}

	close(release)
	<-fut.Done()

	got, err, ok := fut.TryWait()
	if !ok {
		t.Fatal("TryWait should report ready after Done")
	}
	if err != nil || got != 9 {
		t.Errorf("TryWait = (%d, %v), want (9, nil)", got, err)
	}
}
