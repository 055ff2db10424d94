package ipmi

import (
	"context"
	"sync"
	"time"
)

// DefaultExecutorWorkers is the number of dedicated handshake goroutines.
const DefaultExecutorWorkers = 16

type job struct {
	ctx     context.Context
	timeout time.Duration
	fn      func(context.Context) error
	done    chan error
}

// Executor runs blocking calls on a fixed set of dedicated goroutines, apart
// from the goroutines that drive the scan. A caller waits for the result or
// its call's deadline, whichever comes first; a call that outlives the
// deadline keeps its executor goroutine until the library returns, but never
// the caller's.
type Executor struct {
	jobs chan job
	wg   sync.WaitGroup
	once sync.Once
}

// NewExecutor starts an Executor with the given number of goroutines.
func NewExecutor(workers int) *Executor {
	if workers <= 0 {
		workers = DefaultExecutorWorkers
	}
	e := &Executor{jobs: make(chan job)}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for j := range e.jobs {
		ctx, cancel := context.WithTimeout(j.ctx, j.timeout)
		if err := ctx.Err(); err != nil {
			j.done <- err
		} else {
			j.done <- j.fn(ctx)
		}
		cancel()
	}
}

// Do runs fn on an executor goroutine and waits at most timeout for it. The
// timeout starts when a goroutine picks the call up; while queued the call
// only waits on ctx.
func (e *Executor) Do(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	j := job{ctx: ctx, timeout: timeout, fn: fn, done: make(chan error, 1)}
	select {
	case e.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-j.done:
		return err
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for running calls to return.
func (e *Executor) Close() {
	e.once.Do(func() {
		close(e.jobs)
		e.wg.Wait()
	})
}

// Offloaded wraps h so every handshake runs on exec with the given timeout.
func Offloaded(h Handshaker, exec *Executor, timeout time.Duration) Handshaker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return HandshakerFunc(func(ctx context.Context, host string, port int, creds Credentials) error {
		return exec.Do(ctx, timeout, func(ctx context.Context) error {
			return h.Handshake(ctx, host, port, creds)
		})
	})
}
