// Package pool provides the bounded-concurrency executor shared by every
// scan stage. It has no knowledge of what the submitted work does.
package pool

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultWorkers is the worker budget used when none is configured.
const DefaultWorkers = 32

// Func is one unit of work. A non-nil error means the item produces no
// result; it never stops the batch.
type Func[T, R any] func(ctx context.Context, item T) (R, error)

// Run executes fn for every item with at most workers operations in flight
// and returns a channel delivering results as they complete. Completion order
// is not submission order. The channel is closed only after every submitted
// operation has finished.
//
// Items are submitted in input order: once the budget is used up the
// submitter waits for one completion before submitting the next item.
func Run[T, R any](ctx context.Context, workers int, items []T, fn Func[T, R]) <-chan R {
	if workers < 1 {
		workers = 1
	}
	out := make(chan R, workers)
	sem := semaphore.NewWeighted(int64(workers))

	go func() {
		defer close(out)

		for _, item := range items {
			// Acquire only fails once ctx is done; in-flight work still drains below.
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			go func(it T) {
				defer sem.Release(1)
				r, err := fn(ctx, it)
				if err != nil {
					return
				}
				out <- r
			}(item)
		}

		// Full drain: holding every slot means nothing is in flight.
		_ = sem.Acquire(context.Background(), int64(workers))
	}()

	return out
}

// Collect drains ch into a slice.
func Collect[R any](ch <-chan R) []R {
	var res []R
	for r := range ch {
		res = append(res, r)
	}
	return res
}
