package parallel

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Map runs fn once per item with bounded concurrency (the configured pool
// width) and returns the results in input order. It is the batch
// convenience over the pool strategy: no handles, no per-item admission.
// The first error is returned alongside the partial results.
func Map(fn HostFunc, items []any) ([]any, error) {
	if fn == nil {
		return nil, ErrInvalidValue
	}
	if isShutdownRequested() {
		return nil, ErrShutdownInProgress
	}

	results := make([]any, len(items))
	var mu sync.Mutex
	var firstErr error

	p := pool.New().WithMaxGoroutines(GetThreadPoolInfo().NumThreads)
	for i, item := range items {
		i, item := i, item
		p.Go(func() {
			value, err := getInvoker().Call(context.Background(), fn, []any{item}, nil)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			results[i] = value
		})
	}
	p.Wait()
	return results, firstErr
}
