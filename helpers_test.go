package parallel

import (
	"context"
	"testing"
	"time"
)

// resetRuntime restores the process-wide runtime state around a test.
func resetRuntime(t *testing.T) {
	t.Helper()
	ResetShutdown()
	ClearMaxConcurrentTasks()
	ClearMemoryLimit()
	ResetMetrics()
	t.Cleanup(func() {
		StopPriorityWorker()
		ResetShutdown()
		ClearMaxConcurrentTasks()
		ClearMemoryLimit()
		ResetMetrics()
	})
}

func identityTask(v any) HostFunc {
	return func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return v, nil
	}
}

// sleepTask sleeps cooperatively: a cancelled task context wakes it early.
func sleepTask(d time.Duration) HostFunc {
	return func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		select {
		case <-time.After(d):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func failingTask(err error) HostFunc {
	return func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return nil, err
	}
}

func waitAll(t *testing.T, handles ...*AsyncHandle) {
	t.Helper()
	for _, h := range handles {
		_, _ = h.Get()
	}
}
