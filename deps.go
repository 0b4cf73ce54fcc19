package parallel

import (
	"context"
	"fmt"
	"time"

	slog "github.com/vearne/simplelog"
)

const (
	depPollInterval = 100 * time.Millisecond
	depWaitCap      = 10 * time.Minute
)

// SubmitWithDeps launches fn once every task named in deps has finished
// (Strategy D). The worker thread starts immediately and blocks in the
// resolver; on success the upstream results are prepended to args as a
// single []any, in declaration order. If any upstream failed or was
// cancelled, the task fails with a DependencyError and fn never runs.
func SubmitWithDeps(fn HostFunc, args []any, kwargs map[string]any, deps []string, opts ...Option) (*AsyncHandle, error) {
	t, err := newTask(fn, args, kwargs, opts)
	if err != nil {
		return nil, err
	}
	t.deps = append([]string(nil), deps...)
	addDependents(t.deps)
	go execute(t)
	return t.handle, nil
}

// DependsOn extracts the task ids of the given handles, the common way to
// build a deps list for SubmitWithDeps.
func DependsOn(handles ...*AsyncHandle) []string {
	ids := make([]string, 0, len(handles))
	for _, h := range handles {
		if h != nil {
			ids = append(ids, h.TaskID())
		}
	}
	return ids
}

// resolveDependencies polls until every upstream id has a stored result or
// error. Resolution order is declaration order, not completion order.
// Retained results are released (reference-counted) as they are consumed.
func resolveDependencies(ctx context.Context, h *AsyncHandle, deps []string) ([]any, error) {
	start := time.Now()
	results := make([]any, 0, len(deps))
	for _, depID := range deps {
		for {
			if isShutdownRequested() {
				slog.Warn("dependency wait cancelled: shutdown in progress")
				return nil, ErrShutdownInProgress
			}
			if h.cancelled.IsTrue() {
				return nil, h.cancellationCause()
			}
			if err, ok := lookupTaskError(depID); ok {
				slog.Error("dependency %s failed: %v", depID, err)
				return nil, &DependencyError{UpstreamID: depID, Cause: err}
			}
			if value, ok := lookupTaskResult(depID); ok {
				results = append(results, getInvoker().CloneValue(value))
				releaseDependent(depID)
				break
			}
			if time.Since(start) > depWaitCap {
				slog.Error("dependency %s timed out after %v", depID, depWaitCap)
				return nil, fmt.Errorf("dependency %s: %w after %v", depID, ErrTaskTimeout, depWaitCap)
			}
			select {
			case <-ctx.Done():
				return nil, h.cancellationCause()
			case <-time.After(depPollInterval):
			}
		}
	}
	return results, nil
}
