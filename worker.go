package parallel

import (
	"time"
)

// execute is the worker body shared by all four launch strategies: observe
// the cancel token, resolve declared dependencies, run the host callable,
// record metrics, store the outcome for dependents, deliver it down the
// handle's channel, and finalize. No handle lock is held across the host
// call.
func execute(t *task) {
	h := t.handle
	defer finalizeTask(t.id)
	h.markRunning()
	ctx := withTaskID(h.ctx, t.id)

	if cause := h.cancellationCause(); cause != nil {
		storeTaskError(t.id, cause)
		h.finish(Result{Err: cause})
		return
	}

	args := t.args
	if len(t.deps) > 0 {
		resolved, err := resolveDependencies(ctx, h, t.deps)
		if err != nil {
			storeTaskError(t.id, err)
			h.finish(Result{Err: err})
			return
		}
		// Resolved upstream values arrive as a single aggregate first
		// argument, in the order the dependencies were declared.
		args = append([]any{resolved}, t.args...)
	}

	start := time.Now()
	value, err := getInvoker().Call(ctx, t.fn, args, t.kwargs)
	elapsed := time.Since(start)

	// The token is observed again after the call: a cancellation or timeout
	// that landed mid-call overrides whatever the callable returned.
	if h.cancelled.IsTrue() {
		cause := h.cancellationCause()
		recordTaskExecution(t.funcName, elapsed, false)
		storeTaskError(t.id, cause)
		h.finish(Result{Err: cause})
		return
	}

	if err != nil {
		taskErr := &TaskError{
			TaskName: t.funcName,
			TaskID:   t.id,
			Elapsed:  elapsed,
			Err:      err,
		}
		recordTaskExecution(t.funcName, elapsed, false)
		storeTaskError(t.id, taskErr)
		h.finish(Result{Err: taskErr})
		return
	}

	recordTaskExecution(t.funcName, elapsed, true)
	storeTaskResult(t.id, getInvoker().CloneValue(value))
	h.finish(Result{Value: value})
}
