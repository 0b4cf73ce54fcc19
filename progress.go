package parallel

import (
	"context"
	"fmt"
	"math"
)

type taskIDKey struct{}

// withTaskID stamps the worker's context with the task identity before the
// host call, so code inside a task can self-report without plumbing an id.
func withTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey{}, taskID)
}

// CurrentTaskID returns the identity of the task the context belongs to.
func CurrentTaskID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(taskIDKey{}).(string)
	return id, ok
}

// ReportProgress records progress for the task owning ctx. The value must
// be finite and within [0, 1]. A registered progress callback is invoked
// synchronously; its failures are logged and never affect the task.
func ReportProgress(ctx context.Context, progress float64) error {
	taskID, ok := CurrentTaskID(ctx)
	if !ok {
		return ErrNoTaskContext
	}
	return ReportProgressFor(taskID, progress)
}

// ReportProgressFor is the explicit-id variant of ReportProgress.
func ReportProgressFor(taskID string, progress float64) error {
	if math.IsNaN(progress) || math.IsInf(progress, 0) {
		return fmt.Errorf("%w: progress must be a finite number", ErrInvalidValue)
	}
	if progress < 0 || progress > 1 {
		return fmt.Errorf("%w: progress must be between 0.0 and 1.0, got %v", ErrInvalidValue, progress)
	}

	progressMutex.Lock()
	taskProgress[taskID] = progress
	cb := progressCallbacks[taskID]
	progressMutex.Unlock()

	// Callbacks run outside the map lock.
	if cb != nil {
		invokeCallback(taskID, "on_progress", func() { cb(progress) })
	}
	return nil
}

func readTaskProgress(taskID string) float64 {
	progressMutex.RLock()
	defer progressMutex.RUnlock()
	return taskProgress[taskID]
}

func registerProgressCallback(taskID string, cb func(float64)) {
	progressMutex.Lock()
	progressCallbacks[taskID] = cb
	progressMutex.Unlock()
}

func clearTaskProgress(taskID string) {
	progressMutex.Lock()
	delete(taskProgress, taskID)
	delete(progressCallbacks, taskID)
	progressMutex.Unlock()
}
