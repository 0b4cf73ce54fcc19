package parallel

import (
	"time"

	slog "github.com/vearne/simplelog"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	shutdownPollInterval   = 100 * time.Millisecond
)

// Shutdown stops the runtime: no new submissions are admitted, the
// priority consumer is stopped, and (optionally) every outstanding task is
// cancelled. It then waits up to timeout for the active set to drain and
// reports whether quiescence was reached. Leftover tasks detach; their
// results, if any, are stored but no caller may depend on them.
func Shutdown(timeout time.Duration, cancelPending bool) bool {
	slog.Info("initiating graceful shutdown")
	shutdownFlag.Set(true)
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	StopPriorityWorker()
	drainPriorityQueue()

	if cancelPending {
		handles := snapshotActiveTasks()
		if len(handles) > 0 {
			slog.Info("cancelling %d remaining tasks", len(handles))
		}
		for _, h := range handles {
			h.Cancel()
		}
	}

	start := time.Now()
	for {
		active := GetActiveTaskCount()
		if active == 0 {
			shutdownPool()
			cleanupRegistries()
			slog.Info("all tasks completed, shutdown successful")
			return true
		}
		if time.Since(start) >= timeout {
			slog.Warn("shutdown timeout reached, %d tasks still active", active)
			return false
		}
		time.Sleep(shutdownPollInterval)
	}
}

// drainPriorityQueue fails every task still queued on the stopped
// consumer's heap, so the drain below can reach quiescence.
func drainPriorityQueue() {
	for {
		t := popPriorityTask()
		if t == nil {
			return
		}
		storeTaskError(t.id, ErrTaskCanceled)
		t.handle.finish(Result{Err: ErrTaskCanceled})
		finalizeTask(t.id)
	}
}

// ResetShutdown clears the shutdown flag so a test harness can restart
// after a clean stop.
func ResetShutdown() {
	shutdownFlag.Set(false)
}
