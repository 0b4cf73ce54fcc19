package parallel

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	slog "github.com/vearne/simplelog"
)

// LogLevelEnv is the single environment variable governing log verbosity.
const LogLevelEnv = "PARALLEL_LOG_LEVEL"

// Process-wide runtime state. The registries are created at package load;
// teardown is explicit via Shutdown.
var (
	taskIDCounter atomic.Uint64
	shutdownFlag  = NewAtomicBool(false)

	activeMutex sync.Mutex
	activeTasks = make(map[string]*AsyncHandle)

	// taskResults and taskErrors feed dependency resolution. An id is never
	// present in both. depCounts tracks pending dependents per upstream id;
	// results with no declared dependents linger until shutdown cleanup.
	resultsMutex sync.Mutex
	taskResults  = make(map[string]any)
	taskErrors   = make(map[string]error)
	depCounts    = make(map[string]int)

	progressMutex     sync.RWMutex
	taskProgress      = make(map[string]float64)
	progressCallbacks = make(map[string]func(float64))

	timersMutex   sync.Mutex
	timeoutTimers = make(map[string]*time.Timer)
)

func init() {
	if v := os.Getenv(LogLevelEnv); v != "" {
		applyLogLevel(v)
	}
}

func applyLogLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		slog.SetLevel(slog.DebugLevel)
	case "info":
		slog.SetLevel(slog.InfoLevel)
	case "warn", "warning":
		slog.SetLevel(slog.WarnLevel)
	case "error":
		slog.SetLevel(slog.ErrorLevel)
	default:
		slog.Warn("unknown log level %q, keeping current level", level)
	}
}

func isShutdownRequested() bool {
	return shutdownFlag.IsTrue()
}

func nextTaskID() string {
	return fmt.Sprintf("task_%d", taskIDCounter.Add(1)-1)
}

func registerTask(h *AsyncHandle) {
	activeMutex.Lock()
	activeTasks[h.taskID] = h
	activeMutex.Unlock()
}

func unregisterTask(taskID string) {
	activeMutex.Lock()
	delete(activeTasks, taskID)
	activeMutex.Unlock()
}

// GetActiveTaskCount reports how many tasks are currently in flight.
func GetActiveTaskCount() int {
	activeMutex.Lock()
	defer activeMutex.Unlock()
	return len(activeTasks)
}

func snapshotActiveTasks() []*AsyncHandle {
	activeMutex.Lock()
	defer activeMutex.Unlock()
	handles := make([]*AsyncHandle, 0, len(activeTasks))
	for _, h := range activeTasks {
		handles = append(handles, h)
	}
	return handles
}

// storeTaskResult and storeTaskError keep the registries mutually
// exclusive: an id is never present in both.
func storeTaskResult(taskID string, value any) {
	resultsMutex.Lock()
	delete(taskErrors, taskID)
	taskResults[taskID] = value
	resultsMutex.Unlock()
}

func storeTaskError(taskID string, err error) {
	resultsMutex.Lock()
	delete(taskResults, taskID)
	taskErrors[taskID] = err
	resultsMutex.Unlock()
}

func lookupTaskResult(taskID string) (any, bool) {
	resultsMutex.Lock()
	defer resultsMutex.Unlock()
	v, ok := taskResults[taskID]
	return v, ok
}

func lookupTaskError(taskID string) (error, bool) {
	resultsMutex.Lock()
	defer resultsMutex.Unlock()
	err, ok := taskErrors[taskID]
	return err, ok
}

// addDependents records that deps gained one more pending consumer each.
func addDependents(deps []string) {
	resultsMutex.Lock()
	for _, id := range deps {
		depCounts[id]++
	}
	resultsMutex.Unlock()
}

// releaseDependent drops one pending consumer of the upstream id and clears
// the retained result once nothing can still consume it.
func releaseDependent(taskID string) {
	resultsMutex.Lock()
	if n, ok := depCounts[taskID]; ok {
		if n <= 1 {
			delete(depCounts, taskID)
			delete(taskResults, taskID)
		} else {
			depCounts[taskID] = n - 1
		}
	}
	resultsMutex.Unlock()
}

func registerTimeoutTimer(taskID string, timer *time.Timer) {
	timersMutex.Lock()
	timeoutTimers[taskID] = timer
	timersMutex.Unlock()
}

func stopTimeoutTimer(taskID string) {
	timersMutex.Lock()
	if timer, ok := timeoutTimers[taskID]; ok {
		timer.Stop()
		delete(timeoutTimers, taskID)
	}
	timersMutex.Unlock()
}

// finalizeTask is the tail of every worker body: drop the task from the
// active set and clear its per-task state.
func finalizeTask(taskID string) {
	unregisterTask(taskID)
	clearTaskProgress(taskID)
	stopTimeoutTimer(taskID)
}

// cleanupRegistries is the shutdown coordinator's bulk remove.
func cleanupRegistries() {
	timersMutex.Lock()
	for id, timer := range timeoutTimers {
		timer.Stop()
		delete(timeoutTimers, id)
	}
	timersMutex.Unlock()

	resultsMutex.Lock()
	taskResults = make(map[string]any)
	taskErrors = make(map[string]error)
	depCounts = make(map[string]int)
	resultsMutex.Unlock()

	progressMutex.Lock()
	taskProgress = make(map[string]float64)
	progressCallbacks = make(map[string]func(float64))
	progressMutex.Unlock()
}
