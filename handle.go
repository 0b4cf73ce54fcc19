package parallel

import (
	"context"
	"errors"
	"sync"
	"time"

	slog "github.com/vearne/simplelog"
)

// TaskStatus describes where a task is in its lifecycle.
type TaskStatus int

const (
	StatusPending TaskStatus = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
	StatusTimedOut
)

func (s TaskStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// AsyncHandle is the caller-visible side of a submitted task. It is shared
// between the submitter and the worker; the worker delivers exactly one
// Result down ch, and the first receive populates the cache so Get is
// idempotent.
type AsyncHandle struct {
	taskID    string
	funcName  string
	startTime time.Time
	timeout   time.Duration

	ch        chan Result
	done      *AtomicBool
	cancelled *AtomicBool
	timedOut  *AtomicBool

	// ctx is cancelled when the cancel token flips, so cooperative host
	// callables can observe cancellation mid-call.
	ctx    context.Context
	cancel context.CancelFunc

	// recvMutex serializes channel consumption so concurrent Get calls
	// cannot strand each other on the single-shot channel.
	recvMutex sync.Mutex

	mu         sync.Mutex
	status     TaskStatus
	cache      *Result
	metaKeys   []string
	metadata   map[string]any
	onComplete func(any)
	onError    func(error)
	onProgress func(float64)
}

var _ Future = (*AsyncHandle)(nil)

func newHandle(taskID, funcName string, timeout time.Duration) *AsyncHandle {
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncHandle{
		taskID:    taskID,
		funcName:  funcName,
		startTime: time.Now(),
		timeout:   timeout,
		ch:        make(chan Result, 1),
		done:      NewAtomicBool(false),
		cancelled: NewAtomicBool(false),
		timedOut:  NewAtomicBool(false),
		ctx:       ctx,
		cancel:    cancel,
		status:    StatusPending,
		metadata:  make(map[string]any),
	}
}

// IsReady reports whether the task reached a terminal state.
func (h *AsyncHandle) IsReady() bool {
	if h.done.IsTrue() {
		return true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cache != nil
}

// Get blocks until the task finishes, then returns its outcome. The first
// call caches the result and fires the terminal callback; repeated calls
// replay the cached outcome.
func (h *AsyncHandle) Get() (any, error) {
	h.recvMutex.Lock()
	defer h.recvMutex.Unlock()
	if res := h.cached(); res != nil {
		return res.Value, res.Err
	}
	res := <-h.ch
	h.settle(res)
	return res.Value, res.Err
}

// TryGet returns the outcome without blocking. The second return value
// reports whether a terminal outcome was available.
func (h *AsyncHandle) TryGet() (any, bool, error) {
	if res := h.cached(); res != nil {
		return res.Value, true, res.Err
	}
	if !h.recvMutex.TryLock() {
		// Another caller is mid-receive; the outcome is not ours to take.
		return nil, false, nil
	}
	defer h.recvMutex.Unlock()
	if res := h.cached(); res != nil {
		return res.Value, true, res.Err
	}
	select {
	case res := <-h.ch:
		h.settle(res)
		return res.Value, true, res.Err
	default:
		return nil, false, nil
	}
}

// Wait blocks until the task is ready or the timeout elapses; timeout <= 0
// waits indefinitely. The task keeps running either way.
func (h *AsyncHandle) Wait(timeout time.Duration) bool {
	const tick = 10 * time.Millisecond
	if timeout <= 0 {
		for !h.IsReady() {
			time.Sleep(tick)
		}
		return true
	}
	deadline := time.Now().Add(timeout)
	for !h.IsReady() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(tick)
	}
	return true
}

// Cancel requests cooperative cancellation. The worker observes the token
// before and after the host call; a call already in flight is interrupted
// only if the callable watches its context.
func (h *AsyncHandle) Cancel() {
	h.cancelled.Set(true)
	h.cancel()
}

// CancelWithTimeout cancels and polls readiness with 10ms granularity,
// reporting whether the task reached a terminal state within d.
func (h *AsyncHandle) CancelWithTimeout(d time.Duration) bool {
	h.Cancel()
	return h.Wait(d)
}

func (h *AsyncHandle) IsCancelled() bool {
	return h.cancelled.IsTrue()
}

// ElapsedTime reports time since submission.
func (h *AsyncHandle) ElapsedTime() time.Duration {
	return time.Since(h.startTime)
}

// Progress reads the task's last reported progress, zero if none.
func (h *AsyncHandle) Progress() float64 {
	return readTaskProgress(h.taskID)
}

func (h *AsyncHandle) Name() string {
	return h.funcName
}

func (h *AsyncHandle) TaskID() string {
	return h.taskID
}

func (h *AsyncHandle) Timeout() time.Duration {
	return h.timeout
}

func (h *AsyncHandle) Status() TaskStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *AsyncHandle) SetMetadata(key string, value any) {
	h.mu.Lock()
	if _, ok := h.metadata[key]; !ok {
		h.metaKeys = append(h.metaKeys, key)
	}
	h.metadata[key] = value
	h.mu.Unlock()
}

func (h *AsyncHandle) GetMetadata(key string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.metadata[key]
	return v, ok
}

// AllMetadata returns a copy of the metadata map; MetadataKeys preserves
// insertion order.
func (h *AsyncHandle) AllMetadata() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]any, len(h.metadata))
	for k, v := range h.metadata {
		out[k] = v
	}
	return out
}

func (h *AsyncHandle) MetadataKeys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]string, len(h.metaKeys))
	copy(keys, h.metaKeys)
	return keys
}

// OnComplete registers the callback fired once when the task completes
// successfully. At most one callback; later calls replace earlier ones.
func (h *AsyncHandle) OnComplete(cb func(value any)) {
	h.mu.Lock()
	h.onComplete = cb
	h.mu.Unlock()
}

// OnError registers the callback fired once when the task finishes with an
// error, a cancellation, or a timeout.
func (h *AsyncHandle) OnError(cb func(err error)) {
	h.mu.Lock()
	h.onError = cb
	h.mu.Unlock()
}

// OnProgress registers a callback invoked synchronously from within
// ReportProgress for this task.
func (h *AsyncHandle) OnProgress(cb func(progress float64)) {
	h.mu.Lock()
	h.onProgress = cb
	h.mu.Unlock()
	registerProgressCallback(h.taskID, cb)
}

func (h *AsyncHandle) cached() *Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cache
}

// settle caches the received outcome and fires the matching terminal
// callback exactly once. Callback slots are cleared afterwards so handles
// captured in closures do not outlive the task.
func (h *AsyncHandle) settle(res Result) {
	h.mu.Lock()
	if h.cache != nil {
		h.mu.Unlock()
		return
	}
	h.cache = &res
	complete, fail := h.onComplete, h.onError
	h.onComplete, h.onError, h.onProgress = nil, nil, nil
	h.mu.Unlock()

	if res.Err == nil && complete != nil {
		invokeCallback(h.taskID, "on_complete", func() { complete(res.Value) })
	}
	if res.Err != nil && fail != nil {
		invokeCallback(h.taskID, "on_error", func() { fail(res.Err) })
	}
}

// finish is the worker-side delivery: record the terminal status, send the
// single-shot outcome, then mark the handle ready.
func (h *AsyncHandle) finish(res Result) {
	h.mu.Lock()
	h.status = statusForOutcome(res.Err)
	h.mu.Unlock()
	select {
	case h.ch <- res:
	default:
		slog.Error("task %s: %v", h.taskID, errChannelClosed)
		storeTaskError(h.taskID, errChannelClosed)
	}
	h.done.Set(true)
}

func (h *AsyncHandle) markRunning() {
	h.mu.Lock()
	if h.status == StatusPending {
		h.status = StatusRunning
	}
	h.mu.Unlock()
}

// cancellationCause reports why the task should stop, nil when it may
// proceed. Timeout wins over plain cancellation for diagnostics.
func (h *AsyncHandle) cancellationCause() error {
	if h.timedOut.IsTrue() {
		return &TaskError{
			TaskName: h.funcName,
			TaskID:   h.taskID,
			Elapsed:  h.ElapsedTime(),
			Err:      ErrTaskTimeout,
		}
	}
	if h.cancelled.IsTrue() {
		return ErrTaskCanceled
	}
	if isShutdownRequested() {
		return ErrTaskCanceled
	}
	return nil
}

func statusForOutcome(err error) TaskStatus {
	// A dependency failure is a failure of this task even when the
	// upstream was cancelled or timed out.
	var depErr *DependencyError
	switch {
	case err == nil:
		return StatusCompleted
	case errors.As(err, &depErr):
		return StatusFailed
	case errors.Is(err, ErrTaskTimeout):
		return StatusTimedOut
	case errors.Is(err, ErrTaskCanceled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

func invokeCallback(taskID, kind string, call func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("%s callback failed for task %s: %v", kind, taskID, r)
		}
	}()
	call()
}
