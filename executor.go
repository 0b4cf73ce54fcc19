package parallel

import (
	"reflect"
	"runtime"
	"strings"
	"time"

	slog "github.com/vearne/simplelog"
)

// task is the unit handed to a worker strategy. All strategies share the
// same body (execute) and result-delivery contract.
type task struct {
	id       string
	funcName string
	fn       HostFunc
	args     []any
	kwargs   map[string]any
	deps     []string
	handle   *AsyncHandle
}

// newTask runs admission, allocates the task identity, registers the task
// as active, and arms the timeout timer. The caller picks the launch path.
func newTask(fn HostFunc, args []any, kwargs map[string]any, opts []Option) (*task, error) {
	if fn == nil {
		return nil, ErrInvalidValue
	}
	if err := admit(); err != nil {
		return nil, err
	}

	var o submitOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = funcName(fn)
	}

	id := nextTaskID()
	h := newHandle(id, o.name, o.timeout)
	t := &task{
		id:       id,
		funcName: o.name,
		fn:       fn,
		args:     args,
		kwargs:   kwargs,
		handle:   h,
	}
	registerTask(h)
	if o.timeout > 0 {
		armTimeout(h)
	}
	return t, nil
}

// armTimeout starts the companion timer that flips the cancel token after
// the configured duration. Completion before elapse stops the timer via
// finalizeTask, so timers do not accumulate.
func armTimeout(h *AsyncHandle) {
	timer := time.AfterFunc(h.timeout, func() {
		slog.Debug("task %s: timeout of %v elapsed", h.taskID, h.timeout)
		h.timedOut.Set(true)
		h.Cancel()
	})
	registerTimeoutTimer(h.taskID, timer)
}

// SubmitThread launches fn on a dedicated goroutine (Strategy A, the
// default launch path).
func SubmitThread(fn HostFunc, args []any, kwargs map[string]any, opts ...Option) (*AsyncHandle, error) {
	t, err := newTask(fn, args, kwargs, opts)
	if err != nil {
		return nil, err
	}
	go execute(t)
	return t.handle, nil
}

// funcName derives a display name for metrics from the function symbol,
// trimmed to its last path element.
func funcName(fn HostFunc) string {
	pc := reflect.ValueOf(fn).Pointer()
	f := runtime.FuncForPC(pc)
	if f == nil {
		return "unknown"
	}
	name := f.Name()
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	if name == "" {
		return "unknown"
	}
	return name
}
