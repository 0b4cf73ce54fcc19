package parallel

import (
	"fmt"
	"sync"
	"time"
)

// ErrorPolicy selects how Gather treats a handle that finished with an
// error.
type ErrorPolicy string

const (
	// ErrorPolicyRaise stops at the first error and returns it.
	ErrorPolicyRaise ErrorPolicy = "raise"
	// ErrorPolicySkip drops failed results from the output.
	ErrorPolicySkip ErrorPolicy = "skip"
	// ErrorPolicyNone keeps a nil placeholder for failed results.
	ErrorPolicyNone ErrorPolicy = "none"
)

// Gather blocks on every handle and collects the values in handle order.
func Gather(handles []*AsyncHandle, policy ErrorPolicy) ([]any, error) {
	results := make([]any, 0, len(handles))
	for _, h := range handles {
		value, err := h.Get()
		if err != nil {
			switch policy {
			case ErrorPolicyRaise:
				return results, err
			case ErrorPolicySkip:
				continue
			case ErrorPolicyNone:
				results = append(results, nil)
			default:
				return results, fmt.Errorf("%w: error policy must be %q, %q, or %q",
					ErrInvalidValue, ErrorPolicyRaise, ErrorPolicySkip, ErrorPolicyNone)
			}
			continue
		}
		results = append(results, value)
	}
	return results, nil
}

// Group tracks a batch of submissions so the whole batch can be awaited at
// once. A timeout set on the group applies to every task it submits.
type Group struct {
	mu      sync.Mutex
	handles []*AsyncHandle
	timeout time.Duration
}

func NewGroup(opts ...Option) *Group {
	var o submitOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Group{timeout: o.timeout}
}

// Submit launches fn on a dedicated goroutine and tracks the handle.
func (g *Group) Submit(fn HostFunc, args []any, kwargs map[string]any, opts ...Option) (*AsyncHandle, error) {
	if g.timeout > 0 {
		opts = append([]Option{WithTimeout(g.timeout)}, opts...)
	}
	h, err := SubmitThread(fn, args, kwargs, opts...)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.handles = append(g.handles, h)
	g.mu.Unlock()
	return h, nil
}

// Wait blocks on every tracked handle and returns the first error.
func (g *Group) Wait() error {
	g.mu.Lock()
	handles := make([]*AsyncHandle, len(g.handles))
	copy(handles, g.handles)
	g.mu.Unlock()

	var firstErr error
	for _, h := range handles {
		if _, err := h.Get(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Handles returns the tracked handles in submission order.
func (g *Group) Handles() []*AsyncHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*AsyncHandle, len(g.handles))
	copy(out, g.handles)
	return out
}
