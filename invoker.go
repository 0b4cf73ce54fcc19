package parallel

import (
	"context"
	"fmt"
)

// NativeInvoker executes Go callables in-process. There is no interpreter
// lock to manage; panics raised by the callable are converted into errors,
// mirroring how a binding layer reports host exceptions.
type NativeInvoker struct{}

func (NativeInvoker) Call(ctx context.Context, fn HostFunc, args []any, kwargs map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("host callable panicked: %v", r)
		}
	}()
	return fn(ctx, args, kwargs)
}

// CloneValue returns the value as-is. Go values shared between tasks follow
// the usual aliasing rules; bindings with copy semantics override this.
func (NativeInvoker) CloneValue(v any) any {
	return v
}
