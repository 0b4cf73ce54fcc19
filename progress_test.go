package parallel

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressCallbackSeesEveryValue(t *testing.T) {
	resetRuntime(t)

	gate := make(chan struct{})
	h, err := SubmitThread(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		<-gate
		for i := 1; i <= 10; i++ {
			if err := ReportProgress(ctx, float64(i)/10); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}, nil, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []float64
	h.OnProgress(func(p float64) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})
	close(gate)
	waitAll(t, h)

	require.Len(t, seen, 10)
	for i, p := range seen {
		assert.InDelta(t, float64(i+1)/10, p, 1e-9)
	}
}

func TestReportProgressValidation(t *testing.T) {
	resetRuntime(t)

	for _, v := range []float64{-0.1, 1.1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := ReportProgressFor("validation_task", v)
		require.ErrorIs(t, err, ErrInvalidValue)
	}
	// Rejected values never reach the progress map.
	assert.Zero(t, readTaskProgress("validation_task"))
}

func TestReportProgressWithoutContext(t *testing.T) {
	resetRuntime(t)

	err := ReportProgress(context.Background(), 0.5)
	require.ErrorIs(t, err, ErrNoTaskContext)
}

func TestCurrentTaskIDInsideTask(t *testing.T) {
	resetRuntime(t)

	h, err := SubmitThread(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		id, ok := CurrentTaskID(ctx)
		if !ok {
			return nil, ErrNoTaskContext
		}
		return id, nil
	}, nil, nil)
	require.NoError(t, err)

	value, err := h.Get()
	require.NoError(t, err)
	assert.Equal(t, h.TaskID(), value)

	_, ok := CurrentTaskID(context.Background())
	assert.False(t, ok)
}

func TestHandleProgressRead(t *testing.T) {
	resetRuntime(t)

	gate := make(chan struct{})
	release := make(chan struct{})
	h, err := SubmitThread(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		if err := ReportProgress(ctx, 0.25); err != nil {
			return nil, err
		}
		close(gate)
		<-release
		return nil, nil
	}, nil, nil)
	require.NoError(t, err)

	<-gate
	assert.InDelta(t, 0.25, h.Progress(), 1e-9)
	close(release)
	waitAll(t, h)

	// Progress entries are cleared at finalize.
	assert.Eventually(t, func() bool {
		return readTaskProgress(h.TaskID()) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestProgressCallbackPanicIsRecovered(t *testing.T) {
	resetRuntime(t)

	gate := make(chan struct{})
	h, err := SubmitThread(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		<-gate
		return nil, ReportProgress(ctx, 0.5)
	}, nil, nil)
	require.NoError(t, err)

	h.OnProgress(func(p float64) {
		panic("progress callback exploded")
	})
	close(gate)

	_, err = h.Get()
	require.NoError(t, err)
}
