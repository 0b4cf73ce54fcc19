package parallel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGracefulShutdownCancelsPending(t *testing.T) {
	resetRuntime(t)

	handles := make([]*AsyncHandle, 0, 10)
	for i := 0; i < 10; i++ {
		h, err := SubmitThread(sleepTask(200*time.Millisecond), nil, nil)
		require.NoError(t, err)
		handles = append(handles, h)
	}

	require.True(t, Shutdown(time.Second, true))
	assert.Equal(t, 0, GetActiveTaskCount())

	// Each handle settles as cancelled or completed depending on the race,
	// but never hangs.
	for _, h := range handles {
		_, err := h.Get()
		if err != nil {
			assert.True(t, errors.Is(err, ErrTaskCanceled))
		}
	}
}

func TestSubmitAfterShutdownFails(t *testing.T) {
	resetRuntime(t)

	require.True(t, Shutdown(time.Second, true))
	_, err := SubmitThread(identityTask(1), nil, nil)
	require.ErrorIs(t, err, ErrShutdownInProgress)

	_, err = SubmitPool(identityTask(1), nil, nil)
	require.ErrorIs(t, err, ErrShutdownInProgress)

	_, err = SubmitPriority(identityTask(1), nil, nil, 0)
	require.ErrorIs(t, err, ErrShutdownInProgress)

	_, err = SubmitWithDeps(identityTask(1), nil, nil, nil)
	require.ErrorIs(t, err, ErrShutdownInProgress)

	_, err = Map(identityTask(1), []any{1})
	require.ErrorIs(t, err, ErrShutdownInProgress)
}

func TestResetShutdownAllowsNewWork(t *testing.T) {
	resetRuntime(t)

	require.True(t, Shutdown(time.Second, true))
	ResetShutdown()

	h, err := SubmitThread(identityTask("back"), nil, nil)
	require.NoError(t, err)
	value, err := h.Get()
	require.NoError(t, err)
	assert.Equal(t, "back", value)
}

func TestShutdownFailsQueuedPriorityTasks(t *testing.T) {
	resetRuntime(t)
	StopPriorityWorker()

	h, err := SubmitPriority(identityTask(1), nil, nil, 0)
	require.NoError(t, err)

	require.True(t, Shutdown(time.Second, false))
	_, err = h.Get()
	require.ErrorIs(t, err, ErrTaskCanceled)
}

func TestShutdownReturnsFalseWhenTasksOutlastTimeout(t *testing.T) {
	resetRuntime(t)

	// A callable that ignores its context cannot be interrupted.
	h, err := SubmitThread(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		time.Sleep(500 * time.Millisecond)
		return nil, nil
	}, nil, nil)
	require.NoError(t, err)

	assert.False(t, Shutdown(50*time.Millisecond, true))
	waitAll(t, h)
}
