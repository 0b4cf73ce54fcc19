package parallel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDependencyChain(t *testing.T) {
	resetRuntime(t)

	step1 := func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return 10, nil
	}
	step2 := func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		deps := args[0].([]any)
		return deps[0].(int) * 2, nil
	}
	step3 := func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		deps := args[0].([]any)
		return deps[0].(int) + 5, nil
	}

	h1, err := SubmitThread(step1, nil, nil)
	require.NoError(t, err)
	h2, err := SubmitWithDeps(step2, nil, nil, DependsOn(h1))
	require.NoError(t, err)
	h3, err := SubmitWithDeps(step3, nil, nil, DependsOn(h2))
	require.NoError(t, err)

	value, err := h3.Get()
	require.NoError(t, err)
	assert.Equal(t, 25, value)
}

func TestDependencyFailureSkipsDownstream(t *testing.T) {
	resetRuntime(t)

	boom := errors.New("upstream broke")
	up, err := SubmitThread(failingTask(boom), nil, nil)
	require.NoError(t, err)

	ran := false
	down, err := SubmitWithDeps(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		ran = true
		return nil, nil
	}, nil, nil, DependsOn(up))
	require.NoError(t, err)

	_, err = down.Get()
	require.Error(t, err)

	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, up.TaskID(), depErr.UpstreamID)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

func TestDependencyOnCancelledUpstream(t *testing.T) {
	resetRuntime(t)

	up, err := SubmitThread(sleepTask(time.Second), nil, nil)
	require.NoError(t, err)

	down, err := SubmitWithDeps(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return nil, nil
	}, nil, nil, DependsOn(up))
	require.NoError(t, err)

	up.Cancel()
	_, err = down.Get()
	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, up.TaskID(), depErr.UpstreamID)
}

func TestDependencyResultsAreOrderedByDeclaration(t *testing.T) {
	resetRuntime(t)

	slow, err := SubmitThread(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		time.Sleep(150 * time.Millisecond)
		return "slow", nil
	}, nil, nil)
	require.NoError(t, err)
	fast, err := SubmitThread(identityTask("fast"), nil, nil)
	require.NoError(t, err)

	down, err := SubmitWithDeps(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		deps := args[0].([]any)
		return []any{deps[0], deps[1]}, nil
	}, nil, nil, DependsOn(slow, fast))
	require.NoError(t, err)

	value, err := down.Get()
	require.NoError(t, err)
	assert.Equal(t, []any{"slow", "fast"}, value)
}

func TestDependencyResultsReleasedAfterLastConsumer(t *testing.T) {
	resetRuntime(t)

	up, err := SubmitThread(identityTask(99), nil, nil)
	require.NoError(t, err)
	waitAll(t, up)

	down, err := SubmitWithDeps(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return args[0].([]any)[0], nil
	}, nil, nil, DependsOn(up))
	require.NoError(t, err)
	waitAll(t, down)

	// The declared dependent consumed the retained result.
	_, ok := lookupTaskResult(up.TaskID())
	assert.False(t, ok)

	// The downstream task declared no dependents, so its result lingers
	// until shutdown cleanup.
	_, ok = lookupTaskResult(down.TaskID())
	assert.True(t, ok)
}

func TestDependencyArgsAppendAfterResolved(t *testing.T) {
	resetRuntime(t)

	up, err := SubmitThread(identityTask(3), nil, nil)
	require.NoError(t, err)

	down, err := SubmitWithDeps(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		deps := args[0].([]any)
		return deps[0].(int) + args[1].(int), nil
	}, []any{4}, nil, DependsOn(up))
	require.NoError(t, err)

	value, err := down.Get()
	require.NoError(t, err)
	assert.Equal(t, 7, value)
}
