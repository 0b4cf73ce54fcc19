package parallel

import (
	"errors"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecording(t *testing.T) {
	resetRuntime(t)

	h, err := SubmitThread(sleepTask(20*time.Millisecond), nil, nil, WithName("timed_fn"))
	require.NoError(t, err)
	waitAll(t, h)

	snap, ok := GetMetrics("timed_fn")
	require.True(t, ok)
	assert.Equal(t, uint64(1), snap.TotalTasks)
	assert.Equal(t, uint64(1), snap.CompletedTasks)
	assert.Equal(t, uint64(0), snap.FailedTasks)
	assert.GreaterOrEqual(t, snap.TotalExecutionTimeMS, 20.0)
	assert.Equal(t, snap.TotalExecutionTimeMS, snap.AverageExecutionTimeMS)

	bad, err := SubmitThread(failingTask(errors.New("nope")), nil, nil, WithName("timed_fn"))
	require.NoError(t, err)
	waitAll(t, bad)

	snap, ok = GetMetrics("timed_fn")
	require.True(t, ok)
	assert.Equal(t, uint64(2), snap.TotalTasks)
	assert.Equal(t, uint64(1), snap.FailedTasks)

	total, completed, failed := GlobalCounters()
	assert.Equal(t, uint64(2), total)
	assert.Equal(t, uint64(1), completed)
	assert.Equal(t, uint64(1), failed)
}

func TestResetMetricsKeepsObservedNames(t *testing.T) {
	resetRuntime(t)

	h, err := SubmitThread(identityTask(1), nil, nil, WithName("reset_fn"))
	require.NoError(t, err)
	waitAll(t, h)

	ResetMetrics()

	all := GetAllMetrics()
	snap, ok := all["reset_fn"]
	require.True(t, ok)
	assert.Zero(t, snap.TotalTasks)
	assert.Zero(t, snap.CompletedTasks)
	assert.Zero(t, snap.FailedTasks)
	assert.Zero(t, snap.TotalExecutionTimeMS)

	total, completed, failed := GlobalCounters()
	assert.Zero(t, total)
	assert.Zero(t, completed)
	assert.Zero(t, failed)
}

func TestAllMetricsJSON(t *testing.T) {
	resetRuntime(t)

	h, err := SubmitThread(identityTask(1), nil, nil, WithName("json_fn"))
	require.NoError(t, err)
	waitAll(t, h)

	data, err := AllMetricsJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "functions")
	assert.Contains(t, decoded, "_global_total")
	assert.Contains(t, decoded["functions"], "json_fn")
}

func TestPrometheusCollector(t *testing.T) {
	resetRuntime(t)

	h, err := SubmitThread(identityTask(1), nil, nil, WithName("prom_fn"))
	require.NoError(t, err)
	waitAll(t, h)

	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["parallel_tasks_total"])
	assert.True(t, names["parallel_tasks_completed_total"])
	assert.True(t, names["parallel_active_tasks"])
}
