package parallel

import (
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// functionMetrics accumulates per-function counters with relaxed atomics;
// snapshots are best-effort under concurrent updates.
type functionMetrics struct {
	total         atomic.Uint64
	completed     atomic.Uint64
	failed        atomic.Uint64
	latencyMicros atomic.Int64
}

// MetricsSnapshot is a point-in-time view of one function's counters.
type MetricsSnapshot struct {
	TotalTasks             uint64  `json:"total_tasks"`
	CompletedTasks         uint64  `json:"completed_tasks"`
	FailedTasks            uint64  `json:"failed_tasks"`
	TotalExecutionTimeMS   float64 `json:"total_execution_time_ms"`
	AverageExecutionTimeMS float64 `json:"average_execution_time_ms"`
}

var (
	metricsMutex  sync.RWMutex
	metricsByFunc = make(map[string]*functionMetrics)

	globalTotal     atomic.Uint64
	globalCompleted atomic.Uint64
	globalFailed    atomic.Uint64
)

func metricsEntry(name string) *functionMetrics {
	metricsMutex.RLock()
	m := metricsByFunc[name]
	metricsMutex.RUnlock()
	if m != nil {
		return m
	}
	metricsMutex.Lock()
	defer metricsMutex.Unlock()
	if m = metricsByFunc[name]; m == nil {
		m = &functionMetrics{}
		metricsByFunc[name] = m
	}
	return m
}

func recordTaskExecution(name string, elapsed time.Duration, success bool) {
	globalTotal.Add(1)
	if success {
		globalCompleted.Add(1)
	} else {
		globalFailed.Add(1)
	}

	m := metricsEntry(name)
	m.total.Add(1)
	if success {
		m.completed.Add(1)
	} else {
		m.failed.Add(1)
	}
	m.latencyMicros.Add(elapsed.Microseconds())
}

func (m *functionMetrics) snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		TotalTasks:           m.total.Load(),
		CompletedTasks:       m.completed.Load(),
		FailedTasks:          m.failed.Load(),
		TotalExecutionTimeMS: float64(m.latencyMicros.Load()) / 1000.0,
	}
	if s.CompletedTasks > 0 {
		s.AverageExecutionTimeMS = s.TotalExecutionTimeMS / float64(s.CompletedTasks)
	}
	return s
}

// GetMetrics returns the counters recorded under the given function name.
func GetMetrics(name string) (MetricsSnapshot, bool) {
	metricsMutex.RLock()
	defer metricsMutex.RUnlock()
	m, ok := metricsByFunc[name]
	if !ok {
		return MetricsSnapshot{}, false
	}
	return m.snapshot(), true
}

// GetAllMetrics snapshots every observed function.
func GetAllMetrics() map[string]MetricsSnapshot {
	metricsMutex.RLock()
	defer metricsMutex.RUnlock()
	out := make(map[string]MetricsSnapshot, len(metricsByFunc))
	for name, m := range metricsByFunc {
		out[name] = m.snapshot()
	}
	return out
}

// GlobalCounters reports the process-wide totals across all functions.
func GlobalCounters() (total, completed, failed uint64) {
	return globalTotal.Load(), globalCompleted.Load(), globalFailed.Load()
}

// ResetMetrics zeroes every counter. Observed function names are kept with
// zeroed entries; a small window of racing updates is acceptable.
func ResetMetrics() {
	metricsMutex.Lock()
	for _, m := range metricsByFunc {
		m.total.Store(0)
		m.completed.Store(0)
		m.failed.Store(0)
		m.latencyMicros.Store(0)
	}
	metricsMutex.Unlock()
	globalTotal.Store(0)
	globalCompleted.Store(0)
	globalFailed.Store(0)
}

type metricsDump struct {
	Functions       map[string]MetricsSnapshot `json:"functions"`
	GlobalTotal     uint64                     `json:"_global_total"`
	GlobalCompleted uint64                     `json:"_global_completed"`
	GlobalFailed    uint64                     `json:"_global_failed"`
}

// AllMetricsJSON serializes the full metrics state, including the global
// counters, for export or logging.
func AllMetricsJSON() ([]byte, error) {
	total, completed, failed := GlobalCounters()
	return json.Marshal(metricsDump{
		Functions:       GetAllMetrics(),
		GlobalTotal:     total,
		GlobalCompleted: completed,
		GlobalFailed:    failed,
	})
}
