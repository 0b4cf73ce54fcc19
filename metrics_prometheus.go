package parallel

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	descTasksTotal = prometheus.NewDesc(
		"parallel_tasks_total",
		"Tasks whose host call has returned, by function name; tasks still running are not counted.",
		[]string{"function"}, nil,
	)
	descTasksCompleted = prometheus.NewDesc(
		"parallel_tasks_completed_total",
		"Tasks finished successfully, by function name.",
		[]string{"function"}, nil,
	)
	descTasksFailed = prometheus.NewDesc(
		"parallel_tasks_failed_total",
		"Tasks whose host call ended with an error, cancellation, or timeout, by function name.",
		[]string{"function"}, nil,
	)
	descExecSeconds = prometheus.NewDesc(
		"parallel_task_execution_seconds_total",
		"Cumulative host-call execution time, by function name.",
		[]string{"function"}, nil,
	)
	descActiveTasks = prometheus.NewDesc(
		"parallel_active_tasks",
		"Tasks currently in flight.",
		nil, nil,
	)
)

// metricsCollector exposes the runtime's counters as Prometheus metrics
// without double-accounting: it reads the same registries the metrics API
// serves.
type metricsCollector struct{}

func (metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descTasksTotal
	ch <- descTasksCompleted
	ch <- descTasksFailed
	ch <- descExecSeconds
	ch <- descActiveTasks
}

func (metricsCollector) Collect(ch chan<- prometheus.Metric) {
	for name, snap := range GetAllMetrics() {
		ch <- prometheus.MustNewConstMetric(
			descTasksTotal, prometheus.CounterValue, float64(snap.TotalTasks), name)
		ch <- prometheus.MustNewConstMetric(
			descTasksCompleted, prometheus.CounterValue, float64(snap.CompletedTasks), name)
		ch <- prometheus.MustNewConstMetric(
			descTasksFailed, prometheus.CounterValue, float64(snap.FailedTasks), name)
		ch <- prometheus.MustNewConstMetric(
			descExecSeconds, prometheus.CounterValue, snap.TotalExecutionTimeMS/1000.0, name)
	}
	ch <- prometheus.MustNewConstMetric(
		descActiveTasks, prometheus.GaugeValue, float64(GetActiveTaskCount()))
}

// RegisterMetrics registers the runtime's metrics with the provided
// registerer (the default one when reg is nil).
func RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return reg.Register(metricsCollector{})
}
