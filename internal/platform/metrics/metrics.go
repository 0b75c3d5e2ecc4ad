package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the portal.
type Metrics struct {
	HTTPLatency        *prometheus.HistogramVec
	RequestTransitions *prometheus.CounterVec
	TasksProcessed     *prometheus.CounterVec
	TaskDuration       *prometheus.HistogramVec
	RequestsCleaned    prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ddrc_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		RequestTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ddrc_vital_records_transitions_total",
			Help: "Vital records request status transitions by target status",
		}, []string{"status"}),
		TasksProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ddrc_tasks_processed_total",
			Help: "Tasks processed by the worker, by task and outcome",
		}, []string{"task", "outcome"}),
		TaskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ddrc_task_duration_seconds",
			Help:    "Task handler duration",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"task"}),
		RequestsCleaned: f.NewCounter(prometheus.CounterOpts{
			Name: "ddrc_vital_records_cleaned_total",
			Help: "Finished requests removed by the cleanup task",
		}),
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.HTTPLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) IncrementTransition(status string) {
	m.RequestTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveTask(task string, ok bool, d time.Duration) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.TasksProcessed.WithLabelValues(task, outcome).Inc()
	m.TaskDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (m *Metrics) AddCleaned(n int) {
	m.RequestsCleaned.Add(float64(n))
}
