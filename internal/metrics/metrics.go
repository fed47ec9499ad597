// Package metrics holds the Prometheus instruments of the sync pipeline and
// the HTTP surface. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "attendance_"

	resultSuccess = "success"
	resultError   = "error"
	resultSkipped = "skipped"
)

// Metrics bundles every collector registered by New.
type Metrics struct {
	gatherer prometheus.Gatherer

	syncRuns        *prometheus.CounterVec
	syncRunLatency  *prometheus.HistogramVec
	syncDevices     *prometheus.CounterVec
	syncRecords     *prometheus.CounterVec
	syncLastSuccess *prometheus.GaugeVec

	queueWait  *prometheus.HistogramVec
	queueTasks *prometheus.CounterVec

	gatewayRequests *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec

	cacheLookups *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. Pass a fresh
// prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "sync_runs_total",
			Help: "Sync runs by engine, trigger and result",
		}, []string{"engine", "trigger", "result"}),
		syncRunLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "sync_run_duration_seconds",
			Help:    "Sync run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"engine"}),
		syncDevices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "sync_devices_total",
			Help: "Devices queried by engine and result",
		}, []string{"engine", "result"}),
		syncRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "sync_records_total",
			Help: "Records handled by engine and outcome",
		}, []string{"engine", "outcome"}),
		syncLastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricPrefix + "sync_last_success_timestamp_seconds",
			Help: "Unix time of the last completed sync run",
		}, []string{"engine"}),
		queueWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "queue_wait_seconds",
			Help:    "Time a gateway request waited in the request queue",
			Buckets: []float64{0.1, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		queueTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "queue_tasks_total",
			Help: "Queued tasks by kind and result",
		}, []string{"kind", "result"}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "gateway_requests_total",
			Help: "Device gateway requests by endpoint and result",
		}, []string{"endpoint", "result"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricPrefix + "gateway_circuit_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "cache_lookups_total",
			Help: "Cache lookups by cache and result",
		}, []string{"cache", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.syncRuns, m.syncRunLatency, m.syncDevices, m.syncRecords, m.syncLastSuccess,
		m.queueWait, m.queueTasks,
		m.gatewayRequests, m.breakerState,
		m.cacheLookups,
		m.httpRequests, m.httpLatency,
	)
	return m
}

// NewDefault registers with a new registry that also carries the Go runtime
// and process collectors.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return New(reg)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// RecordSyncRun records a finished run. skipped marks a single-flight rejection.
func (m *Metrics) RecordSyncRun(engine, trigger string, took time.Duration, skipped bool, err error) {
	if m == nil {
		return
	}
	res := result(err)
	if skipped {
		res = resultSkipped
	}
	m.syncRuns.WithLabelValues(engine, trigger, res).Inc()
	if skipped {
		return
	}
	m.syncRunLatency.WithLabelValues(engine).Observe(took.Seconds())
	if err == nil {
		m.syncLastSuccess.WithLabelValues(engine).SetToCurrentTime()
	}
}

// RecordDevice records one device visit.
func (m *Metrics) RecordDevice(engine string, err error) {
	if m == nil {
		return
	}
	m.syncDevices.WithLabelValues(engine, result(err)).Inc()
}

// AddRecords adds n records with the given outcome (inserted, matched, upserted, skipped).
func (m *Metrics) AddRecords(engine, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.syncRecords.WithLabelValues(engine, outcome).Add(float64(n))
}

// queueKind reduces a task label such as "employees:10.0.0.1:4370#1" to "employees".
func queueKind(label string) string {
	if label == "" {
		return "unlabeled"
	}
	return strings.SplitN(label, ":", 2)[0]
}

// QueueWait implements queue.Observer.
func (m *Metrics) QueueWait(label string, wait time.Duration) {
	if m == nil {
		return
	}
	m.queueWait.WithLabelValues(queueKind(label)).Observe(wait.Seconds())
}

// QueueTask implements queue.Observer.
func (m *Metrics) QueueTask(label string, _ time.Duration, err error) {
	if m == nil {
		return
	}
	m.queueTasks.WithLabelValues(queueKind(label), result(err)).Inc()
}

// RecordGatewayRequest records one gateway call; rejected marks an open circuit.
func (m *Metrics) RecordGatewayRequest(endpoint string, rejected bool, err error) {
	if m == nil {
		return
	}
	res := result(err)
	if rejected {
		res = "rejected"
	}
	m.gatewayRequests.WithLabelValues(endpoint, res).Inc()
}

// SetBreakerState publishes the numeric breaker state.
func (m *Metrics) SetBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(state)
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	res := "miss"
	if hit {
		res = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, res).Inc()
}

// RecordHTTPRequest records a served request against its route template.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(took.Seconds())
}
