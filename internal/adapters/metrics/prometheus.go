// Package metrics publishes sprint planning measurements to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/evanschultz/sprinter/internal/app"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRegistry sets the registry metrics are registered on and served from.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// Manager owns the sprint planning metrics and implements app.Recorder.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	mutations     *prometheus.CounterVec
	autoAssigned  prometheus.Counter
	persists      *prometheus.CounterVec
	backlogTasks  prometheus.Gauge
	teamSuggested prometheus.Gauge
	teamAssigned  prometheus.Gauge
	teamRealUtil  prometheus.Gauge
	teamTargetUtl prometheus.Gauge

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var _ app.Recorder = (*Manager)(nil)

// NewManager creates a manager on a private registry unless one is supplied.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "sprinter",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.mutations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "mutations_total",
		Help:      "Sprint mutations by operation and result",
	}, []string{"operation", "result"})

	m.autoAssigned = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "auto_assigned_tasks_total",
		Help:      "Tasks placed by auto-assignment",
	})

	m.persists = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "snapshot_saves_total",
		Help:      "Snapshot save attempts by result",
	}, []string{"result"})

	m.backlogTasks = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "backlog_tasks",
		Help:      "Tasks currently in the backlog",
	})
	m.teamSuggested = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "team_suggested_story_points",
		Help:      "Sum of suggested capacity across the roster",
	})
	m.teamAssigned = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "team_assigned_story_points",
		Help:      "Story points assigned across the roster",
	})
	m.teamRealUtil = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "team_real_utilization_percent",
		Help:      "Assigned over suggested story points",
	})
	m.teamTargetUtl = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "team_target_utilization_percent",
		Help:      "Assigned over target story points",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "method"})
}

// Registry returns the registry metrics are served from.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveMutation implements app.Recorder.
func (m *Manager) ObserveMutation(operation string, err error) {
	m.mutations.WithLabelValues(operation, result(err)).Inc()
}

// ObserveAutoAssign implements app.Recorder.
func (m *Manager) ObserveAutoAssign(assigned int) {
	m.autoAssigned.Add(float64(assigned))
}

// ObservePersist implements app.Recorder.
func (m *Manager) ObservePersist(err error) {
	m.persists.WithLabelValues(result(err)).Inc()
}

// ObserveBoard implements app.Recorder.
func (m *Manager) ObserveBoard(backlog int, team app.TeamView) {
	m.backlogTasks.Set(float64(backlog))
	m.teamSuggested.Set(float64(team.TotalSuggested))
	m.teamAssigned.Set(float64(team.TotalAssigned))
	m.teamRealUtil.Set(float64(team.RealUtilization))
	m.teamTargetUtl.Set(float64(team.TargetUtilization))
}

// InstrumentHandler counts and times requests served by next under endpoint.
func (m *Manager) InstrumentHandler(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.httpRequests.WithLabelValues(endpoint, r.Method, strconv.Itoa(rec.status)).Inc()
		m.httpRequestDuration.WithLabelValues(endpoint, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the wrapped writer when it supports streaming.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
