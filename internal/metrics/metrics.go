package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registry scraped at /metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	routeSaves          *prometheus.CounterVec
	ghostsRemoved       prometheus.Counter
	junctionBoxes       *prometheus.CounterVec
	editorWorkspaces    prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cablenet",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cablenet",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	routeSaves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cablenet",
		Name:      "route_saves_total",
		Help:      "Route document writes by origin and result",
	}, []string{"origin", "result"})

	ghostsRemoved := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cablenet",
		Name:      "ghost_routes_removed_total",
		Help:      "Route features erased because no location or hub claims them",
	})

	junctionBoxes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cablenet",
		Name:      "junction_boxes_total",
		Help:      "Junction box changes by operation",
	}, []string{"op"})

	editorWorkspaces := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cablenet",
		Name:      "editor_workspaces",
		Help:      "Editor workspaces currently held in memory",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		routeSaves,
		ghostsRemoved,
		junctionBoxes,
		editorWorkspaces,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		routeSaves:          routeSaves,
		ghostsRemoved:       ghostsRemoved,
		junctionBoxes:       junctionBoxes,
		editorWorkspaces:    editorWorkspaces,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle. path should
// be the route pattern, not the raw URL, to keep cardinality bounded.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// IncRouteSave counts a route document write. origin is e.g. "editor",
// "ghosts", "cable" or "api".
func (m *Metrics) IncRouteSave(origin string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.routeSaves.WithLabelValues(origin, result).Inc()
}

func (m *Metrics) AddGhostsRemoved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ghostsRemoved.Add(float64(n))
}

func (m *Metrics) IncJunctionBox(op string) {
	if m == nil {
		return
	}
	m.junctionBoxes.WithLabelValues(op).Inc()
}

func (m *Metrics) SetEditorWorkspaces(n int) {
	if m == nil {
		return
	}
	m.editorWorkspaces.Set(float64(n))
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
