// Package metrics exposes lifecycle and transport counters through Prometheus.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"github.com/hylla/civitas/internal/app"
	"github.com/hylla/civitas/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "civitas"

// Recorder owns one registry and the counters civitas reports.
type Recorder struct {
	registry    *prometheus.Registry
	submissions *prometheus.CounterVec
	transitions *prometheus.CounterVec
	escalations *prometheus.CounterVec
	breaches    *prometheus.CounterVec
	denials     *prometheus.CounterVec
	httpTotal   *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
}

var _ app.Observer = (*Recorder)(nil)

// NewRecorder registers civitas collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "submitted_total",
			Help:      "Citizen submissions broken down by category.",
		}, []string{"category"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "transitions_total",
			Help:      "Committed status transitions broken down by edge.",
		}, []string{"from", "to"}),
		escalations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "escalations_total",
			Help:      "Automatic priority escalations broken down by category and new priority.",
		}, []string{"category", "priority"}),
		breaches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "sla_breaches_total",
			Help:      "First-time SLA breaches broken down by category.",
		}, []string{"category"}),
		denials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "denials_total",
			Help:      "Rejected operations broken down by operation class.",
		}, []string{"operation"}),
		httpTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests broken down by surface and result class.",
		}, []string{"surface", "result"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "latency_seconds",
			Help:      "HTTP request latency broken down by surface and result class.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5,
			},
		}, []string{"surface", "result"}),
	}
}

// Gatherer returns the registry backing this recorder.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RequestSubmitted counts one persisted submission.
func (r *Recorder) RequestSubmitted(req domain.Request) {
	r.submissions.WithLabelValues(string(req.Category)).Inc()
}

// RecordsCommitted counts transitions, escalations, and breaches in one committed batch.
func (r *Recorder) RecordsCommitted(req domain.Request, records []domain.ChangeRecord) {
	for _, rec := range records {
		switch rec.Kind {
		case domain.ChangeKindStatus:
			r.transitions.WithLabelValues(string(rec.FromStatus), string(rec.ToStatus)).Inc()
		case domain.ChangeKindEscalation:
			r.escalations.WithLabelValues(string(req.Category), string(rec.ToPriority)).Inc()
		case domain.ChangeKindSLABreach:
			r.breaches.WithLabelValues(string(req.Category)).Inc()
		}
	}
}

// AccessDenied counts one rejected operation.
func (r *Recorder) AccessDenied(op domain.Operation) {
	r.denials.WithLabelValues(string(op)).Inc()
}

// Instrument wraps next with request counting under one stable surface label.
func (r *Recorder) Instrument(surface string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecordingResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, req)

		labels := prometheus.Labels{
			"surface": surface,
			"result":  resultClass(rec.status),
		}
		r.httpTotal.With(labels).Inc()
		r.httpLatency.With(labels).Observe(time.Since(start).Seconds())
	})
}

// resultClass buckets an HTTP status into 2xx, 4xx, or 5xx.
func resultClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}

type statusRecordingResponseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusRecordingResponseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecordingResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush keeps MCP streaming responses working through the wrapper.
func (w *statusRecordingResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusRecordingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}
