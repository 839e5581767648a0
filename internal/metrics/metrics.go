// Package metrics exposes Prometheus instruments for uploads, validation
// runs and sessions.
//
// A disabled Service is safe to use: every recording method is a no-op and
// the handler answers 503.
package metrics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/alchemist/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alchemist"

// Service owns a private registry and the instruments registered on it.
type Service struct {
	registry *prometheus.Registry
	enabled  bool

	filesNormalized *prometheus.CounterVec
	findings        *prometheus.CounterVec
	validationTime  prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New creates a Service. When enabled is false the Service records nothing.
func New(enabled bool) *Service {
	if !enabled {
		return &Service{}
	}

	reg := prometheus.NewRegistry()
	s := &Service{
		registry: reg,
		enabled:  true,
		filesNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_normalized_total",
			Help:      "Uploaded files processed, by format and outcome.",
		}, []string{"format", "outcome"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Findings produced by validation runs, by code and severity.",
		}, []string{"code", "severity"}),
		validationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Time spent validating one table set.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s.filesNormalized,
		s.findings,
		s.validationTime,
		s.httpRequests,
		s.httpDuration,
	)
	return s
}

// Enabled reports whether instruments are recording.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled
}

// RegisterSessionGauge exposes the live session count, read on scrape.
func (s *Service) RegisterSessionGauge(count func() int) {
	if !s.Enabled() {
		return
	}
	s.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Editing sessions currently held in memory.",
	}, func() float64 { return float64(count()) }))
}

// RegisterLimiterGauge exposes how many upload batches hold a slot.
func (s *Service) RegisterLimiterGauge(active func() int) {
	if !s.Enabled() {
		return
	}
	s.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "upload_batches_active",
		Help:      "Upload batches currently being processed.",
	}, func() float64 { return float64(active()) }))
}

// ObserveBatch records the outcome of every file in a normalized batch.
func (s *Service) ObserveBatch(files []core.File, res core.BatchResult) {
	if !s.Enabled() {
		return
	}
	failed := make(map[int]bool, len(res.Failures))
	for _, fe := range res.Failures {
		failed[fe.Index] = true
	}
	for i, f := range files {
		format := string(core.DetectFormat(f.Name))
		if format == "" {
			format = "unsupported"
		}
		outcome := "ok"
		if failed[i] {
			outcome = "failed"
		}
		s.filesNormalized.WithLabelValues(format, outcome).Inc()
	}
}

// ObserveValidation records one validation run.
func (s *Service) ObserveValidation(findings []core.Finding, elapsed time.Duration) {
	if !s.Enabled() {
		return
	}
	s.validationTime.Observe(elapsed.Seconds())
	for _, f := range findings {
		s.findings.WithLabelValues(f.Code, string(f.Severity)).Inc()
	}
}

// ObserveRequest records one HTTP request.
func (s *Service) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if !s.Enabled() {
		return
	}
	s.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	s.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (s *Service) Handler() http.Handler {
	if !s.Enabled() {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte("metrics disabled")); err != nil {
				slog.Error("failed to write response", "error", err)
			}
		})
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
