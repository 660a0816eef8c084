// Package metrics exposes Prometheus counters and histograms for the
// backtest service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so that several servers (and tests) can
// coexist in one process.
type Recorder struct {
	reg *prometheus.Registry

	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	runs      *prometheus.CounterVec
	errors    *prometheus.CounterVec
	purchases prometheus.Histogram
}

// New creates a Recorder with Go runtime and process collectors attached.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Recorder{
		reg: reg,
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sip_http_requests_total",
				Help: "HTTP requests served, by route pattern and status code",
			},
			[]string{"route", "code"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sip_operation_duration_seconds",
				Help:    "Duration of service operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sip_strategy_runs_total",
				Help: "Timing policies executed, by operation",
			},
			[]string{"operation"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sip_errors_total",
				Help: "Failed operations, by error kind",
			},
			[]string{"kind"},
		),
		purchases: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sip_purchases_per_run",
				Help:    "Monthly purchases made by one policy run",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// RecordRequest counts one served HTTP request.
func (r *Recorder) RecordRequest(route string, code int) {
	r.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// RecordLatency observes the duration of op since start.
func (r *Recorder) RecordLatency(op string, start time.Time) {
	r.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// RecordRun counts one policy run and its purchase count.
func (r *Recorder) RecordRun(op string, purchases int) {
	r.runs.WithLabelValues(op).Inc()
	r.purchases.Observe(float64(purchases))
}

// RecordError counts one failed operation.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// Middleware counts every request handled by next. The route label is the
// ServeMux pattern that matched, or "unmatched".
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, req)
		route := req.Pattern
		if route == "" {
			route = "unmatched"
		}
		r.RecordRequest(route, sw.code)
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
