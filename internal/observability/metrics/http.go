// Package metrics exposes Prometheus collectors for HTTP requests, tool
// invocations, transaction dispatch and background tasks.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"AgentKit-Chain/pkg/dispatch"
)

const namespace = "agentkit"

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpErrors   *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	toolCalls   *prometheus.CounterVec
	toolLatency *prometheus.HistogramVec

	dispatches      *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec

	tasks *prometheus.CounterVec
}

// New registers every collector, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "Total number of HTTP requests processed.",
		}, []string{"handler", "method", "code"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_request_errors_total",
			Help: "Total number of HTTP requests that resulted in a server error.",
		}, []string{"handler", "method"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help: "HTTP request duration in seconds.", Buckets: latencyBuckets,
		}, []string{"handler", "method"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tool_calls_total",
			Help: "Tool invocations by adapter, action and outcome.",
		}, []string{"adapter", "action", "status"}),
		toolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tool_call_duration_seconds",
			Help: "Tool invocation duration in seconds.", Buckets: latencyBuckets,
		}, []string{"adapter", "action"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dispatch_total",
			Help: "Transaction dispatches by request kind, mode and outcome.",
		}, []string{"kind", "mode", "outcome"}),
		dispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "dispatch_duration_seconds",
			Help: "Transaction dispatch duration in seconds.", Buckets: latencyBuckets,
		}, []string{"kind", "mode"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tasks_total",
			Help: "Background task transitions by status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpErrors, m.httpLatency,
		m.toolCalls, m.toolLatency,
		m.dispatches, m.dispatchLatency,
		m.tasks,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func (m *Metrics) ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	if status >= http.StatusInternalServerError {
		m.httpErrors.WithLabelValues(handler, method).Inc()
	}
	m.httpLatency.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// ObserveTool implements adapter.Observer.
func (m *Metrics) ObserveTool(adapter, action, status string, elapsed time.Duration) {
	m.toolCalls.WithLabelValues(adapter, action, status).Inc()
	m.toolLatency.WithLabelValues(adapter, action).Observe(elapsed.Seconds())
}

// ObserveDispatch implements dispatch.Observer.
func (m *Metrics) ObserveDispatch(kind dispatch.RequestKind, signOnly bool, err error, elapsed time.Duration) {
	mode := "send"
	if signOnly {
		mode = "sign_only"
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.dispatches.WithLabelValues(string(kind), mode, outcome).Inc()
	m.dispatchLatency.WithLabelValues(string(kind), mode).Observe(elapsed.Seconds())
}

// ObserveTask counts a task reaching status.
func (m *Metrics) ObserveTask(status string) {
	m.tasks.WithLabelValues(status).Inc()
}

// Handler exposes the metrics in Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records every request served by next under the handler label.
func (m *Metrics) Middleware(handler string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.ObserveHTTPRequest(handler, r.Method, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// StartServer launches a standalone HTTP server exposing the /metrics endpoint.
func (m *Metrics) StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
