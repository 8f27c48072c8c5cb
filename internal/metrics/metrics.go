// Package metrics exposes Prometheus counters for guard decisions, admin
// actions, store contention and HTTP traffic.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"WalletGuard/internal/model"
)

const namespace = "walletguard"

// Metrics holds every collector the service registers.
type Metrics struct {
	registry        *prometheus.Registry
	logger          *zap.Logger
	events          *prometheus.CounterVec
	approvedAmount  prometheus.Counter
	storeRetries    *prometheus.CounterVec
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New(logger *zap.Logger) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		logger:   logger,
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "guard",
				Name:      "events_total",
				Help:      "Guard events by kind",
			},
			[]string{"kind"},
		),
		approvedAmount: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "guard",
				Name:      "approved_amount_xlm_total",
				Help:      "Sum of approved transfer amounts in XLM",
			},
		),
		storeRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "update_retries_total",
				Help:      "Optimistic update retries caused by concurrent writers",
			},
			[]string{"backend"},
		),
		requestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		),
	}
}

// Audit counts the event.
func (m *Metrics) Audit(_ context.Context, evt model.Event) {
	m.events.WithLabelValues(string(evt.Kind)).Inc()
	if evt.Kind == model.EventValidated {
		f, _ := evt.Amount.Float64()
		m.approvedAmount.Add(f)
	}
}

// StoreRetry returns a hook for the redis store's retry observer.
func (m *Metrics) StoreRetry(backend string) func(walletKey string) {
	c := m.storeRetries.WithLabelValues(backend)
	return func(walletKey string) {
		c.Inc()
		m.logger.Debug("store update retried", zap.String("backend", backend), zap.String("wallet", walletKey))
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
