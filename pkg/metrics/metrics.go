// Package metrics holds the Prometheus collectors of the service.
//
// New registers them on the given registerer so tests can use a private
// registry; Default registers on the process-wide one served by Handler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leveledu"

// Webhook outcome labels.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusDuplicate = "duplicate"
	StatusIgnored   = "ignored"
	StatusInvalid   = "invalid"
)

// Metrics is the set of collectors.
type Metrics struct {
	// WebhookRequests counts Stripe webhook deliveries by event type and outcome.
	WebhookRequests *prometheus.CounterVec
	// WebhookDuration tracks webhook processing latency.
	WebhookDuration *prometheus.HistogramVec
	// Provisioning counts checkout provisioning attempts by outcome.
	Provisioning *prometheus.CounterVec
	// LimitDenials counts plan-limit and feature refusals.
	LimitDenials *prometheus.CounterVec
	// TenantsByStatus is refreshed from the tenant stats endpoint.
	TenantsByStatus *prometheus.GaugeVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		WebhookRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stripe",
			Name:      "webhook_requests_total",
			Help:      "Total Stripe webhook requests by event type and outcome.",
		}, []string{"event_type", "status"}),
		WebhookDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stripe",
			Name:      "webhook_duration_seconds",
			Help:      "Stripe webhook processing duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		Provisioning: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "provisioning_total",
			Help:      "Tenant provisioning attempts from checkout by outcome.",
		}, []string{"outcome"}),
		LimitDenials: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "limits",
			Name:      "denials_total",
			Help:      "Requests refused by plan limits or features.",
		}, []string{"kind", "plan", "subject"}),
		TenantsByStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tenants",
			Name:      "by_status",
			Help:      "Number of tenants in each status.",
		}, []string{"status"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Default registers the collectors on prometheus.DefaultRegisterer.
func Default() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

// Handler serves the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveWebhook records one webhook delivery.
func (m *Metrics) ObserveWebhook(eventType, status string, elapsed time.Duration) {
	if eventType == "" {
		eventType = "unknown"
	}
	m.WebhookRequests.WithLabelValues(eventType, status).Inc()
	m.WebhookDuration.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

// ObserveProvisioning records one checkout provisioning attempt.
func (m *Metrics) ObserveProvisioning(outcome string) {
	m.Provisioning.WithLabelValues(outcome).Inc()
}

// SetTenants sets the number of tenants in status.
func (m *Metrics) SetTenants(status string, n int64) {
	m.TenantsByStatus.WithLabelValues(status).Set(float64(n))
}

// LimitDenied matches limits.DenialObserver.
func (m *Metrics) LimitDenied(kind, plan, subject string) {
	m.LimitDenials.WithLabelValues(kind, plan, subject).Inc()
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so ids in paths do not blow up cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
