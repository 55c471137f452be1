package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/leveledu/pkg/metrics"
)

func TestObserveWebhook(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	m.ObserveWebhook("invoice.payment_failed", metrics.StatusError, 20*time.Millisecond)
	m.ObserveWebhook("invoice.payment_failed", metrics.StatusError, 10*time.Millisecond)
	m.ObserveWebhook("", metrics.StatusInvalid, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WebhookRequests.WithLabelValues("invoice.payment_failed", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookRequests.WithLabelValues("unknown", "invalid")))
}

func TestLimitDenied(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	m.LimitDenied("limit", "starter", "student")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LimitDenials.WithLabelValues("limit", "starter", "student")))
}

func TestProvisioningAndTenants(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	m.ObserveProvisioning("created")
	m.SetTenants("active", 4)
	m.SetTenants("active", 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Provisioning.WithLabelValues("created")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TenantsByStatus.WithLabelValues("active")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/admin/classes/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", metrics.HandlerFor(reg))

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin/classes/"+id, nil))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/admin/classes/{id}", "418")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "leveledu_http_requests_total"))
}
