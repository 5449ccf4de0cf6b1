package telemetry_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbridge/order-service/internal/config"
	"github.com/shopbridge/order-service/internal/telemetry"
)

func TestServerMetrics_RecordsRoutePattern(t *testing.T) {
	m := telemetry.NewServerMetrics("test")

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/orders/abc", nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues(http.MethodGet, "/api/orders/{id}", "404")))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "shopbridge_test_http_requests_total")
}

func TestNewServerMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.NewServerMetrics("dup")
		telemetry.NewServerMetrics("dup")
	})
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := telemetry.InitTracing(config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
