package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyashahama/shipment-notifier/internal/metrics"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := metrics.New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Post("/webhook/{clientId}/shipment", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"1", "2", "3"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook/"+id+"/shipment", nil))
		require.Equal(t, http.StatusAccepted, rr.Code)
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)

	assert.Contains(t, string(body),
		`shipment_notifier_http_requests_total{method="POST",route="/webhook/{clientId}/shipment",status="202"} 3`)
	assert.False(t, strings.Contains(string(body), `route="/webhook/1/shipment"`))
}

func TestObserveDispatch(t *testing.T) {
	m := metrics.New()
	m.ObserveDispatch("1", metrics.ResultSent, 10*time.Millisecond)
	m.ObserveDispatch("1", metrics.ResultSent, 20*time.Millisecond)
	m.ObserveDispatch("2", metrics.ResultSendFailed, time.Millisecond)

	n, err := testutil.GatherAndCount(m.Registry(), "shipment_notifier_dispatch_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "two label sets")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveDispatch("1", metrics.ResultSent, time.Second)
		m.RateLimited()
	})

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
	assert.Nil(t, m.Registry())
}
