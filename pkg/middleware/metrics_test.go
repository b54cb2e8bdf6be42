package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findMetric gathers reg and returns the series of family name whose labels
// include all of labels.
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return m
			}
		}
	}
	return nil
}

func TestHTTPMetrics_RecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for range 3 {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/products/7", nil))
	}

	counter := findMetric(t, reg, "pointledger_http_requests_total", map[string]string{
		"method": "GET", "route": "/v1/products/{id}", "status": "404",
	})
	require.NotNil(t, counter)
	assert.Equal(t, float64(3), counter.GetCounter().GetValue())

	hist := findMetric(t, reg, "pointledger_http_request_duration_seconds", map[string]string{
		"route": "/v1/products/{id}",
	})
	require.NotNil(t, hist)
	assert.Equal(t, uint64(3), hist.GetHistogram().GetSampleCount())

	inFlight := findMetric(t, reg, "pointledger_http_requests_in_flight", nil)
	require.NotNil(t, inFlight)
	assert.Equal(t, float64(0), inFlight.GetGauge().GetValue())
}

func TestHTTPMetrics_Unmatched(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Middleware(http.NotFoundHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	counter := findMetric(t, reg, "pointledger_http_requests_total", map[string]string{"route": "unmatched"})
	require.NotNil(t, counter)
	assert.Equal(t, float64(1), counter.GetCounter().GetValue())
}
