package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObservability_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Observability)
	r.Get("/v1/trackings/{deliveryId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/trackings/{deliveryId}", "418"))
	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/trackings/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/trackings/{deliveryId}", "418"))
	require.Equal(t, float64(3), after-before)
}

func TestNewCounters_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCounters(reg)
	c.BroadcastDelivered.Add(2)
	c.BroadcastDropped.Inc()
	c.DriverReports.WithLabelValues("ok").Inc()

	require.Equal(t, float64(2), testutil.ToFloat64(c.BroadcastDelivered))
	require.Equal(t, float64(1), testutil.ToFloat64(c.BroadcastDropped))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	require.True(t, names["broadcast_delivered_total"])
	require.True(t, names["driver_reports_total"])

	require.Panics(t, func() { NewCounters(reg) })
}
