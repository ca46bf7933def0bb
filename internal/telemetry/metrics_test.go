package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	require.Equal(t, "apis.data.go.kr", SanitizeSite("https://APIS.data.go.kr/1230000/ad"))
	require.Equal(t, "example.com", SanitizeSite("example.com/path"))
	require.Equal(t, "unknown", SanitizeSite("http://"))
}

func TestObserveFetchAttempt(t *testing.T) {
	before := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("test_source", "transient"))
	ObserveFetchAttempt("test_source", "transient")
	ObserveFetchAttempt("test_source", "transient")
	after := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("test_source", "transient"))
	require.Equal(t, before+2, after)
}

func TestObserveNormalizedSkipsZero(t *testing.T) {
	before := testutil.ToFloat64(recordsNormalizedTotal.WithLabelValues("test_norm", "error"))
	ObserveNormalized("test_norm", 3, 0)
	require.Equal(t, before, testutil.ToFloat64(recordsNormalizedTotal.WithLabelValues("test_norm", "error")))
	require.GreaterOrEqual(t, testutil.ToFloat64(recordsNormalizedTotal.WithLabelValues("test_norm", "success")), float64(3))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "418"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "418")))
	ObserveStep("crawl", "success", time.Millisecond)
}
