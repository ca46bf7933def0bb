package workflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPayloadPrefersItemsThenData(t *testing.T) {
	t.Parallel()

	items := []any{map[string]any{"a": 1.0}}
	require.Equal(t, items, Payload(map[string]any{"data": map[string]any{"items": items}}))

	data := map[string]any{"valid": true}
	require.Equal(t, data, Payload(map[string]any{"data": data}))

	require.Equal(t, map[string]any{}, Payload(map[string]any{"data": map[string]any{}}))

	noData := map[string]any{"data": nil, "success": true}
	require.Equal(t, noData, Payload(noData))

	require.Equal(t, "raw", Payload("raw"))
}

func TestRequestBodySkipsPreviousForCrawlSteps(t *testing.T) {
	t.Parallel()

	params := map[string]any{"maxPages": 3}
	crawl := Step{Type: StepCrawl, Config: StepConfig{Params: params}}
	body := RequestBody(crawl, map[string]any{"data": []any{1.0}})
	require.Equal(t, map[string]any{"maxPages": 3}, body)

	norm := Step{Type: StepNormalize, Config: StepConfig{Params: params}}
	body = RequestBody(norm, map[string]any{"data": []any{1.0}})
	require.Equal(t, []any{1.0}, body["data"])
	require.NotContains(t, params, "data")
}

func TestHTTPInvokerHonoursTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	inv := NewHTTPInvoker(nil, srv.URL, 50*time.Millisecond)
	start := time.Now()
	_, err := inv.Invoke(context.Background(), Step{ID: "slow", Type: StepCrawl, Config: StepConfig{API: "/api/crawl", Method: "GET"}}, nil)
	require.Error(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPInvokerReportsStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	_, err := NewHTTPInvoker(nil, srv.URL, time.Second).Invoke(context.Background(), Step{Config: StepConfig{API: "/api/x", Method: "POST"}}, nil)
	var failure *StepFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, http.StatusBadGateway, failure.Status)
	require.EqualError(t, err, "HTTP 502: Bad Gateway")
}

func TestStepProgressStaysBelowHundred(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, stepProgress(0, 0))
	require.Equal(t, 0, stepProgress(0, 3))
	require.Equal(t, 67, stepProgress(2, 3))
	require.Equal(t, 99, stepProgress(199, 200))
}
