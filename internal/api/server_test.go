package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/subsidy-portal/internal/clock"
	"github.com/JakeFAU/subsidy-portal/internal/crawl"
	"github.com/JakeFAU/subsidy-portal/internal/fetcher"
	"github.com/JakeFAU/subsidy-portal/internal/id/uuid"
	"github.com/JakeFAU/subsidy-portal/internal/matching"
	"github.com/JakeFAU/subsidy-portal/internal/normalize"
	"github.com/JakeFAU/subsidy-portal/internal/procurement"
	"github.com/JakeFAU/subsidy-portal/internal/record"
	"github.com/JakeFAU/subsidy-portal/internal/storage/memory"
	"github.com/JakeFAU/subsidy-portal/internal/validate"
	"github.com/JakeFAU/subsidy-portal/internal/workflow"
)

var testNow = time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)

type fakeCrawler struct {
	mu       sync.Mutex
	pages    []crawl.PageRequest
	batches  []crawl.BatchRequest
	err      error
	panicked bool
}

func (f *fakeCrawler) Crawl(_ context.Context, req crawl.PageRequest) (*crawl.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicked {
		panic("partner exploded")
	}
	f.pages = append(f.pages, req)
	if f.err != nil {
		return nil, f.err
	}
	items := crawl.MockItems(req.Industry, req.Area)
	return &crawl.Page{Items: items, TotalCount: len(items), Page: req.Page, Size: req.Size}, nil
}

func (f *fakeCrawler) BatchCrawl(_ context.Context, req crawl.BatchRequest) (*crawl.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, req)
	items := crawl.MockItems(req.Industry, req.Area)
	return &crawl.Batch{Items: items, TotalCount: len(items), TotalRequested: len(items), SuccessRate: "100.0%", PagesProcessed: 1}, nil
}

type fakeProcurement struct {
	queries []procurement.Query
	err     error
}

func (f *fakeProcurement) listing() *procurement.Listing {
	l := &procurement.Listing{}
	l.Response.Header = procurement.Header{ResultCode: procurement.OKResultCode, ResultMsg: "NORMAL SERVICE."}
	l.Response.Body.Items = []map[string]any{{"bidNtceNo": "R25BK00000001"}}
	l.Response.Body.TotalCount = 1
	return l
}

func (f *fakeProcurement) BidNotices(_ context.Context, q procurement.Query) (*procurement.Listing, error) {
	f.queries = append(f.queries, q)
	return f.listing(), f.err
}

func (f *fakeProcurement) BidResults(_ context.Context, q procurement.Query) (*procurement.Listing, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.listing(), nil
}

// parkedQueue accepts tasks without running them, leaving executions running.
type parkedQueue struct{}

func (parkedQueue) Enqueue(context.Context, workflow.Task) error { return nil }

type fixture struct {
	server      *Server
	crawler     *fakeCrawler
	procurement *fakeProcurement
	engine      *workflow.Engine
	preferences *matching.Preferences
}

func newFixture(t *testing.T, opts Options, queue workflow.Enqueuer, invoker workflow.Invoker) *fixture {
	t.Helper()

	logger := zap.NewNop()
	if queue == nil {
		queue = parkedQueue{}
	}
	if invoker == nil {
		invoker = workflow.NewHTTPInvoker(nil, "http://127.0.0.1:0", time.Second)
	}
	clk := clock.NewFixed(testNow)
	engine, err := workflow.NewEngine(workflow.Config{}, workflow.Deps{
		Workflows:  memory.NewWorkflowStore(),
		Executions: memory.NewExecutionStore(),
		Queue:      queue,
		Invoker:    invoker,
		IDs:        uuid.New("exec"),
		Clock:      clk,
		Logger:     logger,
	})
	require.NoError(t, err)
	require.NoError(t, engine.Seed(context.Background()))
	t.Cleanup(engine.Shutdown)

	v, err := validate.New(logger)
	require.NoError(t, err)

	f := &fixture{
		crawler:     &fakeCrawler{},
		procurement: &fakeProcurement{},
		engine:      engine,
		preferences: matching.NewPreferences(),
	}
	f.server = NewServer(opts, Deps{
		Crawler:        f.crawler,
		Procurement:    f.procurement,
		Workflows:      engine,
		Normalizer:     normalize.New(logger),
		NormalizeRules: normalize.NewRegistry(),
		Validator:      v,
		ValidateRules:  validate.NewRegistry(),
		Scorer:         matching.NewScorer(clk, matching.DefaultFuzzyThreshold),
		Preferences:    f.preferences,
		Logger:         logger,
	})
	return f
}

type reply struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (r reply) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, v))
}

func call(t *testing.T, h http.Handler, method, target string, body any) (int, reply) {
	t.Helper()

	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out reply
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{}, nil, nil)
	code, _ := call(t, f.server.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, f.server.Handler(), http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, code)

	f.server.deps.Ready = func(context.Context) error { return errors.New("database down") }
	code, _ = call(t, f.server.Handler(), http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{}, nil, nil)
	call(t, f.server.Handler(), http.MethodGet, "/api/crawl", nil)

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRequestIDIsEchoed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestAPIKeyGuardsAPIRoutes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{AuthEnabled: true, APIKey: "secret"}, nil, nil)
	h := f.server.Handler()

	code, body := call(t, h, http.MethodGet, "/api/crawl", nil)
	require.Equal(t, http.StatusUnauthorized, code)
	require.False(t, body.Success)

	req := httptest.NewRequest(http.MethodGet, "/api/crawl", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	code, _ = call(t, h, http.MethodGet, "/api/crawl?api_key=secret", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = call(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, code)
}

func TestPanicsBecome500(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{}, nil, nil)
	f.crawler.panicked = true
	code, body := call(t, f.server.Handler(), http.MethodGet, "/api/crawl", nil)
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "internal server error", body.Error)
}

func TestCrawlPage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{}, nil, nil)
	code, body := call(t, f.server.Handler(), http.MethodGet, "/api/crawl?industry=제조업&area=전체&page=2&size=5", nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, body.Success)

	var page crawl.Page
	body.decode(t, &page)
	require.Equal(t, 2, page.Page)
	require.Len(t, page.Items, 1)
	require.Equal(t, []crawl.PageRequest{{Industry: "제조업", Area: "전체", Page: 2, Size: 5}}, f.crawler.pages)

	code, body = call(t, f.server.Handler(), http.MethodGet, "/api/crawl?page=two", nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "page must be an integer", body.Error)
}

func TestCrawlErrorsMapToStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{}, nil, nil)
	f.crawler.err = &fetcher.LogicalError{Kind: fetcher.KindStatus, Status: http.StatusForbidden}
	code, _ := call(t, f.server.Handler(), http.MethodGet, "/api/crawl", nil)
	require.Equal(t, http.StatusBadGateway, code)

	f.crawler.err = errors.New("boom")
	code, _ = call(t, f.server.Handler(), http.MethodGet, "/api/crawl", nil)
	require.Equal(t, http.StatusInternalServerError, code)
}

func TestCrawlBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{}, nil, nil)
	code, body := call(t, f.server.Handler(), http.MethodPost, "/api/crawl", map[string]any{"industry": "전체", "area": "전체", "maxPages": 3})
	require.Equal(t, http.StatusOK, code)

	var batch crawl.Batch
	body.decode(t, &batch)
	require.Len(t, batch.Items, 8)
	require.Equal(t, 3, f.crawler.batches[0].MaxPages)

	code, _ = call(t, f.server.Handler(), http.MethodPost, "/api/crawl", `{"maxPages": -1}`)
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = call(t, f.server.Handler(), http.MethodPost, "/api/crawl", `{not json`)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestBidNotices(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{}, nil, nil)
	code, body := call(t, f.server.Handler(), http.MethodGet, "/api/bid-notices?pageNo=2&bidType=servc", nil)
	require.Equal(t, http.StatusOK, code)
	var l procurement.Listing
	body.decode(t, &l)
	require.Equal(t, 1, l.Response.Body.TotalCount)
	require.Equal(t, procurement.Query{PageNo: 2, NumOfRows: 10, InqryDiv: 1, BidType: procurement.BidService}, f.procurement.queries[0])

	code, _ = call(t, f.server.Handler(), http.MethodGet, "/api/bid-notices?bidType=ships", nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestBidResultsUpstreamRejection(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{}, nil, nil)
	f.procurement.err = &fetcher.LogicalError{Kind: fetcher.KindResultCode, Code: "30", Message: "SERVICE KEY IS NOT REGISTERED ERROR."}
	code, body := call(t, f.server.Handler(), http.MethodGet, "/api/bid-results", nil)
	require.Equal(t, http.StatusBadGateway, code)
	require.Contains(t, body.Error, "result code 30")
	require.Equal(t, 2, f.procurement.queries[0].InqryDiv)
}

func TestMapping(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{}, nil, nil)
	code, body := call(t, f.server.Handler(), http.MethodGet, "/api/mapping/area?label=경기도", nil)
	require.Equal(t, http.StatusOK, code)
	var m codeMapping
	body.decode(t, &m)
	require.Equal(t, crawl.AreaCode("경기도"), m.Code)

	_, body = call(t, f.server.Handler(), http.MethodGet, "/api/mapping/industry", nil)
	m = codeMapping{}
	body.decode(t, &m)
	require.Equal(t, crawl.IndustryLabels(), m.Labels)
}

func TestNormalizeIntrospection(t *testing.T) {
	t.Parallel()

	h := newFixture(t, Options{}, nil, nil).server.Handler()

	_, body := call(t, h, http.MethodGet, "/api/normalize?action=sources", nil)
	var sources struct {
		Sources      []string          `json:"sources"`
		Descriptions map[string]string `json:"descriptions"`
	}
	body.decode(t, &sources)
	require.Equal(t, []string{"naver_internal", "public_data", "smes"}, sources.Sources)
	require.Equal(t, "네이버 내부 API 데이터", sources.Descriptions["naver_internal"])

	_, body = call(t, h, http.MethodGet, "/api/normalize?action=rules&source=smes", nil)
	var one struct {
		Source string           `json:"source"`
		Rules  []normalize.Rule `json:"rules"`
	}
	body.decode(t, &one)
	require.Equal(t, "smes", one.Source)
	require.Len(t, one.Rules, 4)

	_, body = call(t, h, http.MethodGet, "/api/normalize?action=rules&source=nope", nil)
	var all struct {
		Rules map[string][]normalize.Rule `json:"rules"`
	}
	body.decode(t, &all)
	require.Len(t, all.Rules, 3)

	_, body = call(t, h, http.MethodGet, "/api/normalize", nil)
	require.Contains(t, string(body.Data), "데이터 정규화/표준화 API")
}

func TestNormalizeSingle(t *testing.T) {
	t.Parallel()

	h := newFixture(t, Options{}, nil, nil).server.Handler()
	item := map[string]any{
		"bidNtceNo":   "R25BK00000001",
		"bidNtceNm":   "청사 보수공사",
		"ntceInsttNm": "조달청",
		"presmptPrce": "1500000",
		"bidNtceDt":   "202503150900",
		"bidMethdNm":  record.Sentinel,
	}

	code, body := call(t, h, http.MethodPost, "/api/normalize", map[string]any{"action": "normalize", "source": "public_data", "data": item})
	require.Equal(t, http.StatusOK, code)
	var out struct {
		Source     string         `json:"source"`
		Normalized map[string]any `json:"normalized"`
	}
	body.decode(t, &out)
	require.Equal(t, "public_data", out.Source)
	require.Equal(t, "1,500,000", out.Normalized["presmptPrce"])
	require.Equal(t, "2025-03-15 09:00", out.Normalized["bidNtceDt"])
	require.Equal(t, record.Sentinel, out.Normalized["bidMethdNm"])

	item["bidNtceNm"] = record.Sentinel
	code, body = call(t, h, http.MethodPost, "/api/normalize", map[string]any{"action": "normalize", "source": "public_data", "data": item})
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Equal(t, "missing required field: bidNtceNm", body.Error)

	delete(item, "bidNtceNm")
	code, body = call(t, h, http.MethodPost, "/api/normalize", map[string]any{"action": "normalize", "source": "public_data", "data": item})
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Equal(t, "missing required field: bidNtceNm", body.Error)
}

func TestNormalizeBadInput(t *testing.T) {
	t.Parallel()

	h := newFixture(t, Options{}, nil, nil).server.Handler()
	tests := []struct {
		name string
		body map[string]any
		want string
	}{
		{"no source or rules", map[string]any{"action": "normalize", "data": map[string]any{}}, "source 또는 rules 파라미터가 필요합니다."},
		{"unknown source", map[string]any{"action": "normalize", "source": "nope", "data": map[string]any{}}, "지원하지 않는 데이터 소스입니다: nope"},
		{"no data", map[string]any{"action": "normalize", "source": "smes"}, "data 파라미터가 필요합니다."},
		{"batch needs array", map[string]any{"action": "batch", "source": "smes", "data": map[string]any{}}, "data는 배열 형태여야 합니다."},
		{"bad inline rule", map[string]any{"action": "batch", "rules": []map[string]any{{"field": "x", "type": "blob"}}, "data": []any{}}, "invalid rules"},
		{"add rule needs both", map[string]any{"action": "add_rule", "source": "mine"}, "source와 rules 파라미터가 필요합니다."},
		{"unknown action", map[string]any{"action": "explode"}, "지원하지 않는 액션입니다."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, body := call(t, h, http.MethodPost, "/api/normalize", tt.body)
			require.Equal(t, http.StatusBadRequest, code)
			require.Contains(t, body.Error, tt.want)
		})
	}
}

func TestNormalizeBatchAndAddRule(t *testing.T) {
	t.Parallel()

	h := newFixture(t, Options{}, nil, nil).server.Handler()
	rules := []map[string]any{
		{"field": "name", "type": "text", "required": true, "transform": "trim"},
	}
	code, body := call(t, h, http.MethodPost, "/api/normalize", map[string]any{"action": "add_rule", "source": "mine", "rules": rules})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "소스 'mine'의 정규화 규칙이 추가되었습니다.", body.Message)

	code, body = call(t, h, http.MethodPost, "/api/normalize", map[string]any{
		"action": "batch",
		"source": "mine",
		"data":   []any{map[string]any{"name": "  a "}, map[string]any{}},
	})
	require.Equal(t, http.StatusOK, code)
	var out struct {
		TotalItems   int              `json:"totalItems"`
		SuccessCount int              `json:"successCount"`
		ErrorCount   int              `json:"errorCount"`
		Items        []map[string]any `json:"items"`
	}
	body.decode(t, &out)
	require.Equal(t, 2, out.TotalItems)
	require.Equal(t, 1, out.SuccessCount)
	require.Equal(t, 1, out.ErrorCount)
	require.Equal(t, "a", out.Items[0]["name"])
}

func TestValidateActions(t *testing.T) {
	t.Parallel()

	h := newFixture(t, Options{}, nil, nil).server.Handler()
	item := map[string]any{"사업명": "스마트공장", "지원기관": "중기부", "지원대상": "중소기업", "접수기간": "2025-01-01 ~ 2025-02-01"}

	code, body := call(t, h, http.MethodPost, "/api/validate", map[string]any{"action": "validate", "source": "smes", "data": item})
	require.Equal(t, http.StatusOK, code)
	var single struct {
		Validation validate.Result `json:"validation"`
	}
	body.decode(t, &single)
	require.True(t, single.Validation.IsValid)
	require.Equal(t, 1, single.Validation.Stats.TotalItems)

	code, body = call(t, h, http.MethodPost, "/api/validate", map[string]any{"action": "batch", "source": "smes", "data": []any{item, map[string]any{"사업명": "x"}}})
	require.Equal(t, http.StatusOK, code)
	var batch struct {
		Validation validate.Result `json:"validation"`
		TotalItems int             `json:"totalItems"`
	}
	body.decode(t, &batch)
	require.Equal(t, 2, batch.TotalItems)
	require.False(t, batch.Validation.IsValid)
	require.Equal(t, 1, batch.Validation.Stats.InvalidItems)

	code, body = call(t, h, http.MethodPost, "/api/validate", map[string]any{"action": "analyze", "data": []any{item}})
	require.Equal(t, http.StatusOK, code)
	var analyzed struct {
		Summary validate.Summary `json:"summary"`
	}
	body.decode(t, &analyzed)
	require.Equal(t, 1, analyzed.Summary.TotalItems)
	require.Equal(t, 4, analyzed.Summary.TotalFields)

	code, _ = call(t, h, http.MethodPost, "/api/validate", map[string]any{"action": "validate", "source": "smes"})
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = call(t, h, http.MethodPost, "/api/validate", map[string]any{"action": "analyze", "data": "nope"})
	require.Equal(t, http.StatusBadRequest, code)

	_, body = call(t, h, http.MethodGet, "/api/validate", nil)
	require.Contains(t, string(body.Data), "크롤링 결과 검증 API")
}

func TestWorkflowLifecycle(t *testing.T) {
	t.Parallel()

	h := newFixture(t, Options{}, nil, nil).server.Handler()

	_, body := call(t, h, http.MethodGet, "/api/workflow", nil)
	var overview struct {
		Predefined []workflow.Summary `json:"predefinedWorkflows"`
	}
	body.decode(t, &overview)
	require.Len(t, overview.Predefined, 2)

	code, body := call(t, h, http.MethodPost, "/api/workflow", map[string]any{"action": "run", "workflowId": workflow.NaverFullPipeline})
	require.Equal(t, http.StatusOK, code)
	var run runResponse
	body.decode(t, &run)
	require.NotEmpty(t, run.ExecutionID)
	require.Equal(t, "워크플로우 실행이 시작되었습니다.", run.Message)
	require.Contains(t, run.StatusURL, "executionId="+run.ExecutionID)

	code, body = call(t, h, http.MethodGet, "/api/workflow?action=status&executionId="+run.ExecutionID, nil)
	require.Equal(t, http.StatusOK, code)
	var exec workflow.Execution
	body.decode(t, &exec)
	require.Equal(t, workflow.StatusRunning, exec.Status)

	code, body = call(t, h, http.MethodPost, "/api/workflow", map[string]any{"action": "cancel", "executionId": run.ExecutionID})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "워크플로우 실행이 취소되었습니다.", body.Message)
	exec = workflow.Execution{}
	body.decode(t, &exec)
	require.Equal(t, workflow.StatusCancelled, exec.Status)

	_, body = call(t, h, http.MethodGet, "/api/workflow?action=executions&workflowId="+workflow.NaverFullPipeline, nil)
	var listing struct {
		Count int `json:"count"`
	}
	body.decode(t, &listing)
	require.Equal(t, 1, listing.Count)
}

func TestWorkflowErrors(t *testing.T) {
	t.Parallel()

	h := newFixture(t, Options{}, nil, nil).server.Handler()
	tests := []struct {
		name   string
		method string
		target string
		body   any
		code   int
		want   string
	}{
		{"get without id", http.MethodGet, "/api/workflow?action=get", nil, http.StatusBadRequest, "id 파라미터가 필요합니다."},
		{"get unknown", http.MethodGet, "/api/workflow?action=get&id=nope", nil, http.StatusNotFound, "워크플로우를 찾을 수 없습니다: nope"},
		{"status unknown", http.MethodGet, "/api/workflow?action=status&executionId=nope", nil, http.StatusNotFound, "실행을 찾을 수 없습니다: nope"},
		{"run without id", http.MethodPost, "/api/workflow", map[string]any{"action": "run"}, http.StatusBadRequest, "workflowId 파라미터가 필요합니다."},
		{"run unknown", http.MethodPost, "/api/workflow", map[string]any{"action": "run", "workflowId": "nope"}, http.StatusNotFound, "워크플로우를 찾을 수 없습니다: nope"},
		{"cancel unknown", http.MethodPost, "/api/workflow", map[string]any{"action": "cancel", "executionId": "nope"}, http.StatusNotFound, "실행을 찾을 수 없습니다: nope"},
		{"create without body", http.MethodPost, "/api/workflow", map[string]any{"action": "create"}, http.StatusBadRequest, "workflow 파라미터가 필요합니다."},
		{"create invalid", http.MethodPost, "/api/workflow", map[string]any{"action": "create", "workflow": map[string]any{"name": "x"}}, http.StatusBadRequest, "invalid workflow definition"},
		{"delete predefined", http.MethodDelete, "/api/workflow?id=" + workflow.NaverBatchCrawl, nil, http.StatusForbidden, "사전 정의된 워크플로우는 삭제할 수 없습니다."},
		{"delete unknown", http.MethodDelete, "/api/workflow?id=nope", nil, http.StatusNotFound, "워크플로우를 찾을 수 없습니다: nope"},
		{"delete without id", http.MethodDelete, "/api/workflow", nil, http.StatusBadRequest, "id 파라미터가 필요합니다."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, body := call(t, h, tt.method, tt.target, tt.body)
			require.Equal(t, tt.code, code)
			require.Contains(t, body.Error, tt.want)
		})
	}
}

func TestWorkflowCreateAndDelete(t *testing.T) {
	t.Parallel()

	h := newFixture(t, Options{}, nil, nil).server.Handler()
	def := map[string]any{
		"name": "공공데이터 정규화",
		"steps": []any{
			map[string]any{"id": "notices", "name": "입찰공고", "type": "crawl", "config": map[string]any{"api": "/api/bid-notices", "method": "GET"}},
		},
	}
	code, body := call(t, h, http.MethodPost, "/api/workflow", map[string]any{"action": "create", "workflow": def})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "워크플로우가 생성되었습니다.", body.Message)
	var wf workflow.Workflow
	body.decode(t, &wf)
	require.True(t, strings.HasPrefix(wf.ID, "custom_"))
	require.True(t, wf.Enabled)

	code, body = call(t, h, http.MethodDelete, "/api/workflow?id="+wf.ID, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "워크플로우 '"+wf.ID+"'가 삭제되었습니다.", body.Message)

	code, _ = call(t, h, http.MethodGet, "/api/workflow?action=get&id="+wf.ID, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestRecommendationsDefaults(t *testing.T) {
	t.Parallel()

	h := newFixture(t, Options{}, nil, nil).server.Handler()
	code, body := call(t, h, http.MethodGet, "/api/recommendations?limit=3", nil)
	require.Equal(t, http.StatusOK, code)

	var out recommendationResponse
	body.decode(t, &out)
	require.Equal(t, matching.DefaultIndustry, out.Filters.Industry)
	require.Equal(t, matching.DefaultRegion, out.Filters.Region)
	require.Equal(t, matching.SortMatching, out.Filters.AppliedFilters.SortBy)
	require.LessOrEqual(t, len(out.Recommendations), 3)
	require.Equal(t, len(out.Recommendations), out.Stats.Total)
	for i := 1; i < len(out.Recommendations); i++ {
		require.GreaterOrEqual(t, out.Recommendations[i-1].MatchingScore, out.Recommendations[i].MatchingScore)
	}

	code, _ = call(t, h, http.MethodGet, "/api/recommendations?sortBy=random", nil)
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = call(t, h, http.MethodGet, "/api/recommendations?limit=x", nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestRecommendationsEnhancedUsesSavedProfile(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{}, nil, nil)
	h := f.server.Handler()
	scorer := matching.NewScorer(clock.NewFixed(testNow), matching.DefaultFuzzyThreshold)

	_, body := call(t, h, http.MethodGet, "/api/recommendations?enhanced=true&sortBy=none", nil)
	var sample recommendationResponse
	body.decode(t, &sample)
	want := scorer.Recommend(matching.DefaultCatalog(), sample.Filters.AppliedFilters, ptr(matching.DefaultProfile(matching.DefaultIndustry, matching.DefaultRegion)))
	require.Equal(t, want.Recommendations, sample.Recommendations)

	saved := matching.Profile{Industry: "정보통신업", Region: "서울특별시", InterestAreas: []string{"AI/빅데이터"}}
	code, body := call(t, h, http.MethodPost, "/api/recommendations", map[string]any{"action": "save_enhanced_profile", "profileData": saved})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "추가 정보가 성공적으로 저장되었습니다.", body.Message)
	got, ok := f.preferences.Profile()
	require.True(t, ok)
	require.Equal(t, saved, got)

	_, body = call(t, h, http.MethodGet, "/api/recommendations?enhanced=true&sortBy=none", nil)
	var enhanced recommendationResponse
	body.decode(t, &enhanced)
	want = scorer.Recommend(matching.DefaultCatalog(), enhanced.Filters.AppliedFilters, &saved)
	require.Equal(t, want.Recommendations, enhanced.Recommendations)
}

func TestRecommendationScoreAction(t *testing.T) {
	t.Parallel()

	h := newFixture(t, Options{}, nil, nil).server.Handler()
	profile := matching.DefaultProfile("제조업", "경기도")
	code, body := call(t, h, http.MethodPost, "/api/recommendations", map[string]any{
		"action":  "score",
		"profile": profile,
		"filters": map[string]any{"sortBy": "deadline", "limit": 2},
	})
	require.Equal(t, http.StatusOK, code)
	var out recommendationResponse
	body.decode(t, &out)
	require.Equal(t, "경기도", out.Filters.Region)
	require.LessOrEqual(t, len(out.Recommendations), 2)

	code, _ = call(t, h, http.MethodPost, "/api/recommendations", map[string]any{"action": "score"})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestRecommendationReactions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{}, nil, nil)
	h := f.server.Handler()

	code, body := call(t, h, http.MethodPost, "/api/recommendations", map[string]any{"action": "bookmark", "subventionId": "sub-1"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "즐겨찾기에 추가되었습니다.", body.Message)
	require.True(t, f.preferences.Bookmarked("sub-1"))

	_, body = call(t, h, http.MethodPost, "/api/recommendations", map[string]any{"action": "unbookmark", "subventionId": "sub-1"})
	require.Equal(t, "즐겨찾기에서 제거되었습니다.", body.Message)
	require.False(t, f.preferences.Bookmarked("sub-1"))

	_, body = call(t, h, http.MethodPost, "/api/recommendations", map[string]any{"action": "interest", "subventionId": "sub-2"})
	require.Equal(t, "관심 표시가 등록되었습니다.", body.Message)
	require.True(t, f.preferences.Interested("sub-2"))

	code, _ = call(t, h, http.MethodPost, "/api/recommendations", map[string]any{"action": "bookmark"})
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = call(t, h, http.MethodPost, "/api/recommendations", map[string]any{"action": "share", "subventionId": "x"})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestStatusForError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{badRequest("x"), http.StatusBadRequest},
		{workflow.ErrDisabled, http.StatusBadRequest},
		{workflow.ErrInvalidDefinition, http.StatusBadRequest},
		{workflow.ErrProtected, http.StatusForbidden},
		{workflow.ErrNotFound, http.StatusNotFound},
		{&normalize.MissingRequiredFieldError{Field: "a"}, http.StatusUnprocessableEntity},
		{&fetcher.LogicalError{Kind: fetcher.KindStatus, Status: 404}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, statusForError(tt.err), tt.err.Error())
	}
}

func ptr[T any](v T) *T { return &v }
