package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JakeFAU/subsidy-portal/internal/fetcher"
	"github.com/JakeFAU/subsidy-portal/internal/record"
	"github.com/stretchr/testify/require"
)

type pacingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *pacingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *pacingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func noSleep(context.Context, time.Duration) error { return nil }

// partner serves pages of ids; pages[i] is the id list of 0-based page i.
type partner struct {
	pages     [][]string
	lastQuery atomic.Value
	lastKey   atomic.Value
	missing   map[string]bool
	broken    map[string]bool
}

func (p *partner) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.lastKey.Store(r.Header.Get("X-Api-Key"))
	switch {
	case r.URL.Path == "/list":
		p.lastQuery.Store(map[string][]string(r.URL.Query()))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		content := []map[string]any{}
		if page < len(p.pages) {
			for _, id := range p.pages[page] {
				content = append(content, map[string]any{"subventionId": id})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"content": content}})
	case strings.HasPrefix(r.URL.Path, "/detail/"):
		id := strings.TrimPrefix(r.URL.Path, "/detail/")
		if p.broken[id] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if p.missing[id] {
			_, _ = w.Write([]byte(`{"data":null}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"data":{
			"subventionAreaList":[{"areaName":"서울특별시"},{"areaName":"경기도"}],
			"receptionInstitutionName":"중소벤처기업부",
			"subventionTitleName":"지원사업 %s",
			"subventionSupportMethodCodeList":[{"description":"보조금"}],
			"supportAmount":5000000,
			"receptionEndYmd":"20250301",
			"subventionHomepageUrl":"www.mss.go.kr/%s",
			"applicationMethodCodeList":[{"description":"온라인"},{}],
			"attachmentList":[{"fileName":"공고문.pdf"},{}],
			"businessTypeCode":"MANUFACTURING"
		}}`, id, id)
	default:
		http.NotFound(w, r)
	}
}

func newService(t *testing.T, h http.Handler, key string, opts ...Option) *Service {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = key
	f := fetcher.New(fetcher.NewClient(time.Second, UserAgent), fetcher.ExponentialPolicy(), fetcher.WithSleeper(noSleep))
	return NewService(cfg, f, nil, opts...)
}

func TestCrawlMapsDetails(t *testing.T) {
	t.Parallel()

	p := &partner{
		pages:   [][]string{{"A1", "A2", "A3"}},
		missing: map[string]bool{"A2": true},
		broken:  map[string]bool{"A3": true},
	}
	svc := newService(t, p, "secret")

	page, err := svc.Crawl(context.Background(), PageRequest{Industry: "제조업", Area: "서울특별시"})
	require.NoError(t, err)
	require.False(t, page.Degraded)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 10, page.Size)
	require.Equal(t, 3, page.RequestedIDs)
	require.Equal(t, 1, page.SuccessfulCrawls)
	require.Len(t, page.Items, 1)

	item := page.Items[0]
	require.Equal(t, "A1", item.SubventionID)
	require.Equal(t, "서울특별시, 경기도", item.Area)
	require.Equal(t, "지원사업 A1", item.Title)
	require.Equal(t, "5,000,000 원", item.SupportAmount)
	require.Equal(t, record.Sentinel, item.InterestRate)
	require.Equal(t, "2025-03-01", item.ReceptionEnd)
	require.Equal(t, "온라인, "+record.Sentinel, item.ApplicationMethod)
	require.Equal(t, "https://www.mss.go.kr/A1", item.URL)
	require.Equal(t, "공고문.pdf, 첨부파일", item.Attachments)
	require.Equal(t, item.Institution, item.Source)

	q := p.lastQuery.Load().(map[string][]string)
	require.Equal(t, []string{"0"}, q["page"])
	require.Equal(t, []string{"MANUFACTURING"}, q["businessTypeCode"])
	require.Equal(t, []string{"11000"}, q["areaCode"])
	require.Equal(t, []string{"ACCURACY"}, q["sort"])
	require.Equal(t, "secret", p.lastKey.Load())
}

func TestCrawlOmitsWildcardCodes(t *testing.T) {
	t.Parallel()

	p := &partner{pages: [][]string{{}, {"B1"}}}
	svc := newService(t, p, "secret")

	page, err := svc.Crawl(context.Background(), PageRequest{Page: 2, Size: 5})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	q := p.lastQuery.Load().(map[string][]string)
	require.Equal(t, []string{"1"}, q["page"])
	require.Equal(t, []string{"5"}, q["size"])
	require.NotContains(t, q, "businessTypeCode")
	require.NotContains(t, q, "areaCode")
}

func TestCrawlEmptyPage(t *testing.T) {
	t.Parallel()

	svc := newService(t, &partner{}, "secret")
	page, err := svc.Crawl(context.Background(), PageRequest{})
	require.NoError(t, err)
	require.Empty(t, page.Items)
	require.Zero(t, page.TotalCount)
	require.Equal(t, "조건에 맞는 지원사업이 없습니다.", page.Message)
}

func TestCrawlServesMockWithoutKey(t *testing.T) {
	t.Parallel()

	svc := newService(t, &partner{pages: [][]string{{"A1"}}}, "")
	page, err := svc.Crawl(context.Background(), PageRequest{Industry: AllLabel, Area: AllLabel, Page: 1, Size: 10})
	require.NoError(t, err)
	require.True(t, page.Degraded)
	require.Equal(t, MockResultCode, page.ResultCode)
	require.Equal(t, fetcher.ReasonNotConfigured, page.DegradedReason)
	require.Len(t, page.Items, len(mockNotices))
}

func TestCrawlServesMockWhenExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}), "secret")

	page, err := svc.Crawl(context.Background(), PageRequest{Industry: "제조업"})
	require.NoError(t, err)
	require.True(t, page.Degraded)
	require.Equal(t, fetcher.ReasonExhausted, page.DegradedReason)
	require.EqualValues(t, 3, calls.Load())
	require.Len(t, page.Items, 1)
	require.Equal(t, "SUB2025002", page.Items[0].SubventionID)
}

func TestBatchCrawlPacesRequests(t *testing.T) {
	t.Parallel()

	first := make([]string, 12)
	for i := range first {
		first[i] = fmt.Sprintf("P0-%02d", i)
	}
	p := &partner{pages: [][]string{first, {"P1-a", "P1-b", "P1-c"}}}
	pacing := &pacingSleeper{}
	svc := newService(t, p, "secret", WithSleeper(pacing.Sleep))

	batch, err := svc.BatchCrawl(context.Background(), BatchRequest{MaxPages: 5})
	require.NoError(t, err)
	require.Equal(t, 2, batch.PagesProcessed)
	require.Equal(t, 15, batch.TotalRequested)
	require.Equal(t, 15, batch.TotalCount)
	require.Equal(t, "100.00", batch.SuccessRate)
	require.Equal(t, "P0-00", batch.Items[0].SubventionID)
	require.Equal(t, "P1-c", batch.Items[14].SubventionID)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 2 * time.Second}, pacing.Delays())

	q := p.lastQuery.Load().(map[string][]string)
	require.Equal(t, []string{"30"}, q["size"])
}

func TestBatchCrawlNoTrailingPageDelay(t *testing.T) {
	t.Parallel()

	p := &partner{pages: [][]string{{"A"}, {"B"}}, broken: map[string]bool{"B": true}}
	pacing := &pacingSleeper{}
	svc := newService(t, p, "secret", WithSleeper(pacing.Sleep))

	batch, err := svc.BatchCrawl(context.Background(), BatchRequest{MaxPages: 2})
	require.NoError(t, err)
	require.Equal(t, 2, batch.PagesProcessed)
	require.Equal(t, 1, batch.TotalCount)
	require.Equal(t, "50.00", batch.SuccessRate)
	require.Equal(t, []time.Duration{2 * time.Second}, pacing.Delays())
}

func TestMockItemsFilter(t *testing.T) {
	t.Parallel()

	require.Len(t, MockItems(AllLabel, AllLabel), 8)
	require.Len(t, MockItems("음식점업", ""), 1)
	require.Empty(t, MockItems("제조업", "부산광역시"))
	require.Len(t, MockItems("없는 업종", "경기도"), 1)
}

func TestNormalizeEndDate(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":           record.Sentinel,
		"20250131":   "2025-01-31",
		"2025.01.31": "2025-01-31",
		"2025/01/31": "2025-01-31",
		"상시":         "상시",
	}
	for in, want := range cases {
		require.Equal(t, want, normalizeEndDate(in), in)
	}
}

func TestCodes(t *testing.T) {
	t.Parallel()

	require.Equal(t, "RESTAURANT", IndustryCode("음식점업"))
	require.Equal(t, AllIndustries, IndustryCode("모름"))
	require.Equal(t, "50000", AreaCode("제주특별자치도"))
	require.Equal(t, AllAreas, AreaCode(""))
	require.Equal(t, AllLabel, IndustryLabels()[0])
	require.Len(t, AreaLabels(), 18)
}
