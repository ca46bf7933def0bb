// Package procurement lists public procurement bid notices and award results
// from the public data portal.
package procurement

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/subsidy-portal/internal/clock"
	"github.com/JakeFAU/subsidy-portal/internal/fetcher"
	"github.com/JakeFAU/subsidy-portal/internal/record"
	"go.uber.org/zap"
)

// Public data portal endpoints.
const (
	DefaultNoticeURL = "https://apis.data.go.kr/1230000/ad/BidPublicInfoService"
	DefaultResultURL = "https://apis.data.go.kr/1230000/as/ScsbidInfoService"

	// UserAgent identifies portal requests.
	UserAgent = "Mozilla/5.0 (compatible; PublicDataAPI/1.0)"

	// OKResultCode is the header code of a successful response.
	OKResultCode = "00"

	placeholderKey = "발급받은_인증키_여기에_넣기"
	unknownValue   = "정보없음"
	mockMessage    = "정상처리되었습니다.(개발모드)"
	resultEndpoint = "/getScsbidListSttusThng"
)

// BidType selects the notice category.
type BidType string

// Bid notice categories.
const (
	BidThing        BidType = "thing"
	BidConstruction BidType = "cnstwk"
	BidService      BidType = "servc"
	BidForeign      BidType = "frgcpt"
)

var noticeEndpoints = map[BidType]string{
	BidThing:        "/getBidPblancListInfoThng",
	BidConstruction: "/getBidPblancListInfoCnstwk",
	BidService:      "/getBidPblancListInfoServc",
	BidForeign:      "/getBidPblancListInfoFrgcpt",
}

// ParseBidType validates a bid type, defaulting to BidThing.
func ParseBidType(s string) (BidType, error) {
	if s == "" {
		return BidThing, nil
	}
	bt := BidType(s)
	if _, ok := noticeEndpoints[bt]; !ok {
		return "", fmt.Errorf("unknown bid type %q", s)
	}
	return bt, nil
}

// Config holds portal endpoints and the service key.
type Config struct {
	NoticeURL  string `mapstructure:"notice_url"`
	ResultURL  string `mapstructure:"result_url"`
	ServiceKey string `mapstructure:"service_key"`
}

// Query selects a page of portal rows. Zero values take the portal defaults.
type Query struct {
	PageNo     int
	NumOfRows  int
	Type       string
	InqryDiv   int
	InqryBgnDt string
	InqryEndDt string
	BidType    BidType
	BidNtceNo  string
}

// Header is the portal status header.
type Header struct {
	ResultCode string `json:"resultCode"`
	ResultMsg  string `json:"resultMsg"`
}

// Body carries one page of rows.
type Body struct {
	Items      []map[string]any `json:"items"`
	NumOfRows  int              `json:"numOfRows"`
	PageNo     int              `json:"pageNo"`
	TotalCount int              `json:"totalCount"`
}

// Listing mirrors the portal envelope and marks canned responses.
type Listing struct {
	Response struct {
		Header Header `json:"header"`
		Body   Body   `json:"body"`
	} `json:"response"`
	Degraded       bool   `json:"degraded,omitempty"`
	DegradedReason string `json:"degradedReason,omitempty"`
}

// Service queries the portal through a linear-backoff fetcher.
type Service struct {
	cfg    Config
	fetch  *fetcher.Fetcher
	clock  clock.Clock
	logger *zap.Logger
}

// New wires a Service.
func New(cfg Config, f *fetcher.Fetcher, clk clock.Clock, logger *zap.Logger) *Service {
	if cfg.NoticeURL == "" {
		cfg.NoticeURL = DefaultNoticeURL
	}
	if cfg.ResultURL == "" {
		cfg.ResultURL = DefaultResultURL
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, fetch: f, clock: clk, logger: logger.Named("procurement")}
}

var kst = time.FixedZone("KST", 9*60*60)

// DefaultWindow returns the last month as inquiry bounds in YYYYMMDDHHMM.
func DefaultWindow(now time.Time) (begin, end string) {
	now = now.In(kst)
	return now.AddDate(0, -1, 0).Format("20060102") + "0000", now.Format("20060102") + "2359"
}

func (s *Service) params(q Query, defaultDiv int) map[string]string {
	begin, end := DefaultWindow(s.clock.Now())
	out := map[string]string{
		"serviceKey": s.cfg.ServiceKey,
		"pageNo":     strconv.Itoa(orInt(q.PageNo, 1)),
		"numOfRows":  strconv.Itoa(orInt(q.NumOfRows, 10)),
		"type":       orString(q.Type, "json"),
		"inqryDiv":   strconv.Itoa(orInt(q.InqryDiv, defaultDiv)),
		"inqryBgnDt": orString(q.InqryBgnDt, begin),
		"inqryEndDt": orString(q.InqryEndDt, end),
	}
	if q.BidNtceNo != "" {
		out["bidNtceNo"] = q.BidNtceNo
	}
	return out
}

func (s *Service) configured() error {
	if s.fetch == nil || s.cfg.ServiceKey == "" || s.cfg.ServiceKey == placeholderKey {
		return fmt.Errorf("public data portal: %w", fetcher.ErrNotConfigured)
	}
	return nil
}

// BidNotices lists bid announcements. Without a service key, or after every
// attempt failed transiently, a single demo notice is returned.
func (s *Service) BidNotices(ctx context.Context, q Query) (*Listing, error) {
	bt, err := ParseBidType(string(q.BidType))
	if err != nil {
		return nil, err
	}
	return s.list(ctx, "bid_notices", q, func(ctx context.Context) (*Listing, error) {
		l, err := s.get(ctx, "bid_notices", s.cfg.NoticeURL+noticeEndpoints[bt], s.params(q, 1))
		if err != nil {
			return nil, err
		}
		for i, item := range l.Response.Body.Items {
			l.Response.Body.Items[i] = mapNotice(item)
		}
		return l, nil
	}, mockNotices)
}

// BidResults lists award results for goods contracts.
func (s *Service) BidResults(ctx context.Context, q Query) (*Listing, error) {
	return s.list(ctx, "bid_results", q, func(ctx context.Context) (*Listing, error) {
		return s.get(ctx, "bid_results", s.cfg.ResultURL+resultEndpoint, s.params(q, 2))
	}, mockResults)
}

func (s *Service) list(ctx context.Context, source string, q Query, primary func(context.Context) (*Listing, error), mock func() []map[string]any) (*Listing, error) {
	out, err := fetcher.Degrade(ctx, source, s.logger, func(ctx context.Context) (*Listing, error) {
		if err := s.configured(); err != nil {
			return nil, err
		}
		return primary(ctx)
	}, func() *Listing {
		items := mock()
		l := &Listing{}
		l.Response.Header = Header{ResultCode: OKResultCode, ResultMsg: mockMessage}
		l.Response.Body = Body{Items: items, NumOfRows: orInt(q.NumOfRows, 10), PageNo: orInt(q.PageNo, 1), TotalCount: len(items)}
		return l
	})
	if err != nil {
		return nil, err
	}
	if out.Degraded {
		out.Data.Degraded = true
		out.Data.DegradedReason = out.Reason
	}
	return out.Data, nil
}

func (s *Service) get(ctx context.Context, source, url string, query map[string]string) (*Listing, error) {
	resp, err := s.fetch.Fetch(ctx, fetcher.Request{
		Source:  source,
		URL:     url,
		Query:   query,
		Headers: map[string]string{"Accept": "application/json, text/plain, */*"},
		Check:   fetcher.PublicDataResult(OKResultCode),
	})
	if err != nil {
		return nil, err
	}
	var l Listing
	if err := resp.Decode(&l); err != nil {
		return nil, err
	}
	if l.Response.Body.Items == nil {
		l.Response.Body.Items = []map[string]any{}
	}
	return &l, nil
}

var noticeInfoFields = []string{"bidMethdNm", "cntrctCnclsMthdNm", "ntceInsttOfclNm", "ntceInsttOfclTelNo", "ntceInsttOfclEmailAdrs"}

// mapNotice aligns a portal notice row with the field names the UI reads.
func mapNotice(item map[string]any) map[string]any {
	out := record.Record(item).Clone()
	date := item["ntcedt"]
	if !record.Truthy(date) {
		date = item["bidNtceDt"]
	}
	out["bidNtceDt"] = stringOr(date, "")
	out["presmptPrce"] = stringOr(item["presmptPrce"], "")
	out["asignBdgtAmt"] = stringOr(item["asignBdgtAmt"], "")
	for _, f := range noticeInfoFields {
		out[f] = stringOr(item[f], unknownValue)
	}
	return out
}

func mockNotices() []map[string]any {
	return []map[string]any{mapNotice(map[string]any{
		"bidNtceNo":   "20250926001",
		"bidNtceNm":   "[데모] IT 인프라 구축 사업",
		"ntceInsttNm": "한국정보화진흥원",
		"dminsttNm":   "행정안전부",
		"bidClsfcNo":  "70101",
		"bidClsfcNm":  "전자계산기용 응용S/W 개발공급",
		"ntcedt":      "202509260900",
		"bidBeginDt":  "202509270900",
		"bidClseDt":   "202510101700",
		"opengDt":     "202510111000",
		"presmptPrce": float64(500000000),
	})}
}

func mockResults() []map[string]any {
	return []map[string]any{{
		"bidNtceNo":   "20250926001",
		"bidNtceNm":   "[완료] IT 인프라 구축 사업",
		"ntceInsttNm": "한국정보화진흥원",
		"dminsttNm":   "행정안전부",
		"bidClsfcNo":  "70101",
		"bidClsfcNm":  "전자계산기용 응용S/W 개발공급",
		"scsbidNm":    "ABC소프트웨어",
		"scsbidAmt":   float64(450000000),
		"scsbidDt":    "202510150900",
	}}
}

func stringOr(v any, fallback string) string {
	if !record.Truthy(v) {
		return fallback
	}
	return strings.TrimSpace(record.String(v))
}

func orInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func orString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
