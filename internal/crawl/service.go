// Package crawl collects subvention notices from the partner API: a list
// call yields notice ids and a detail call per id yields the notice itself.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/subsidy-portal/internal/fetcher"
	"github.com/JakeFAU/subsidy-portal/internal/record"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the partner subvention API root.
const DefaultBaseURL = "https://internal.pay.naver.com/partner/api/subvention"

// UserAgent identifies partner requests.
const UserAgent = "Mozilla/5.0 (compatible; FinSupportCrawler/1.0)"

const (
	source         = "partner"
	emptyPageNotes = "조건에 맞는 지원사업이 없습니다."
)

// Config controls partner access and batch pacing.
type Config struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	ListSize        int           `mapstructure:"list_size"`
	DetailBatchSize int           `mapstructure:"detail_batch_size"`
	BatchDelay      time.Duration `mapstructure:"batch_delay"`
	PageDelay       time.Duration `mapstructure:"page_delay"`
	MaxPages        int           `mapstructure:"max_pages"`
	Concurrency     int           `mapstructure:"concurrency"`
}

// DefaultConfig mirrors the pacing the partner tolerates.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		ListSize:        30,
		DetailBatchSize: 10,
		BatchDelay:      time.Second,
		PageDelay:       2 * time.Second,
		MaxPages:        144,
		Concurrency:     10,
	}
}

// PageRequest selects one 1-based page of notices.
type PageRequest struct {
	Industry string
	Area     string
	Page     int
	Size     int
}

func (r *PageRequest) applyDefaults() {
	if r.Industry == "" {
		r.Industry = AllLabel
	}
	if r.Area == "" {
		r.Area = AllLabel
	}
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Size < 1 {
		r.Size = 10
	}
}

// Degradation marks output served from canned data.
type Degradation struct {
	ResultCode     string `json:"resultCode,omitempty"`
	Degraded       bool   `json:"degraded,omitempty"`
	DegradedReason string `json:"degradedReason,omitempty"`
}

// Page is the result of a single page crawl.
type Page struct {
	Items            []Item `json:"items"`
	TotalCount       int    `json:"totalCount"`
	Page             int    `json:"page"`
	Size             int    `json:"size"`
	RequestedIDs     int    `json:"requestedIds,omitempty"`
	SuccessfulCrawls int    `json:"successfulCrawls,omitempty"`
	Message          string `json:"message,omitempty"`
	Degradation
}

// BatchRequest crawls up to MaxPages pages.
type BatchRequest struct {
	Industry string `json:"industry"`
	Area     string `json:"area"`
	MaxPages int    `json:"maxPages"`
}

// Batch is the result of a multi-page crawl.
type Batch struct {
	Items          []Item `json:"items"`
	TotalCount     int    `json:"totalCount"`
	TotalRequested int    `json:"totalRequested"`
	SuccessRate    string `json:"successRate"`
	PagesProcessed int    `json:"pagesProcessed"`
	Degradation
}

// Service crawls the partner API through a retrying fetcher.
type Service struct {
	cfg    Config
	fetch  *fetcher.Fetcher
	sleep  fetcher.Sleeper
	logger *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithSleeper replaces the pacing sleeper, mainly for tests.
func WithSleeper(s fetcher.Sleeper) Option {
	return func(svc *Service) { svc.sleep = s }
}

// NewService wires a Service. f should carry the exponential detail policy.
func NewService(cfg Config, f *fetcher.Fetcher, logger *zap.Logger, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.ListSize < 1 {
		cfg.ListSize = def.ListSize
	}
	if cfg.DetailBatchSize < 1 {
		cfg.DetailBatchSize = def.DetailBatchSize
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = def.MaxPages
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{cfg: cfg, fetch: f, sleep: fetcher.SleepContext, logger: logger.Named("crawl")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Crawl fetches one page of ids and their details. When the partner is not
// configured or unreachable the canned notices are served instead.
func (s *Service) Crawl(ctx context.Context, req PageRequest) (*Page, error) {
	req.applyDefaults()
	out, err := fetcher.Degrade(ctx, source, s.logger, func(ctx context.Context) (*Page, error) {
		return s.crawlPage(ctx, req)
	}, func() *Page {
		items := MockItems(req.Industry, req.Area)
		return &Page{Items: items, TotalCount: len(items), Page: req.Page, Size: req.Size}
	})
	if err != nil {
		return nil, err
	}
	if out.Degraded {
		out.Data.Degradation = Degradation{ResultCode: MockResultCode, Degraded: true, DegradedReason: out.Reason}
	}
	return out.Data, nil
}

func (s *Service) crawlPage(ctx context.Context, req PageRequest) (*Page, error) {
	ids, err := s.ListIDs(ctx, req.Industry, req.Area, req.Page-1, req.Size)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &Page{Items: []Item{}, Page: req.Page, Size: req.Size, Message: emptyPageNotes}, nil
	}
	items, err := s.details(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &Page{
		Items:            items,
		TotalCount:       len(items),
		Page:             req.Page,
		Size:             req.Size,
		RequestedIDs:     len(ids),
		SuccessfulCrawls: len(items),
	}, nil
}

// BatchCrawl walks pages from zero until an empty page or MaxPages. Details
// are fetched in batches with a pause between batches and between pages.
func (s *Service) BatchCrawl(ctx context.Context, req BatchRequest) (*Batch, error) {
	if req.MaxPages < 1 {
		req.MaxPages = s.cfg.MaxPages
	}
	out, err := fetcher.Degrade(ctx, source, s.logger, func(ctx context.Context) (*Batch, error) {
		return s.crawlPages(ctx, req)
	}, func() *Batch {
		items := MockItems(req.Industry, req.Area)
		return &Batch{Items: items, TotalCount: len(items), TotalRequested: len(items), SuccessRate: successRate(len(items), len(items)), PagesProcessed: 1}
	})
	if err != nil {
		return nil, err
	}
	if out.Degraded {
		out.Data.Degradation = Degradation{ResultCode: MockResultCode, Degraded: true, DegradedReason: out.Reason}
	}
	return out.Data, nil
}

func (s *Service) crawlPages(ctx context.Context, req BatchRequest) (*Batch, error) {
	items := []Item{}
	requested, pages := 0, 0
	for page := 0; page < req.MaxPages; page++ {
		ids, err := s.ListIDs(ctx, req.Industry, req.Area, page, s.cfg.ListSize)
		if err != nil {
			if page == 0 || !errors.Is(err, fetcher.ErrExhausted) {
				return nil, err
			}
			s.logger.Warn("stopping batch crawl early", zap.Int("page", page), zap.Error(err))
			break
		}
		if len(ids) == 0 {
			s.logger.Info("no more notices", zap.Int("page", page))
			break
		}
		pages++
		requested += len(ids)

		for i := 0; i < len(ids); i += s.cfg.DetailBatchSize {
			end := min(i+s.cfg.DetailBatchSize, len(ids))
			batch, err := s.details(ctx, ids[i:end])
			if err != nil {
				return nil, err
			}
			items = append(items, batch...)
			if end < len(ids) {
				if err := s.sleep(ctx, s.cfg.BatchDelay); err != nil {
					return nil, err
				}
			}
		}
		s.logger.Info("page crawled", zap.Int("page", page+1), zap.Int("ids", len(ids)), zap.Int("items", len(items)))

		if page < req.MaxPages-1 {
			if err := s.sleep(ctx, s.cfg.PageDelay); err != nil {
				return nil, err
			}
		}
	}
	return &Batch{
		Items:          items,
		TotalCount:     len(items),
		TotalRequested: requested,
		SuccessRate:    successRate(len(items), requested),
		PagesProcessed: pages,
	}, nil
}

func successRate(ok, total int) string {
	if total == 0 {
		return "0"
	}
	return strconv.FormatFloat(float64(ok)/float64(total)*100, 'f', 2, 64)
}

func (s *Service) configured() error {
	if s.fetch == nil || s.cfg.APIKey == "" {
		return fmt.Errorf("partner api: %w", fetcher.ErrNotConfigured)
	}
	return nil
}

func (s *Service) headers() map[string]string {
	return map[string]string{"X-Api-Key": s.cfg.APIKey, "Content-Type": "application/json"}
}

// ListIDs returns the notice ids on a 0-based partner page.
func (s *Service) ListIDs(ctx context.Context, industry, area string, page, size int) ([]string, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	query := map[string]string{
		"isActive": "Y",
		"page":     strconv.Itoa(page),
		"size":     strconv.Itoa(size),
		"sort":     "ACCURACY",
	}
	if code := IndustryCode(industry); code != AllIndustries {
		query["businessTypeCode"] = code
	}
	if code := AreaCode(area); code != AllAreas {
		query["areaCode"] = code
	}

	resp, err := s.fetch.Fetch(ctx, fetcher.Request{
		Source:  source + "_list",
		URL:     strings.TrimRight(s.cfg.BaseURL, "/") + "/list",
		Query:   query,
		Headers: s.headers(),
	})
	if err != nil {
		return nil, err
	}
	var body struct {
		Data *struct {
			Content []struct {
				SubventionID any `json:"subventionId"`
			} `json:"content"`
		} `json:"data"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	if body.Data == nil {
		return nil, nil
	}
	ids := make([]string, 0, len(body.Data.Content))
	for _, c := range body.Data.Content {
		if id := record.String(c.SubventionID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Detail fetches and maps one notice. A nil item means the partner had no
// data for id.
func (s *Service) Detail(ctx context.Context, id string) (*Item, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	resp, err := s.fetch.Fetch(ctx, fetcher.Request{
		Source:  source + "_detail",
		URL:     strings.TrimRight(s.cfg.BaseURL, "/") + "/detail/" + id,
		Headers: s.headers(),
	})
	if err != nil {
		return nil, err
	}
	var body struct {
		Data *detailPayload `json:"data"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	if body.Data == nil {
		return nil, nil
	}
	item := mapDetail(id, body.Data)
	return &item, nil
}

// details fetches ids concurrently. Failed notices are dropped so one bad id
// cannot sink the page; order follows ids.
func (s *Service) details(ctx context.Context, ids []string) ([]Item, error) {
	found := make([]*Item, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			item, err := s.Detail(gctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("dropping notice", zap.String("subventionId", id), zap.Error(err))
				return nil
			}
			found[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(ids))
	for _, it := range found {
		if it != nil {
			items = append(items, *it)
		}
	}
	return items, nil
}
