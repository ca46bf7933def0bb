package api

import (
	"net/http"
	"strconv"

	"github.com/JakeFAU/subsidy-portal/internal/crawl"
	"github.com/JakeFAU/subsidy-portal/internal/procurement"
)

// intQuery parses an optional integer query parameter.
func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer", name)
	}
	return n, nil
}

func (s *Server) crawlPage(w http.ResponseWriter, r *http.Request) {
	page, err := intQuery(r, "page", 1)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	size, err := intQuery(r, "size", 10)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	out, err := s.deps.Crawler.Crawl(r.Context(), crawl.PageRequest{
		Industry: q.Get("industry"),
		Area:     q.Get("area"),
		Page:     page,
		Size:     size,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, out, out.Message)
}

func (s *Server) crawlBatch(w http.ResponseWriter, r *http.Request) {
	var req crawl.BatchRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.MaxPages < 0 {
		s.fail(w, r, badRequest("maxPages must not be negative"))
		return
	}
	out, err := s.deps.Crawler.BatchCrawl(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, out, "")
}

func procurementQuery(r *http.Request, defaultDiv int) (procurement.Query, error) {
	q := r.URL.Query()
	out := procurement.Query{
		Type:       q.Get("type"),
		InqryBgnDt: q.Get("inqryBgnDt"),
		InqryEndDt: q.Get("inqryEndDt"),
		BidType:    procurement.BidType(q.Get("bidType")),
		BidNtceNo:  q.Get("bidNtceNo"),
	}
	var err error
	if out.PageNo, err = intQuery(r, "pageNo", 1); err != nil {
		return out, err
	}
	if out.NumOfRows, err = intQuery(r, "numOfRows", 10); err != nil {
		return out, err
	}
	if out.InqryDiv, err = intQuery(r, "inqryDiv", defaultDiv); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Server) bidNotices(w http.ResponseWriter, r *http.Request) {
	q, err := procurementQuery(r, 1)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := procurement.ParseBidType(string(q.BidType)); err != nil {
		s.fail(w, r, badRequest("%v", err))
		return
	}
	out, err := s.deps.Procurement.BidNotices(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, out, "")
}

func (s *Server) bidResults(w http.ResponseWriter, r *http.Request) {
	q, err := procurementQuery(r, 2)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.deps.Procurement.BidResults(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, out, "")
}

type codeMapping struct {
	Labels []string `json:"labels,omitempty"`
	Label  string   `json:"label,omitempty"`
	Code   string   `json:"code,omitempty"`
}

func (s *Server) industryMapping(w http.ResponseWriter, r *http.Request) {
	if label := r.URL.Query().Get("label"); label != "" {
		s.ok(w, codeMapping{Label: label, Code: crawl.IndustryCode(label)}, "")
		return
	}
	s.ok(w, codeMapping{Labels: crawl.IndustryLabels()}, "")
}

func (s *Server) areaMapping(w http.ResponseWriter, r *http.Request) {
	if label := r.URL.Query().Get("label"); label != "" {
		s.ok(w, codeMapping{Label: label, Code: crawl.AreaCode(label)}, "")
		return
	}
	s.ok(w, codeMapping{Labels: crawl.AreaLabels()}, "")
}
