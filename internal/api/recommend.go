package api

import (
	"net/http"

	"github.com/JakeFAU/subsidy-portal/internal/matching"
)

type recommendationRequest struct {
	Action       string            `json:"action"`
	SubventionID string            `json:"subventionId"`
	ProfileData  *matching.Profile `json:"profileData"`
	Profile      *matching.Profile `json:"profile"`
	Filters      matching.Filters  `json:"filters"`
}

type recommendationResponse struct {
	matching.Result
	Filters appliedFilters `json:"filters"`
}

type appliedFilters struct {
	Industry       string           `json:"industry"`
	Region         string           `json:"region"`
	AppliedFilters matching.Filters `json:"appliedFilters"`
}

// recommendations ranks the catalog for the basic profile given by the
// industry and region parameters. enhanced=true scores against the saved
// enhanced profile, or the sample profile when none was saved.
func (s *Server) recommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f := matching.Filters{
		Industry: q.Get("industry"),
		Region:   q.Get("region"),
		Status:   matching.Status(q.Get("status")),
		SortBy:   q.Get("sortBy"),
		Limit:    limit,
	}
	if f.Industry == "" {
		f.Industry = matching.DefaultIndustry
	}
	if f.Region == "" {
		f.Region = matching.DefaultRegion
	}
	if f.SortBy == "" {
		f.SortBy = matching.SortMatching
	}
	if err := f.Validate(); err != nil {
		s.fail(w, r, badRequest("%v", err))
		return
	}

	var profile *matching.Profile
	if q.Get("enhanced") == "true" {
		p, ok := s.deps.Preferences.Profile()
		if !ok {
			p = matching.DefaultProfile(f.Industry, f.Region)
		}
		profile = &p
	}
	s.ok(w, s.rank(f, profile), "")
}

func (s *Server) rank(f matching.Filters, profile *matching.Profile) recommendationResponse {
	return recommendationResponse{
		Result:  s.deps.Scorer.Recommend(s.deps.Catalog, f, profile),
		Filters: appliedFilters{Industry: f.Industry, Region: f.Region, AppliedFilters: f},
	}
}

var reactionMessages = map[matching.Reaction]string{
	matching.ReactionBookmark:   "즐겨찾기에 추가되었습니다.",
	matching.ReactionUnbookmark: "즐겨찾기에서 제거되었습니다.",
	matching.ReactionInterest:   "관심 표시가 등록되었습니다.",
}

func (s *Server) recommendationAction(w http.ResponseWriter, r *http.Request) {
	var req recommendationRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	switch req.Action {
	case "save_enhanced_profile":
		if req.ProfileData == nil {
			s.fail(w, r, missingParam("profileData"))
			return
		}
		s.deps.Preferences.SaveProfile(*req.ProfileData)
		s.ok(w, nil, "추가 정보가 성공적으로 저장되었습니다.")

	case "score":
		if req.Profile == nil {
			s.fail(w, r, missingParam("profile"))
			return
		}
		f := req.Filters
		if f.Industry == "" {
			f.Industry = req.Profile.Industry
		}
		if f.Region == "" {
			f.Region = req.Profile.Region
		}
		if err := f.Validate(); err != nil {
			s.fail(w, r, badRequest("%v", err))
			return
		}
		s.ok(w, s.rank(f, req.Profile), "")

	default:
		msg, ok := reactionMessages[matching.Reaction(req.Action)]
		if !ok {
			s.fail(w, r, badRequest("%s", errUnsupportedAction))
			return
		}
		if req.SubventionID == "" {
			s.fail(w, r, missingParam("subventionId"))
			return
		}
		s.deps.Preferences.React(matching.Reaction(req.Action), req.SubventionID)
		s.ok(w, map[string]any{
			"subventionId": req.SubventionID,
			"bookmarked":   s.deps.Preferences.Bookmarked(req.SubventionID),
			"interested":   s.deps.Preferences.Interested(req.SubventionID),
		}, msg)
	}
}
