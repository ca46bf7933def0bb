package matching

import (
	"testing"
	"time"

	"github.com/JakeFAU/subsidy-portal/internal/clock"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"
)

func newScorer() *Scorer {
	return NewScorer(clock.NewFixed(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)), DefaultFuzzyThreshold)
}

func byID(t *testing.T, id string) Subvention {
	t.Helper()
	for _, s := range DefaultCatalog() {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("no subvention %s", id)
	return Subvention{}
}

func ids(subs []Subvention) []string {
	out := make([]string, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.ID)
	}
	return out
}

func TestBasicScore(t *testing.T) {
	t.Parallel()

	s := newScorer()
	require.Equal(t, 100, s.Basic(byID(t, "sub_001"), DefaultIndustry, DefaultRegion))
	// 제조 substring on both sides, capital-area region.
	require.Equal(t, 70, s.Basic(Subvention{Industry: []string{"제조업"}, Region: []string{CapitalArea}}, "식품제조", "서울"))
	require.Equal(t, 10, s.Basic(Subvention{Industry: []string{"IT"}, Region: []string{"부산광역시"}}, "농업", "제주"))
}

func TestBasicScoreFuzzyIndustry(t *testing.T) {
	t.Parallel()

	sub := Subvention{Industry: []string{"서비스업"}, Region: []string{"부산광역시"}}
	require.Equal(t, 10, newScorer().Basic(sub, "서비스", DefaultRegion))
	require.Equal(t, 50, NewScorer(nil, RecommendedFuzzyThreshold).Basic(sub, "서비스", DefaultRegion))

	related := Subvention{Industry: []string{"정보통신업"}, Region: []string{"부산광역시"}}
	require.Equal(t, 10, newScorer().Basic(related, "정보통신", "대구광역시"))
}

func TestLabelsAreNFCFolded(t *testing.T) {
	t.Parallel()

	decomposed := norm.NFD.String("제조업")
	require.NotEqual(t, "제조업", decomposed)
	require.Equal(t, 100, newScorer().Basic(byID(t, "sub_001"), decomposed, DefaultRegion))
}

func TestEnhancedScore(t *testing.T) {
	t.Parallel()

	s := newScorer()
	p := DefaultProfile(DefaultIndustry, DefaultRegion)

	require.Equal(t, 119, s.EnhancedRaw(byID(t, "sub_001"), p))
	require.Equal(t, 92, s.Enhanced(byID(t, "sub_001"), p))
	require.Equal(t, 102, s.EnhancedRaw(byID(t, "sub_002"), p))
	require.Equal(t, 78, s.Enhanced(byID(t, "sub_002"), p))
}

func TestEnhancedMaturityUsesClock(t *testing.T) {
	t.Parallel()

	sub := Subvention{}
	young := NewScorer(clock.NewFixed(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)), 0)
	old := NewScorer(clock.NewFixed(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)), 0)
	p := Profile{EstablishedYear: "2018"}

	// 6 history points plus maturity.
	require.Equal(t, 9, young.EnhancedRaw(sub, p))
	require.Equal(t, 16, old.EnhancedRaw(sub, p))
	require.Equal(t, 9, old.EnhancedRaw(sub, Profile{EstablishedYear: "unknown"}))
}

func TestRecommendDefaults(t *testing.T) {
	t.Parallel()

	res := newScorer().Recommend(DefaultCatalog(), Filters{Industry: DefaultIndustry, Region: DefaultRegion, SortBy: SortMatching}, nil)

	require.Len(t, res.Recommendations, 5)
	require.Equal(t, Stats{Total: 5, ActiveCount: 4, DeadlineApproachingCount: 1, AverageMatchingScore: 100}, res.Stats)
	require.Equal(t, []string{"sub_001", "sub_002", "sub_003", "sub_004", "sub_005"}, ids(res.Recommendations))
}

func TestRecommendFiltersAndLimit(t *testing.T) {
	t.Parallel()

	s := newScorer()
	res := s.Recommend(DefaultCatalog(), Filters{Industry: "IT", Region: "부산광역시"}, nil)
	require.Equal(t, []string{"sub_004", "sub_005"}, ids(res.Recommendations))

	res = s.Recommend(DefaultCatalog(), Filters{Status: StatusDeadlineApproaching}, nil)
	require.Equal(t, []string{"sub_002"}, ids(res.Recommendations))

	res = s.Recommend(DefaultCatalog(), Filters{SortBy: SortNone, Limit: 2}, nil)
	require.Equal(t, []string{"sub_001", "sub_002"}, ids(res.Recommendations))
}

func TestRecommendSortOrders(t *testing.T) {
	t.Parallel()

	s := newScorer()
	res := s.Recommend(DefaultCatalog(), Filters{SortBy: SortDeadline}, nil)
	require.Equal(t, []string{"sub_002", "sub_001", "sub_004", "sub_003", "sub_005"}, ids(res.Recommendations))

	res = s.Recommend(DefaultCatalog(), Filters{SortBy: SortAmount}, nil)
	require.Equal(t, []string{"sub_002", "sub_003", "sub_005", "sub_001", "sub_004"}, ids(res.Recommendations))

	p := DefaultProfile(DefaultIndustry, DefaultRegion)
	res = s.Recommend(DefaultCatalog(), Filters{Industry: DefaultIndustry, Region: DefaultRegion}, &p)
	require.Equal(t, "sub_001", res.Recommendations[0].ID)
	require.Equal(t, 92, res.Recommendations[0].MatchingScore)
}

func TestRecommendDoesNotMutateCatalog(t *testing.T) {
	t.Parallel()

	catalog := DefaultCatalog()
	_ = newScorer().Recommend(catalog, Filters{Industry: "농업"}, nil)
	require.Equal(t, 95, catalog[0].MatchingScore)
}

func TestFiltersValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Filters{SortBy: SortDeadline}.Validate())
	require.Error(t, Filters{SortBy: "latest"}.Validate())
	require.Error(t, Filters{Limit: -1}.Validate())
}

func TestPreferences(t *testing.T) {
	t.Parallel()

	p := NewPreferences()
	_, ok := p.Profile()
	require.False(t, ok)

	p.SaveProfile(Profile{Industry: "IT"})
	got, ok := p.Profile()
	require.True(t, ok)
	require.Equal(t, "IT", got.Industry)

	p.React(ReactionBookmark, "sub_001")
	p.React(ReactionInterest, "sub_002")
	require.True(t, p.Bookmarked("sub_001"))
	require.True(t, p.Interested("sub_002"))
	p.React(ReactionUnbookmark, "sub_001")
	require.False(t, p.Bookmarked("sub_001"))
}

func profileGen() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("제조업", "IT", "서비스업", "농업", ""),
		gen.OneConstOf("서울특별시", "부산광역시", "제주", ""),
		gen.OneConstOf("", "10-49명"),
		gen.OneConstOf("", "1-10억원"),
		gen.OneConstOf("", "2010", "2024", "abc"),
		gen.SliceOf(gen.OneConstOf("벤처기업", "ISO 9001")),
		gen.SliceOf(gen.OneConstOf("AI", "스마트팩토리", "ESG", "클라우드")),
		gen.SliceOf(gen.OneConstOf("R&D", "설비투자", "DX")),
	).Map(func(v []any) Profile {
		return Profile{
			Industry:             v[0].(string),
			Region:               v[1].(string),
			EmployeeCount:        v[2].(string),
			AnnualRevenue:        v[3].(string),
			EstablishedYear:      v[4].(string),
			Certifications:       v[5].([]string),
			InterestAreas:        v[6].([]string),
			InvestmentPriorities: v[7].([]string),
		}
	})
}

func TestScoreProperties(t *testing.T) {
	s := newScorer()
	catalog := DefaultCatalog()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("scores stay within 0-100", prop.ForAll(
		func(p Profile, i int) bool {
			sub := catalog[i]
			b := s.Basic(sub, p.Industry, p.Region)
			e := s.Enhanced(sub, p)
			return b >= 0 && b <= 100 && e >= 0 && e <= 100
		},
		profileGen(),
		gen.IntRange(0, len(catalog)-1),
	))

	properties.Property("more profile signal never lowers the enhanced score", prop.ForAll(
		func(p Profile, i int, extra string) bool {
			sub := catalog[i]
			before := s.EnhancedRaw(sub, p)

			richer := p
			richer.InterestAreas = append(append([]string(nil), p.InterestAreas...), extra)
			richer.Certifications = append(append([]string(nil), p.Certifications...), "이노비즈")
			if richer.RDInvestment == "" {
				richer.RDInvestment, richer.RDEmployees = "1-3%", "2"
			}
			richer.PreferredInstitutions = append(richer.PreferredInstitutions, sub.Institution)
			return s.EnhancedRaw(sub, richer) >= before
		},
		profileGen(),
		gen.IntRange(0, len(catalog)-1),
		gen.OneConstOf("AI", "ESG", "탄소중립", "없음"),
	))

	properties.TestingRun(t)
}
