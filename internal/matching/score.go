package matching

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/JakeFAU/subsidy-portal/internal/clock"
	"github.com/antzucaro/matchr"
	"golang.org/x/text/unicode/norm"
)

const (
	maxBasic    = 100
	maxEnhanced = 130

	// DefaultFuzzyThreshold keeps fuzzy industry matching off: only a shared
	// "제조" earns the partial industry tier.
	DefaultFuzzyThreshold = 0

	// RecommendedFuzzyThreshold is the Jaro-Winkler similarity to configure
	// when related industry labels should also earn the partial tier.
	RecommendedFuzzyThreshold = 0.92
)

var (
	rdTags   = []string{"R&D", "AI", "혁신", "기술개발"}
	certTags = []string{"벤처", "이노비즈", "ISO"}
)

// Scorer computes basic and enhanced matching scores.
type Scorer struct {
	clock          clock.Clock
	fuzzyThreshold float64
}

// NewScorer builds a Scorer. A threshold <= 0 disables fuzzy label matching.
func NewScorer(c clock.Clock, fuzzyThreshold float64) *Scorer {
	if c == nil {
		c = clock.System()
	}
	return &Scorer{clock: c, fuzzyThreshold: fuzzyThreshold}
}

func fold(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func has(list []string, v string) bool {
	v = fold(v)
	return slices.ContainsFunc(list, func(s string) bool { return fold(s) == v })
}

func (s *Scorer) industryTier(sub Subvention, industry string) int {
	if has(sub.Industry, industry) || has(sub.Industry, AllIndustries) {
		return 2
	}
	user := fold(industry)
	for _, label := range sub.Industry {
		label = fold(label)
		if strings.Contains(label, "제조") && strings.Contains(user, "제조") {
			return 1
		}
		if s.fuzzyThreshold > 0 && user != "" && matchr.JaroWinkler(label, user, false) >= s.fuzzyThreshold {
			return 1
		}
	}
	return 0
}

func regionTier(sub Subvention, region string) int {
	if has(sub.Region, region) || has(sub.Region, Nationwide) {
		return 2
	}
	user := fold(region)
	for _, label := range sub.Region {
		if strings.Contains(fold(label), CapitalArea) && strings.Contains(user, "서울") {
			return 1
		}
	}
	return 0
}

// Basic scores sub for an industry and region on a 0-100 scale.
func (s *Scorer) Basic(sub Subvention, industry, region string) int {
	score := 10
	switch s.industryTier(sub, industry) {
	case 2:
		score += 60
	case 1:
		score += 40
	}
	switch regionTier(sub, region) {
	case 2:
		score += 30
	case 1:
		score += 20
	}
	return min(score, maxBasic)
}

// EnhancedRaw scores sub for a full profile on the 0-130 scale.
func (s *Scorer) EnhancedRaw(sub Subvention, p Profile) int {
	score := 0

	// Basic fit, 70.
	switch s.industryTier(sub, p.Industry) {
	case 2:
		score += 40
	case 1:
		score += 25
	}
	switch regionTier(sub, p.Region) {
	case 2:
		score += 20
	case 1:
		score += 15
	}
	sizeKnown := p.EmployeeCount != "" && p.AnnualRevenue != ""
	switch {
	case sizeKnown:
		score += 10
	case p.EmployeeCount != "" || p.AnnualRevenue != "":
		score += 5
	}

	// Capability, 25.
	if p.RDInvestment != "" && p.RDEmployees != "" {
		if anyTagIn(sub.Tags, rdTags) {
			score += 8
		} else {
			score += 4
		}
	}
	if len(p.Certifications) > 0 {
		if anyTagIn(sub.Tags, certTags) {
			score += 7
		} else {
			score += 3
		}
	}
	if p.EstablishedYear != "" {
		score += s.maturity(p.EstablishedYear)
	}

	// Interest, 20.
	if n := overlapping(p.InterestAreas, sub.Tags); n >= 2 {
		score += 15
	} else if n == 1 {
		score += 8
	}
	if len(p.InvestmentPriorities) > 0 {
		if overlapping(p.InvestmentPriorities, sub.Tags) > 0 {
			score += 5
		} else {
			score += 2
		}
	}

	// History placeholder, 10: there is no application history yet, so every
	// program gets the same base plus the preferred-institution bonus.
	score += 3 + 3
	if has(p.PreferredInstitutions, sub.Institution) {
		score += 2
	}

	// Bonus, 5.
	if sub.Status == StatusDeadlineApproaching {
		score += 2
	}
	if sizeKnown {
		score += 3
	}

	return min(score, maxEnhanced)
}

// Enhanced rescales EnhancedRaw to 0-100.
func (s *Scorer) Enhanced(sub Subvention, p Profile) int {
	return int(math.Round(float64(s.EnhancedRaw(sub, p)) * 100 / maxEnhanced))
}

func (s *Scorer) maturity(established string) int {
	year, err := strconv.Atoi(strings.TrimSpace(established))
	if err != nil {
		return 3
	}
	switch age := s.clock.Now().Year() - year; {
	case age >= 7:
		return 10
	case age >= 3:
		return 7
	default:
		return 3
	}
}

func anyTagIn(tags, wanted []string) bool {
	for _, t := range tags {
		if has(wanted, t) {
			return true
		}
	}
	return false
}

// overlapping counts entries of wants that share a substring relation with
// any tag.
func overlapping(wants, tags []string) int {
	n := 0
	for _, w := range wants {
		w = fold(w)
		for _, t := range tags {
			t = fold(t)
			if strings.Contains(t, w) || strings.Contains(w, t) {
				n++
				break
			}
		}
	}
	return n
}
