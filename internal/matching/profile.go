package matching

import "sync"

// Profile describes the company being matched. Only Industry and Region are
// used by the basic score; the rest feeds the enhanced score.
type Profile struct {
	Industry              string   `json:"industry"`
	Region                string   `json:"region"`
	EmployeeCount         string   `json:"employeeCount,omitempty"`
	AnnualRevenue         string   `json:"annualRevenue,omitempty"`
	EstablishedYear       string   `json:"establishedYear,omitempty"`
	MainBusiness          string   `json:"mainBusiness,omitempty"`
	Certifications        []string `json:"certifications,omitempty"`
	RDInvestment          string   `json:"rdInvestment,omitempty"`
	RDEmployees           string   `json:"rdEmployees,omitempty"`
	InvestmentPriorities  []string `json:"investmentPriorities,omitempty"`
	InterestAreas         []string `json:"interestAreas,omitempty"`
	PreferredSupportTypes []string `json:"preferredSupportTypes,omitempty"`
	PreferredInstitutions []string `json:"preferredInstitutions,omitempty"`
}

// Default basic profile labels.
const (
	DefaultIndustry = "제조업"
	DefaultRegion   = "서울특별시"
)

// DefaultProfile is the sample enhanced profile used when the caller asks for
// enhanced scoring without supplying or saving one.
func DefaultProfile(industry, region string) Profile {
	return Profile{
		Industry:              industry,
		Region:                region,
		EmployeeCount:         "10-49명",
		AnnualRevenue:         "1-10억원",
		EstablishedYear:       "2018",
		MainBusiness:          "자동차 부품 제조",
		Certifications:        []string{"벤처기업", "ISO 9001"},
		RDInvestment:          "1-3%",
		RDEmployees:           "3",
		InvestmentPriorities:  []string{"R&D", "설비투자"},
		InterestAreas:         []string{"스마트팩토리", "AI/빅데이터"},
		PreferredSupportTypes: []string{"자금지원", "컨설팅"},
		PreferredInstitutions: []string{"중소벤처기업부", "산업통상자원부"},
	}
}

// Reaction is a user's mark on a program.
type Reaction string

// Supported reactions.
const (
	ReactionBookmark   Reaction = "bookmark"
	ReactionUnbookmark Reaction = "unbookmark"
	ReactionInterest   Reaction = "interest"
)

// Preferences keeps the saved enhanced profile plus bookmarks and interest
// marks. It is process local.
type Preferences struct {
	mu        sync.RWMutex
	profile   *Profile
	bookmarks map[string]struct{}
	interests map[string]struct{}
}

// NewPreferences returns empty Preferences.
func NewPreferences() *Preferences {
	return &Preferences{
		bookmarks: make(map[string]struct{}),
		interests: make(map[string]struct{}),
	}
}

// SaveProfile stores p as the enhanced profile.
func (p *Preferences) SaveProfile(profile Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profile = &profile
}

// Profile returns the saved enhanced profile, if any.
func (p *Preferences) Profile() (Profile, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.profile == nil {
		return Profile{}, false
	}
	return *p.profile, true
}

// React records a reaction on a program.
func (p *Preferences) React(r Reaction, subventionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch r {
	case ReactionBookmark:
		p.bookmarks[subventionID] = struct{}{}
	case ReactionUnbookmark:
		delete(p.bookmarks, subventionID)
	case ReactionInterest:
		p.interests[subventionID] = struct{}{}
	}
}

// Bookmarked reports whether id is bookmarked.
func (p *Preferences) Bookmarked(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.bookmarks[id]
	return ok
}

// Interested reports whether id was marked as interesting.
func (p *Preferences) Interested(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.interests[id]
	return ok
}
