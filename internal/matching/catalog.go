// Package matching ranks subsidy programs against a company profile.
package matching

// Status is the lifecycle state of a program.
type Status string

// Program statuses.
const (
	StatusActive              Status = "active"
	StatusDeadlineApproaching Status = "deadline_approaching"
	StatusClosed              Status = "closed"
)

// Wildcard labels.
const (
	AllIndustries = "전체업종"
	Nationwide    = "전국"
	CapitalArea   = "수도권"
)

// Subvention is a recommendable subsidy program.
type Subvention struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Institution    string   `json:"institution"`
	Industry       []string `json:"industry"`
	Region         []string `json:"region"`
	Amount         string   `json:"amount"`
	Deadline       string   `json:"deadline"`
	Status         Status   `json:"status"`
	MatchingScore  int      `json:"matchingScore"`
	Tags           []string `json:"tags"`
	ApplicationURL string   `json:"applicationUrl,omitempty"`
	Requirements   []string `json:"requirements"`
	Benefits       []string `json:"benefits"`
}

// DefaultCatalog returns the demo catalog served until a live catalog source
// is wired in.
func DefaultCatalog() []Subvention {
	return []Subvention{
		{
			ID:            "sub_001",
			Title:         "2025년 스마트제조혁신 지원사업",
			Description:   "제조업체의 디지털 전환 및 스마트팩토리 구축을 위한 종합 지원 프로그램",
			Institution:   "중소벤처기업부",
			Industry:      []string{"제조업", "기계", "전자"},
			Region:        []string{"서울특별시", "경기도", "인천광역시"},
			Amount:        "최대 2억원",
			Deadline:      "2025-03-15",
			Status:        StatusActive,
			MatchingScore: 95,
			Tags:          []string{"스마트팩토리", "디지털전환", "AI", "IoT"},
			Requirements:  []string{"제조업 업종 사업자", "최근 3년 평균 매출 10억원 이상", "스마트팩토리 구축 계획서 제출"},
			Benefits:      []string{"사업비 최대 80% 지원", "기술컨설팅 무료 제공", "세제혜택 추가 지원"},
		},
		{
			ID:            "sub_002",
			Title:         "미래차 부품산업 경쟁력 강화사업",
			Description:   "전기차, 자율주행차 등 미래차 관련 부품 개발 및 양산화 지원",
			Institution:   "산업통상자원부",
			Industry:      []string{"제조업", "자동차", "전자"},
			Region:        []string{Nationwide},
			Amount:        "최대 1.5억원",
			Deadline:      "2025-02-28",
			Status:        StatusDeadlineApproaching,
			MatchingScore: 88,
			Tags:          []string{"미래차", "전기차", "자율주행", "부품개발"},
			Requirements:  []string{"자동차 부품 제조업체", "R&D 역량 보유", "미래차 부품 개발 경험"},
			Benefits:      []string{"개발비 최대 70% 지원", "인증 취득 지원", "해외 진출 지원"},
		},
		{
			ID:            "sub_003",
			Title:         "중소제조기업 ESG 경영 지원사업",
			Description:   "중소제조기업의 환경·사회·지배구조 개선을 통한 지속가능경영 지원",
			Institution:   "환경부",
			Industry:      []string{"제조업", AllIndustries},
			Region:        []string{CapitalArea, "서울특별시", "경기도"},
			Amount:        "최대 8천만원",
			Deadline:      "2025-04-30",
			Status:        StatusActive,
			MatchingScore: 82,
			Tags:          []string{"ESG", "환경경영", "지속가능성", "탄소중립"},
			Requirements:  []string{"제조업 중소기업", "ESG 경영 도입 의지", "환경경영시스템 구축 계획"},
			Benefits:      []string{"ESG 컨설팅 지원", "인증 취득 비용 지원", "ESG 평가 우대"},
		},
		{
			ID:            "sub_004",
			Title:         "청년창업 지원사업",
			Description:   "39세 이하 청년의 창업을 지원하는 종합 프로그램",
			Institution:   "중소벤처기업부",
			Industry:      []string{AllIndustries, "IT", "서비스업"},
			Region:        []string{Nationwide},
			Amount:        "최대 1억원",
			Deadline:      "2025-03-30",
			Status:        StatusActive,
			MatchingScore: 65,
			Tags:          []string{"청년창업", "스타트업", "사업화"},
			Requirements:  []string{"39세 이하 청년", "사업 개시 3년 이내", "사업계획서 제출"},
			Benefits:      []string{"창업자금 지원", "멘토링 프로그램", "네트워킹 기회 제공"},
		},
		{
			ID:            "sub_005",
			Title:         "디지털 뉴딜 기업혁신 지원사업",
			Description:   "중소기업의 디지털 전환 및 혁신 역량 강화를 위한 지원",
			Institution:   "과학기술정보통신부",
			Industry:      []string{"제조업", "IT", "서비스업"},
			Region:        []string{"서울특별시", "부산광역시", "대구광역시"},
			Amount:        "최대 5천만원",
			Deadline:      "2025-05-15",
			Status:        StatusActive,
			MatchingScore: 78,
			Tags:          []string{"디지털전환", "DX", "혁신", "클라우드"},
			Requirements:  []string{"중소기업", "디지털 전환 계획 보유", "IT 투자 계획서 제출"},
			Benefits:      []string{"디지털 전환 비용 지원", "전문가 컨설팅", "성과 인센티브"},
		},
	}
}
