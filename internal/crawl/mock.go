package crawl

import (
	"strings"

	"github.com/JakeFAU/subsidy-portal/internal/record"
)

// MockResultCode tags responses served from canned data.
const MockResultCode = "00"

type mockNotice struct {
	id, title, institution, industry, region, district, amount, end, url, method string
}

var mockNotices = []mockNotice{
	{"SUB2025001", "2025년 소상공인 디지털 전환 지원사업", "소상공인시장진흥공단", "RETAIL", "서울특별시", "강남구", "3,000,000 원", "2025-01-31", "https://www.semas.or.kr/support/digital-transform", "보조금"},
	{"SUB2025002", "제조업 스마트팩토리 구축 지원", "중소벤처기업부", "MANUFACTURING", "경기도", "수원시", "50,000,000 원", "2025-02-28", "https://www.mss.go.kr/smartfactory", "융자"},
	{"SUB2025003", "음식점업 위생시설 개선 지원", "식품의약품안전처", "RESTAURANT", "부산광역시", "해운대구", "1,500,000 원", "2025-01-15", "https://www.mfds.go.kr/restaurant-support", "보조금"},
	{"SUB2025004", "건설업 안전관리 시스템 도입 지원", "고용노동부", "CONSTRUCTION", "인천광역시", "남동구", "10,000,000 원", "2025-03-15", "https://www.moel.go.kr/construction-safety", "보조금"},
	{"SUB2025005", "정보통신업 연구개발 혁신 지원", "과학기술정보통신부", "INFORMATION", "대전광역시", "유성구", "100,000,000 원", "2025-02-10", "https://www.msit.go.kr/rd-innovation", "융자"},
	{"SUB2025006", "농업 스마트팜 설치 지원사업", "농림축산식품부", "FARMING", "전라남도", "무안군", "80,000,000 원", "2025-01-20", "https://www.mafra.go.kr/smartfarm", "융자"},
	{"SUB2025007", "운수업 친환경 차량 구매 지원", "국토교통부", "TRANSPORT", "충청남도", "천안시", "25,000,000 원", "2025-01-25", "https://www.molit.go.kr/eco-vehicle", "보조금"},
	{"SUB2025008", "보건업 의료기기 구매 지원", "보건복지부", "HEALTH", "대구광역시", "중구", "15,000,000 원", "2025-02-05", "https://www.mohw.go.kr/medical-device", "보조금"},
}

// MockItems returns the canned notices matching the industry and area labels.
func MockItems(industry, area string) []Item {
	code := IndustryCode(industry)
	out := make([]Item, 0, len(mockNotices))
	for _, n := range mockNotices {
		if code != AllIndustries && n.industry != code {
			continue
		}
		if area != "" && area != AllLabel && !strings.Contains(n.region, area) {
			continue
		}
		out = append(out, Item{
			SubventionID:      n.id,
			Area:              n.region + " " + n.district,
			Institution:       n.institution,
			Title:             n.title,
			SupportMethod:     n.method,
			SupportAmount:     n.amount,
			InterestRate:      record.Sentinel,
			ReceptionEnd:      n.end,
			ApplicationMethod: record.Sentinel,
			URL:               n.url,
			Source:            n.institution,
			Attachments:       noAttachments,
			BusinessTypeCode:  n.industry,
		})
	}
	return out
}
