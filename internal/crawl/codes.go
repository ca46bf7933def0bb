package crawl

// AllLabel selects every industry or area.
const AllLabel = "전체"

// Partner wildcard codes. They are never sent as query parameters.
const (
	AllIndustries = "ALL"
	AllAreas      = "00000"
)

type codePair struct{ label, code string }

var industryTable = []codePair{
	{AllLabel, AllIndustries},
	{"자동차 및 부품 판매업", "MOTOR"},
	{"도매 및 상품 중개업", "WHOLESALE"},
	{"소매업(자동차 제외)", "RETAIL"},
	{"숙박업", "LODGING"},
	{"음식점업", "RESTAURANT"},
	{"제조업", "MANUFACTURING"},
	{"교육 서비스업", "EDUCATION"},
	{"협회 및 단체, 수리 및 기타 개인 서비스업", "ORGANIZATION"},
	{"부동산업", "ESTATES"},
	{"전문, 과학 및 기술 서비스업", "TECHNICAL"},
	{"예술, 스포츠 및 여가관련 서비스업", "ARTS"},
	{"정보통신업", "INFORMATION"},
	{"농업, 임업 및 어업", "FARMING"},
	{"건설업", "CONSTRUCTION"},
	{"운수 및 창고업", "TRANSPORT"},
	{"보건업 및 사회복지 서비스업", "HEALTH"},
	{"사업시설 관리, 사업 지원 및 임대 서비스업", "BUSINESS_SUPPORT"},
	{"금융 및 보험업", "FINANCE"},
	{"전기, 가스, 증기 및 공기 조절 공급업", "SUPPLIER"},
	{"광업", "MINE"},
	{"수도, 하수 및 폐기물 처리, 원료 재생업", "RECYCLING"},
	{"가구 내 고용활동 및 달리 분류되지 않은 자가 소비 생산활동", "EMPLOYMENT"},
	{"공공 행정, 국방 및 사회보장 행정", "DEFENCE"},
	{"국제 및 외국기관", "INTERNATIONAL"},
}

var areaTable = []codePair{
	{AllLabel, AllAreas},
	{"서울특별시", "11000"},
	{"부산광역시", "26000"},
	{"대구광역시", "27000"},
	{"인천광역시", "28000"},
	{"광주광역시", "29000"},
	{"대전광역시", "30000"},
	{"울산광역시", "31000"},
	{"세종특별자치시", "36000"},
	{"경기도", "41000"},
	{"충청북도", "43000"},
	{"충청남도", "44000"},
	{"전라남도", "46000"},
	{"경상북도", "47000"},
	{"경상남도", "48000"},
	{"제주특별자치도", "50000"},
	{"강원특별자치도", "51000"},
	{"전북특별자치도", "52000"},
}

// IndustryCode maps an industry label to the partner business type code.
// Unknown labels select every industry.
func IndustryCode(label string) string {
	return lookup(industryTable, label, AllIndustries)
}

// AreaCode maps a region label to the partner area code.
func AreaCode(label string) string {
	return lookup(areaTable, label, AllAreas)
}

// IndustryLabels lists the selectable industries in display order.
func IndustryLabels() []string { return labels(industryTable) }

// AreaLabels lists the selectable areas in display order.
func AreaLabels() []string { return labels(areaTable) }

func lookup(table []codePair, label, fallback string) string {
	for _, p := range table {
		if p.label == label {
			return p.code
		}
	}
	return fallback
}

func labels(table []codePair) []string {
	out := make([]string, len(table))
	for i, p := range table {
		out[i] = p.label
	}
	return out
}
