package validate

import (
	"github.com/JakeFAU/subsidy-portal/internal/ruleset"
)

// Built-in source names, shared with the normalizer.
const (
	SourceNaverInternal = "naver_internal"
	SourcePublicData    = "public_data"
	SourceSMEs          = "smes"
)

// DefaultRules returns the built-in validation rule sets keyed by source.
func DefaultRules() map[string][]Rule {
	return map[string][]Rule{
		SourceNaverInternal: {
			{Field: "subventionId", Type: TypeRequired, Message: "지원사업 ID는 필수입니다"},
			{Field: "subventionId", Type: TypeFormat, Message: "지원사업 ID는 8자리 이상이어야 합니다", Params: &Params{MinLength: 8}},
			{Field: "지원사업명", Type: TypeRequired, Message: "지원사업명은 필수입니다"},
			{Field: "지원사업명", Type: TypeLength, Message: "지원사업명은 5자 이상이어야 합니다", Params: &Params{Min: Float(5)}},
			{Field: "접수기관", Type: TypeRequired, Message: "접수기관은 필수입니다"},
			{Field: "지원금액", Type: TypeFormat, Message: "지원금액은 유효한 형식이어야 합니다", Params: &Params{Predicate: PredicateHasDigits}},
			{Field: "접수 마감일", Type: TypeFormat, Message: "접수 마감일은 YYYY-MM-DD 또는 YYYYMMDD 형식이어야 합니다", Params: &Params{Predicate: PredicateDate}},
			{Field: "공고 URL", Type: TypeFormat, Message: "공고 URL은 유효한 URL 형식이어야 합니다", Params: &Params{Predicate: PredicateURL}},
			{Field: "subventionId", Type: TypeDuplicate, Message: "중복된 지원사업 ID입니다", Params: &Params{Predicate: PredicateUnique}},
		},
		SourcePublicData: {
			{Field: "bidNtceNo", Type: TypeRequired, Message: "입찰공고번호는 필수입니다"},
			{Field: "bidNtceNm", Type: TypeRequired, Message: "입찰공고명은 필수입니다"},
			{Field: "ntceInsttNm", Type: TypeRequired, Message: "공고기관명은 필수입니다"},
			{Field: "presmptPrce", Type: TypeFormat, Message: "추정가격은 숫자 형식이어야 합니다", Params: &Params{Predicate: PredicateNumeric}},
			{Field: "bidNtceDt", Type: TypeFormat, Message: "입찰공고일시는 YYYYMMDDHHMM 형식이어야 합니다", Params: &Params{Predicate: PredicateDatetime12}},
		},
		SourceSMEs: {
			{Field: "사업명", Type: TypeRequired, Message: "사업명은 필수입니다"},
			{Field: "지원기관", Type: TypeRequired, Message: "지원기관은 필수입니다"},
			{Field: "지원대상", Type: TypeRequired, Message: "지원대상은 필수입니다"},
			{Field: "접수기간", Type: TypeFormat, Message: "접수기간은 날짜 형식을 포함해야 합니다", Params: &Params{Predicate: PredicateHasYear}},
		},
	}
}

var defaultDescriptions = map[string]string{
	SourceNaverInternal: "네이버 내부 API 데이터 검증",
	SourcePublicData:    "공공데이터 포털 API 데이터 검증",
	SourceSMEs:          "중소벤처기업부 데이터 검증",
}

// NewRegistry returns a registry seeded with the built-in rule sets.
func NewRegistry() *ruleset.Registry[Rule] {
	reg := ruleset.New[Rule]()
	for source, rules := range DefaultRules() {
		reg.Replace(source, rules)
		reg.Describe(source, defaultDescriptions[source])
	}
	return reg
}
