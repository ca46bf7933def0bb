package normalize

import (
	"github.com/JakeFAU/subsidy-portal/internal/record"
	"github.com/JakeFAU/subsidy-portal/internal/ruleset"
)

// Built-in source names.
const (
	SourceNaverInternal = "naver_internal"
	SourcePublicData    = "public_data"
	SourceSMEs          = "smes"
)

// DefaultRules returns the built-in rule sets keyed by source.
func DefaultRules() map[string][]Rule {
	return map[string][]Rule{
		SourceNaverInternal: {
			{Field: "subventionId", Type: TypeText, Required: true, Transform: TransformTrim},
			{Field: "지역", Type: TypeText, Required: true, DefaultValue: record.Sentinel, Transform: TransformTextOrSentinel},
			{Field: "접수기관", Type: TypeText, Required: true, DefaultValue: record.Sentinel},
			{Field: "지원사업명", Type: TypeText, Required: true, DefaultValue: record.Sentinel},
			{Field: "지원금액", Type: TypeCurrency, DefaultValue: record.Sentinel, Transform: TransformWonCurrency},
			{Field: "접수 마감일", Type: TypeDate, DefaultValue: record.Sentinel, Validation: `^\d{8}$`, Transform: TransformDateYYYYMMDD},
			{Field: "공고 URL", Type: TypeURL, DefaultValue: record.Sentinel, Validation: `^https?://.+`, Transform: TransformURL},
		},
		SourcePublicData: {
			{Field: "bidNtceNo", Type: TypeText, Required: true},
			{Field: "bidNtceNm", Type: TypeText, Required: true},
			{Field: "ntceInsttNm", Type: TypeText, Required: true},
			{Field: "presmptPrce", Type: TypeCurrency, Transform: TransformThousands},
			{Field: "bidNtceDt", Type: TypeDate, Validation: `^\d{12}$`, Transform: TransformDatetime},
		},
		SourceSMEs: {
			{Field: "사업명", Type: TypeText, Required: true},
			{Field: "지원기관", Type: TypeText, Required: true},
			{Field: "지원대상", Type: TypeText, Required: true},
			{Field: "지원규모", Type: TypeCurrency, Transform: TransformKoreanAmount},
		},
	}
}

var defaultDescriptions = map[string]string{
	SourceNaverInternal: "네이버 내부 API 데이터",
	SourcePublicData:    "공공데이터 포털 API 데이터",
	SourceSMEs:          "중소벤처기업부 데이터",
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
