package workflow

import (
	"net/http"
	"time"
)

// Predefined workflow ids.
const (
	NaverFullPipeline = "naver_finsupport_full"
	NaverBatchCrawl   = "naver_batch_crawl"
)

// Predefined returns the built-in workflows. They cannot be deleted.
func Predefined(now time.Time) []Workflow {
	normalizeStep := func(id, name string) Step {
		return Step{ID: id, Name: name, Type: StepNormalize, Config: StepConfig{
			API: "/api/normalize", Method: http.MethodPost,
			Params: map[string]any{"action": "batch", "source": "naver_internal"},
		}}
	}
	validateStep := func(id, name string) Step {
		return Step{ID: id, Name: name, Type: StepValidate, Config: StepConfig{
			API: "/api/validate", Method: http.MethodPost,
			Params: map[string]any{"action": "batch", "source": "naver_internal"},
		}}
	}
	return []Workflow{
		{
			ID:          NaverFullPipeline,
			Name:        "네이버 지원사업 전체 크롤링",
			Description: "네이버 내부 API에서 지원사업 데이터를 크롤링하고 정규화/검증하는 전체 파이프라인",
			Steps: []Step{
				{ID: "crawl_naver", Name: "네이버 데이터 크롤링", Type: StepCrawl, Config: StepConfig{
					API: "/api/crawl", Method: http.MethodGet,
					Params: map[string]any{"industry": "전체", "area": "전체", "page": 1, "size": 10},
				}},
				normalizeStep("normalize_data", "데이터 정규화"),
				validateStep("validate_data", "데이터 검증"),
			},
			Enabled:    true,
			Predefined: true,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		{
			ID:          NaverBatchCrawl,
			Name:        "네이버 대량 크롤링",
			Description: "여러 페이지의 네이버 지원사업 데이터를 배치로 크롤링",
			Steps: []Step{
				{ID: "batch_crawl_naver", Name: "네이버 대량 크롤링", Type: StepCrawl, Config: StepConfig{
					API: "/api/crawl", Method: http.MethodPost,
					Params: map[string]any{"industry": "전체", "area": "전체", "maxPages": 3},
				}},
				normalizeStep("normalize_batch", "배치 데이터 정규화"),
				validateStep("validate_batch", "배치 데이터 검증"),
			},
			Enabled:    true,
			Predefined: true,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
}
