package validate

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/JakeFAU/subsidy-portal/internal/record"
)

// Coverage describes how often a field is filled.
type Coverage struct {
	Total    int `json:"total"`
	Filled   int `json:"filled"`
	Coverage int `json:"coverage"`
}

// Analysis is the data-quality profile of a raw dataset.
type Analysis struct {
	FieldCoverage map[string]Coverage       `json:"fieldCoverage"`
	DataTypes     map[string]map[string]int `json:"dataTypes"`
	Patterns      map[string]any            `json:"patterns"`
	Anomalies     []string                  `json:"anomalies"`
}

// Summary accompanies an Analysis.
type Summary struct {
	TotalItems     int    `json:"totalItems"`
	TotalFields    int    `json:"totalFields"`
	Recommendation string `json:"recommendation"`
}

// largeDataset is the size above which a dataset is reported as large.
const largeDataset = 100

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05Z07:00",
	"2006.01.02",
	"2006/01/02",
	"20060102",
}

// Analyze profiles raw records. It must see the data before ingestion so
// placeholders can still be counted. Fields are taken from the first record.
func Analyze(dataset []map[string]any) (Analysis, Summary) {
	a := Analysis{
		FieldCoverage: map[string]Coverage{},
		DataTypes:     map[string]map[string]int{},
		Patterns:      map[string]any{},
		Anomalies:     []string{},
	}
	sum := Summary{TotalItems: len(dataset), Recommendation: "소규모 데이터셋"}
	if len(dataset) > largeDataset {
		sum.Recommendation = "대용량 데이터셋"
	}
	if len(dataset) == 0 {
		return a, sum
	}

	fields := make([]string, 0, len(dataset[0]))
	for k := range dataset[0] {
		fields = append(fields, k)
	}
	slices.Sort(fields)
	sum.TotalFields = len(fields)

	for _, field := range fields {
		filled := 0
		kinds := map[string]int{}
		for _, item := range dataset {
			v := item[field]
			if !record.Missing(v) && !record.IsSentinel(v) {
				filled++
			}
			kinds[kindOf(v)]++
		}
		a.FieldCoverage[field] = Coverage{
			Total:    len(dataset),
			Filled:   filled,
			Coverage: int(math.Round(float64(filled) / float64(len(dataset)) * 100)),
		}
		a.DataTypes[field] = kinds
		if filled == 0 {
			a.Anomalies = append(a.Anomalies, field+": no values")
		}
	}
	return a, sum
}

func kindOf(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		switch {
		case t == "":
			return "empty"
		case record.IsSentinel(t):
			return "placeholder"
		case dateLike(t):
			return "date-like"
		}
		if _, ok := record.Number(t); ok {
			return "number-like"
		}
		if strings.HasPrefix(t, "http") {
			return "url-like"
		}
		return "string"
	case float64, float32, int, int64:
		return "number-like"
	case bool:
		return "boolean"
	case []any:
		return "array"
	default:
		return "object"
	}
}

func dateLike(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
