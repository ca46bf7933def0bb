package matching

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"time"
)

// Sort orders.
const (
	SortMatching = "matching"
	SortDeadline = "deadline"
	SortAmount   = "amount"
	SortNone     = "none"
)

// Filters narrows and orders a recommendation run.
type Filters struct {
	Industry string `json:"industry,omitempty"`
	Region   string `json:"region,omitempty"`
	Status   Status `json:"status,omitempty"`
	SortBy   string `json:"sortBy,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// Validate rejects unknown sort orders and negative limits.
func (f Filters) Validate() error {
	switch f.SortBy {
	case "", SortMatching, SortDeadline, SortAmount, SortNone:
	default:
		return fmt.Errorf("unknown sort order %q", f.SortBy)
	}
	if f.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	return nil
}

// Stats summarises a ranked list.
type Stats struct {
	Total                    int `json:"total"`
	ActiveCount              int `json:"activeCount"`
	DeadlineApproachingCount int `json:"deadlineApproachingCount"`
	AverageMatchingScore     int `json:"averageMatchingScore"`
}

// Result is a ranked list with its statistics.
type Result struct {
	Recommendations []Subvention `json:"recommendations"`
	Stats           Stats        `json:"stats"`
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// Recommend filters catalog, rescores every remaining program and sorts it.
// When profile is nil the basic score for filters.Industry/Region is used.
// The catalog slice is never modified.
func (s *Scorer) Recommend(catalog []Subvention, f Filters, profile *Profile) Result {
	out := make([]Subvention, 0, len(catalog))
	for _, sub := range catalog {
		if f.Industry != "" && !has(sub.Industry, f.Industry) && !has(sub.Industry, AllIndustries) {
			continue
		}
		if f.Region != "" && !has(sub.Region, f.Region) && !has(sub.Region, Nationwide) {
			continue
		}
		if f.Status != "" && sub.Status != f.Status {
			continue
		}
		if profile != nil {
			sub.MatchingScore = s.Enhanced(sub, *profile)
		} else {
			sub.MatchingScore = s.Basic(sub, f.Industry, f.Region)
		}
		out = append(out, sub)
	}

	switch f.SortBy {
	case SortNone:
	case SortDeadline:
		slices.SortStableFunc(out, func(a, b Subvention) int {
			return compareDeadline(a.Deadline, b.Deadline)
		})
	case SortAmount:
		slices.SortStableFunc(out, func(a, b Subvention) int {
			return amountDigits(b.Amount) - amountDigits(a.Amount)
		})
	default:
		slices.SortStableFunc(out, func(a, b Subvention) int {
			return b.MatchingScore - a.MatchingScore
		})
	}

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return Result{Recommendations: out, Stats: statsFor(out)}
}

// amountDigits concatenates the digits of an amount label, so "최대 1.5억원"
// ranks as 15. Labels without digits rank last.
func amountDigits(amount string) int {
	n, err := strconv.Atoi(nonDigits.ReplaceAllString(amount, ""))
	if err != nil {
		return -1
	}
	return n
}

func compareDeadline(a, b string) int {
	ta, errA := time.Parse(time.DateOnly, a)
	tb, errB := time.Parse(time.DateOnly, b)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return 1
	case errB != nil:
		return -1
	default:
		return ta.Compare(tb)
	}
}

func statsFor(subs []Subvention) Stats {
	st := Stats{Total: len(subs)}
	sum := 0
	for _, s := range subs {
		switch s.Status {
		case StatusActive:
			st.ActiveCount++
		case StatusDeadlineApproaching:
			st.DeadlineApproachingCount++
		}
		sum += s.MatchingScore
	}
	if len(subs) > 0 {
		st.AverageMatchingScore = int(math.Round(float64(sum) / float64(len(subs))))
	}
	return st
}
