package normalize

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/subsidy-portal/internal/record"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Transform converts a present (non-nil) value.
type Transform func(v any) (any, error)

var (
	eightDigits  = regexp.MustCompile(`^\d{8}$`)
	twelveDigits = regexp.MustCompile(`^\d{12}$`)
	koreanAmount = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(천만|백만|십만|억|만|천)(?:\s*원)?`)
	nonDigit     = regexp.MustCompile(`\D`)

	printer = message.NewPrinter(language.English)
)

var koreanUnits = map[string]float64{
	"억":  100_000_000,
	"천만": 10_000_000,
	"백만": 1_000_000,
	"십만": 100_000,
	"만":  10_000,
	"천":  1_000,
}

// Built-in transform names.
const (
	TransformTrim           = "trim"
	TransformTextOrSentinel = "text_or_sentinel"
	TransformWonCurrency    = "won_currency"
	TransformDateYYYYMMDD   = "date_yyyymmdd"
	TransformDatetime       = "datetime_yyyymmddhhmm"
	TransformURL            = "url"
	TransformThousands      = "thousands"
	TransformKoreanAmount   = "korean_amount"
	TransformPhone          = "phone"
	TransformEmail          = "email"
	TransformNumber         = "number"
)

// DefaultTransforms returns a fresh copy of the built-in transform table.
func DefaultTransforms() map[string]Transform {
	return map[string]Transform{
		TransformTrim:           trim,
		TransformTextOrSentinel: textOrSentinel,
		TransformWonCurrency:    wonCurrency,
		TransformDateYYYYMMDD:   dateYYYYMMDD,
		TransformDatetime:       datetimeYYYYMMDDHHMM,
		TransformURL:            normalizeURL,
		TransformThousands:      thousands,
		TransformKoreanAmount:   koreanAmountToWon,
		TransformPhone:          phone,
		TransformEmail:          email,
		TransformNumber:         toNumber,
	}
}

// FormatDecimal renders n with thousands separators and at most three
// fractional digits.
func FormatDecimal(n float64) string {
	return printer.Sprintf("%v", number.Decimal(n, number.MaxFractionDigits(3)))
}

func blank(v any) bool {
	return !record.Truthy(v) || record.IsSentinel(v)
}

func trim(v any) (any, error) {
	return strings.TrimSpace(record.String(v)), nil
}

func textOrSentinel(v any) (any, error) {
	if blank(v) {
		return record.Sentinel, nil
	}
	return v, nil
}

func wonCurrency(v any) (any, error) {
	if blank(v) {
		return record.Sentinel, nil
	}
	if n, ok := v.(float64); ok {
		return FormatDecimal(n) + " 원", nil
	}
	if n, ok := v.(int); ok {
		return FormatDecimal(float64(n)) + " 원", nil
	}
	return record.String(v), nil
}

func dateYYYYMMDD(v any) (any, error) {
	if blank(v) {
		return record.Sentinel, nil
	}
	s := record.String(v)
	if eightDigits.MatchString(s) {
		return s[0:4] + "-" + s[4:6] + "-" + s[6:8], nil
	}
	return v, nil
}

func datetimeYYYYMMDDHHMM(v any) (any, error) {
	if !record.Truthy(v) {
		return "", nil
	}
	s := record.String(v)
	if twelveDigits.MatchString(s) {
		return fmt.Sprintf("%s-%s-%s %s:%s", s[0:4], s[4:6], s[6:8], s[8:10], s[10:12]), nil
	}
	return v, nil
}

func normalizeURL(v any) (any, error) {
	if blank(v) {
		return record.Sentinel, nil
	}
	s := strings.TrimSpace(record.String(v))
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return v, nil
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

func thousands(v any) (any, error) {
	if !record.Truthy(v) {
		return "", nil
	}
	if n, ok := record.Number(v); ok {
		return FormatDecimal(n), nil
	}
	return record.String(v), nil
}

// koreanAmountToWon rewrites amounts such as "최대 2억원" or "5천만원" into
// "최대 200,000,000원".
func koreanAmountToWon(v any) (any, error) {
	if blank(v) {
		return record.Sentinel, nil
	}
	s := record.String(v)
	return koreanAmount.ReplaceAllStringFunc(s, func(m string) string {
		parts := koreanAmount.FindStringSubmatch(m)
		amount, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return m
		}
		return FormatDecimal(amount*koreanUnits[parts[2]]) + "원"
	}), nil
}

func phone(v any) (any, error) {
	s := record.String(v)
	digits := nonDigit.ReplaceAllString(s, "")
	switch {
	case strings.HasPrefix(digits, "02") && len(digits) == 9:
		return digits[:2] + "-" + digits[2:5] + "-" + digits[5:], nil
	case strings.HasPrefix(digits, "02") && len(digits) == 10:
		return digits[:2] + "-" + digits[2:6] + "-" + digits[6:], nil
	case len(digits) == 10:
		return digits[:3] + "-" + digits[3:6] + "-" + digits[6:], nil
	case len(digits) == 11:
		return digits[:3] + "-" + digits[3:7] + "-" + digits[7:], nil
	default:
		return strings.TrimSpace(s), nil
	}
}

func email(v any) (any, error) {
	return strings.ToLower(strings.TrimSpace(record.String(v))), nil
}

func toNumber(v any) (any, error) {
	if s, ok := v.(string); ok {
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n, nil
		}
		return v, fmt.Errorf("%q is not a number", s)
	}
	if n, ok := record.Number(v); ok {
		return n, nil
	}
	return v, fmt.Errorf("%v is not a number", v)
}
