// Package record defines the open-schema data row shared by the crawl,
// normalization and validation stages, and the single definition of what a
// "missing" value is.
package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel is the placeholder upstream sources and the UI use for a value
// that still needs confirmation. It is only ever produced as a display default.
const Sentinel = "확인 필요"

// Record is a data row keyed by canonical field name.
type Record map[string]any

// Ingest copies raw into a Record and collapses the Sentinel into an absent
// (nil) value on the listed fields, the ones a rule set reads. Every stage
// that accepts external data goes through Ingest, so rule code only has to
// check for nil and empty strings. Other fields pass through unchanged.
func Ingest(raw map[string]any, fields []string) Record {
	out := make(Record, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	for _, f := range fields {
		if IsSentinel(out[f]) {
			out[f] = nil
		}
	}
	return out
}

// IngestAll applies Ingest to each element of a decoded JSON array. Elements
// that are not objects are returned as empty records.
func IngestAll(raw []any, fields []string) []Record {
	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		m, _ := item.(map[string]any)
		out = append(out, Ingest(m, fields))
	}
	return out
}

// IsSentinel reports whether v is the placeholder string.
func IsSentinel(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == Sentinel
}

// Missing reports whether v counts as absent: nil or the empty string.
func Missing(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

// Truthy mirrors the loose truthiness upstream payloads are written against:
// nil, empty strings, false and numeric zero are falsy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}

// String renders v the way it is shown to users: integral floats without a
// fractional part, strings unchanged.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Number converts v into a float64. Strings are trimmed before parsing.
func Number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
