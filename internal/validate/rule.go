// Package validate checks normalized records against per-source rule sets
// and computes dataset quality statistics.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

// RuleType selects the check a Rule performs.
type RuleType string

// Rule types.
const (
	TypeRequired  RuleType = "required"
	TypeFormat    RuleType = "format"
	TypeRange     RuleType = "range"
	TypeLength    RuleType = "length"
	TypeEnum      RuleType = "enum"
	TypeCustom    RuleType = "custom"
	TypeDuplicate RuleType = "duplicate"
)

// Params parameterises a Rule. Predicate names a registered predicate, Expr
// is a CEL expression over value, item and dataset that must yield a bool.
type Params struct {
	Min       *float64 `json:"min,omitempty" yaml:"min"`
	Max       *float64 `json:"max,omitempty" yaml:"max"`
	MinLength int      `json:"minLength,omitempty" yaml:"minLength"`
	Values    []any    `json:"values,omitempty" yaml:"values"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern"`
	Predicate string   `json:"predicate,omitempty" yaml:"predicate"`
	Expr      string   `json:"expr,omitempty" yaml:"expr"`
}

// Rule is one validation check on a field.
type Rule struct {
	Field   string   `json:"field" yaml:"field"`
	Type    RuleType `json:"type" yaml:"type"`
	Message string   `json:"message" yaml:"message"`
	Params  *Params  `json:"params,omitempty" yaml:"params"`
}

// Fields lists the fields rules read, in rule order. A field checked by
// several rules appears once.
func Fields(rules []Rule) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		if !slices.Contains(out, r.Field) {
			out = append(out, r.Field)
		}
	}
	return out
}

func (r Rule) params() Params {
	if r.Params == nil {
		return Params{}
	}
	return *r.Params
}

func (p Params) hasCheck() bool {
	return p.Predicate != "" || p.Expr != "" || p.Pattern != ""
}

// Float is a convenience for building Params literals.
func Float(f float64) *float64 { return &f }

var knownTypes = map[RuleType]bool{
	TypeRequired: true, TypeFormat: true, TypeRange: true, TypeLength: true,
	TypeEnum: true, TypeCustom: true, TypeDuplicate: true,
}

// ErrInvalidRule marks a malformed rule set.
var ErrInvalidRule = errors.New("invalid validation rule")

func (v *Validator) checkRule(r Rule) error {
	if r.Field == "" {
		return fmt.Errorf("%w: rule without field", ErrInvalidRule)
	}
	if !knownTypes[r.Type] {
		return fmt.Errorf("%w: field %s: unknown type %q", ErrInvalidRule, r.Field, r.Type)
	}
	p := r.params()
	if p.Predicate != "" {
		if _, ok := v.predicates[p.Predicate]; !ok {
			return fmt.Errorf("%w: field %s: unknown predicate %q", ErrInvalidRule, r.Field, p.Predicate)
		}
	}
	if p.Pattern != "" {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return fmt.Errorf("%w: field %s: %v", ErrInvalidRule, r.Field, err)
		}
	}
	if p.Expr != "" {
		if _, err := v.exprs.program(p.Expr); err != nil {
			return fmt.Errorf("%w: field %s: %v", ErrInvalidRule, r.Field, err)
		}
	}
	if r.Type == TypeCustom && !p.hasCheck() {
		return fmt.Errorf("%w: field %s: custom rule needs a predicate, pattern or expr", ErrInvalidRule, r.Field)
	}
	return nil
}

// Issue is a failed check. Errors carry the rule type; warnings leave it empty.
type Issue struct {
	Field   string   `json:"field"`
	Rule    RuleType `json:"rule,omitempty"`
	Message string   `json:"message"`
	Value   any      `json:"value,omitempty"`
	Index   int      `json:"index"`
}
