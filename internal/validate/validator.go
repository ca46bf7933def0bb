package validate

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sync"
	"unicode/utf8"

	"github.com/JakeFAU/subsidy-portal/internal/record"
	"go.uber.org/zap"
)

// Validator evaluates rule sets against records.
type Validator struct {
	predicates map[string]Predicate
	exprs      *exprCache
	logger     *zap.Logger

	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
}

// Option customizes a Validator.
type Option func(*Validator)

// WithPredicate registers an additional named predicate.
func WithPredicate(name string, p Predicate) Option {
	return func(v *Validator) { v.predicates[name] = p }
}

// New creates a Validator with the built-in predicates and a CEL environment.
func New(logger *zap.Logger, opts ...Option) (*Validator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	exprs, err := newExprCache()
	if err != nil {
		return nil, err
	}
	v := &Validator{
		predicates: DefaultPredicates(),
		exprs:      exprs,
		logger:     logger,
		patterns:   make(map[string]*regexp.Regexp),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// CheckRules validates a rule set before it is stored.
func (v *Validator) CheckRules(rules []Rule) error {
	var errs []error
	for _, r := range rules {
		if err := v.checkRule(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ItemResult holds the issues found on one record.
type ItemResult struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Stats summarises a dataset validation.
type Stats struct {
	TotalItems        int `json:"totalItems"`
	ValidItems        int `json:"validItems"`
	InvalidItems      int `json:"invalidItems"`
	ErrorCount        int `json:"errorCount"`
	WarningCount      int `json:"warningCount"`
	CompletenessScore int `json:"completenessScore"`
	QualityScore      int `json:"qualityScore"`
}

// Result is the outcome of ValidateDataset.
type Result struct {
	IsValid  bool    `json:"isValid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	Stats    Stats   `json:"stats"`
}

// ValidateItem checks a single record. dataset may be nil, in which case
// duplicate checks always pass.
func (v *Validator) ValidateItem(item record.Record, rules []Rule, index int, dataset []record.Record) ItemResult {
	return v.validateItem(item, rules, index, dataset, nil)
}

func (v *Validator) validateItem(item record.Record, rules []Rule, index int, dataset []record.Record, idx *datasetIndex) ItemResult {
	res := ItemResult{Errors: []Issue{}, Warnings: []Issue{}}
	fail := func(r Rule, value any) {
		res.Errors = append(res.Errors, Issue{Field: r.Field, Rule: r.Type, Message: r.Message, Value: value, Index: index})
	}

	for _, r := range rules {
		value := item[r.Field]
		p := r.params()
		in := Input{Field: r.Field, Value: value, Item: item, Dataset: dataset, index: idx}

		switch r.Type {
		case TypeRequired:
			if record.Missing(value) {
				fail(r, value)
			}

		case TypeFormat:
			if !record.Truthy(value) {
				continue
			}
			if p.hasCheck() && !v.passes(r, p, in) {
				fail(r, value)
				continue
			}
			if p.MinLength > 0 && utf8.RuneCountInString(record.String(value)) < p.MinLength {
				fail(r, value)
			}

		case TypeLength:
			if !record.Truthy(value) {
				continue
			}
			n := float64(utf8.RuneCountInString(record.String(value)))
			if p.Min != nil && n < *p.Min {
				fail(r, value)
			}
			if p.Max != nil && n > *p.Max {
				fail(r, value)
			}

		case TypeRange:
			if !record.Truthy(value) {
				continue
			}
			n, ok := record.Number(value)
			if !ok || math.IsNaN(n) {
				continue
			}
			if p.Min != nil && n < *p.Min {
				fail(r, value)
			}
			if p.Max != nil && n > *p.Max {
				fail(r, value)
			}

		case TypeEnum:
			if !record.Truthy(value) || len(p.Values) == 0 {
				continue
			}
			if !containsValue(p.Values, value) {
				fail(r, value)
			}

		case TypeCustom:
			if p.hasCheck() && !v.passes(r, p, in) {
				fail(r, value)
			}

		case TypeDuplicate:
			if record.Missing(value) {
				continue
			}
			if !p.hasCheck() {
				p.Predicate = PredicateUnique
			}
			if !v.passes(r, p, in) {
				res.Warnings = append(res.Warnings, Issue{Field: r.Field, Message: r.Message, Value: value, Index: index})
			}
		}
	}
	return res
}

// passes evaluates the first configured check: predicate, then expr, then
// pattern. Broken checks count as failures.
func (v *Validator) passes(r Rule, p Params, in Input) bool {
	switch {
	case p.Predicate != "":
		pred, ok := v.predicates[p.Predicate]
		if !ok {
			v.logger.Warn("unknown predicate", zap.String("field", r.Field), zap.String("predicate", p.Predicate))
			return false
		}
		return pred(in)
	case p.Expr != "":
		ok, err := v.exprs.eval(p.Expr, in)
		if err != nil {
			v.logger.Warn("expression failed", zap.String("field", r.Field), zap.String("expr", p.Expr), zap.Error(err))
			return false
		}
		return ok
	default:
		re, err := v.pattern(p.Pattern)
		if err != nil {
			v.logger.Warn("bad pattern", zap.String("field", r.Field), zap.Error(err))
			return false
		}
		return re.MatchString(record.String(in.Value))
	}
}

func (v *Validator) pattern(expr string) (*regexp.Regexp, error) {
	v.mu.RLock()
	re, ok := v.patterns[expr]
	v.mu.RUnlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	v.mu.Lock()
	v.patterns[expr] = re
	v.mu.Unlock()
	return re, nil
}

func containsValue(values []any, v any) bool {
	key := valueKey(v)
	for _, candidate := range values {
		if valueKey(candidate) == key {
			return true
		}
	}
	return false
}

// ValidateDataset validates every record and computes the dataset scores.
func (v *Validator) ValidateDataset(dataset []record.Record, rules []Rule) Result {
	res := Result{Errors: []Issue{}, Warnings: []Issue{}}
	idx := newDatasetIndex(dataset)
	valid := 0

	for i, item := range dataset {
		ir := v.validateItem(item, rules, i, dataset, idx)
		if len(ir.Errors) == 0 {
			valid++
		}
		res.Errors = append(res.Errors, ir.Errors...)
		res.Warnings = append(res.Warnings, ir.Warnings...)
	}

	total := len(dataset)
	res.Stats = Stats{
		TotalItems:   total,
		ValidItems:   valid,
		InvalidItems: total - valid,
		ErrorCount:   len(res.Errors),
		WarningCount: len(res.Warnings),
	}
	if total > 0 {
		res.Stats.CompletenessScore = int(math.Round(float64(valid) / float64(total) * 100))
	}
	if checks := total * len(rules); checks > 0 {
		passed := max(checks-len(res.Errors), 0)
		res.Stats.QualityScore = int(math.Round(float64(passed) / float64(checks) * 100))
	}
	res.IsValid = res.Stats.InvalidItems == 0
	return res
}
