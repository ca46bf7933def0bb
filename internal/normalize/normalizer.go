package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"

	"github.com/JakeFAU/subsidy-portal/internal/record"
	"go.uber.org/zap"
)

// Normalizer applies rule sets to records.
type Normalizer struct {
	transforms map[string]Transform
	logger     *zap.Logger

	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
}

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithTransform registers an additional named transform.
func WithTransform(name string, fn Transform) Option {
	return func(n *Normalizer) { n.transforms[name] = fn }
}

// New creates a Normalizer with the built-in transforms.
func New(logger *zap.Logger, opts ...Option) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Normalizer{
		transforms: DefaultTransforms(),
		logger:     logger,
		patterns:   make(map[string]*regexp.Regexp),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Transforms lists the registered transform names.
func (n *Normalizer) Transforms() []string {
	names := make([]string, 0, len(n.transforms))
	for name := range n.transforms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CheckRules validates a rule set before it is stored.
func (n *Normalizer) CheckRules(rules []Rule) error {
	var errs []error
	for _, r := range rules {
		if err := r.Check(n.transforms); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Normalize applies rules to rec and returns a new record. Fields without a
// rule are copied unchanged. Pattern and enum mismatches only produce
// warnings.
func (n *Normalizer) Normalize(rec record.Record, rules []Rule) (record.Record, []Warning, error) {
	out := make(record.Record, len(rec))
	var warnings []Warning
	covered := make(map[string]struct{}, len(rules))

	for _, rule := range rules {
		covered[rule.Field] = struct{}{}
		value, present := rec[rule.Field]

		if record.Missing(value) {
			if rule.Required && !rule.HasDefault() {
				return nil, warnings, &MissingRequiredFieldError{Field: rule.Field}
			}
			if rule.HasDefault() {
				value = rule.DefaultValue
			}
		}

		if rule.Transform != "" && value != nil {
			fn, ok := n.transforms[rule.Transform]
			if !ok {
				return nil, warnings, &TransformError{Field: rule.Field, Transform: rule.Transform, Err: fmt.Errorf("not registered")}
			}
			v, err := fn(value)
			if err != nil {
				return nil, warnings, &TransformError{Field: rule.Field, Transform: rule.Transform, Err: err}
			}
			value = v
		}

		if w, ok := n.check(rule, value); !ok {
			n.logger.Warn("normalized value failed check",
				zap.String("field", rule.Field),
				zap.Any("value", value),
				zap.String("reason", w.Message),
			)
			warnings = append(warnings, w)
		}

		if !present && value == nil {
			continue
		}
		out[rule.Field] = value
	}

	for k, v := range rec {
		if _, ok := covered[k]; !ok {
			out[k] = v
		}
	}
	return out, warnings, nil
}

func (n *Normalizer) check(rule Rule, value any) (Warning, bool) {
	if !record.Truthy(value) {
		return Warning{}, true
	}
	s := record.String(value)
	if rule.Validation != "" {
		re, err := n.pattern(rule.Validation)
		if err == nil && !re.MatchString(s) {
			return Warning{Field: rule.Field, Value: value, Message: "value does not match " + rule.Validation}, false
		}
	}
	if len(rule.EnumValues) > 0 && !slices.Contains(rule.EnumValues, s) {
		return Warning{Field: rule.Field, Value: value, Message: "value is not an allowed enum value"}, false
	}
	return Warning{}, true
}

func (n *Normalizer) pattern(expr string) (*regexp.Regexp, error) {
	n.mu.RLock()
	re, ok := n.patterns[expr]
	n.mu.RUnlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	n.mu.Lock()
	n.patterns[expr] = re
	n.mu.Unlock()
	return re, nil
}

// ItemResult is the outcome for one record of a batch.
type ItemResult struct {
	Index        int           `json:"index"`
	Success      bool          `json:"success"`
	Data         record.Record `json:"data,omitempty"`
	Warnings     []Warning     `json:"warnings,omitempty"`
	Error        string        `json:"error,omitempty"`
	OriginalData record.Record `json:"originalData,omitempty"`
}

// BatchResult summarises a batch. Results is ordered by index and holds one
// entry per input; Items holds only the successfully normalized records.
type BatchResult struct {
	TotalItems   int             `json:"totalItems"`
	SuccessCount int             `json:"successCount"`
	ErrorCount   int             `json:"errorCount"`
	Results      []ItemResult    `json:"results"`
	Items        []record.Record `json:"items"`
}

// NormalizeBatch normalizes each record independently; one failure never
// affects another record.
func (n *Normalizer) NormalizeBatch(recs []record.Record, rules []Rule) BatchResult {
	res := BatchResult{
		TotalItems: len(recs),
		Results:    make([]ItemResult, 0, len(recs)),
		Items:      make([]record.Record, 0, len(recs)),
	}
	for i, rec := range recs {
		out, warnings, err := n.Normalize(rec, rules)
		if err != nil {
			res.ErrorCount++
			res.Results = append(res.Results, ItemResult{
				Index:        i,
				Error:        err.Error(),
				OriginalData: rec,
			})
			continue
		}
		res.SuccessCount++
		res.Items = append(res.Items, out)
		res.Results = append(res.Results, ItemResult{Index: i, Success: true, Data: out, Warnings: warnings})
	}
	return res
}
