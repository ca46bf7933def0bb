package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"sync"

	"github.com/JakeFAU/subsidy-portal/internal/record"
	"github.com/google/cel-go/cel"
)

// Input is what a predicate sees.
type Input struct {
	Field   string
	Value   any
	Item    record.Record
	Dataset []record.Record

	index *datasetIndex
}

// Count returns how many records in the dataset hold the same value in the
// same field.
func (in Input) Count() int {
	if in.index == nil {
		n := 0
		for _, d := range in.Dataset {
			if valueKey(d[in.Field]) == valueKey(in.Value) {
				n++
			}
		}
		return n
	}
	return in.index.count(in.Field, in.Value)
}

// Predicate reports whether the input passes.
type Predicate func(in Input) bool

// Built-in predicate names.
const (
	PredicateHasDigits    = "has_digits"
	PredicateDate         = "date_ymd"
	PredicateURL          = "valid_url"
	PredicateNumeric      = "numeric"
	PredicateDatetime12   = "yyyymmddhhmm"
	PredicateHasYear      = "has_year"
	PredicateUnique       = "unique"
	PredicateNotSentinel  = "not_placeholder"
	PredicateNonEmptyList = "non_empty_list"
)

var (
	digitsRe   = regexp.MustCompile(`\d+`)
	dashDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	compactRe  = regexp.MustCompile(`^\d{8}$`)
	twelveRe   = regexp.MustCompile(`^\d{12}$`)
	yearRe     = regexp.MustCompile(`\d{4}`)
)

// DefaultPredicates returns a fresh copy of the built-in predicate table.
func DefaultPredicates() map[string]Predicate {
	return map[string]Predicate{
		PredicateHasDigits: func(in Input) bool {
			return digitsRe.MatchString(record.String(in.Value))
		},
		PredicateDate: func(in Input) bool {
			s := record.String(in.Value)
			return dashDateRe.MatchString(s) || compactRe.MatchString(s)
		},
		PredicateURL: func(in Input) bool {
			u, err := url.Parse(record.String(in.Value))
			return err == nil && u.Scheme != "" && u.Host != ""
		},
		PredicateNumeric: func(in Input) bool {
			_, ok := record.Number(in.Value)
			return ok
		},
		PredicateDatetime12: func(in Input) bool {
			return twelveRe.MatchString(record.String(in.Value))
		},
		PredicateHasYear: func(in Input) bool {
			return yearRe.MatchString(record.String(in.Value))
		},
		PredicateUnique: func(in Input) bool {
			return in.Dataset == nil || in.Count() <= 1
		},
		PredicateNotSentinel: func(in Input) bool {
			return !record.IsSentinel(in.Value)
		},
		PredicateNonEmptyList: func(in Input) bool {
			l, ok := in.Value.([]any)
			return ok && len(l) > 0
		},
	}
}

type datasetIndex struct {
	mu     sync.Mutex
	data   []record.Record
	counts map[string]map[string]int
}

func newDatasetIndex(data []record.Record) *datasetIndex {
	return &datasetIndex{data: data, counts: make(map[string]map[string]int)}
}

func (d *datasetIndex) count(field string, v any) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.counts[field]
	if !ok {
		c = make(map[string]int, len(d.data))
		for _, item := range d.data {
			c[valueKey(item[field])]++
		}
		d.counts[field] = c
	}
	return c[valueKey(v)]
}

func valueKey(v any) string {
	return fmt.Sprintf("%T\x00%v", v, v)
}

// exprCache compiles CEL expressions once and reuses the programs.
type exprCache struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

func newExprCache() (*exprCache, error) {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.DynType),
		cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("dataset", cel.ListType(cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &exprCache{env: env, programs: make(map[string]cel.Program)}, nil
}

func (c *exprCache) program(expr string) (cel.Program, error) {
	c.mu.RLock()
	prg, ok := c.programs[expr]
	c.mu.RUnlock()
	if ok {
		return prg, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prg, ok = c.programs[expr]; ok {
		return prg, nil
	}
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program error: %w", err)
	}
	c.programs[expr] = prg
	return prg, nil
}

func (c *exprCache) eval(expr string, in Input) (bool, error) {
	prg, err := c.program(expr)
	if err != nil {
		return false, err
	}
	dataset := make([]any, 0, len(in.Dataset))
	for _, d := range in.Dataset {
		dataset = append(dataset, map[string]any(d))
	}
	item := map[string]any(in.Item)
	if item == nil {
		item = map[string]any{}
	}
	out, _, err := prg.Eval(map[string]any{
		"value":   in.Value,
		"item":    item,
		"dataset": dataset,
	})
	if err != nil {
		return false, fmt.Errorf("CEL eval error: %w", err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("CEL result not boolean")
	}
	return ok, nil
}
