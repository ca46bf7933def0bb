// Package ruleset keeps named rule sets per data source. Both the normalizer
// and the validator store their rules here.
package ruleset

import (
	"errors"
	"sort"
	"sync"
)

// ErrUnknownSource is returned when no rule set is registered for a source.
var ErrUnknownSource = errors.New("unknown data source")

// Registry is a concurrency-safe map of source name to rules. Callers always
// receive copies, so a Replace never races with an in-flight run.
type Registry[R any] struct {
	mu           sync.RWMutex
	sets         map[string][]R
	descriptions map[string]string
}

// New returns an empty Registry.
func New[R any]() *Registry[R] {
	return &Registry[R]{
		sets:         make(map[string][]R),
		descriptions: make(map[string]string),
	}
}

// Get returns a copy of the rules for source.
func (r *Registry[R]) Get(source string) ([]R, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rules, ok := r.sets[source]
	if !ok {
		return nil, ErrUnknownSource
	}
	return append([]R(nil), rules...), nil
}

// Replace installs rules for source, creating it when absent.
func (r *Registry[R]) Replace(source string, rules []R) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[source] = append([]R(nil), rules...)
}

// Describe sets the human readable description of source.
func (r *Registry[R]) Describe(source, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptions[source] = description
}

// Sources lists registered source names in sorted order.
func (r *Registry[R]) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sets))
	for name := range r.sets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Descriptions returns a copy of the source descriptions.
func (r *Registry[R]) Descriptions() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.descriptions))
	for k, v := range r.descriptions {
		out[k] = v
	}
	return out
}

// All returns a copy of every rule set.
func (r *Registry[R]) All() map[string][]R {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]R, len(r.sets))
	for k, v := range r.sets {
		out[k] = append([]R(nil), v...)
	}
	return out
}
