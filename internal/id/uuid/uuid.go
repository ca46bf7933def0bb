// Package uuid generates time-ordered identifiers for executions and requests.
package uuid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator creates prefixed UUID v7 strings, e.g. "exec_0190...".
type Generator struct {
	prefix string
}

// New creates a Generator. An empty prefix yields bare UUIDs.
func New(prefix string) *Generator {
	return &Generator{prefix: prefix}
}

// NewID returns a new identifier. UUID v7 keeps ids sortable by creation time.
func (g *Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	if g.prefix == "" {
		return id.String(), nil
	}
	return g.prefix + "_" + id.String(), nil
}

// Parse validates an identifier produced by this generator and returns its UUID part.
func (g *Generator) Parse(id string) (uuid.UUID, error) {
	raw := id
	if g.prefix != "" {
		var ok bool
		raw, ok = strings.CutPrefix(id, g.prefix+"_")
		if !ok {
			return uuid.Nil, fmt.Errorf("id %q lacks prefix %q", id, g.prefix)
		}
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse id: %w", err)
	}
	return u, nil
}
