package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const definitionSchemaURL = "mem://workflow/definition.json"

// definitionSchema constrains user-created workflows. Step endpoints must be
// paths on the portal itself.
const definitionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "steps"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "enabled": {"type": "boolean"},
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "name", "type", "config"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "type": {"enum": ["crawl", "normalize", "validate", "transform", "save"]},
          "timeoutSeconds": {"type": "integer", "minimum": 1, "maximum": 3600},
          "config": {
            "type": "object",
            "required": ["api", "method"],
            "properties": {
              "api": {"type": "string", "pattern": "^/api/[A-Za-z0-9_/-]+$"},
              "method": {"enum": ["GET", "POST"]},
              "params": {"type": "object"}
            }
          }
        }
      }
    }
  }
}`

// definitionValidator checks raw workflow JSON against the definition schema.
type definitionValidator struct {
	schema *jsonschema.Schema
}

// newDefinitionValidator compiles the definition schema.
func newDefinitionValidator() (*definitionValidator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(definitionSchemaURL, strings.NewReader(definitionSchema)); err != nil {
		return nil, fmt.Errorf("add workflow schema: %w", err)
	}
	schema, err := c.Compile(definitionSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile workflow schema: %w", err)
	}
	return &definitionValidator{schema: schema}, nil
}

// definition is the user-supplied part of a Workflow.
type definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Steps       []Step `json:"steps"`
	Enabled     *bool  `json:"enabled"`
}

// parse validates raw and decodes it. Violations wrap ErrInvalidDefinition.
func (v *definitionValidator) parse(raw []byte) (definition, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	var def definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	seen := make(map[string]bool, len(def.Steps))
	for _, s := range def.Steps {
		if seen[s.ID] {
			return definition{}, fmt.Errorf("%w: duplicate step id %q", ErrInvalidDefinition, s.ID)
		}
		seen[s.ID] = true
	}
	return def, nil
}
