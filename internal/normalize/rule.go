// Package normalize maps raw upstream records onto canonical field values
// using per-source rule sets.
package normalize

import (
	"fmt"
	"regexp"
)

// FieldType classifies a normalized field.
type FieldType string

// Supported field types.
const (
	TypeCurrency FieldType = "currency"
	TypeDate     FieldType = "date"
	TypeText     FieldType = "text"
	TypePhone    FieldType = "phone"
	TypeEmail    FieldType = "email"
	TypeURL      FieldType = "url"
	TypeEnum     FieldType = "enum"
	TypeNumber   FieldType = "number"
)

var knownTypes = map[FieldType]bool{
	TypeCurrency: true, TypeDate: true, TypeText: true, TypePhone: true,
	TypeEmail: true, TypeURL: true, TypeEnum: true, TypeNumber: true,
}

// Rule describes how one field is normalized. Transform names a registered
// transform, so rules stay plain data that can be listed, replaced at
// runtime and loaded from YAML.
type Rule struct {
	Field        string    `json:"field" yaml:"field"`
	Type         FieldType `json:"type" yaml:"type"`
	Required     bool      `json:"required,omitempty" yaml:"required"`
	DefaultValue any       `json:"defaultValue,omitempty" yaml:"defaultValue"`
	Validation   string    `json:"validation,omitempty" yaml:"validation"`
	Transform    string    `json:"transform,omitempty" yaml:"transform"`
	EnumValues   []string  `json:"enumValues,omitempty" yaml:"enumValues"`
}

// Fields lists the fields rules read, in rule order.
func Fields(rules []Rule) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Field)
	}
	return out
}

// HasDefault reports whether the rule carries a default value.
func (r Rule) HasDefault() bool {
	return r.DefaultValue != nil
}

// Check verifies the rule is well formed against the given transform table.
func (r Rule) Check(transforms map[string]Transform) error {
	if r.Field == "" {
		return fmt.Errorf("rule without field")
	}
	if !knownTypes[r.Type] {
		return fmt.Errorf("field %s: unknown type %q", r.Field, r.Type)
	}
	if r.Transform != "" {
		if _, ok := transforms[r.Transform]; !ok {
			return fmt.Errorf("field %s: unknown transform %q", r.Field, r.Transform)
		}
	}
	if r.Validation != "" {
		if _, err := regexp.Compile(r.Validation); err != nil {
			return fmt.Errorf("field %s: invalid validation pattern: %w", r.Field, err)
		}
	}
	return nil
}

// MissingRequiredFieldError aborts normalization of a single record.
type MissingRequiredFieldError struct {
	Field string
}

func (e *MissingRequiredFieldError) Error() string {
	return "missing required field: " + e.Field
}

// TransformError wraps a failing transform.
type TransformError struct {
	Field     string
	Transform string
	Err       error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("normalize field %s with %s: %v", e.Field, e.Transform, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// Warning is a non-fatal finding produced while normalizing.
type Warning struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}
