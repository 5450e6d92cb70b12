package agents

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ahrav/shinise-scout/internal/ports"
)

// Kind is the JSON type of one output field.
type Kind int

const (
	KindString Kind = iota
	KindStringList
	KindNumber
	KindBool
	// KindRisk is a string expected to hold safe, caution or danger. Unknown
	// values pass validation and are dropped by the executor.
	KindRisk
	KindObjectList
)

// Field is one named property of a task's output object.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	// Items describes list elements when Kind is KindObjectList.
	Items *Shape
}

// Shape is the ordered field list a task's JSON answer must satisfy.
// Fields not listed are allowed and ignored. Optional fields may be null.
type Shape struct {
	Fields []Field

	once   sync.Once
	schema *gojsonschema.Schema
	err    error
}

// NewShape builds a shape from fields.
func NewShape(fields ...Field) *Shape { return &Shape{Fields: fields} }

// Names returns the field names in declaration order.
func (s *Shape) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// JSONSchema renders the shape as a JSON Schema document.
func (s *Shape) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := make([]string, 0)
	for _, f := range s.Fields {
		props[f.Name] = fieldSchema(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func fieldSchema(f Field) map[string]any {
	var base map[string]any
	switch f.Kind {
	case KindString, KindRisk:
		base = map[string]any{"type": "string"}
	case KindStringList:
		base = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case KindNumber:
		base = map[string]any{"type": "number"}
	case KindBool:
		base = map[string]any{"type": "boolean"}
	case KindObjectList:
		items := map[string]any{"type": "object"}
		if f.Items != nil {
			items = f.Items.JSONSchema()
		}
		base = map[string]any{"type": "array", "items": items}
	}
	if f.Required {
		return base
	}
	return map[string]any{"anyOf": []any{base, map[string]any{"type": "null"}}}
}

func (s *Shape) compiled() (*gojsonschema.Schema, error) {
	s.once.Do(func() {
		s.schema, s.err = gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.JSONSchema()))
	})
	return s.schema, s.err
}

// Validate checks raw against the shape. Failures are *ports.ParseError.
func (s *Shape) Validate(raw json.RawMessage) error {
	schema, err := s.compiled()
	if err != nil {
		return fmt.Errorf("compiling output schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return ports.NewParseError(string(raw), err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			msgs[i] = desc.String()
		}
		return ports.NewParseError(string(raw), fmt.Errorf("output does not match shape: %s", strings.Join(msgs, "; ")))
	}
	return nil
}
