// Package schema defines the constraint-record schema and validates model output against it.
package schema

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// FieldType represents a JSON type a field may hold.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
	TypeNull    FieldType = "null"
)

// Field represents a single field in the schema.
type Field struct {
	Name        string      `json:"name" yaml:"name"`
	Types       []FieldType `json:"types" yaml:"types"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool        `json:"required,omitempty" yaml:"required,omitempty"`
	Enum        []string    `json:"enum,omitempty" yaml:"enum,omitempty"`
	// NumericRequires lists fields that must be present and non-null
	// whenever this field holds a number (e.g. value -> unit).
	NumericRequires []string `json:"numeric_requires,omitempty" yaml:"numeric_requires,omitempty"`
}

// Nullable reports whether null is an accepted value.
func (f Field) Nullable() bool {
	return slices.Contains(f.Types, TypeNull)
}

// accepts checks that a present value matches the field's types and enum.
func (f Field) accepts(val any) error {
	vt := typeOf(val)
	if len(f.Types) > 0 && !slices.Contains(f.Types, vt) {
		return fmt.Errorf("expected %s, got %s", joinTypes(f.Types), vt)
	}
	if len(f.Enum) > 0 && vt == TypeString {
		if !slices.Contains(f.Enum, val.(string)) {
			return fmt.Errorf("must be one of %s, got %q", strings.Join(f.Enum, ", "), val)
		}
	}
	return nil
}

// typeOf maps a decoded JSON value onto a FieldType.
func typeOf(val any) FieldType {
	switch val.(type) {
	case nil:
		return TypeNull
	case string:
		return TypeString
	case bool:
		return TypeBoolean
	case []any:
		return TypeArray
	case map[string]any:
		return TypeObject
	}
	if IsNumber(val) {
		return TypeNumber
	}
	return FieldType(fmt.Sprintf("%T", val))
}

// IsNumber reports whether val is a JSON number as produced by encoding/json.
func IsNumber(val any) bool {
	switch val.(type) {
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return true
	}
	return false
}

func joinTypes(types []FieldType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, " or ")
}

// jsonSchemaType renders the JSON Schema "type" keyword for the field.
func (f Field) jsonSchemaType() any {
	if len(f.Types) == 1 {
		return string(f.Types[0])
	}
	out := make([]string, len(f.Types))
	for i, t := range f.Types {
		out[i] = string(t)
	}
	return out
}
