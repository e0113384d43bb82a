package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Operators accepted in the operator field of a constraint record.
var Operators = []string{">=", "<=", ">", "<", "==", "!=", "between", "in_set"}

// Schema defines the shape of a single extracted record.
type Schema struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []Field `json:"fields" yaml:"fields"`

	// RequiredOnly limits validation to required fields and the
	// numeric-requires rules. Field types and enums are not checked.
	RequiredOnly bool `json:"required_only,omitempty" yaml:"required_only,omitempty"`

	validate *validator.Validate
}

// ValidationError describes one violation found in a candidate record.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

// String returns the human-readable form used in repair prompts and logs.
func (e ValidationError) String() string {
	return e.Message
}

// New creates a schema from a field list.
func New(name, description string, fields []Field) Schema {
	return Schema{
		Name:        name,
		Description: description,
		Fields:      fields,
		validate:    validator.New(),
	}
}

// Constraint returns the engineering-constraint record schema.
func Constraint() Schema {
	return New("Engineering Specification Constraint",
		"A single normative constraint extracted from a regulatory or engineering document.",
		[]Field{
			{Name: "applicable_object", Types: []FieldType{TypeString}, Required: true,
				Description: "The building element, material or object the constraint applies to"},
			{Name: "constraint_content", Types: []FieldType{TypeString}, Required: true,
				Description: "What is constrained (e.g. fire-resistance rating)"},
			{Name: "value", Types: []FieldType{TypeNumber, TypeString, TypeNull},
				Description: "The constrained value", NumericRequires: []string{"unit"}},
			{Name: "unit", Types: []FieldType{TypeString, TypeNull},
				Description: "Unit of the value, required when value is numeric"},
			{Name: "operator", Types: []FieldType{TypeString}, Enum: Operators,
				Description: "Comparison operator relating the object to the value"},
			{Name: "pre_condition", Types: []FieldType{TypeString, TypeNull},
				Description: "Condition under which the constraint applies"},
			{Name: "source_ref", Types: []FieldType{TypeString}, Required: true,
				Description: "Citation key of the source section"},
		})
}

// FromFile loads a schema from a JSON or YAML file.
func FromFile(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to read schema file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var s Schema

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &s); err != nil {
			return Schema{}, fmt.Errorf("failed to parse JSON schema: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Schema{}, fmt.Errorf("failed to parse YAML schema: %w", err)
		}
	default:
		return Schema{}, fmt.Errorf("unsupported schema file format: %s", ext)
	}

	if len(s.Required()) == 0 {
		return Schema{}, fmt.Errorf("schema %q declares no required fields", s.Name)
	}
	s.validate = validator.New()
	return s, nil
}

// Required returns the names of the required fields in declaration order.
func (s Schema) Required() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Validate checks a decoded JSON value against the schema and returns every
// violation found. It never panics.
func (s Schema) Validate(item any) (bool, []string) {
	errs := s.ValidateItem(item)
	if len(errs) == 0 {
		return true, nil
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.String()
	}
	return false, out
}

// ValidateItem is Validate with structured errors.
func (s Schema) ValidateItem(item any) (errs []ValidationError) {
	defer func() {
		if r := recover(); r != nil {
			errs = append(errs, ValidationError{Message: fmt.Sprintf("validation aborted: %v", r)})
		}
	}()

	data, ok := item.(map[string]any)
	if !ok {
		return []ValidationError{{
			Message: fmt.Sprintf("Item is not a JSON object (got %s).", typeOf(item)),
			Value:   item,
		}}
	}

	errs = append(errs, s.validateRequired(data)...)

	for _, f := range s.Fields {
		if s.RequiredOnly {
			break
		}
		val, exists := data[f.Name]
		if !exists || val == nil {
			continue
		}
		if err := f.accepts(val); err != nil {
			errs = append(errs, ValidationError{
				Field:   f.Name,
				Message: fmt.Sprintf("Invalid field '%s': %v", f.Name, err),
				Value:   val,
			})
		}
	}

	for _, f := range s.Fields {
		if len(f.NumericRequires) == 0 || !IsNumber(data[f.Name]) {
			continue
		}
		for _, dep := range f.NumericRequires {
			if !truthy(data[dep]) {
				errs = append(errs, ValidationError{
					Field:   dep,
					Message: fmt.Sprintf("Numeric '%s' requires a '%s'.", f.Name, dep),
					Value:   data[f.Name],
				})
			}
		}
	}

	return errs
}

// validateRequired runs the required-field rules through the validator.
func (s Schema) validateRequired(data map[string]any) []ValidationError {
	v := s.validate
	if v == nil {
		v = validator.New()
	}

	required := s.Required()
	rules := make(map[string]any, len(required))
	for _, name := range required {
		rules[name] = "required"
	}
	failed := v.ValidateMap(data, rules)

	var errs []ValidationError
	for _, name := range required {
		_, bad := failed[name]
		if bad || !truthy(data[name]) {
			errs = append(errs, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("Missing required field: '%s'", name),
				Value:   data[name],
			})
		}
	}
	return errs
}

// truthy reports whether a decoded JSON value counts as present.
func truthy(val any) bool {
	switch v := val.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	case float64:
		return v != 0
	case json.Number:
		return v.String() != "0"
	}
	return true
}
