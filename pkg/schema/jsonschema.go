package schema

import (
	"encoding/json"
	"strings"
)

// ToJSONSchema converts the schema to a draft-07 JSON Schema for the record object.
func (s Schema) ToJSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Fields))
	for _, field := range s.Fields {
		properties[field.Name] = fieldToJSONSchema(field)
	}

	out := map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"title":      s.Name,
		"type":       "object",
		"properties": properties,
	}

	if required := s.Required(); len(required) > 0 {
		out["required"] = required
	}

	if s.Description != "" {
		out["description"] = s.Description
	}

	return out
}

// JSONSchemaString renders ToJSONSchema as compact JSON for embedding in prompts.
func (s Schema) JSONSchemaString() string {
	data, err := json.Marshal(s.ToJSONSchema())
	if err != nil {
		return "{}"
	}
	return string(data)
}

// fieldToJSONSchema converts a Field to JSON Schema format.
func fieldToJSONSchema(f Field) map[string]any {
	out := map[string]any{}
	if len(f.Types) > 0 {
		out["type"] = f.jsonSchemaType()
	}
	if f.Description != "" {
		out["description"] = f.Description
	}
	if len(f.Enum) > 0 {
		out["enum"] = f.Enum
	}
	return out
}

// ToPromptDescription generates a human-readable field list for the LLM prompt.
func (s Schema) ToPromptDescription() string {
	var sb strings.Builder

	sb.WriteString("## Record Type\n")
	if s.Description != "" {
		sb.WriteString(s.Description)
	} else {
		sb.WriteString("Extract the following structured data.")
	}
	sb.WriteString("\n\n## Fields\n")

	for _, f := range s.Fields {
		sb.WriteString("- ")
		sb.WriteString(f.Name)
		sb.WriteString(" (")
		sb.WriteString(joinTypes(f.Types))
		if f.Required {
			sb.WriteString(", required")
		}
		sb.WriteString(")")
		if f.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(f.Description)
		}
		if len(f.Enum) > 0 {
			sb.WriteString(" [")
			sb.WriteString(strings.Join(f.Enum, ", "))
			sb.WriteString("]")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
