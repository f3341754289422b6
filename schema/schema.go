// Package schema exposes public JSON Schema structures used throughout the SDK.
package schema

// Schema is a pragmatic subset of JSON Schema sufficient for tool inputs and
// structured output formats.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Title                string             `json:"title,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Description          string             `json:"description,omitempty"`
	Default              any                `json:"default,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Minimum              *float64           `json:"minimum,omitempty"`
	Maximum              *float64           `json:"maximum,omitempty"`
	MinLength            *int               `json:"minLength,omitempty"`
	MaxLength            *int               `json:"maxLength,omitempty"`
	Pattern              string             `json:"pattern,omitempty"`
	Format               string             `json:"format,omitempty"`
}

// Object builds an object schema from property definitions; every listed
// property is required.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: "object", Properties: props, Required: required}
}

// String builds a string schema with an optional description.
func String(description string) *Schema {
	return &Schema{Type: "string", Description: description}
}

// Number builds a number schema with an optional description.
func Number(description string) *Schema {
	return &Schema{Type: "number", Description: description}
}

// Boolean builds a boolean schema with an optional description.
func Boolean(description string) *Schema {
	return &Schema{Type: "boolean", Description: description}
}

// Array builds an array schema for the given item schema.
func Array(items *Schema) *Schema {
	return &Schema{Type: "array", Items: items}
}
