package jsonschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/harmonia-ai/loom/schema"
)

// Validator wraps a schema for validation.
type Validator struct {
	schema *schema.Schema
}

// Compile constructs a Validator for the provided schema.
func Compile(schemaDoc *schema.Schema) (*Validator, error) {
	if schemaDoc == nil {
		return nil, errors.New("nil schema")
	}
	return &Validator{schema: schemaDoc}, nil
}

// Validate ensures data matches the schema definition.
func (v *Validator) Validate(data []byte) error {
	if v == nil {
		return errors.New("validator nil")
	}
	var payload any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return validateValue(payload, v.schema)
}

// ValidateValue checks an already-decoded value against the schema.
func (v *Validator) ValidateValue(value any) error {
	if v == nil {
		return errors.New("validator nil")
	}
	return validateValue(value, v.schema)
}

func validateValue(value any, s *schema.Schema) error {
	if s == nil {
		return nil
	}
	switch s.Type {
	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
		for _, key := range s.Required {
			if _, ok := obj[key]; !ok {
				return fmt.Errorf("missing required field %s", key)
			}
		}
		if s.AdditionalProperties != nil && !*s.AdditionalProperties {
			for key := range obj {
				if _, ok := s.Properties[key]; !ok {
					return fmt.Errorf("unexpected field %s", key)
				}
			}
		}
		for key, prop := range s.Properties {
			if val, ok := obj[key]; ok {
				if err := validateValue(val, prop); err != nil {
					return fmt.Errorf("field %s: %w", key, err)
				}
			}
		}
	case "array":
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
		if s.Items != nil {
			for i, elem := range arr {
				if err := validateValue(elem, s.Items); err != nil {
					return fmt.Errorf("index %d: %w", i, err)
				}
			}
		}
	case "string":
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		if s.MinLength != nil && len(str) < *s.MinLength {
			return fmt.Errorf("string shorter than %d", *s.MinLength)
		}
		if s.MaxLength != nil && len(str) > *s.MaxLength {
			return fmt.Errorf("string longer than %d", *s.MaxLength)
		}
		if len(s.Enum) > 0 {
			match := false
			for _, v := range s.Enum {
				if vs, ok := v.(string); ok && vs == str {
					match = true
					break
				}
			}
			if !match {
				return fmt.Errorf("value %q not in enum", str)
			}
		}
		if s.Pattern != "" {
			re, err := regexp.Compile(s.Pattern)
			if err != nil {
				return fmt.Errorf("compile pattern: %w", err)
			}
			if !re.MatchString(str) {
				return fmt.Errorf("value %q does not match pattern", str)
			}
		}
	case "number", "integer":
		f, err := toFloat(value)
		if err != nil {
			return err
		}
		if s.Type == "integer" && f != float64(int64(f)) {
			return fmt.Errorf("number %v is not an integer", f)
		}
		if s.Minimum != nil && f < *s.Minimum {
			return fmt.Errorf("number %.2f below minimum %.2f", f, *s.Minimum)
		}
		if s.Maximum != nil && f > *s.Maximum {
			return fmt.Errorf("number %.2f above maximum %.2f", f, *s.Maximum)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case "":
		// schema with unspecified type accepts any value
		return nil
	default:
		return fmt.Errorf("unsupported schema type %s", s.Type)
	}
	return nil
}

func toFloat(value any) (float64, error) {
	switch n := value.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", value)
	}
}

// RepairJSON performs limited repairs by trimming whitespace and removing
// trailing commas before closing braces and brackets.
func RepairJSON(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty json")
	}
	if json.Valid(trimmed) {
		return trimmed, nil
	}
	re := regexp.MustCompile(`,\s*(\}|\])`)
	fixed := re.ReplaceAll(trimmed, []byte("$1"))
	if json.Valid(fixed) {
		return fixed, nil
	}
	return nil, errors.New("unable to repair json")
}
