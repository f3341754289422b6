package jsonschema

import (
	"testing"

	"github.com/harmonia-ai/loom/schema"
)

type searchInput struct {
	Query string `json:"query" description:"Search query"`
	Limit int    `json:"limit,omitempty" minimum:"1" maximum:"50"`
	Exact bool   `json:"exact,omitempty"`
	Tags  []string
}

func TestDeriveStruct(t *testing.T) {
	s, err := Derive[searchInput]()
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if s.Type != "object" {
		t.Fatalf("expected object schema, got %s", s.Type)
	}
	q, ok := s.Properties["query"]
	if !ok {
		t.Fatalf("missing query property")
	}
	if q.Type != "string" || q.Description != "Search query" {
		t.Fatalf("unexpected query schema: %+v", q)
	}
	limit := s.Properties["limit"]
	if limit == nil || limit.Type != "integer" {
		t.Fatalf("expected integer limit, got %+v", limit)
	}
	if limit.Minimum == nil || *limit.Minimum != 1 {
		t.Fatalf("expected minimum 1, got %+v", limit.Minimum)
	}
	if s.Properties["exact"].Type != "boolean" {
		t.Fatalf("expected boolean exact")
	}
	tags := s.Properties["Tags"]
	if tags == nil || tags.Type != "array" || tags.Items == nil || tags.Items.Type != "string" {
		t.Fatalf("unexpected tags schema: %+v", tags)
	}
	required := map[string]bool{}
	for _, r := range s.Required {
		required[r] = true
	}
	if !required["query"] || required["limit"] {
		t.Fatalf("unexpected required set: %v", s.Required)
	}
}

func TestValidateObject(t *testing.T) {
	s, err := Derive[searchInput]()
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	v, err := Compile(s)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if err := v.Validate([]byte(`{"query":"go modules","limit":5,"Tags":[]}`)); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
	if err := v.Validate([]byte(`{"limit":5,"Tags":[]}`)); err == nil {
		t.Fatalf("expected missing required field error")
	}
	if err := v.Validate([]byte(`{"query":"x","limit":500,"Tags":[]}`)); err == nil {
		t.Fatalf("expected maximum violation")
	}
	if err := v.Validate([]byte(`{"query":"x","limit":1.5,"Tags":[]}`)); err == nil {
		t.Fatalf("expected integer violation")
	}
}

func TestValidateEnumAndPattern(t *testing.T) {
	s := schema.Object(map[string]*schema.Schema{
		"unit": {Type: "string", Enum: []any{"celsius", "fahrenheit"}},
		"code": {Type: "string", Pattern: `^[A-Z]{2}$`},
	}, "unit")
	v, err := Compile(s)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if err := v.Validate([]byte(`{"unit":"celsius","code":"US"}`)); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
	if err := v.Validate([]byte(`{"unit":"kelvin"}`)); err == nil {
		t.Fatalf("expected enum violation")
	}
	if err := v.Validate([]byte(`{"unit":"celsius","code":"usa"}`)); err == nil {
		t.Fatalf("expected pattern violation")
	}
}

func TestRepairJSON(t *testing.T) {
	fixed, err := RepairJSON([]byte(`{"a":1,"b":[1,2,],}`))
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if string(fixed) != `{"a":1,"b":[1,2]}` {
		t.Fatalf("unexpected repair result: %s", fixed)
	}
	if _, err := RepairJSON([]byte(`{"a":`)); err == nil {
		t.Fatalf("expected unrepairable input to error")
	}
}
