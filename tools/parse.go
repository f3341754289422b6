package tools

import (
	"encoding/json"

	"github.com/harmonia-ai/loom/core"
	"github.com/harmonia-ai/loom/internal/jsonschema"
	"github.com/harmonia-ai/loom/schema"
)

// RepairFunc attempts to coerce malformed tool-call JSON into schema-valid
// JSON. It returns the repaired document or an error.
type RepairFunc func(raw []byte, s *schema.Schema) ([]byte, error)

// DefaultRepair removes trailing commas and surrounding noise. It is applied
// when no caller-supplied repair function is configured.
func DefaultRepair(raw []byte, _ *schema.Schema) ([]byte, error) {
	return jsonschema.RepairJSON(raw)
}

// ParseCall parses raw tool-call arguments against the handle's schema. On a
// strict parse failure the repair function gets one attempt; a repaired
// result is flagged. Failures surface as invalid_tool_input.
func ParseCall(raw string, h Handle, repair RepairFunc) (map[string]any, bool, error) {
	if repair == nil {
		repair = DefaultRepair
	}
	data := []byte(raw)
	if len(data) == 0 {
		data = []byte("{}")
	}

	input := map[string]any{}
	repaired := false
	if err := json.Unmarshal(data, &input); err != nil {
		fixed, repairErr := repair(data, h.InputSchema())
		if repairErr != nil {
			return nil, false, core.NewInvalidToolInput(h.Name(), raw, "arguments are not valid JSON", err)
		}
		input = map[string]any{}
		if err := json.Unmarshal(fixed, &input); err != nil {
			return nil, false, core.NewInvalidToolInput(h.Name(), raw, "repaired arguments are not valid JSON", err)
		}
		repaired = true
	}

	if s := h.InputSchema(); s != nil {
		validator, err := jsonschema.Compile(s)
		if err != nil {
			return nil, repaired, core.NewInvalidToolInput(h.Name(), raw, "tool schema failed to compile", err)
		}
		if err := validator.ValidateValue(input); err != nil {
			return nil, repaired, core.NewInvalidToolInput(h.Name(), raw, "arguments do not match the tool schema", err)
		}
	}
	return input, repaired, nil
}
