package core

import (
	"encoding/json"
	"fmt"
)

// MarshalPart serializes a part into a tagged JSON object.
func MarshalPart(part Part) ([]byte, error) {
	if part == nil {
		return nil, fmt.Errorf("nil part")
	}
	payload, err := json.Marshal(part)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	tag, err := json.Marshal(part.PartType())
	if err != nil {
		return nil, err
	}
	fields["type"] = tag
	return json.Marshal(fields)
}

// UnmarshalPart decodes a tagged JSON object into the matching part type.
func UnmarshalPart(data []byte) (Part, error) {
	var head struct {
		Type PartType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode part tag: %w", err)
	}
	switch head.Type {
	case PartTypeText:
		var p Text
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeReasoning:
		var p Reasoning
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeImage:
		var p Image
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeFile:
		var p File
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeSource:
		var p Source
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeToolCall:
		var p ToolCall
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeToolResult:
		var p ToolResult
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeApprovalRequest:
		var p ToolApprovalRequest
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeApprovalResponse:
		var p ToolApprovalResponse
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown part type %q", head.Type)
	}
}

// MarshalJSON emits message parts as tagged objects.
func (m Message) MarshalJSON() ([]byte, error) {
	parts := make([]json.RawMessage, 0, len(m.Parts))
	for _, part := range m.Parts {
		data, err := MarshalPart(part)
		if err != nil {
			return nil, err
		}
		parts = append(parts, data)
	}
	return json.Marshal(struct {
		Role     Role              `json:"role"`
		Parts    []json.RawMessage `json:"parts"`
		Metadata map[string]any    `json:"metadata,omitempty"`
	}{Role: m.Role, Parts: parts, Metadata: m.Metadata})
}

// UnmarshalJSON restores message parts from tagged objects.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role     Role              `json:"role"`
		Parts    []json.RawMessage `json:"parts"`
		Metadata map[string]any    `json:"metadata,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parts := make([]Part, 0, len(raw.Parts))
	for i, rawPart := range raw.Parts {
		part, err := UnmarshalPart(rawPart)
		if err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		parts = append(parts, part)
	}
	m.Role = raw.Role
	m.Parts = parts
	m.Metadata = raw.Metadata
	return nil
}
