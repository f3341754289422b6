package core

import (
	"encoding/json"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	original := Message{
		Role: Assistant,
		Parts: []Part{
			Text{Text: "checking the weather"},
			Reasoning{Text: "the user asked about Paris"},
			ToolCall{ID: "c1", Name: "get_weather", Input: map[string]any{"city": "Paris"}},
		},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Role != Assistant || len(decoded.Parts) != 3 {
		t.Fatalf("shape lost: %+v", decoded)
	}
	if text, ok := decoded.Parts[0].(Text); !ok || text.Text != "checking the weather" {
		t.Fatalf("text part = %#v", decoded.Parts[0])
	}
	if _, ok := decoded.Parts[1].(Reasoning); !ok {
		t.Fatalf("reasoning part = %#v", decoded.Parts[1])
	}
	call, ok := decoded.Parts[2].(ToolCall)
	if !ok || call.ID != "c1" || call.Input["city"] != "Paris" {
		t.Fatalf("tool call part = %#v", decoded.Parts[2])
	}
}

func TestToolConversationRoundTrip(t *testing.T) {
	messages := []Message{
		UserMessage(TextPart("delete /tmp/x")),
		{Role: Assistant, Parts: []Part{
			ToolCall{ID: "c1", Name: "delete_file", Input: map[string]any{"path": "/tmp/x"}},
			ToolApprovalRequest{ApprovalID: "a1", ToolCallID: "c1", ToolName: "delete_file"},
		}},
		UserMessage(ToolApprovalResponse{ApprovalID: "a1", Approved: true}),
		ToolMessage(ToolResult{ID: "c1", Name: "delete_file", Output: TextOutput("done")}),
	}

	data, err := json.Marshal(messages)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded []Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 4 {
		t.Fatalf("message count = %d", len(decoded))
	}
	if req, ok := decoded[1].Parts[1].(ToolApprovalRequest); !ok || req.ToolCallID != "c1" {
		t.Fatalf("approval request = %#v", decoded[1].Parts[1])
	}
	if resp, ok := decoded[2].Parts[0].(ToolApprovalResponse); !ok || !resp.Approved {
		t.Fatalf("approval response = %#v", decoded[2].Parts[0])
	}
	result, ok := decoded[3].Parts[0].(ToolResult)
	if !ok || result.Output.Text != "done" || result.Output.IsError() {
		t.Fatalf("tool result = %#v", decoded[3].Parts[0])
	}

	// The round-tripped conversation must still validate.
	if err := ValidatePrompt(decoded); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestUnmarshalPartRejectsUnknownType(t *testing.T) {
	if _, err := UnmarshalPart([]byte(`{"type":"hologram"}`)); err == nil {
		t.Fatalf("expected unknown type error")
	}
}
