package core

import (
	"encoding/json"
	"testing"
)

func TestEstimateTokensCountsPromptAndOutput(t *testing.T) {
	opts := CallOptions{
		Prompt: []Message{
			SystemMessage("You are terse."),
			UserMessage(TextPart("What is the capital of France? Answer in one word.")),
		},
	}
	est := EstimateTokens(opts)
	if est.Input <= 0 {
		t.Fatalf("expected positive input estimate, got %d", est.Input)
	}
	if est.MaxOutput != 256 {
		t.Fatalf("expected default max output 256, got %d", est.MaxOutput)
	}
	if est.Total != est.Input+est.MaxOutput {
		t.Fatalf("total %d != input %d + max output %d", est.Total, est.Input, est.MaxOutput)
	}

	opts.MaxOutputTokens = 64
	if got := EstimateTokens(opts).MaxOutput; got != 64 {
		t.Fatalf("expected configured max output 64, got %d", got)
	}
}

func TestEstimateMessageTokensToolParts(t *testing.T) {
	msg := Message{
		Role: Assistant,
		Parts: []Part{
			ToolCall{ID: "c1", Name: "get_weather", Input: map[string]any{"city": "Paris"}},
		},
	}
	callEst := EstimateMessageTokens(msg)
	if callEst <= 0 {
		t.Fatalf("expected positive estimate for tool call, got %d", callEst)
	}

	result := Message{
		Role: Tool,
		Parts: []Part{
			ToolResult{ID: "c1", Name: "get_weather", Output: TextOutput("sunny, 20C")},
		},
	}
	if got := EstimateMessageTokens(result); got <= 0 {
		t.Fatalf("expected positive estimate for tool result, got %d", got)
	}

	jsonResult := Message{
		Role: Tool,
		Parts: []Part{
			ToolResult{ID: "c2", Name: "lookup", Output: ToolResultOutput{Kind: ToolOutputJSON, JSON: json.RawMessage(`{"ok":true}`)}},
		},
	}
	if got := EstimateMessageTokens(jsonResult); got <= 0 {
		t.Fatalf("expected positive estimate for json tool result, got %d", got)
	}
}

func TestEstimateTextTokensHeuristic(t *testing.T) {
	if got := EstimateTextTokens(""); got != 0 {
		t.Fatalf("expected 0 for empty text, got %d", got)
	}
	// 4 characters per token, rounded up.
	if got := EstimateTextTokens("abcdefgh"); got != 2 {
		t.Fatalf("expected 2 tokens for 8 chars, got %d", got)
	}
	if got := EstimateTextTokens("abcdefghi"); got != 3 {
		t.Fatalf("expected 3 tokens for 9 chars, got %d", got)
	}
}
