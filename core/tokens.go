package core

import (
	"strings"

	"github.com/harmonia-ai/loom/internal/tokens"
)

// TokenEstimate summarises estimated token usage for a prompt.
type TokenEstimate struct {
	Input     int
	MaxOutput int
	Total     int
}

// EstimateTokens estimates the token footprint of a call using heuristics.
// Drivers report real usage after the fact; this is for pre-flight sizing.
func EstimateTokens(opts CallOptions) TokenEstimate {
	input := 0
	for _, msg := range opts.Prompt {
		input += EstimateMessageTokens(msg)
	}
	maxOut := opts.MaxOutputTokens
	if maxOut == 0 {
		maxOut = tokens.DefaultMaxOutput
	}
	return TokenEstimate{Input: input, MaxOutput: maxOut, Total: input + maxOut}
}

// EstimateMessageTokens estimates tokens for a single message.
func EstimateMessageTokens(msg Message) int {
	total := tokens.EstimateText(string(msg.Role))
	for _, part := range msg.Parts {
		total += estimatePartTokens(part)
	}
	return total
}

// EstimateTextTokens estimates tokens from raw text.
func EstimateTextTokens(text string) int {
	return tokens.EstimateText(text)
}

func estimatePartTokens(part Part) int {
	switch p := part.(type) {
	case Text:
		return tokens.EstimateText(p.Text)
	case Reasoning:
		return tokens.EstimateText(p.Text)
	case Image:
		if p.Source.Size > 0 {
			return tokens.EstimateBytes(p.Source.Size)
		}
		return 512
	case File:
		if p.Source.Size > 0 {
			return tokens.EstimateBytes(p.Source.Size)
		}
		return 256
	case Source:
		return tokens.EstimateText(p.URL) + tokens.EstimateText(p.Title)
	case ToolCall:
		keys := make([]string, 0, len(p.Input))
		for k := range p.Input {
			keys = append(keys, k)
		}
		return tokens.EstimateText(strings.Join(keys, " ")) + tokens.EstimateJSON(p.Input)
	case ToolResult:
		switch p.Output.Kind {
		case ToolOutputText, ToolOutputErrorText:
			return tokens.EstimateText(p.Output.Text)
		case ToolOutputJSON, ToolOutputErrorJSON:
			return tokens.EstimateText(string(p.Output.JSON))
		default:
			return tokens.EstimateJSON(p.Output.Content)
		}
	default:
		return 32
	}
}
