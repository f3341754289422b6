package core

import (
	"github.com/harmonia-ai/loom/schema"
)

// ResponseFormatType selects plain text or schema-constrained JSON output.
type ResponseFormatType string

const (
	ResponseFormatText       ResponseFormatType = "text"
	ResponseFormatJSONSchema ResponseFormatType = "json-schema"
)

// ResponseFormat constrains the shape of the model output.
type ResponseFormat struct {
	Type        ResponseFormatType `json:"type"`
	Schema      *schema.Schema     `json:"schema,omitempty"`
	Name        string             `json:"name,omitempty"`
	Description string             `json:"description,omitempty"`
	Strict      bool               `json:"strict,omitempty"`
}

// CallSettings are the sampling and limit knobs shared by every step.
// Zero values mean "driver default".
type CallSettings struct {
	MaxOutputTokens  int      `json:"max_output_tokens,omitempty"`
	Temperature      float64  `json:"temperature,omitempty"`
	TopP             float64  `json:"top_p,omitempty"`
	TopK             int      `json:"top_k,omitempty"`
	FrequencyPenalty float64  `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64  `json:"presence_penalty,omitempty"`
	StopSequences    []string `json:"stop_sequences,omitempty"`
	Seed             int64    `json:"seed,omitempty"`

	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ToolChoiceMode enumerates how the provider should handle tool selection.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceTool     ToolChoiceMode = "tool"
)

// ToolChoice directs the model's tool selection. The zero value means unset;
// preparation defaults it to auto iff any tools exist.
type ToolChoice struct {
	Mode     ToolChoiceMode `json:"mode,omitempty"`
	ToolName string         `json:"tool_name,omitempty"`
}

// SpecificTool builds a tool choice forcing the named tool.
func SpecificTool(name string) ToolChoice {
	return ToolChoice{Mode: ToolChoiceTool, ToolName: name}
}

// ProviderToolType distinguishes regular function tools from provider-hosted ones.
type ProviderToolType string

const (
	ProviderToolFunction ProviderToolType = "function"
	ProviderToolDefined  ProviderToolType = "provider-defined"
)

// ProviderTool is the prepared, driver-facing tool specification.
type ProviderTool struct {
	Type            ProviderToolType `json:"type"`
	Name            string           `json:"name"`
	Description     string           `json:"description,omitempty"`
	InputSchema     *schema.Schema   `json:"input_schema,omitempty"`
	ProviderOptions map[string]any   `json:"provider_options,omitempty"`

	// For provider-defined tools: stable "<provider>.<tool-name>" id plus args.
	ID   string         `json:"id,omitempty"`
	Args map[string]any `json:"args,omitempty"`
}

// CallOptions is the complete canonical request handed to a driver.
type CallOptions struct {
	Prompt []Message `json:"prompt"`

	CallSettings

	Tools      []ProviderTool `json:"tools,omitempty"`
	ToolChoice ToolChoice     `json:"tool_choice,omitempty"`

	Headers          map[string]string `json:"headers,omitempty"`
	ProviderOptions  map[string]any    `json:"provider_options,omitempty"`
	IncludeRawChunks bool              `json:"include_raw_chunks,omitempty"`
}

// Clone returns a copy of the options with safe slice/map duplication.
func (o CallOptions) Clone() CallOptions {
	clone := o
	if len(o.Prompt) > 0 {
		clone.Prompt = append([]Message(nil), o.Prompt...)
	}
	if len(o.Tools) > 0 {
		clone.Tools = append([]ProviderTool(nil), o.Tools...)
	}
	if len(o.StopSequences) > 0 {
		clone.StopSequences = append([]string(nil), o.StopSequences...)
	}
	if o.Headers != nil {
		clone.Headers = make(map[string]string, len(o.Headers))
		for k, v := range o.Headers {
			clone.Headers[k] = v
		}
	}
	if o.ProviderOptions != nil {
		clone.ProviderOptions = make(map[string]any, len(o.ProviderOptions))
		for k, v := range o.ProviderOptions {
			clone.ProviderOptions[k] = v
		}
	}
	return clone
}
