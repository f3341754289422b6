package core

import "time"

// Usage captures token accounting returned by providers. Missing fields are zero.
type Usage struct {
	InputTokens       int `json:"input_tokens"`
	OutputTokens      int `json:"output_tokens"`
	TotalTokens       int `json:"total_tokens"`
	ReasoningTokens   int `json:"reasoning_tokens,omitempty"`
	CachedInputTokens int `json:"cached_input_tokens,omitempty"`
}

// Add returns the element-wise sum of two usages.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:       u.InputTokens + other.InputTokens,
		OutputTokens:      u.OutputTokens + other.OutputTokens,
		TotalTokens:       u.TotalTokens + other.TotalTokens,
		ReasoningTokens:   u.ReasoningTokens + other.ReasoningTokens,
		CachedInputTokens: u.CachedInputTokens + other.CachedInputTokens,
	}
}

// FinishReason documents why a generation step ended.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content-filter"
	FinishToolCalls     FinishReason = "tool-calls"
	FinishError         FinishReason = "error"
	FinishOther         FinishReason = "other"
	FinishUnknown       FinishReason = "unknown"
)

// WarningKind tags a call warning.
type WarningKind string

const (
	WarningUnsupportedSetting WarningKind = "unsupported-setting"
	WarningUnsupportedTool    WarningKind = "unsupported-tool"
	WarningOther              WarningKind = "other"
)

// Warning reports a request feature the driver could not honour.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Setting string      `json:"setting,omitempty"`
	Tool    string      `json:"tool,omitempty"`
	Message string      `json:"message,omitempty"`
}

// UnsupportedSetting builds an unsupported-setting warning.
func UnsupportedSetting(setting, message string) Warning {
	return Warning{Kind: WarningUnsupportedSetting, Setting: setting, Message: message}
}

// UnsupportedTool builds an unsupported-tool warning.
func UnsupportedTool(tool, message string) Warning {
	return Warning{Kind: WarningUnsupportedTool, Tool: tool, Message: message}
}

// ResponseMetadata identifies a provider response.
type ResponseMetadata struct {
	ID        string    `json:"id,omitempty"`
	ModelID   string    `json:"model_id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// RequestEcho carries the serialized request body for debugging.
type RequestEcho struct {
	Body string `json:"body,omitempty"`
}

// GenerateResponse is the result of a single non-streaming driver call.
type GenerateResponse struct {
	Content          []Part            `json:"content"`
	FinishReason     FinishReason      `json:"finish_reason"`
	Usage            Usage             `json:"usage"`
	Warnings         []Warning         `json:"warnings,omitempty"`
	ProviderMetadata map[string]any    `json:"provider_metadata,omitempty"`
	Response         *ResponseMetadata `json:"response,omitempty"`
	Request          *RequestEcho      `json:"request,omitempty"`
}

// StreamResponse is the result of a streaming driver call.
type StreamResponse struct {
	Parts    *Stream
	Response *ResponseMetadata
	Request  *RequestEcho
}

// StopDetail records why the orchestrator halted the step loop.
type StopDetail struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

const (
	StopTypeFinish        = "finish"
	StopTypeCondition     = "condition"
	StopTypeNoMoreTools   = "no_more_tools"
	StopTypePendingTools  = "pending_approval"
	StopTypeMaxSteps      = "max_steps"
	StopTypeToolSeen      = "tool_seen"
	StopTypeMaxTokens     = "max_tokens"
	StopTypeAllConditions = "all_conditions"
	StopTypeCustom        = "custom"
)

// StepResult captures one driver call plus its tool round.
type StepResult struct {
	Number           int                   `json:"number"`
	Content          []Part                `json:"content"`
	Text             string                `json:"text"`
	Reasoning        []Reasoning           `json:"reasoning,omitempty"`
	Sources          []Source              `json:"sources,omitempty"`
	ToolCalls        []ToolCall            `json:"tool_calls,omitempty"`
	ToolResults      []ToolResult          `json:"tool_results,omitempty"`
	PendingApprovals []ToolApprovalRequest `json:"pending_approvals,omitempty"`
	Usage            Usage                 `json:"usage"`
	FinishReason     FinishReason          `json:"finish_reason"`
	Warnings         []Warning             `json:"warnings,omitempty"`
	ProviderMetadata map[string]any        `json:"provider_metadata,omitempty"`
	Response         *ResponseMetadata     `json:"response,omitempty"`
	DurationMS       int64                 `json:"duration_ms,omitempty"`
}

// GenerateResult is the final aggregate of a multi-step generation.
type GenerateResult struct {
	Text             string                `json:"text"`
	Reasoning        []Reasoning           `json:"reasoning,omitempty"`
	Sources          []Source              `json:"sources,omitempty"`
	Steps            []StepResult          `json:"steps"`
	Usage            Usage                 `json:"usage"`
	FinishReason     FinishReason          `json:"finish_reason"`
	StopReason       StopDetail            `json:"stop_reason"`
	PendingApprovals []ToolApprovalRequest `json:"pending_approvals,omitempty"`
	Warnings         []Warning             `json:"warnings,omitempty"`
	ProviderMetadata map[string]any        `json:"provider_metadata,omitempty"`
	Response         *ResponseMetadata     `json:"response,omitempty"`
	Messages         []Message             `json:"messages,omitempty"`
}

// LastStep returns the final step, if any.
func (r *GenerateResult) LastStep() *StepResult {
	if r == nil || len(r.Steps) == 0 {
		return nil
	}
	return &r.Steps[len(r.Steps)-1]
}
