// Package testutil provides mock capability implementations for tests.
package testutil

import (
	"context"
	"regexp"
	"sync"

	"github.com/harmonia-ai/loom/core"
)

// MockModel is a scriptable core.LanguageModel. Responses and streams are
// consumed in order; the last entry repeats once the script runs out.
type MockModel struct {
	mu sync.Mutex

	ProviderID string
	Model      string

	Responses []*core.GenerateResponse
	Scripts   [][]core.StreamPart

	GenerateErr error
	StreamErr   error

	GenerateCalls []core.CallOptions
	StreamCalls   []core.CallOptions

	OnGenerate func(ctx context.Context, opts core.CallOptions) (*core.GenerateResponse, error)
	OnStream   func(ctx context.Context, opts core.CallOptions) (*core.StreamResponse, error)
}

// NewMockModel creates a mock with a single plain-text response.
func NewMockModel() *MockModel {
	return &MockModel{
		ProviderID: "mock",
		Model:      "mock-1",
		Responses: []*core.GenerateResponse{{
			Content:      []core.Part{core.Text{Text: "mock response"}},
			FinishReason: core.FinishStop,
			Usage:        core.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		}},
	}
}

func (m *MockModel) Provider() string { return m.ProviderID }
func (m *MockModel) ModelID() string  { return m.Model }

func (m *MockModel) SupportedURLs() map[string][]*regexp.Regexp { return nil }

func (m *MockModel) Generate(ctx context.Context, opts core.CallOptions) (*core.GenerateResponse, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, opts)
	call := len(m.GenerateCalls) - 1
	m.mu.Unlock()

	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, opts)
	}
	if m.GenerateErr != nil {
		return nil, m.GenerateErr
	}
	if len(m.Responses) == 0 {
		return nil, core.NewModelError("mock has no scripted responses")
	}
	if call >= len(m.Responses) {
		call = len(m.Responses) - 1
	}
	return m.Responses[call], nil
}

func (m *MockModel) Stream(ctx context.Context, opts core.CallOptions) (*core.StreamResponse, error) {
	m.mu.Lock()
	m.StreamCalls = append(m.StreamCalls, opts)
	call := len(m.StreamCalls) - 1
	m.mu.Unlock()

	if m.OnStream != nil {
		return m.OnStream(ctx, opts)
	}
	if m.StreamErr != nil {
		return nil, m.StreamErr
	}
	if len(m.Scripts) == 0 {
		return nil, core.NewModelError("mock has no scripted streams")
	}
	if call >= len(m.Scripts) {
		call = len(m.Scripts) - 1
	}
	return BuildStream(ctx, m.Scripts[call]), nil
}

// BuildStream pushes the scripted parts into a fresh driver stream.
func BuildStream(ctx context.Context, parts []core.StreamPart) *core.StreamResponse {
	stream := core.NewStream(ctx, len(parts)+1)
	go func() {
		for _, part := range parts {
			if part.Err != nil {
				stream.Fail(part.Err)
				return
			}
			stream.Push(part)
		}
		_ = stream.Close()
	}()
	return &core.StreamResponse{Parts: stream}
}

// TextScript builds the raw parts of a single-block text stream.
func TextScript(blockID string, deltas []string, usage core.Usage) []core.StreamPart {
	parts := []core.StreamPart{{Type: core.PartStreamStart}}
	parts = append(parts, core.StreamPart{Type: core.PartTextStart, ID: blockID})
	for _, delta := range deltas {
		parts = append(parts, core.StreamPart{Type: core.PartTextDelta, ID: blockID, Delta: delta})
	}
	parts = append(parts,
		core.StreamPart{Type: core.PartTextEnd, ID: blockID},
		core.StreamPart{Type: core.PartFinish, Usage: usage, FinishReason: core.FinishStop},
	)
	return parts
}

// ToolCallScript builds the raw parts of a stream that requests one tool call
// with the given raw JSON input split into deltas.
func ToolCallScript(callID, toolName string, inputDeltas []string, usage core.Usage) []core.StreamPart {
	parts := []core.StreamPart{
		{Type: core.PartStreamStart},
		{Type: core.PartToolInputStart, ID: callID, ToolName: toolName},
	}
	for _, delta := range inputDeltas {
		parts = append(parts, core.StreamPart{Type: core.PartToolInputDelta, ID: callID, Delta: delta})
	}
	parts = append(parts,
		core.StreamPart{Type: core.PartToolInputEnd, ID: callID},
		core.StreamPart{Type: core.PartFinish, Usage: usage, FinishReason: core.FinishToolCalls},
	)
	return parts
}
