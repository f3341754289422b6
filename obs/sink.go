package obs

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// WriterSink logs each completion as a JSON line to an io.Writer. Useful for
// local development and log-shipping setups.
type WriterSink struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

// NewWriterSink builds a WriterSink over w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w, enc: json.NewEncoder(w)}
}

func (s *WriterSink) LogCompletion(ctx context.Context, completion Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(completionRecord{
		Provider:     completion.Provider,
		Model:        completion.Model,
		RequestID:    completion.RequestID,
		Input:        completion.Input,
		Output:       completion.Output,
		InputTokens:  completion.Usage.InputTokens,
		OutputTokens: completion.Usage.OutputTokens,
		TotalTokens:  completion.Usage.TotalTokens,
		LatencyMS:    completion.LatencyMS,
		Metadata:     completion.Metadata,
		Error:        completion.Error,
		CreatedAtUTC: completion.CreatedAtUTC,
		ToolCalls:    completion.ToolCalls,
	})
}

func (s *WriterSink) Shutdown(ctx context.Context) error { return nil }

type completionRecord struct {
	Provider     string           `json:"provider"`
	Model        string           `json:"model"`
	RequestID    string           `json:"request_id,omitempty"`
	Input        []Message        `json:"input,omitempty"`
	Output       Message          `json:"output"`
	InputTokens  int              `json:"input_tokens,omitempty"`
	OutputTokens int              `json:"output_tokens,omitempty"`
	TotalTokens  int              `json:"total_tokens,omitempty"`
	LatencyMS    int64            `json:"latency_ms,omitempty"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
	Error        string           `json:"error,omitempty"`
	CreatedAtUTC int64            `json:"created_at,omitempty"`
	ToolCalls    []ToolCallRecord `json:"tool_calls,omitempty"`
}
