package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// ErrStreamClosed indicates the stream has already been closed.
var ErrStreamClosed = errors.New("stream closed")

// StreamPartType enumerates stream part types. Drivers emit the raw block
// events; the orchestrator adds the logical tool parts.
type StreamPartType string

const (
	PartStreamStart     StreamPartType = "stream-start"
	PartTextStart       StreamPartType = "text-start"
	PartTextDelta       StreamPartType = "text-delta"
	PartTextEnd         StreamPartType = "text-end"
	PartReasoningStart  StreamPartType = "reasoning-start"
	PartReasoningDelta  StreamPartType = "reasoning-delta"
	PartReasoningEnd    StreamPartType = "reasoning-end"
	PartToolInputStart  StreamPartType = "tool-input-start"
	PartToolInputDelta  StreamPartType = "tool-input-delta"
	PartToolInputEnd    StreamPartType = "tool-input-end"
	PartToolCallType    StreamPartType = "tool-call"
	PartToolResultType  StreamPartType = "tool-result"
	PartToolErrorType   StreamPartType = "tool-error"
	PartApprovalReqType StreamPartType = "tool-approval-request"
	PartSourceType      StreamPartType = "source"
	PartFinish          StreamPartType = "finish"
	PartError           StreamPartType = "error"
	PartRaw             StreamPartType = "raw"
)

// StreamPart models a single part within a generation stream.
type StreamPart struct {
	Type StreamPartType `json:"type"`

	// Block events: id of the text/reasoning/tool-input block, plus delta.
	ID    string `json:"id,omitempty"`
	Delta string `json:"delta,omitempty"`

	// tool-input-start carries the tool name alongside the block id.
	ToolName string `json:"tool_name,omitempty"`

	ToolCall        *ToolCall            `json:"tool_call,omitempty"`
	ToolResult      *ToolResult          `json:"tool_result,omitempty"`
	ApprovalRequest *ToolApprovalRequest `json:"approval_request,omitempty"`
	Source          *Source              `json:"source,omitempty"`

	Warnings         []Warning         `json:"warnings,omitempty"`
	Usage            Usage             `json:"usage,omitempty"`
	FinishReason     FinishReason      `json:"finish_reason,omitempty"`
	ProviderMetadata map[string]any    `json:"provider_metadata,omitempty"`
	Response         *ResponseMetadata `json:"response,omitempty"`

	Raw json.RawMessage `json:"raw,omitempty"`
	Err error           `json:"-"`
}

// StreamMeta captures final aggregates observed on finish parts.
type StreamMeta struct {
	Usage        Usage
	FinishReason FinishReason
	Warnings     []Warning
}

// Stream is a buffered sequence of StreamParts produced by a driver or the
// orchestrator. Producers call Push/Fail/Close; the consumer ranges Events.
type Stream struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	events chan StreamPart
	err    error
	closed bool
	meta   StreamMeta
}

// NewStream constructs a Stream with the provided buffer size.
func NewStream(ctx context.Context, buffer int) *Stream {
	if buffer <= 0 {
		buffer = 16
	}
	c, cancel := context.WithCancel(ctx)
	return &Stream{
		ctx:    c,
		cancel: cancel,
		events: make(chan StreamPart, buffer),
	}
}

// Context returns the stream's lifecycle context.
func (s *Stream) Context() context.Context { return s.ctx }

// Push appends a part to the stream. Safe for concurrent use; parts pushed
// after Close are dropped.
func (s *Stream) Push(part StreamPart) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return
	}

	switch part.Type {
	case PartFinish:
		s.mu.Lock()
		s.meta.Usage = part.Usage
		s.meta.FinishReason = part.FinishReason
		s.mu.Unlock()
	case PartStreamStart:
		s.mu.Lock()
		s.meta.Warnings = append(s.meta.Warnings, part.Warnings...)
		s.mu.Unlock()
	}

	select {
	case s.events <- part:
	case <-s.ctx.Done():
	}
}

// Close closes the stream channel and cancels the stream context.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.closed = true
	close(s.events)
	s.cancel()
	return nil
}

// Events returns a read-only channel of stream parts.
func (s *Stream) Events() <-chan StreamPart {
	return s.events
}

// Err returns the terminal error, if any.
func (s *Stream) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Meta returns metadata accumulated from stream parts so far.
func (s *Stream) Meta() StreamMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// Fail records err, emits an error part, and closes the stream.
func (s *Stream) Fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	alreadyClosed := s.closed
	s.mu.Unlock()

	if err != nil && !alreadyClosed {
		s.Push(StreamPart{Type: PartError, Err: err})
	}
	if !alreadyClosed {
		_ = s.Close()
	}
}
