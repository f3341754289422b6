package core

import (
	"context"
	"errors"
	"testing"
)

func TestStreamPushAndClose(t *testing.T) {
	s := NewStream(context.Background(), 8)
	s.Push(StreamPart{Type: PartStreamStart, Warnings: []Warning{{Kind: WarningOther, Message: "w"}}})
	s.Push(StreamPart{Type: PartTextDelta, ID: "b1", Delta: "hi"})
	s.Push(StreamPart{Type: PartFinish, Usage: Usage{TotalTokens: 5}, FinishReason: FinishStop})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var parts []StreamPart
	for part := range s.Events() {
		parts = append(parts, part)
	}
	if len(parts) != 3 {
		t.Fatalf("part count = %d", len(parts))
	}
	if s.Err() != nil {
		t.Fatalf("unexpected error: %v", s.Err())
	}

	meta := s.Meta()
	if meta.Usage.TotalTokens != 5 || meta.FinishReason != FinishStop || len(meta.Warnings) != 1 {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestStreamCloseTwice(t *testing.T) {
	s := NewStream(context.Background(), 1)
	if err := s.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := s.Close(); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("second close = %v", err)
	}
}

func TestStreamPushAfterCloseDropped(t *testing.T) {
	s := NewStream(context.Background(), 4)
	_ = s.Close()
	s.Push(StreamPart{Type: PartTextDelta, Delta: "late"})
	for range s.Events() {
		t.Fatalf("closed stream must not deliver parts")
	}
}

func TestStreamFail(t *testing.T) {
	s := NewStream(context.Background(), 4)
	cause := NewAPICallError(500, "https://api.example.com", "boom")
	s.Fail(cause)

	var last StreamPart
	for part := range s.Events() {
		last = part
	}
	if last.Type != PartError || last.Err == nil {
		t.Fatalf("missing error part: %+v", last)
	}
	if !IsAPICallError(s.Err()) {
		t.Fatalf("terminal error = %v", s.Err())
	}

	// Subsequent failures do not overwrite the first.
	s.Fail(errors.New("second"))
	if !IsAPICallError(s.Err()) {
		t.Fatalf("first error overwritten: %v", s.Err())
	}
}
