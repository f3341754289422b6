package obs

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
)

func resetForTest() {
	manager = nil
	managerOnce = sync.Once{}
}

func TestInitWithoutExporter(t *testing.T) {
	resetForTest()
	shutdown, err := Init(context.Background(), Options{Exporter: ExporterNone})
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if shutdown == nil {
		t.Fatalf("expected shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
	resetForTest()
}

func TestWriterSinkReceivesCompletions(t *testing.T) {
	resetForTest()
	var buf bytes.Buffer
	opts := Options{Exporter: ExporterNone, Sinks: []Sink{NewWriterSink(&buf)}}
	shutdown, err := Init(context.Background(), opts)
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	LogCompletion(context.Background(), Completion{
		Provider: "mock",
		Model:    "mock-1",
		Output:   Message{Role: "assistant", Text: "hi"},
	})
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
	if !strings.Contains(buf.String(), `"model":"mock-1"`) {
		t.Fatalf("expected completion record, got %q", buf.String())
	}
	resetForTest()
}
