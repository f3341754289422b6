package agent

import (
	"context"
	"testing"

	"github.com/harmonia-ai/loom/core"
	"github.com/harmonia-ai/loom/internal/testutil"
	"github.com/harmonia-ai/loom/storage"
	"github.com/harmonia-ai/loom/tools"
)

func TestNewRequiresModel(t *testing.T) {
	_, err := New(Options{})
	if !core.IsInvalidArgument(err) {
		t.Fatalf("expected invalid_argument, got %v", err)
	}
}

func TestGeneratePrependsSystemPrompt(t *testing.T) {
	model := testutil.NewMockModel()
	a, err := New(Options{
		Model:        model,
		SystemPrompt: "You are a pirate.",
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := a.Generate(context.Background(), "ahoy"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	prompt := model.GenerateCalls[0].Prompt
	if len(prompt) != 2 || prompt[0].Role != core.System {
		t.Fatalf("system prompt not prepended: %+v", prompt)
	}
	if prompt[0].Parts[0].(core.Text).Text != "You are a pirate." {
		t.Fatalf("unexpected system text: %+v", prompt[0])
	}
}

func TestGenerateRejectsEmptyInput(t *testing.T) {
	a, err := New(Options{Model: testutil.NewMockModel()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = a.Generate(context.Background(), "   ")
	if !core.IsInvalidPrompt(err) {
		t.Fatalf("expected invalid_prompt, got %v", err)
	}
}

func TestGenerateWithTools(t *testing.T) {
	echo := tools.New[struct {
		Text string `json:"text"`
	}, string]("echo", "Echo the input",
		func(ctx context.Context, in struct {
			Text string `json:"text"`
		}, meta tools.Meta) (string, error) {
			return in.Text, nil
		})
	set, err := tools.NewToolSet(echo)
	if err != nil {
		t.Fatalf("toolset: %v", err)
	}

	model := testutil.NewMockModel()
	model.Responses = []*core.GenerateResponse{
		{
			Content:      []core.Part{core.ToolCall{ID: "c1", Name: "echo", Input: map[string]any{"text": "hi"}}},
			FinishReason: core.FinishToolCalls,
		},
		{
			Content:      []core.Part{core.Text{Text: "done"}},
			FinishReason: core.FinishStop,
		},
	}
	a, err := New(Options{Model: model, Tools: set})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := a.Generate(context.Background(), "echo hi")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Steps) != 2 || result.Steps[0].ToolResults[0].Output.Text != "hi" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSessionRequiresStore(t *testing.T) {
	a, err := New(Options{Model: testutil.NewMockModel()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = a.Generate(context.Background(), "hi", WithSession("ses_1"))
	if !core.IsInvalidArgument(err) {
		t.Fatalf("expected invalid_argument, got %v", err)
	}
}

func TestSessionKeepsHistoryAcrossCalls(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	model := testutil.NewMockModel()
	a, err := New(Options{
		Model:        model,
		SystemPrompt: "Be brief.",
		Store:        store,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	sessionID := store.NewSessionID()
	if _, err := a.Generate(ctx, "first", WithSession(sessionID)); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := a.Generate(ctx, "second", WithSession(sessionID)); err != nil {
		t.Fatalf("second call: %v", err)
	}

	// Second call sees first turn's user + assistant history, and the system
	// prompt appears exactly once per request, never in stored history.
	prompt := model.GenerateCalls[1].Prompt
	systems := 0
	for _, msg := range prompt {
		if msg.Role == core.System {
			systems++
		}
	}
	if systems != 1 {
		t.Fatalf("expected one system message, got %d in %+v", systems, prompt)
	}
	if len(prompt) != 4 {
		t.Fatalf("expected history + system + new turn (4 messages), got %d", len(prompt))
	}
}

func TestWithSettingsOverrides(t *testing.T) {
	model := testutil.NewMockModel()
	a, err := New(Options{
		Model:    model,
		Settings: core.CallSettings{Temperature: 0.2},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := a.Generate(context.Background(), "hi", WithSettings(core.CallSettings{Temperature: 0.8})); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if model.GenerateCalls[0].Temperature != 0.8 {
		t.Fatalf("override lost: %v", model.GenerateCalls[0].Temperature)
	}
}

func TestStreamDelegates(t *testing.T) {
	model := testutil.NewMockModel()
	model.Scripts = [][]core.StreamPart{
		testutil.TextScript("b1", []string{"hi ", "there"}, core.Usage{}),
	}
	a, err := New(Options{Model: model})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res, err := a.Stream(context.Background(), "hello")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	for range res.Parts() {
	}
	full, err := res.FullText()
	if err != nil {
		t.Fatalf("full text: %v", err)
	}
	if full != "hi there" {
		t.Fatalf("full text = %q", full)
	}
}
