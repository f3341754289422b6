package runner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/harmonia-ai/loom/core"
	"github.com/harmonia-ai/loom/internal/testutil"
	"github.com/harmonia-ai/loom/storage"
	"github.com/harmonia-ai/loom/tools"
)

type weatherInput struct {
	City string `json:"city"`
}

func weatherToolSet(t *testing.T) *tools.ToolSet {
	t.Helper()
	tool := tools.New[weatherInput, string]("get_weather", "Look up the weather", func(ctx context.Context, in weatherInput, meta tools.Meta) (string, error) {
		return "sunny, 20C", nil
	})
	set, err := tools.NewToolSet(tool)
	if err != nil {
		t.Fatalf("toolset: %v", err)
	}
	return set
}

func TestGenerateSingleTurnText(t *testing.T) {
	model := testutil.NewMockModel()
	model.Responses = []*core.GenerateResponse{{
		Content:      []core.Part{core.Text{Text: "4"}},
		FinishReason: core.FinishStop,
		Usage:        core.Usage{InputTokens: 5, OutputTokens: 1, TotalTokens: 6},
	}}

	result, err := New().Generate(context.Background(), Request{
		Model:    model,
		Messages: core.TextPrompt("What is 2+2?"),
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Text != "4" {
		t.Fatalf("unexpected text: %q", result.Text)
	}
	if result.FinishReason != core.FinishStop || len(result.Steps) != 1 {
		t.Fatalf("unexpected result: finish=%s steps=%d", result.FinishReason, len(result.Steps))
	}
	if result.Usage.TotalTokens != 6 {
		t.Fatalf("unexpected usage: %+v", result.Usage)
	}
}

func TestGenerateToolRoundTrip(t *testing.T) {
	model := testutil.NewMockModel()
	model.Responses = []*core.GenerateResponse{
		{
			Content: []core.Part{core.ToolCall{
				ID:    "c1",
				Name:  "get_weather",
				Input: map[string]any{"city": "Paris"},
			}},
			FinishReason: core.FinishToolCalls,
			Usage:        core.Usage{TotalTokens: 10},
		},
		{
			Content:      []core.Part{core.Text{Text: "It is sunny in Paris."}},
			FinishReason: core.FinishStop,
			Usage:        core.Usage{TotalTokens: 8},
		},
	}

	result, err := New().Generate(context.Background(), Request{
		Model:    model,
		Messages: core.TextPrompt("Weather in Paris?"),
		Tools:    weatherToolSet(t),
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected two steps, got %d", len(result.Steps))
	}
	first := result.Steps[0]
	if len(first.ToolCalls) != 1 || len(first.ToolResults) != 1 {
		t.Fatalf("unexpected first step: %+v", first)
	}
	if first.ToolResults[0].Output.Text != "sunny, 20C" {
		t.Fatalf("unexpected tool result: %+v", first.ToolResults[0].Output)
	}
	if !strings.Contains(result.Text, "Paris") {
		t.Fatalf("final text missing city: %q", result.Text)
	}
	if result.Usage.TotalTokens != 18 {
		t.Fatalf("usage must sum across steps, got %+v", result.Usage)
	}

	// The second driver call must carry the tool result back to the model.
	second := model.GenerateCalls[1]
	found := false
	for _, msg := range second.Prompt {
		for _, part := range msg.Parts {
			if tr, ok := part.(core.ToolResult); ok && tr.ID == "c1" {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("tool result not injected into step 2 prompt")
	}
}

func TestGenerateNoSuchTool(t *testing.T) {
	model := testutil.NewMockModel()
	model.Responses = []*core.GenerateResponse{{
		Content:      []core.Part{core.ToolCall{ID: "c1", Name: "launch_rocket", Input: map[string]any{}}},
		FinishReason: core.FinishToolCalls,
	}}
	_, err := New().Generate(context.Background(), Request{
		Model:    model,
		Messages: core.TextPrompt("go"),
		Tools:    weatherToolSet(t),
	})
	if !core.IsNoSuchTool(err) {
		t.Fatalf("expected no_such_tool, got %v", err)
	}
}

func TestGenerateRequiredChoiceWithoutCalls(t *testing.T) {
	model := testutil.NewMockModel()
	model.Responses = []*core.GenerateResponse{{
		Content:      []core.Part{core.Text{Text: "no tools needed"}},
		FinishReason: core.FinishStop,
	}}
	_, err := New().Generate(context.Background(), Request{
		Model:      model,
		Messages:   core.TextPrompt("go"),
		Tools:      weatherToolSet(t),
		ToolChoice: core.ToolChoice{Mode: core.ToolChoiceRequired},
	})
	if !core.IsModelError(err) {
		t.Fatalf("expected model_error, got %v", err)
	}
}

func TestGenerateApprovalGate(t *testing.T) {
	deleteTool := tools.New[struct {
		Path string `json:"path"`
	}, string]("delete_file", "Delete a file",
		func(ctx context.Context, in struct {
			Path string `json:"path"`
		}, meta tools.Meta) (string, error) {
			return "deleted " + in.Path, nil
		},
		tools.WithApproval[struct {
			Path string `json:"path"`
		}, string](),
	)
	set, err := tools.NewToolSet(deleteTool)
	if err != nil {
		t.Fatalf("toolset: %v", err)
	}

	model := testutil.NewMockModel()
	model.Responses = []*core.GenerateResponse{{
		Content:      []core.Part{core.ToolCall{ID: "c1", Name: "delete_file", Input: map[string]any{"path": "/tmp/x"}}},
		FinishReason: core.FinishToolCalls,
	}}

	result, err := New().Generate(context.Background(), Request{
		Model:    model,
		Messages: core.TextPrompt("delete /tmp/x"),
		Tools:    set,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.PendingApprovals) != 1 || result.PendingApprovals[0].ToolCallID != "c1" {
		t.Fatalf("expected pending approval, got %+v", result)
	}
	if result.StopReason.Type != core.StopTypePendingTools {
		t.Fatalf("unexpected stop reason: %+v", result.StopReason)
	}
	if len(result.Steps[0].ToolResults) != 0 {
		t.Fatalf("gated tool must not run, got %+v", result.Steps[0].ToolResults)
	}

	// Resume with the caller's approval in the prompt.
	approvalID := result.PendingApprovals[0].ApprovalID
	resumed := append(result.Messages, core.UserMessage(core.ToolApprovalResponse{ApprovalID: approvalID, Approved: true}))

	model2 := testutil.NewMockModel()
	model2.Responses = []*core.GenerateResponse{{
		Content:      []core.Part{core.Text{Text: "File removed."}},
		FinishReason: core.FinishStop,
	}}
	final, err := New().Generate(context.Background(), Request{
		Model:    model2,
		Messages: resumed,
		Tools:    set,
	})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if final.Text != "File removed." {
		t.Fatalf("unexpected final text: %q", final.Text)
	}
	// The resumed run executes the approved call before calling the model.
	prompt := model2.GenerateCalls[0].Prompt
	sawResult := false
	for _, msg := range prompt {
		for _, part := range msg.Parts {
			if tr, ok := part.(core.ToolResult); ok && tr.ID == "c1" {
				sawResult = true
				if tr.Output.Text != "deleted /tmp/x" {
					t.Fatalf("unexpected resumed result: %+v", tr.Output)
				}
			}
		}
	}
	if !sawResult {
		t.Fatalf("approved call was not executed on resume")
	}
}

func TestGenerateDeniedApprovalRecordsError(t *testing.T) {
	deleteTool := tools.New[struct {
		Path string `json:"path"`
	}, string]("delete_file", "",
		func(ctx context.Context, in struct {
			Path string `json:"path"`
		}, meta tools.Meta) (string, error) {
			t.Fatalf("denied tool must not execute")
			return "", nil
		},
		tools.WithApproval[struct {
			Path string `json:"path"`
		}, string](),
	)
	set, _ := tools.NewToolSet(deleteTool)

	prompt := []core.Message{
		core.UserMessage(core.TextPart("delete /etc")),
		{Role: core.Assistant, Parts: []core.Part{
			core.ToolCall{ID: "c1", Name: "delete_file", Input: map[string]any{"path": "/etc"}},
			core.ToolApprovalRequest{ApprovalID: "a1", ToolCallID: "c1", ToolName: "delete_file"},
		}},
		core.UserMessage(core.ToolApprovalResponse{ApprovalID: "a1", Approved: false, Reason: "too dangerous"}),
	}
	model := testutil.NewMockModel()
	model.Responses = []*core.GenerateResponse{{
		Content:      []core.Part{core.Text{Text: "Understood."}},
		FinishReason: core.FinishStop,
	}}
	result, err := New().Generate(context.Background(), Request{Model: model, Messages: prompt, Tools: set})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sawDenied := false
	for _, msg := range model.GenerateCalls[0].Prompt {
		for _, part := range msg.Parts {
			if tr, ok := part.(core.ToolResult); ok && tr.ID == "c1" {
				sawDenied = true
				if !tr.Output.IsError() || !strings.Contains(tr.Output.Text, "too dangerous") {
					t.Fatalf("expected denial error result, got %+v", tr.Output)
				}
			}
		}
	}
	if !sawDenied {
		t.Fatalf("denied call missing error result in prompt")
	}
	if result.Text != "Understood." {
		t.Fatalf("unexpected text: %q", result.Text)
	}
}

func TestGeneratePersistsHistory(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	sessionID := store.NewSessionID()

	model := testutil.NewMockModel()
	model.Responses = []*core.GenerateResponse{{
		Content:      []core.Part{core.Text{Text: "hello there"}},
		FinishReason: core.FinishStop,
	}}
	_, err := New().Generate(ctx, Request{
		Model:     model,
		Messages:  core.TextPrompt("hi"),
		Store:     store,
		SessionID: sessionID,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	ids, err := store.ListMessages(ctx, sessionID, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected user + assistant messages, got %d", len(ids))
	}
	_, parts, err := store.GetMessage(ctx, sessionID, ids[1])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if parts[0].Content.(core.Text).Text != "hello there" {
		t.Fatalf("unexpected persisted assistant part: %+v", parts[0])
	}

	// A second call on the same session sees the stored history.
	model2 := testutil.NewMockModel()
	model2.Responses = model.Responses
	_, err = New().Generate(ctx, Request{
		Model:     model2,
		Messages:  core.TextPrompt("and again"),
		Store:     store,
		SessionID: sessionID,
	})
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if len(model2.GenerateCalls[0].Prompt) != 3 {
		t.Fatalf("expected history + new message, got %d messages", len(model2.GenerateCalls[0].Prompt))
	}
}

func TestGenerateToolRoundTripPersistsResults(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	sessionID := store.NewSessionID()

	model := testutil.NewMockModel()
	model.Responses = []*core.GenerateResponse{
		{
			Content:      []core.Part{core.ToolCall{ID: "c1", Name: "get_weather", Input: map[string]any{"city": "Paris"}}},
			FinishReason: core.FinishToolCalls,
		},
		{
			Content:      []core.Part{core.Text{Text: "It is sunny in Paris."}},
			FinishReason: core.FinishStop,
		},
	}
	_, err := New().Generate(ctx, Request{
		Model:     model,
		Messages:  core.TextPrompt("Weather in Paris?"),
		Tools:     weatherToolSet(t),
		Store:     store,
		SessionID: sessionID,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Stored history must keep the tool call paired with its result.
	history, err := storage.LoadHistory(ctx, store, sessionID, 0)
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	found := false
	for _, msg := range history {
		for _, part := range msg.Parts {
			if tr, ok := part.(core.ToolResult); ok && tr.ID == "c1" {
				if msg.Role != core.Tool {
					t.Fatalf("tool result stored with role %s", msg.Role)
				}
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("persisted history has no tool result for call c1: %+v", history)
	}
	if err := core.ValidatePrompt(history); err != nil {
		t.Fatalf("stored history does not validate: %v", err)
	}

	// A follow-up on the same session reloads that history cleanly.
	model2 := testutil.NewMockModel()
	model2.Responses = []*core.GenerateResponse{{
		Content:      []core.Part{core.Text{Text: "Take sunglasses."}},
		FinishReason: core.FinishStop,
	}}
	_, err = New().Generate(ctx, Request{
		Model:     model2,
		Messages:  core.TextPrompt("What should I pack?"),
		Store:     store,
		SessionID: sessionID,
	})
	if err != nil {
		t.Fatalf("second generate on session: %v", err)
	}
}

type brokenListStore struct {
	*storage.MemoryStore
}

func (s *brokenListStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]string, error) {
	return nil, errors.New("backend unavailable")
}

func TestGenerateHistoryReadFailureWarns(t *testing.T) {
	model := testutil.NewMockModel()
	model.Responses = []*core.GenerateResponse{{
		Content:      []core.Part{core.Text{Text: "hello"}},
		FinishReason: core.FinishStop,
	}}

	result, err := New().Generate(context.Background(), Request{
		Model:     model,
		Messages:  core.TextPrompt("hi"),
		Store:     &brokenListStore{storage.NewMemoryStore()},
		SessionID: "ses_broken",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w.Message, "failed to load session history") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a history read warning, got %+v", result.Warnings)
	}

	// A session that does not exist yet is not a read failure.
	model2 := testutil.NewMockModel()
	model2.Responses = model.Responses
	result, err = New().Generate(context.Background(), Request{
		Model:     model2,
		Messages:  core.TextPrompt("hi"),
		Store:     storage.NewMemoryStore(),
		SessionID: "ses_missing",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("missing session must not warn: %+v", result.Warnings)
	}
}

func TestGenerateStopWhenMaxSteps(t *testing.T) {
	model := testutil.NewMockModel()
	model.Responses = []*core.GenerateResponse{{
		Content:      []core.Part{core.ToolCall{ID: "c1", Name: "get_weather", Input: map[string]any{"city": "Paris"}}},
		FinishReason: core.FinishToolCalls,
	}}

	result, err := New().Generate(context.Background(), Request{
		Model:    model,
		Messages: core.TextPrompt("loop forever"),
		Tools:    weatherToolSet(t),
		StopWhen: core.MaxSteps(2),
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected exactly two steps, got %d", len(result.Steps))
	}
	if result.StopReason.Type != core.StopTypeMaxSteps {
		t.Fatalf("unexpected stop reason: %+v", result.StopReason)
	}
}

func TestGenerateRetriesRetryableErrors(t *testing.T) {
	model := testutil.NewMockModel()
	attempts := 0
	model.OnGenerate = func(ctx context.Context, opts core.CallOptions) (*core.GenerateResponse, error) {
		attempts++
		if attempts < 3 {
			return nil, core.NewAPICallError(429, "https://api.mock", "rate limited", core.WithRetryable(true))
		}
		return &core.GenerateResponse{
			Content:      []core.Part{core.Text{Text: "ok"}},
			FinishReason: core.FinishStop,
		}, nil
	}
	runner := New(WithRetryPolicy(core.RetryPolicy{MaxAttempts: 3, BaseDelay: 1, MaxDelay: 1}))
	result, err := runner.Generate(context.Background(), Request{Model: model, Messages: core.TextPrompt("hi")})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if attempts != 3 || result.Text != "ok" {
		t.Fatalf("expected success on third attempt, got attempts=%d text=%q", attempts, result.Text)
	}
}

func TestGeneratePrepareStepRewritesSettings(t *testing.T) {
	model := testutil.NewMockModel()
	_, err := New().Generate(context.Background(), Request{
		Model:    model,
		Messages: core.TextPrompt("hi"),
		Settings: core.CallSettings{Temperature: 0.1},
		PrepareStep: func(ctx context.Context, plan *StepPlan) error {
			plan.Settings.Temperature = 0.9
			return nil
		},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if model.GenerateCalls[0].Temperature != 0.9 {
		t.Fatalf("prepare step override lost: %v", model.GenerateCalls[0].Temperature)
	}
}
