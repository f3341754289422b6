package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/harmonia-ai/loom/core"
)

type weatherInput struct {
	City string `json:"city"`
}

type weatherOutput struct {
	Forecast string `json:"forecast"`
}

func weatherTool() *Tool[weatherInput, weatherOutput] {
	return New[weatherInput, weatherOutput]("get_weather", "Look up the weather", func(ctx context.Context, in weatherInput, meta Meta) (weatherOutput, error) {
		return weatherOutput{Forecast: "sunny in " + in.City}, nil
	})
}

func TestToolExecution(t *testing.T) {
	tool := weatherTool()
	result, err := tool.Execute(context.Background(), map[string]any{"city": "Paris"}, Meta{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	out := result.(weatherOutput)
	if out.Forecast != "sunny in Paris" {
		t.Fatalf("unexpected output: %s", out.Forecast)
	}
	if tool.InputSchema() == nil || tool.InputSchema().Properties["city"] == nil {
		t.Fatalf("expected derived input schema with city property")
	}
}

func TestExecuteCallShapesOutput(t *testing.T) {
	result := ExecuteCall(context.Background(), weatherTool(), core.ToolCall{
		ID:    "c1",
		Name:  "get_weather",
		Input: map[string]any{"city": "Paris"},
	}, Meta{}, nil)
	if result.Output.IsError() {
		t.Fatalf("unexpected error output: %+v", result.Output)
	}
	if result.Output.Kind != core.ToolOutputJSON {
		t.Fatalf("expected json output, got %s", result.Output.Kind)
	}
}

func TestExecuteCallCapturesExecutorError(t *testing.T) {
	failing := New[weatherInput, weatherOutput]("get_weather", "", func(ctx context.Context, in weatherInput, meta Meta) (weatherOutput, error) {
		return weatherOutput{}, errors.New("upstream unreachable")
	})
	result := ExecuteCall(context.Background(), failing, core.ToolCall{ID: "c1", Name: "get_weather", Input: map[string]any{"city": "Paris"}}, Meta{}, nil)
	if !result.Output.IsError() {
		t.Fatalf("expected error output")
	}
	if result.Output.Text != "upstream unreachable" {
		t.Fatalf("unexpected error text: %s", result.Output.Text)
	}
}

func TestStreamingExecutorEmitsPreliminary(t *testing.T) {
	streaming := New[weatherInput, weatherOutput]("get_weather", "",
		nil,
		WithStreaming[weatherInput, weatherOutput](func(ctx context.Context, in weatherInput, meta Meta, emit func(weatherOutput)) (weatherOutput, error) {
			emit(weatherOutput{Forecast: "checking " + in.City})
			return weatherOutput{Forecast: "sunny in " + in.City}, nil
		}),
	)
	var partials []core.ToolResult
	result := ExecuteCall(context.Background(), streaming, core.ToolCall{ID: "c1", Name: "get_weather", Input: map[string]any{"city": "Paris"}}, Meta{}, func(r core.ToolResult) {
		partials = append(partials, r)
	})
	if len(partials) != 1 || !partials[0].Preliminary {
		t.Fatalf("expected one preliminary result, got %+v", partials)
	}
	if result.Preliminary {
		t.Fatalf("committed result must not be preliminary")
	}
}

func TestParseCallRepairsTrailingComma(t *testing.T) {
	input, repaired, err := ParseCall(`{"city":"Paris",}`, weatherTool(), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !repaired {
		t.Fatalf("expected repair flag")
	}
	if input["city"] != "Paris" {
		t.Fatalf("unexpected input: %v", input)
	}
}

func TestParseCallRejectsGarbage(t *testing.T) {
	_, _, err := ParseCall(`{"city":`, weatherTool(), nil)
	if !core.IsInvalidToolInput(err) {
		t.Fatalf("expected invalid_tool_input, got %v", err)
	}
}

func TestParseCallValidatesSchema(t *testing.T) {
	_, _, err := ParseCall(`{"city":42}`, weatherTool(), nil)
	if !core.IsInvalidToolInput(err) {
		t.Fatalf("expected invalid_tool_input for schema mismatch, got %v", err)
	}
}

func TestPrepareToolsDefaultsChoice(t *testing.T) {
	set, err := NewToolSet(weatherTool())
	if err != nil {
		t.Fatalf("toolset: %v", err)
	}
	specs, choice, err := PrepareTools(set, core.ToolChoice{})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if len(specs) != 1 || specs[0].Name != "get_weather" {
		t.Fatalf("unexpected specs: %+v", specs)
	}
	if choice.Mode != core.ToolChoiceAuto {
		t.Fatalf("expected auto choice, got %s", choice.Mode)
	}

	_, choice, err = PrepareTools(nil, core.ToolChoice{})
	if err != nil {
		t.Fatalf("prepare empty: %v", err)
	}
	if choice.Mode != "" {
		t.Fatalf("empty set must leave choice unset, got %s", choice.Mode)
	}
}

func TestPrepareToolsUnknownSpecificTool(t *testing.T) {
	set, _ := NewToolSet(weatherTool())
	_, _, err := PrepareTools(set, core.SpecificTool("delete_file"))
	if !core.IsNoSuchTool(err) {
		t.Fatalf("expected no_such_tool, got %v", err)
	}
}

func TestToolSetRejectsDuplicates(t *testing.T) {
	_, err := NewToolSet(weatherTool(), weatherTool())
	if err == nil {
		t.Fatalf("expected duplicate name error")
	}
}
