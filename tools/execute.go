package tools

import (
	"context"

	"github.com/harmonia-ai/loom/core"
)

// ExecuteCall runs an approved tool call against its handle. Executor errors
// never fail the generation; they become error-kind results the model
// observes on the next step. Streaming executors forward partials through
// onPreliminary as preliminary results.
func ExecuteCall(ctx context.Context, h Handle, call core.ToolCall, meta Meta, onPreliminary func(core.ToolResult)) core.ToolResult {
	meta.CallID = call.ID
	result := core.ToolResult{ID: call.ID, Name: call.Name}

	shape := func(output any) core.ToolResultOutput {
		if shaper, ok := h.(OutputShaper); ok {
			return shaper.ToModelOutput(output)
		}
		return DefaultOutput(output)
	}

	if err := ctx.Err(); err != nil {
		result.Output = core.ErrorOutput(core.NewCanceled(err))
		return result
	}

	if streamer, ok := h.(StreamingExecutor); ok {
		emit := func(partial any) {
			if onPreliminary == nil {
				return
			}
			onPreliminary(core.ToolResult{
				ID:          call.ID,
				Name:        call.Name,
				Output:      shape(partial),
				Preliminary: true,
			})
		}
		final, err := streamer.ExecuteStream(ctx, call.Input, meta, emit)
		if err != nil {
			result.Output = core.ErrorOutput(err)
			return result
		}
		result.Output = shape(final)
		return result
	}

	executor, ok := h.(Executor)
	if !ok {
		result.Output = core.ErrorOutput(core.NewModelError("tool " + call.Name + " has no local executor"))
		return result
	}
	output, err := executor.Execute(ctx, call.Input, meta)
	if err != nil {
		result.Output = core.ErrorOutput(err)
		return result
	}
	result.Output = shape(output)
	return result
}

// DeniedResult builds the error-kind result recorded for a denied call so the
// pairing invariant holds without running the tool.
func DeniedResult(denied DeniedCall) core.ToolResult {
	reason := denied.Reason
	if reason == "" {
		reason = "tool call was denied by the caller"
	}
	return core.ToolResult{
		ID:     denied.Call.ID,
		Name:   denied.Call.Name,
		Output: core.ToolResultOutput{Kind: core.ToolOutputErrorText, Text: reason},
	}
}
