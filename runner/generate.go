package runner

import (
	"context"
	"time"

	"github.com/harmonia-ai/loom/core"
	"github.com/harmonia-ai/loom/obs"
	"github.com/harmonia-ai/loom/tools"
)

// Generate runs the non-streaming step loop to completion.
func (r *Runner) Generate(ctx context.Context, req Request) (*core.GenerateResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	ctx, recorder := obs.StartRequest(ctx, "loom.generate", requestAttrs(&req)...)

	result, err := r.generate(ctx, &req)
	if err != nil {
		recorder.End(err, obs.UsageTokens{})
		return nil, err
	}
	recorder.End(nil, usageTokens(result.Usage))
	if req.OnFinish != nil {
		req.OnFinish(result)
	}
	return result, nil
}

func (r *Runner) generate(ctx context.Context, req *Request) (*core.GenerateResult, error) {
	messages, warnings, err := r.loadPrompt(ctx, req)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, r.persistUserMessages(ctx, req)...)

	state := &core.RunState{Messages: messages}
	result := &core.GenerateResult{}

	resumeWarnings, err := r.resumeApprovals(ctx, req, state, nil)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, resumeWarnings...)

	for stepNum := 1; ; stepNum++ {
		plan := StepPlan{
			Number:     stepNum,
			Messages:   state.Messages,
			Settings:   req.Settings,
			Tools:      req.Tools,
			ToolChoice: req.ToolChoice,
		}
		if req.PrepareStep != nil {
			if err := req.PrepareStep(ctx, &plan); err != nil {
				return nil, core.WrapError(err, core.ErrInvalidArgument)
			}
		}

		specs, choice, err := tools.PrepareTools(plan.Tools, plan.ToolChoice)
		if err != nil {
			return nil, err
		}
		opts := core.CallOptions{
			Prompt:           plan.Messages,
			CallSettings:     plan.Settings,
			Tools:            specs,
			ToolChoice:       choice,
			Headers:          req.Headers,
			ProviderOptions:  req.ProviderOptions,
			IncludeRawChunks: req.IncludeRawChunks,
		}

		started := time.Now()
		var resp *core.GenerateResponse
		err = r.retry.Do(ctx, func(ctx context.Context) error {
			var callErr error
			resp, callErr = req.Model.Generate(ctx, opts)
			return callErr
		})
		if err != nil {
			return nil, core.WrapError(err, core.ErrAPICall)
		}

		parsed, err := parseContent(resp.Content, plan.Tools, req.Repair)
		if err != nil {
			return nil, err
		}
		if choice.Mode == core.ToolChoiceRequired && len(parsed.calls) == 0 {
			return nil, core.NewModelError("tool choice required but the model made no tool calls")
		}

		meta := tools.Meta{SessionID: req.SessionID, Step: stepNum, Messages: plan.Messages}
		partition, err := tools.CollectApprovals(ctx, localCalls(parsed.calls), state.Messages, plan.Tools, meta)
		if err != nil {
			return nil, err
		}

		assistantParts := append([]core.Part(nil), parsed.assistant...)
		for _, pending := range partition.Pending {
			assistantParts = append(assistantParts, pending)
		}
		assistantMsg := core.Message{Role: core.Assistant, Parts: assistantParts}
		state.Messages = append(state.Messages, assistantMsg)

		var toolResults []core.ToolResult
		for _, denied := range partition.Denied {
			toolResults = append(toolResults, tools.DeniedResult(denied))
		}
		toolResults = append(toolResults, r.executeCalls(ctx, req, partition.Approved, meta, nil)...)
		var toolMsg core.Message
		if len(toolResults) > 0 {
			resultParts := make([]core.Part, 0, len(toolResults))
			for _, tr := range toolResults {
				resultParts = append(resultParts, tr)
			}
			toolMsg = core.Message{Role: core.Tool, Parts: resultParts}
			state.Messages = append(state.Messages, toolMsg)
		}

		step := core.StepResult{
			Number:           stepNum,
			Content:          resp.Content,
			Text:             parsed.text.String(),
			Reasoning:        parsed.reasoning,
			Sources:          parsed.sources,
			ToolCalls:        parsed.calls,
			ToolResults:      toolResults,
			PendingApprovals: partition.Pending,
			Usage:            resp.Usage,
			FinishReason:     resp.FinishReason,
			Warnings:         resp.Warnings,
			ProviderMetadata: resp.ProviderMetadata,
			Response:         resp.Response,
			DurationMS:       time.Since(started).Milliseconds(),
		}
		state.Steps = append(state.Steps, step)
		state.Usage = state.Usage.Add(resp.Usage)

		warnings = append(warnings, resp.Warnings...)
		warnings = append(warnings, r.persistAssistantMessage(ctx, req, assistantMsg, step)...)
		warnings = append(warnings, r.persistToolMessage(ctx, req, toolMsg)...)

		if req.OnStepFinish != nil {
			req.OnStepFinish(step)
		}

		if len(partition.Pending) > 0 {
			result.PendingApprovals = partition.Pending
			result.StopReason = core.StopDetail{Type: core.StopTypePendingTools, Description: "tool calls await approval"}
			break
		}
		if resp.FinishReason != core.FinishToolCalls {
			result.StopReason = core.StopDetail{Type: core.StopTypeFinish, Description: string(resp.FinishReason)}
			break
		}
		if len(partition.Approved) == 0 && len(partition.Denied) == 0 {
			result.StopReason = core.StopDetail{Type: core.StopTypeNoMoreTools, Description: "no executable tool calls"}
			break
		}
		if req.StopWhen != nil {
			if stop, detail := req.StopWhen(state); stop {
				result.StopReason = detail
				break
			}
		}
	}

	finalize(result, state, warnings)
	return result, nil
}

// finalize folds accumulated step state into the result aggregates.
func finalize(result *core.GenerateResult, state *core.RunState, warnings []core.Warning) {
	text := ""
	for _, step := range state.Steps {
		text += step.Text
		result.Reasoning = append(result.Reasoning, step.Reasoning...)
		result.Sources = append(result.Sources, step.Sources...)
	}
	result.Text = text
	result.Steps = state.Steps
	result.Usage = state.Usage
	result.Warnings = warnings
	result.Messages = state.Messages
	if last := state.LastStep(); last != nil {
		result.FinishReason = last.FinishReason
		result.ProviderMetadata = last.ProviderMetadata
		result.Response = last.Response
	}
}
