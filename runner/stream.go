package runner

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/harmonia-ai/loom/core"
	"github.com/harmonia-ai/loom/obs"
	"github.com/harmonia-ai/loom/tools"
)

// StreamResult is the caller's view of a streaming generation. The full part
// stream and the text-only stream are live channels; the aggregate accessors
// block until the generation finishes.
type StreamResult struct {
	cancel context.CancelFunc
	bcast  *broadcaster
	full   *Subscription

	textCh      chan string
	textDropped bool
	textSlow    bool
	textMu      sync.Mutex

	done  chan struct{}
	mu    sync.Mutex
	final *core.GenerateResult
	err   error
}

// Parts returns the full logical part stream.
func (s *StreamResult) Parts() <-chan core.StreamPart { return s.full.Events() }

// PartsErr reports why the full stream ended early, if it did.
func (s *StreamResult) PartsErr() error { return s.full.Err() }

// Subscribe adds another consumer receiving parts published after this call.
func (s *StreamResult) Subscribe() *Subscription { return s.bcast.subscribe() }

// Text returns the text-only delta stream, excluding reasoning and tool input.
// The channel closes on overflow as well as at end of stream; TextErr tells
// the two apart.
func (s *StreamResult) Text() <-chan string { return s.textCh }

// TextErr reports why the text stream closed. It returns ErrConsumerTooSlow
// when the text buffer overflowed and nil after a normal end of stream.
func (s *StreamResult) TextErr() error {
	s.textMu.Lock()
	defer s.textMu.Unlock()
	if s.textSlow {
		return ErrConsumerTooSlow
	}
	return nil
}

// Usage blocks until the stream completes and returns the summed usage.
func (s *StreamResult) Usage() (core.Usage, error) {
	final, err := s.Final()
	if err != nil {
		return core.Usage{}, err
	}
	return final.Usage, nil
}

// FinishReason blocks until the stream completes.
func (s *StreamResult) FinishReason() (core.FinishReason, error) {
	final, err := s.Final()
	if err != nil {
		return "", err
	}
	return final.FinishReason, nil
}

// FullText blocks until the stream completes and returns the concatenated
// text across all steps.
func (s *StreamResult) FullText() (string, error) {
	final, err := s.Final()
	if err != nil {
		return "", err
	}
	return final.Text, nil
}

// Final blocks until the stream completes and returns the aggregate result.
func (s *StreamResult) Final() (*core.GenerateResult, error) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final, s.err
}

// Close cancels the stream. Pending executions and driver calls observe the
// cancellation; aggregate accessors resolve with a canceled error.
func (s *StreamResult) Close() {
	s.cancel()
}

func (s *StreamResult) publish(part core.StreamPart) {
	s.bcast.publish(part)
	if part.Type == core.PartTextDelta {
		s.textMu.Lock()
		dropped := s.textDropped
		s.textMu.Unlock()
		if dropped {
			return
		}
		select {
		case s.textCh <- part.Delta:
		default:
			s.textMu.Lock()
			s.textDropped = true
			s.textSlow = true
			s.textMu.Unlock()
			close(s.textCh)
		}
	}
}

func (s *StreamResult) finish(final *core.GenerateResult, err error) {
	s.mu.Lock()
	s.final = final
	s.err = err
	s.mu.Unlock()
	s.bcast.close()
	s.textMu.Lock()
	if !s.textDropped {
		s.textDropped = true
		close(s.textCh)
	}
	s.textMu.Unlock()
	close(s.done)
	s.cancel()
}

// Stream starts the streaming step loop. Validation and history loading run
// synchronously so their errors surface immediately; the step loop runs in a
// background goroutine feeding the broadcaster.
func (r *Runner) Stream(ctx context.Context, req Request) (*StreamResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	messages, warnings, err := r.loadPrompt(ctx, &req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &StreamResult{
		cancel: cancel,
		bcast:  newBroadcaster(r.bufferSize),
		textCh: make(chan string, r.bufferSize),
		done:   make(chan struct{}),
	}
	s.full = s.bcast.subscribe()

	go r.streamLoop(ctx, &req, messages, warnings, s)
	return s, nil
}

// pendingExec tracks one spawned tool execution awaiting in-order injection.
type pendingExec struct {
	call core.ToolCall
	ch   chan core.ToolResult
}

// stepState is the reassembler's per-step accumulation.
type stepState struct {
	textBlocks      map[string]*strings.Builder
	reasoningBlocks map[string]*strings.Builder
	toolBlocks      map[string]*toolBlock

	assistant []core.Part
	reasoning []core.Reasoning
	sources   []core.Source
	calls     []core.ToolCall
	results   []core.ToolResult
	pending   []core.ToolApprovalRequest
	execs     []pendingExec

	usage        core.Usage
	finishReason core.FinishReason
	providerMeta map[string]any
	warnings     []core.Warning
	finished     bool
}

type toolBlock struct {
	name string
	raw  strings.Builder
}

func newStepState() *stepState {
	return &stepState{
		textBlocks:      map[string]*strings.Builder{},
		reasoningBlocks: map[string]*strings.Builder{},
		toolBlocks:      map[string]*toolBlock{},
	}
}

func (r *Runner) streamLoop(ctx context.Context, req *Request, messages []core.Message, warnings []core.Warning, s *StreamResult) {
	ctx, recorder := obs.StartRequest(ctx, "loom.stream", requestAttrs(req)...)

	warnings = append(warnings, r.persistUserMessages(ctx, req)...)
	state := &core.RunState{Messages: messages}
	result := &core.GenerateResult{}

	fail := func(err error) {
		s.publish(core.StreamPart{Type: core.PartError, Err: err})
		recorder.End(err, usageTokens(state.Usage))
		s.finish(nil, err)
	}

	resumeWarnings, err := r.resumeApprovals(ctx, req, state, func(tr core.ToolResult) {
		partType := core.PartToolResultType
		if tr.Output.IsError() {
			partType = core.PartToolErrorType
		}
		committed := tr
		s.publish(core.StreamPart{Type: partType, ToolResult: &committed})
	})
	if err != nil {
		fail(err)
		return
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
				fail(core.WrapError(err, core.ErrInvalidArgument))
				return
			}
		}
		specs, choice, err := tools.PrepareTools(plan.Tools, plan.ToolChoice)
		if err != nil {
			fail(err)
			return
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
		var resp *core.StreamResponse
		err = r.retry.Do(ctx, func(ctx context.Context) error {
			var callErr error
			resp, callErr = req.Model.Stream(ctx, opts)
			return callErr
		})
		if err != nil {
			fail(core.WrapError(err, core.ErrAPICall))
			return
		}

		step, err := r.consumeStep(ctx, req, plan, resp, state, s)
		if err != nil {
			fail(err)
			return
		}
		if choice.Mode == core.ToolChoiceRequired && len(step.calls) == 0 {
			fail(core.NewModelError("tool choice required but the model made no tool calls"))
			return
		}

		assistantParts := append([]core.Part(nil), step.assistant...)
		for _, pending := range step.pending {
			assistantParts = append(assistantParts, pending)
		}
		assistantMsg := core.Message{Role: core.Assistant, Parts: assistantParts}
		state.Messages = append(state.Messages, assistantMsg)
		var toolMsg core.Message
		if len(step.results) > 0 {
			resultParts := make([]core.Part, 0, len(step.results))
			for _, tr := range step.results {
				resultParts = append(resultParts, tr)
			}
			toolMsg = core.Message{Role: core.Tool, Parts: resultParts}
			state.Messages = append(state.Messages, toolMsg)
		}

		text := strings.Builder{}
		for _, part := range step.assistant {
			if t, ok := part.(core.Text); ok {
				text.WriteString(t.Text)
			}
		}
		stepResult := core.StepResult{
			Number:           stepNum,
			Content:          step.assistant,
			Text:             text.String(),
			Reasoning:        step.reasoning,
			Sources:          step.sources,
			ToolCalls:        step.calls,
			ToolResults:      step.results,
			PendingApprovals: step.pending,
			Usage:            step.usage,
			FinishReason:     step.finishReason,
			Warnings:         step.warnings,
			ProviderMetadata: step.providerMeta,
			DurationMS:       time.Since(started).Milliseconds(),
		}
		if resp.Response != nil {
			stepResult.Response = resp.Response
		}
		state.Steps = append(state.Steps, stepResult)
		state.Usage = state.Usage.Add(step.usage)
		warnings = append(warnings, step.warnings...)
		warnings = append(warnings, r.persistAssistantMessage(ctx, req, assistantMsg, stepResult)...)
		warnings = append(warnings, r.persistToolMessage(ctx, req, toolMsg)...)

		if req.OnStepFinish != nil {
			req.OnStepFinish(stepResult)
		}

		if len(step.pending) > 0 {
			result.PendingApprovals = step.pending
			result.StopReason = core.StopDetail{Type: core.StopTypePendingTools, Description: "tool calls await approval"}
			break
		}
		if step.finishReason != core.FinishToolCalls {
			result.StopReason = core.StopDetail{Type: core.StopTypeFinish, Description: string(step.finishReason)}
			break
		}
		if len(step.results) == 0 {
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
	recorder.End(nil, usageTokens(result.Usage))
	if req.OnFinish != nil {
		req.OnFinish(result)
	}
	s.finish(result, nil)
}

// consumeStep drains one driver stream, reassembling raw block events into
// logical parts and integrating tool execution.
func (r *Runner) consumeStep(ctx context.Context, req *Request, plan StepPlan, resp *core.StreamResponse, state *core.RunState, s *StreamResult) (*stepState, error) {
	step := newStepState()
	meta := tools.Meta{SessionID: req.SessionID, Step: plan.Number, Messages: plan.Messages}

	parallel := r.maxParallel
	if req.SerialTools {
		parallel = 1
	}
	sem := make(chan struct{}, parallel)

	onPreliminary := func(tr core.ToolResult) {
		s.publish(core.StreamPart{Type: core.PartToolResultType, ToolResult: &tr})
	}

	handleCall := func(call core.ToolCall) error {
		step.calls = append(step.calls, call)
		step.assistant = append(step.assistant, call)
		s.publish(core.StreamPart{Type: core.PartToolCallType, ToolCall: &call})
		if call.ProviderExecuted {
			return nil
		}

		partition, err := tools.CollectApprovals(ctx, []core.ToolCall{call}, state.Messages, plan.Tools, meta)
		if err != nil {
			return err
		}
		switch {
		case len(partition.Pending) > 0:
			pending := partition.Pending[0]
			step.pending = append(step.pending, pending)
			s.publish(core.StreamPart{Type: core.PartApprovalReqType, ApprovalRequest: &pending})
		case len(partition.Denied) > 0:
			denied := tools.DeniedResult(partition.Denied[0])
			step.results = append(step.results, denied)
			s.publish(core.StreamPart{Type: core.PartToolErrorType, ToolResult: &denied})
		default:
			exec := pendingExec{call: call, ch: make(chan core.ToolResult, 1)}
			step.execs = append(step.execs, exec)
			go func(call core.ToolCall, out chan<- core.ToolResult) {
				sem <- struct{}{}
				defer func() { <-sem }()
				h, _ := plan.Tools.Get(call.Name)
				execCtx, cancel := context.WithTimeout(ctx, r.toolTimeout)
				defer cancel()
				out <- tools.ExecuteCall(execCtx, h, call, meta, onPreliminary)
				close(out)
			}(call, exec.ch)
		}
		return nil
	}

	// Injects committed tool results in call order before finish.
	drainExecs := func() error {
		for _, exec := range step.execs {
			select {
			case <-ctx.Done():
				return core.NewCanceled(ctx.Err())
			case tr := <-exec.ch:
				step.results = append(step.results, tr)
				partType := core.PartToolResultType
				if tr.Output.IsError() {
					partType = core.PartToolErrorType
				}
				s.publish(core.StreamPart{Type: partType, ToolResult: &tr})
			}
		}
		step.execs = nil
		return nil
	}

	for {
		var part core.StreamPart
		var ok bool
		select {
		case <-ctx.Done():
			return nil, core.NewCanceled(ctx.Err())
		case part, ok = <-resp.Parts.Events():
		}
		if !ok {
			if err := resp.Parts.Err(); err != nil {
				return nil, core.WrapError(err, core.ErrAPICall)
			}
			if !step.finished {
				return nil, core.NewModelError("driver stream ended without a finish part")
			}
			return step, nil
		}

		switch part.Type {
		case core.PartStreamStart:
			step.warnings = append(step.warnings, part.Warnings...)
			s.publish(part)

		case core.PartTextStart:
			step.textBlocks[part.ID] = &strings.Builder{}
			s.publish(part)
		case core.PartTextDelta:
			if b, open := step.textBlocks[part.ID]; open {
				b.WriteString(part.Delta)
			}
			s.publish(part)
		case core.PartTextEnd:
			if b, open := step.textBlocks[part.ID]; open {
				step.assistant = append(step.assistant, core.Text{Text: b.String()})
				delete(step.textBlocks, part.ID)
			}
			s.publish(part)

		case core.PartReasoningStart:
			step.reasoningBlocks[part.ID] = &strings.Builder{}
			s.publish(part)
		case core.PartReasoningDelta:
			if b, open := step.reasoningBlocks[part.ID]; open {
				b.WriteString(part.Delta)
			}
			s.publish(part)
		case core.PartReasoningEnd:
			if b, open := step.reasoningBlocks[part.ID]; open {
				reasoning := core.Reasoning{Text: b.String()}
				step.reasoning = append(step.reasoning, reasoning)
				step.assistant = append(step.assistant, reasoning)
				delete(step.reasoningBlocks, part.ID)
			}
			s.publish(part)

		case core.PartToolInputStart:
			step.toolBlocks[part.ID] = &toolBlock{name: part.ToolName}
			s.publish(part)
		case core.PartToolInputDelta:
			if b, open := step.toolBlocks[part.ID]; open {
				b.raw.WriteString(part.Delta)
			}
			s.publish(part)
		case core.PartToolInputEnd:
			block, open := step.toolBlocks[part.ID]
			s.publish(part)
			if !open {
				continue
			}
			delete(step.toolBlocks, part.ID)
			h, found := plan.Tools.Get(block.name)
			if !found {
				return nil, core.NewNoSuchTool(block.name, plan.Tools.Names())
			}
			input, _, err := tools.ParseCall(block.raw.String(), h, req.Repair)
			if err != nil {
				return nil, err
			}
			call := core.ToolCall{ID: part.ID, Name: block.name, Input: input, RawInput: block.raw.String()}
			if err := handleCall(call); err != nil {
				return nil, err
			}

		case core.PartToolCallType:
			if part.ToolCall == nil {
				continue
			}
			call := *part.ToolCall
			if call.Input == nil && !call.ProviderExecuted {
				h, found := plan.Tools.Get(call.Name)
				if !found {
					return nil, core.NewNoSuchTool(call.Name, plan.Tools.Names())
				}
				input, _, err := tools.ParseCall(call.RawInput, h, req.Repair)
				if err != nil {
					return nil, err
				}
				call.Input = input
			}
			if err := handleCall(call); err != nil {
				return nil, err
			}

		case core.PartSourceType:
			if part.Source != nil {
				step.sources = append(step.sources, *part.Source)
				step.assistant = append(step.assistant, *part.Source)
			}
			s.publish(part)

		case core.PartFinish:
			if err := drainExecs(); err != nil {
				return nil, err
			}
			step.usage = part.Usage
			step.finishReason = part.FinishReason
			step.providerMeta = part.ProviderMetadata
			step.finished = true
			s.publish(part)

		case core.PartError:
			err := part.Err
			if err == nil {
				err = core.NewModelError("driver emitted an error part")
			}
			return nil, core.WrapError(err, core.ErrAPICall)

		case core.PartRaw:
			if req.IncludeRawChunks {
				s.publish(part)
			}

		default:
			s.publish(part)
		}
	}
}
