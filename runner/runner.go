// Package runner orchestrates multi-step tool-using generation against a
// language model: it prepares requests, executes tool calls, evaluates stop
// conditions, and optionally persists conversation history.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/harmonia-ai/loom/core"
	"github.com/harmonia-ai/loom/obs"
	"github.com/harmonia-ai/loom/storage"
	"github.com/harmonia-ai/loom/tools"
)

// Runner drives the generation step loop.
type Runner struct {
	maxParallel int
	toolTimeout time.Duration
	retry       core.RetryPolicy
	storeRetry  core.RetryPolicy
	bufferSize  int
}

// Option configures the runner.
type Option func(*Runner)

// WithMaxParallel bounds concurrent tool executions per step.
func WithMaxParallel(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxParallel = n
		}
	}
}

// WithToolTimeout sets the per-tool execution timeout.
func WithToolTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.toolTimeout = d
		}
	}
}

// WithRetryPolicy overrides the driver call retry policy.
func WithRetryPolicy(p core.RetryPolicy) Option {
	return func(r *Runner) { r.retry = p }
}

// WithStreamBuffer sets the per-consumer stream buffer bound.
func WithStreamBuffer(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.bufferSize = n
		}
	}
}

// New creates a runner with the documented defaults.
func New(opts ...Option) *Runner {
	r := &Runner{
		maxParallel: 8,
		toolTimeout: 60 * time.Second,
		retry:       core.DefaultRetryPolicy(),
		storeRetry:  core.RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second, Jitter: true},
		bufferSize:  256,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StepPlan is the per-step request state a PrepareStep hook may rewrite.
// Changes apply to the current step only.
type StepPlan struct {
	Number     int
	Messages   []core.Message
	Settings   core.CallSettings
	Tools      *tools.ToolSet
	ToolChoice core.ToolChoice
}

// PrepareStepFunc rewrites the plan before a step's driver call.
type PrepareStepFunc func(ctx context.Context, plan *StepPlan) error

// Request describes one generation.
type Request struct {
	Model    core.LanguageModel
	Messages []core.Message
	Settings core.CallSettings

	Tools      *tools.ToolSet
	ToolChoice core.ToolChoice

	Headers          map[string]string
	ProviderOptions  map[string]any
	IncludeRawChunks bool

	StopWhen     core.StopCondition
	PrepareStep  PrepareStepFunc
	OnStepFinish func(core.StepResult)
	OnFinish     func(*core.GenerateResult)

	Store          storage.Store
	SessionID      string
	DisableHistory bool

	// SerialTools forces one tool execution at a time for this request.
	SerialTools bool
	Repair      tools.RepairFunc
}

func (req *Request) validate() error {
	if req.Model == nil {
		return core.NewInvalidArgument("model", "", "a language model is required")
	}
	if len(req.Messages) == 0 {
		return core.NewInvalidPrompt("prompt has no messages")
	}
	if req.Store == nil && req.SessionID != "" {
		return core.NewInvalidArgument("session_id", req.SessionID, "a session id requires a store")
	}
	return nil
}

// loadPrompt builds the working message list: stored history, then the
// request messages. A backend read failure degrades to a warning rather
// than dropping the generation.
func (r *Runner) loadPrompt(ctx context.Context, req *Request) ([]core.Message, []core.Warning, error) {
	messages := append([]core.Message(nil), req.Messages...)
	var warnings []core.Warning
	if req.Store != nil && req.SessionID != "" && !req.DisableHistory {
		history, err := storage.LoadHistory(ctx, req.Store, req.SessionID, 0)
		switch {
		case err == nil:
			messages = append(history, messages...)
		case errors.Is(err, storage.ErrNotFound):
			// A missing session is created on first persist.
		default:
			warnings = append(warnings, core.Warning{
				Kind:    core.WarningOther,
				Message: fmt.Sprintf("failed to load session history: %v", err),
			})
		}
	}
	if err := core.ValidatePrompt(messages); err != nil {
		return nil, nil, err
	}
	return messages, warnings, nil
}

// parsedStep is the typed view of one driver response.
type parsedStep struct {
	text      strings.Builder
	reasoning []core.Reasoning
	sources   []core.Source
	calls     []core.ToolCall
	assistant []core.Part
}

// parseContent splits driver content into typed outputs and resolves tool
// call inputs against the tool set.
func parseContent(content []core.Part, set *tools.ToolSet, repair tools.RepairFunc) (*parsedStep, error) {
	out := &parsedStep{}
	for _, part := range content {
		switch p := part.(type) {
		case core.Text:
			out.text.WriteString(p.Text)
			out.assistant = append(out.assistant, p)
		case core.Reasoning:
			out.reasoning = append(out.reasoning, p)
			out.assistant = append(out.assistant, p)
		case core.Source:
			out.sources = append(out.sources, p)
			out.assistant = append(out.assistant, p)
		case core.ToolCall:
			if p.ProviderExecuted {
				out.calls = append(out.calls, p)
				out.assistant = append(out.assistant, p)
				continue
			}
			h, ok := set.Get(p.Name)
			if !ok {
				names := []string(nil)
				if set != nil {
					names = set.Names()
				}
				return nil, core.NewNoSuchTool(p.Name, names)
			}
			if p.Input == nil {
				input, _, err := tools.ParseCall(p.RawInput, h, repair)
				if err != nil {
					return nil, err
				}
				p.Input = input
			}
			out.calls = append(out.calls, p)
			out.assistant = append(out.assistant, p)
		case core.ToolResult:
			// Provider-executed tool results arrive inline.
			out.assistant = append(out.assistant, p)
		default:
			out.assistant = append(out.assistant, part)
		}
	}
	return out, nil
}

// localCalls filters out provider-executed calls, which need no local round.
func localCalls(calls []core.ToolCall) []core.ToolCall {
	out := make([]core.ToolCall, 0, len(calls))
	for _, call := range calls {
		if !call.ProviderExecuted {
			out = append(out, call)
		}
	}
	return out
}

// executeCalls runs the approved calls, in parallel up to the configured
// bound, and returns results in call order.
func (r *Runner) executeCalls(ctx context.Context, req *Request, calls []core.ToolCall, meta tools.Meta, onPreliminary func(core.ToolResult)) []core.ToolResult {
	if len(calls) == 0 {
		return nil
	}
	parallel := r.maxParallel
	if req.SerialTools {
		parallel = 1
	}
	results := make([]core.ToolResult, len(calls))
	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup
	for i, call := range calls {
		h, _ := req.Tools.Get(call.Name)
		wg.Add(1)
		go func(idx int, h tools.Handle, call core.ToolCall) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			execCtx, cancel := context.WithTimeout(ctx, r.toolTimeout)
			defer cancel()
			results[idx] = tools.ExecuteCall(execCtx, h, call, meta, onPreliminary)
		}(i, h, call)
	}
	wg.Wait()
	return results
}

// resumeApprovals executes tool calls left open by a prior generation that
// ended pending approval, once the prompt carries the caller's decisions.
// Results append to the working messages before the first driver call; calls
// still awaiting a decision stay open. The emit callback, when set, publishes
// each committed result to the stream.
func (r *Runner) resumeApprovals(ctx context.Context, req *Request, state *core.RunState, emit func(core.ToolResult)) ([]core.Warning, error) {
	open := []core.ToolCall{}
	answered := map[string]bool{}
	for _, msg := range state.Messages {
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case core.ToolCall:
				if !p.ProviderExecuted {
					open = append(open, p)
				}
			case core.ToolResult:
				answered[p.ID] = true
			}
		}
	}
	calls := open[:0]
	for _, call := range open {
		if !answered[call.ID] {
			calls = append(calls, call)
		}
	}
	if len(calls) == 0 {
		return nil, nil
	}

	meta := tools.Meta{SessionID: req.SessionID, Messages: state.Messages}
	partition, err := tools.CollectApprovals(ctx, calls, state.Messages, req.Tools, meta)
	if err != nil {
		return nil, err
	}
	var results []core.ToolResult
	for _, denied := range partition.Denied {
		results = append(results, tools.DeniedResult(denied))
	}
	results = append(results, r.executeCalls(ctx, req, partition.Approved, meta, nil)...)
	if len(results) == 0 {
		return nil, nil
	}
	parts := make([]core.Part, 0, len(results))
	for _, tr := range results {
		parts = append(parts, tr)
		if emit != nil {
			emit(tr)
		}
	}
	toolMsg := core.Message{Role: core.Tool, Parts: parts}
	state.Messages = append(state.Messages, toolMsg)
	return r.persistToolMessage(ctx, req, toolMsg), nil
}

// persistUserMessages writes the request's new messages before the first
// driver call, creating the session if needed.
func (r *Runner) persistUserMessages(ctx context.Context, req *Request) []core.Warning {
	if req.Store == nil || req.SessionID == "" {
		return nil
	}
	var warnings []core.Warning
	err := r.storeRetry.Do(ctx, func(ctx context.Context) error {
		if _, err := req.Store.GetSession(ctx, req.SessionID); err != nil {
			if err := req.Store.PutSession(ctx, storage.Session{ID: req.SessionID}); err != nil {
				return err
			}
		}
		for _, msg := range req.Messages {
			// System prompts are per-request configuration, not turns.
			if msg.Role == core.System {
				continue
			}
			parts, partIDs := storage.BuildParts(req.Store, msg.Parts)
			stored := storage.Message{
				ID:        req.Store.NewMessageID(),
				SessionID: req.SessionID,
				Role:      msg.Role,
				PartIDs:   partIDs,
			}
			if err := req.Store.PutUserMessage(ctx, stored, parts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		warnings = append(warnings, core.Warning{
			Kind:    core.WarningOther,
			Message: fmt.Sprintf("failed to persist user messages: %v", err),
		})
	}
	return warnings
}

// persistAssistantMessage writes one step's assistant output with metadata.
func (r *Runner) persistAssistantMessage(ctx context.Context, req *Request, msg core.Message, step core.StepResult) []core.Warning {
	if req.Store == nil || req.SessionID == "" {
		return nil
	}
	err := r.storeRetry.Do(ctx, func(ctx context.Context) error {
		parts, partIDs := storage.BuildParts(req.Store, msg.Parts)
		stored := storage.Message{
			ID:        req.Store.NewMessageID(),
			SessionID: req.SessionID,
			Role:      core.Assistant,
			PartIDs:   partIDs,
			Metadata: storage.MessageMetadata{
				ModelID:      req.Model.ModelID(),
				Provider:     req.Model.Provider(),
				Usage:        step.Usage,
				FinishReason: step.FinishReason,
			},
		}
		return req.Store.PutAssistantMessage(ctx, stored, parts)
	})
	if err != nil {
		return []core.Warning{{
			Kind:    core.WarningOther,
			Message: fmt.Sprintf("failed to persist assistant message: %v", err),
		}}
	}
	return nil
}

// persistToolMessage writes a step's tool results so stored history keeps
// every tool call paired with its result.
func (r *Runner) persistToolMessage(ctx context.Context, req *Request, msg core.Message) []core.Warning {
	if req.Store == nil || req.SessionID == "" || len(msg.Parts) == 0 {
		return nil
	}
	err := r.storeRetry.Do(ctx, func(ctx context.Context) error {
		parts, partIDs := storage.BuildParts(req.Store, msg.Parts)
		stored := storage.Message{
			ID:        req.Store.NewMessageID(),
			SessionID: req.SessionID,
			Role:      core.Tool,
			PartIDs:   partIDs,
		}
		return req.Store.PutUserMessage(ctx, stored, parts)
	})
	if err != nil {
		return []core.Warning{{
			Kind:    core.WarningOther,
			Message: fmt.Sprintf("failed to persist tool results: %v", err),
		}}
	}
	return nil
}

func requestAttrs(req *Request) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("ai.provider", req.Model.Provider()),
		attribute.String("ai.model", req.Model.ModelID()),
	}
}

func usageTokens(usage core.Usage) obs.UsageTokens {
	return obs.UsageTokens{
		InputTokens:     usage.InputTokens,
		OutputTokens:    usage.OutputTokens,
		TotalTokens:     usage.TotalTokens,
		ReasoningTokens: usage.ReasoningTokens,
		CachedTokens:    usage.CachedInputTokens,
	}
}
