// Package agent provides a reusable binding of a model, system prompt, tool
// set, and settings so call sites only supply the user turn.
package agent

import (
	"context"
	"strings"

	"github.com/harmonia-ai/loom/core"
	"github.com/harmonia-ai/loom/runner"
	"github.com/harmonia-ai/loom/storage"
	"github.com/harmonia-ai/loom/tools"
)

// Agent is an immutable generation configuration. Construct one with New and
// share it freely across goroutines.
type Agent struct {
	opts Options
	run  *runner.Runner
}

// Options configures an Agent. Model is required; everything else defaults.
type Options struct {
	Name         string
	Model        core.LanguageModel
	SystemPrompt string
	Tools        *tools.ToolSet
	ToolChoice   core.ToolChoice
	Settings     core.CallSettings

	StopWhen     core.StopCondition
	PrepareStep  runner.PrepareStepFunc
	OnStepFinish func(core.StepResult)
	OnFinish     func(*core.GenerateResult)

	Store storage.Store

	RunnerOptions []runner.Option
}

// New validates the options and builds the agent.
func New(opts Options) (*Agent, error) {
	if opts.Model == nil {
		return nil, core.NewInvalidArgument("model", "", "an agent requires a language model")
	}
	if opts.Name != "" && strings.TrimSpace(opts.Name) == "" {
		return nil, core.NewInvalidArgument("name", opts.Name, "agent name cannot be blank")
	}
	return &Agent{
		opts: opts,
		run:  runner.New(opts.RunnerOptions...),
	}, nil
}

// Name returns the agent's configured name, if any.
func (a *Agent) Name() string { return a.opts.Name }

// CallOption adjusts a single agent invocation without mutating the agent.
type CallOption func(*callConfig)

type callConfig struct {
	sessionID string
	messages  []core.Message
	settings  *core.CallSettings
}

// WithSession persists this call's turns under the given session, loading its
// prior history first. Requires the agent to be configured with a store.
func WithSession(sessionID string) CallOption {
	return func(c *callConfig) { c.sessionID = sessionID }
}

// WithMessages replaces the single-text user turn with explicit messages.
func WithMessages(messages ...core.Message) CallOption {
	return func(c *callConfig) { c.messages = messages }
}

// WithSettings overrides the agent's call settings for this invocation.
func WithSettings(settings core.CallSettings) CallOption {
	return func(c *callConfig) { c.settings = &settings }
}

// Generate runs a full multi-step generation for the given user input.
func (a *Agent) Generate(ctx context.Context, input string, opts ...CallOption) (*core.GenerateResult, error) {
	req, err := a.request(input, opts...)
	if err != nil {
		return nil, err
	}
	return a.run.Generate(ctx, req)
}

// Stream runs a streaming generation for the given user input.
func (a *Agent) Stream(ctx context.Context, input string, opts ...CallOption) (*runner.StreamResult, error) {
	req, err := a.request(input, opts...)
	if err != nil {
		return nil, err
	}
	return a.run.Stream(ctx, req)
}

func (a *Agent) request(input string, opts ...CallOption) (runner.Request, error) {
	cfg := callConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	messages := cfg.messages
	if len(messages) == 0 {
		if strings.TrimSpace(input) == "" {
			return runner.Request{}, core.NewInvalidPrompt("agent call requires user input or explicit messages")
		}
		messages = []core.Message{core.UserMessage(core.TextPart(input))}
	}
	if a.opts.SystemPrompt != "" {
		messages = append([]core.Message{core.SystemMessage(a.opts.SystemPrompt)}, messages...)
	}
	if cfg.sessionID != "" && a.opts.Store == nil {
		return runner.Request{}, core.NewInvalidArgument("session_id", cfg.sessionID, "agent has no store configured")
	}

	settings := a.opts.Settings
	if cfg.settings != nil {
		settings = *cfg.settings
	}

	return runner.Request{
		Model:        a.opts.Model,
		Messages:     messages,
		Settings:     settings,
		Tools:        a.opts.Tools,
		ToolChoice:   a.opts.ToolChoice,
		StopWhen:     a.opts.StopWhen,
		PrepareStep:  a.opts.PrepareStep,
		OnStepFinish: a.opts.OnStepFinish,
		OnFinish:     a.opts.OnFinish,
		Store:        a.opts.Store,
		SessionID:    cfg.sessionID,
	}, nil
}
