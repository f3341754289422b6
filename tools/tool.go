// Package tools defines tool handles offered to language models: typed
// function tools with derived schemas, dynamic tools with raw schemas, and
// provider-hosted tools, together with parsing, approval, and execution.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/harmonia-ai/loom/core"
	"github.com/harmonia-ai/loom/internal/jsonschema"
	"github.com/harmonia-ai/loom/schema"
)

// Variant distinguishes the tool kinds a ToolSet may hold.
type Variant string

const (
	VariantFunction        Variant = "function"
	VariantDynamic         Variant = "dynamic"
	VariantProviderDefined Variant = "provider-defined"
)

// Meta carries invocation context into tool executors.
type Meta struct {
	CallID    string
	SessionID string
	Step      int
	Messages  []core.Message
}

// Handle is the minimal surface every tool exposes.
type Handle interface {
	Name() string
	Description() string
	InputSchema() *schema.Schema
}

// Executor is implemented by tools with a local execute function.
type Executor interface {
	Execute(ctx context.Context, input map[string]any, meta Meta) (any, error)
}

// StreamingExecutor is implemented by tools that emit partial outputs. The
// emit callback receives each partial; the returned value is the committed
// result.
type StreamingExecutor interface {
	ExecuteStream(ctx context.Context, input map[string]any, meta Meta, emit func(any)) (any, error)
}

// ApprovalPolicy is implemented by tools whose execution is approval-gated.
type ApprovalPolicy interface {
	NeedsApproval(ctx context.Context, input map[string]any, meta Meta) (bool, error)
}

// OutputShaper is implemented by tools that control how their output is
// presented back to the model.
type OutputShaper interface {
	ToModelOutput(output any) core.ToolResultOutput
}

// Optioned is implemented by tools carrying provider options.
type Optioned interface {
	ProviderOptions() map[string]any
}

// Varianted is implemented by tools declaring a non-function variant.
type Varianted interface {
	Variant() Variant
}

// Func is the handler invoked when the model calls a typed tool.
type Func[I any, O any] func(ctx context.Context, input I, meta Meta) (O, error)

// StreamFunc is the handler for streaming typed tools. Each emit call
// produces a preliminary result; the returned value is committed.
type StreamFunc[I any, O any] func(ctx context.Context, input I, meta Meta, emit func(O)) (O, error)

// Tool is a typed tool definition with derived schemas.
type Tool[I any, O any] struct {
	name        string
	description string
	fn          Func[I, O]
	streamFn    StreamFunc[I, O]

	approvalAlways bool
	approvalFn     func(ctx context.Context, input I, meta Meta) (bool, error)
	shapeFn        func(output O) core.ToolResultOutput
	providerOpts   map[string]any

	once         sync.Once
	inputSchema  *schema.Schema
	outputSchema *schema.Schema
}

// Option configures a typed tool.
type Option[I any, O any] func(*Tool[I, O])

// WithApproval marks the tool as always requiring caller approval.
func WithApproval[I any, O any]() Option[I, O] {
	return func(t *Tool[I, O]) { t.approvalAlways = true }
}

// WithApprovalIf gates execution behind an input-dependent predicate.
func WithApprovalIf[I any, O any](fn func(ctx context.Context, input I, meta Meta) (bool, error)) Option[I, O] {
	return func(t *Tool[I, O]) { t.approvalFn = fn }
}

// WithStreaming installs a streaming handler used instead of the plain one.
func WithStreaming[I any, O any](fn StreamFunc[I, O]) Option[I, O] {
	return func(t *Tool[I, O]) { t.streamFn = fn }
}

// WithOutput installs a transformer shaping the output shown to the model.
func WithOutput[I any, O any](fn func(output O) core.ToolResultOutput) Option[I, O] {
	return func(t *Tool[I, O]) { t.shapeFn = fn }
}

// WithProviderOptions attaches opaque provider options to the tool spec.
func WithProviderOptions[I any, O any](opts map[string]any) Option[I, O] {
	return func(t *Tool[I, O]) { t.providerOpts = opts }
}

// New constructs a typed tool with schemas derived from I and O.
func New[I any, O any](name, description string, fn Func[I, O], opts ...Option[I, O]) *Tool[I, O] {
	t := &Tool[I, O]{name: name, description: description, fn: fn}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the tool name.
func (t *Tool[I, O]) Name() string { return t.name }

// Description returns the description.
func (t *Tool[I, O]) Description() string { return t.description }

// InputSchema returns the JSON schema for the input type.
func (t *Tool[I, O]) InputSchema() *schema.Schema {
	t.ensureSchemas()
	return t.inputSchema
}

// OutputSchema returns the JSON schema for the output type.
func (t *Tool[I, O]) OutputSchema() *schema.Schema {
	t.ensureSchemas()
	return t.outputSchema
}

// ProviderOptions returns opaque options forwarded to the driver.
func (t *Tool[I, O]) ProviderOptions() map[string]any { return t.providerOpts }

// Executable reports whether the tool has a local handler.
func (t *Tool[I, O]) Executable() bool { return t.fn != nil || t.streamFn != nil }

// NeedsApproval evaluates the tool's approval policy for the given input.
func (t *Tool[I, O]) NeedsApproval(ctx context.Context, input map[string]any, meta Meta) (bool, error) {
	if t.approvalAlways {
		return true, nil
	}
	if t.approvalFn == nil {
		return false, nil
	}
	var args I
	if err := mapToStruct(input, &args); err != nil {
		return false, err
	}
	return t.approvalFn(ctx, args, meta)
}

// Execute runs the underlying function using the provided map input.
func (t *Tool[I, O]) Execute(ctx context.Context, input map[string]any, meta Meta) (any, error) {
	var args I
	if err := mapToStruct(input, &args); err != nil {
		return nil, err
	}
	if t.fn == nil {
		if t.streamFn != nil {
			return t.streamFn(ctx, args, meta, func(O) {})
		}
		return nil, fmt.Errorf("tool %s has no handler", t.name)
	}
	return t.fn(ctx, args, meta)
}

// ExecuteStream runs the streaming handler, falling back to the plain one.
func (t *Tool[I, O]) ExecuteStream(ctx context.Context, input map[string]any, meta Meta, emit func(any)) (any, error) {
	if t.streamFn == nil {
		return t.Execute(ctx, input, meta)
	}
	var args I
	if err := mapToStruct(input, &args); err != nil {
		return nil, err
	}
	return t.streamFn(ctx, args, meta, func(partial O) { emit(partial) })
}

// ToModelOutput shapes the result shown to the model.
func (t *Tool[I, O]) ToModelOutput(output any) core.ToolResultOutput {
	if t.shapeFn != nil {
		if typed, ok := output.(O); ok {
			return t.shapeFn(typed)
		}
	}
	return DefaultOutput(output)
}

func (t *Tool[I, O]) ensureSchemas() {
	t.once.Do(func() {
		in, err := jsonschema.Derive[I]()
		if err != nil {
			panic(fmt.Sprintf("derive input schema for %s: %v", t.name, err))
		}
		out, err := jsonschema.Derive[O]()
		if err != nil {
			panic(fmt.Sprintf("derive output schema for %s: %v", t.name, err))
		}
		t.inputSchema = in
		t.outputSchema = out
	})
}

func mapToStruct[M any](data map[string]any, target *M) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal tool input: %w", err)
	}
	if err := json.Unmarshal(buf, target); err != nil {
		return fmt.Errorf("unmarshal tool input: %w", err)
	}
	return nil
}

// DefaultOutput converts an arbitrary executor return value into a tool
// result payload. Strings become text, everything else serializes to JSON.
func DefaultOutput(output any) core.ToolResultOutput {
	switch v := output.(type) {
	case nil:
		return core.TextOutput("")
	case core.ToolResultOutput:
		return v
	case string:
		return core.TextOutput(v)
	case []byte:
		if json.Valid(v) {
			return core.ToolResultOutput{Kind: core.ToolOutputJSON, JSON: append(json.RawMessage(nil), v...)}
		}
		return core.TextOutput(string(v))
	default:
		return core.JSONOutput(v)
	}
}

// Executable reports whether the handle has a local handler the orchestrator
// may run. Client-side tools without one are returned to the caller unrun.
func Executable(h Handle) bool {
	type executable interface{ Executable() bool }
	if e, ok := h.(executable); ok {
		return e.Executable()
	}
	_, ok := h.(Executor)
	return ok
}
