package tools

import (
	"context"

	"github.com/harmonia-ai/loom/core"
	"github.com/harmonia-ai/loom/schema"
)

// DynamicFunc handles a dynamic tool invocation with untyped input.
type DynamicFunc func(ctx context.Context, input map[string]any, meta Meta) (any, error)

// Dynamic is a tool defined at runtime by a raw schema instead of Go types.
type Dynamic struct {
	ToolName        string
	ToolDescription string
	Schema          *schema.Schema
	Options         map[string]any
	Fn              DynamicFunc

	ApprovalRequired bool
	ApprovalFn       func(ctx context.Context, input map[string]any, meta Meta) (bool, error)
}

func (d *Dynamic) Name() string                { return d.ToolName }
func (d *Dynamic) Description() string         { return d.ToolDescription }
func (d *Dynamic) InputSchema() *schema.Schema { return d.Schema }

func (d *Dynamic) ProviderOptions() map[string]any { return d.Options }

func (d *Dynamic) Variant() Variant { return VariantDynamic }

// Executable reports whether the dynamic tool carries a handler.
func (d *Dynamic) Executable() bool { return d.Fn != nil }

func (d *Dynamic) Execute(ctx context.Context, input map[string]any, meta Meta) (any, error) {
	return d.Fn(ctx, input, meta)
}

func (d *Dynamic) NeedsApproval(ctx context.Context, input map[string]any, meta Meta) (bool, error) {
	if d.ApprovalRequired {
		return true, nil
	}
	if d.ApprovalFn == nil {
		return false, nil
	}
	return d.ApprovalFn(ctx, input, meta)
}

// ProviderDefined describes a tool hosted and executed by the provider. The
// ID is stable and of the form "<provider>.<tool-name>".
type ProviderDefined struct {
	ToolID   string
	ToolName string
	Args     map[string]any
	Options  map[string]any
}

func (p *ProviderDefined) Name() string                { return p.ToolName }
func (p *ProviderDefined) Description() string         { return "" }
func (p *ProviderDefined) InputSchema() *schema.Schema { return nil }

func (p *ProviderDefined) ProviderOptions() map[string]any { return p.Options }

func (p *ProviderDefined) Variant() Variant { return VariantProviderDefined }

// Spec returns the driver-facing specification for the hosted tool.
func (p *ProviderDefined) Spec() core.ProviderTool {
	return core.ProviderTool{
		Type:            core.ProviderToolDefined,
		Name:            p.ToolName,
		ID:              p.ToolID,
		Args:            p.Args,
		ProviderOptions: p.Options,
	}
}
