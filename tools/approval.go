package tools

import (
	"context"

	"github.com/harmonia-ai/loom/core"
	"github.com/harmonia-ai/loom/internal/ids"
)

// DeniedCall pairs a denied tool call with the caller's reason.
type DeniedCall struct {
	Call   core.ToolCall
	Reason string
}

// Partition is the result of approval collection for one step's tool calls.
type Partition struct {
	Approved []core.ToolCall
	Denied   []DeniedCall
	Pending  []core.ToolApprovalRequest
}

// CollectApprovals partitions the step's tool calls into approved, denied,
// and pending sets using approval requests and responses already present in
// the prompt. Calls whose tools are not gated are approved implicitly.
func CollectApprovals(ctx context.Context, calls []core.ToolCall, prompt []core.Message, set *ToolSet, meta Meta) (Partition, error) {
	requests := map[string]core.ToolApprovalRequest{} // tool_call_id -> request
	responses := map[string]core.ToolApprovalResponse{}
	for _, msg := range prompt {
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case core.ToolApprovalRequest:
				requests[p.ToolCallID] = p
			case core.ToolApprovalResponse:
				responses[p.ApprovalID] = p
			}
		}
	}

	var out Partition
	for _, call := range calls {
		h, ok := set.Get(call.Name)
		if !ok {
			return Partition{}, core.NewNoSuchTool(call.Name, set.Names())
		}

		gated := false
		if policy, ok := h.(ApprovalPolicy); ok {
			callMeta := meta
			callMeta.CallID = call.ID
			needed, err := policy.NeedsApproval(ctx, call.Input, callMeta)
			if err != nil {
				return Partition{}, core.WrapError(err, core.ErrInvalidToolInput)
			}
			gated = needed
		}
		if !gated {
			out.Approved = append(out.Approved, call)
			continue
		}

		req, asked := requests[call.ID]
		if !asked {
			out.Pending = append(out.Pending, core.ToolApprovalRequest{
				ApprovalID: ids.NewPrefixed("appr_"),
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
			continue
		}
		resp, answered := responses[req.ApprovalID]
		if !answered {
			out.Pending = append(out.Pending, req)
			continue
		}
		if resp.Approved {
			out.Approved = append(out.Approved, call)
		} else {
			out.Denied = append(out.Denied, DeniedCall{Call: call, Reason: resp.Reason})
		}
	}
	return out, nil
}
