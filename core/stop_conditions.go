package core

import "fmt"

// MaxSteps stops execution when the total number of steps reaches n.
func MaxSteps(n int) StopCondition {
	if n <= 0 {
		n = 1
	}
	return func(state *RunState) (bool, StopDetail) {
		if state == nil {
			return false, StopDetail{}
		}
		if state.TotalSteps() >= n {
			return true, StopDetail{
				Type:        StopTypeMaxSteps,
				Description: fmt.Sprintf("reached maximum of %d steps", n),
			}
		}
		return false, StopDetail{}
	}
}

// NoMoreTools stops when the last completed step executed no tools.
func NoMoreTools() StopCondition {
	return func(state *RunState) (bool, StopDetail) {
		if state == nil || state.LastStep() == nil {
			return false, StopDetail{}
		}
		if len(state.LastStep().ToolCalls) == 0 {
			return true, StopDetail{
				Type:        StopTypeNoMoreTools,
				Description: "no tool calls in last step",
			}
		}
		return false, StopDetail{}
	}
}

// UntilToolSeen stops after the named tool has been invoked at least once.
func UntilToolSeen(name string) StopCondition {
	return func(state *RunState) (bool, StopDetail) {
		if state == nil {
			return false, StopDetail{}
		}
		for _, step := range state.Steps {
			for _, call := range step.ToolCalls {
				if call.Name == name {
					return true, StopDetail{
						Type:        StopTypeToolSeen,
						Description: fmt.Sprintf("tool %s was called", name),
					}
				}
			}
		}
		return false, StopDetail{}
	}
}

// MaxTokens stops when total token usage across steps reaches the threshold.
func MaxTokens(n int) StopCondition {
	if n <= 0 {
		n = 1
	}
	return func(state *RunState) (bool, StopDetail) {
		if state == nil {
			return false, StopDetail{}
		}
		if state.Usage.TotalTokens >= n {
			return true, StopDetail{
				Type:        StopTypeMaxTokens,
				Description: fmt.Sprintf("total tokens reached %d (limit: %d)", state.Usage.TotalTokens, n),
			}
		}
		return false, StopDetail{}
	}
}

// Any returns a condition that triggers when any of the provided conditions fire.
func Any(conds ...StopCondition) StopCondition {
	return func(state *RunState) (bool, StopDetail) {
		for _, cond := range conds {
			if cond == nil {
				continue
			}
			if stop, reason := cond(state); stop {
				return true, reason
			}
		}
		return false, StopDetail{}
	}
}

// All returns a condition that triggers only when every provided condition fires.
func All(conds ...StopCondition) StopCondition {
	return func(state *RunState) (bool, StopDetail) {
		if len(conds) == 0 {
			return false, StopDetail{}
		}
		reasons := make([]string, 0, len(conds))
		for _, cond := range conds {
			if cond == nil {
				return false, StopDetail{}
			}
			stop, reason := cond(state)
			if !stop {
				return false, StopDetail{}
			}
			reasons = append(reasons, reason.Type)
		}
		return true, StopDetail{
			Type:        StopTypeAllConditions,
			Description: fmt.Sprintf("all stop conditions met: %v", reasons),
		}
	}
}

// Custom wraps a user-defined stop condition.
func Custom(fn func(state *RunState) (bool, StopDetail)) StopCondition {
	if fn == nil {
		return func(*RunState) (bool, StopDetail) {
			return false, StopDetail{}
		}
	}
	return func(state *RunState) (bool, StopDetail) {
		stop, reason := fn(state)
		if stop && reason.Type == "" {
			reason.Type = StopTypeCustom
		}
		return stop, reason
	}
}
