package core

// RunState captures the accumulated state of a multi-step generation. Stop
// conditions receive it after each completed step.
type RunState struct {
	Messages []Message
	Steps    []StepResult
	Usage    Usage
}

// LastStep returns the most recently completed step, if any.
func (s *RunState) LastStep() *StepResult {
	if s == nil || len(s.Steps) == 0 {
		return nil
	}
	return &s.Steps[len(s.Steps)-1]
}

// LastText returns the text of the last completed step.
func (s *RunState) LastText() string {
	if step := s.LastStep(); step != nil {
		return step.Text
	}
	return ""
}

// TotalSteps reports the completed step count.
func (s *RunState) TotalSteps() int {
	if s == nil {
		return 0
	}
	return len(s.Steps)
}

// TotalToolCalls counts tool invocations across steps.
func (s *RunState) TotalToolCalls() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, step := range s.Steps {
		total += len(step.ToolCalls)
	}
	return total
}

// StopCondition decides whether the orchestrator should halt after a step.
type StopCondition func(*RunState) (bool, StopDetail)
