package tools

import (
	"fmt"
	"sort"

	"github.com/harmonia-ai/loom/core"
)

// ToolSet holds the tools offered to the model for a generation. Names are
// unique within a set.
type ToolSet struct {
	tools map[string]Handle
	order []string
}

// NewToolSet builds a set from the given handles.
func NewToolSet(handles ...Handle) (*ToolSet, error) {
	set := &ToolSet{tools: make(map[string]Handle, len(handles))}
	for _, h := range handles {
		if err := set.Add(h); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// Add registers a handle. Duplicate names are rejected.
func (s *ToolSet) Add(h Handle) error {
	if h == nil {
		return fmt.Errorf("nil tool handle")
	}
	name := h.Name()
	if name == "" {
		return fmt.Errorf("tool handle has empty name")
	}
	if _, exists := s.tools[name]; exists {
		return fmt.Errorf("duplicate tool name %q", name)
	}
	if s.tools == nil {
		s.tools = make(map[string]Handle)
	}
	s.tools[name] = h
	s.order = append(s.order, name)
	return nil
}

// Get returns the named handle.
func (s *ToolSet) Get(name string) (Handle, bool) {
	if s == nil {
		return nil, false
	}
	h, ok := s.tools[name]
	return h, ok
}

// Len reports the number of tools.
func (s *ToolSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.tools)
}

// Names returns tool names in insertion order.
func (s *ToolSet) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

// Handles returns the tools in insertion order.
func (s *ToolSet) Handles() []Handle {
	if s == nil {
		return nil
	}
	out := make([]Handle, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tools[name])
	}
	return out
}

// PrepareTools translates a set into driver-facing specifications and
// resolves the effective tool choice. An unset choice defaults to auto iff
// any tools exist.
func PrepareTools(set *ToolSet, choice core.ToolChoice) ([]core.ProviderTool, core.ToolChoice, error) {
	if set == nil || set.Len() == 0 {
		if choice.Mode == core.ToolChoiceRequired || choice.Mode == core.ToolChoiceTool {
			return nil, choice, core.NewInvalidArgument("tool_choice", string(choice.Mode), "requires a non-empty tool set")
		}
		return nil, core.ToolChoice{}, nil
	}
	if choice.Mode == core.ToolChoiceTool {
		if _, ok := set.Get(choice.ToolName); !ok {
			return nil, choice, core.NewNoSuchTool(choice.ToolName, set.Names())
		}
	}
	specs := make([]core.ProviderTool, 0, set.Len())
	for _, h := range set.Handles() {
		if pd, ok := h.(*ProviderDefined); ok {
			specs = append(specs, pd.Spec())
			continue
		}
		spec := core.ProviderTool{
			Type:        core.ProviderToolFunction,
			Name:        h.Name(),
			Description: h.Description(),
			InputSchema: h.InputSchema(),
		}
		if o, ok := h.(Optioned); ok {
			spec.ProviderOptions = o.ProviderOptions()
		}
		specs = append(specs, spec)
	}
	if choice.Mode == "" {
		choice = core.ToolChoice{Mode: core.ToolChoiceAuto}
	}
	return specs, choice, nil
}

// SortedNames returns tool names in lexical order, for error messages.
func (s *ToolSet) SortedNames() []string {
	names := s.Names()
	sort.Strings(names)
	return names
}
