package models

// StepType discriminates the closed set of step behaviors. Dispatch over
// this set is a compile-checked switch, never a runtime class lookup.
type StepType string

const (
	StepTypeEntrance   StepType = "entrance"
	StepTypeDelay      StepType = "delay"
	StepTypeGate       StepType = "gate"
	StepTypeExperiment StepType = "experiment"
	StepTypeAction     StepType = "action"
	StepTypeLink       StepType = "link"
	StepTypeUpdate     StepType = "update"
)

// StepTypes is the closed set of valid step types.
var StepTypes = []StepType{
	StepTypeEntrance,
	StepTypeDelay,
	StepTypeGate,
	StepTypeExperiment,
	StepTypeAction,
	StepTypeLink,
	StepTypeUpdate,
}

// Valid reports whether t is a known step type.
func (t StepType) Valid() bool {
	for _, known := range StepTypes {
		if t == known {
			return true
		}
	}

	return false
}

// JourneyStep is one node in a journey's step map. Data carries the
// type-specific payload (a rule tree for a gate, a campaign reference for an
// action). X and Y are editor coordinates, irrelevant to execution.
type JourneyStep struct {
	ID         string         `json:"id"`
	JourneyID  string         `json:"journey_id"`
	Type       StepType       `json:"type"        validate:"required"`
	ExternalID string         `json:"external_id" validate:"required"` // Stable id used by the editing UI
	Data       map[string]any `json:"data,omitempty"`
	X          int            `json:"x"`
	Y          int            `json:"y"`
}

// BranchTag marks which gate branch an edge belongs to. The tag is explicit
// so re-ordering children can never silently swap pass and fail.
type BranchTag string

const (
	BranchPass BranchTag = "pass"
	BranchFail BranchTag = "fail"
)

// JourneyStepChild is a directed edge between two steps. Priority orders
// siblings deterministically; Data carries edge payloads such as an
// experiment branch's weight ratio.
type JourneyStepChild struct {
	StepID   string         `json:"step_id"  validate:"required"`
	ChildID  string         `json:"child_id" validate:"required"`
	Priority int            `json:"priority"`
	Branch   BranchTag      `json:"branch,omitempty" validate:"omitempty,oneof=pass fail"`
	Data     map[string]any `json:"data,omitempty"`
}

// Ratio returns the experiment weight carried on the edge, or 0 when the
// edge has no usable numeric ratio.
func (c *JourneyStepChild) Ratio() int {
	if c.Data == nil {
		return 0
	}

	switch v := c.Data["ratio"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
