// Package schema validates journey definitions before they are saved or
// published: struct-level field validation, JSON-schema checks on each step's
// type-specific payload, and structural checks on the graph itself.
package schema

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/embarkhq/embark/pkg/models"
)

// stepDataSchemas holds the JSON schema for each step type's payload. An
// absent entry means the type carries no constrained payload.
var stepDataSchemas = map[models.StepType]map[string]any{
	models.StepTypeDelay: {
		"type": "object",
		"properties": map[string]any{
			"amount": map[string]any{"type": "number", "minimum": 0},
			"unit": map[string]any{
				"type": "string",
				"enum": []any{"minute", "minutes", "hour", "hours", "day", "days", "week", "weeks", "month", "months"},
			},
			"at":   map[string]any{"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"},
			"date": map[string]any{"type": "string", "format": "date"},
		},
		"anyOf": []any{
			map[string]any{"required": []any{"amount", "unit"}},
			map[string]any{"required": []any{"at"}},
			map[string]any{"required": []any{"date"}},
		},
	},
	models.StepTypeGate: {
		"type": "object",
		"properties": map[string]any{
			"list_id": map[string]any{"type": "string", "minLength": 1},
			"rule":    map[string]any{"type": "object"},
		},
		"anyOf": []any{
			map[string]any{"required": []any{"list_id"}},
			map[string]any{"required": []any{"rule"}},
		},
	},
	models.StepTypeAction: {
		"type":     "object",
		"required": []any{"campaign_id"},
		"properties": map[string]any{
			"campaign_id": map[string]any{"type": "string", "minLength": 1},
		},
	},
	models.StepTypeLink: {
		"type":     "object",
		"required": []any{"journey_id"},
		"properties": map[string]any{
			"journey_id": map[string]any{"type": "string", "minLength": 1},
		},
	},
	models.StepTypeUpdate: {
		"type":     "object",
		"required": []any{"template"},
		"properties": map[string]any{
			"template": map[string]any{"type": "object"},
		},
	},
}

// Validator checks journey definitions.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateJourney runs every check a journey must pass before publish.
func (v *Validator) ValidateJourney(j *models.Journey) error {
	if err := v.validate.Struct(j); err != nil {
		return fmt.Errorf("journey validation failed: %w", err)
	}

	for _, step := range j.Steps {
		if err := v.validateStep(step); err != nil {
			return err
		}
	}

	return v.validateGraph(j)
}

func (v *Validator) validateStep(step *models.JourneyStep) error {
	if !step.Type.Valid() {
		return fmt.Errorf("step %s has unknown type %q", step.ID, step.Type)
	}

	if err := v.validate.Struct(step); err != nil {
		return fmt.Errorf("step %s validation failed: %w", step.ID, err)
	}

	schema, constrained := stepDataSchemas[step.Type]
	if !constrained {
		return nil
	}

	data := step.Data
	if data == nil {
		data = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(data))
	if err != nil {
		return fmt.Errorf("step %s schema check failed: %w", step.ID, err)
	}

	if !result.Valid() {
		var details []string
		for _, issue := range result.Errors() {
			details = append(details, issue.String())
		}

		return fmt.Errorf("step %s data is invalid: %s", step.ID, strings.Join(details, "; "))
	}

	return nil
}

// validateGraph enforces the structural invariants: at least one entrance,
// edges referencing existing steps, gates with exactly two branch-tagged
// children, experiments with at least one positively weighted child.
func (v *Validator) validateGraph(j *models.Journey) error {
	byID := make(map[string]*models.JourneyStep, len(j.Steps))
	for _, step := range j.Steps {
		byID[step.ID] = step
	}

	if len(j.Entrances()) == 0 {
		return fmt.Errorf("journey %s has no entrance step", j.ID)
	}

	for _, edge := range j.Children {
		if err := v.validate.Struct(edge); err != nil {
			return fmt.Errorf("edge validation failed: %w", err)
		}

		if byID[edge.StepID] == nil {
			return fmt.Errorf("edge references unknown step %s", edge.StepID)
		}

		if byID[edge.ChildID] == nil {
			return fmt.Errorf("edge references unknown child %s", edge.ChildID)
		}
	}

	for _, step := range j.Steps {
		children := j.ChildrenOf(step.ID)

		switch step.Type {
		case models.StepTypeGate:
			if err := validateGateChildren(step, children); err != nil {
				return err
			}
		case models.StepTypeExperiment:
			if err := validateExperimentChildren(step, children); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateGateChildren(step *models.JourneyStep, children []*models.JourneyStepChild) error {
	if len(children) != 2 {
		return fmt.Errorf("gate %s must have exactly two children, has %d", step.ID, len(children))
	}

	branches := make(map[models.BranchTag]int, 2)
	for _, child := range children {
		branches[child.Branch]++
	}

	if branches[models.BranchPass] != 1 || branches[models.BranchFail] != 1 {
		return fmt.Errorf("gate %s children must be tagged one pass and one fail", step.ID)
	}

	return nil
}

func validateExperimentChildren(step *models.JourneyStep, children []*models.JourneyStepChild) error {
	for _, child := range children {
		if child.Ratio() > 0 {
			return nil
		}
	}

	return fmt.Errorf("experiment %s has no child with a positive ratio", step.ID)
}
