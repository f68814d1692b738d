package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/rules"
)

// GateStep branches on a condition: either membership in a list or an
// inline rule tree carried in the step payload. Gates resolve instantly and
// never suspend the run.
type GateStep struct {
	base
}

func (s *GateStep) Condition(_ context.Context) (bool, error) {
	return true, nil
}

func (s *GateStep) Complete(ctx context.Context) (bool, error) {
	passed, err := s.evaluate(ctx)
	if err != nil {
		return false, err
	}

	s.capture("passed", passed)
	s.row.Type = models.UserStepTypeCompleted

	return true, nil
}

func (s *GateStep) Next(_ context.Context) (string, error) {
	children := s.run.Journey().ChildrenOf(s.step.ID)
	if len(children) == 0 {
		return "", nil
	}

	passed, _ := s.row.Data["passed"].(bool)

	branch := models.BranchFail
	if passed {
		branch = models.BranchPass
	}

	for _, child := range children {
		if child.Branch == branch {
			return child.ChildID, nil
		}
	}

	// Untagged edges fall back to position: lowest priority passes.
	if passed {
		return children[0].ChildID, nil
	}

	if len(children) > 1 {
		return children[1].ChildID, nil
	}

	return "", nil
}

func (s *GateStep) evaluate(ctx context.Context) (bool, error) {
	if listID := s.dataString("list_id"); listID != "" {
		member, err := s.run.Lists().IsMember(ctx, listID, s.run.User().ID)
		if err != nil {
			return false, fmt.Errorf("gate list lookup failed: %w", err)
		}

		return member, nil
	}

	node, err := s.rule()
	if err != nil {
		return false, err
	}

	events, err := s.run.RelevantEvents(ctx)
	if err != nil {
		return false, fmt.Errorf("gate event load failed: %w", err)
	}

	input := rules.Input{
		User:   s.run.User().Attributes,
		Events: events,
	}

	return s.run.Rules().Check(input, node)
}

// rule decodes the inline rule tree from the step payload.
func (s *GateStep) rule() (*rules.Node, error) {
	raw, ok := s.step.Data["rule"]
	if !ok {
		return nil, fmt.Errorf("gate step %s has neither list_id nor rule", s.step.ID)
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("gate rule is not encodable: %w", err)
	}

	var node rules.Node
	if err := json.Unmarshal(encoded, &node); err != nil {
		return nil, fmt.Errorf("gate rule is malformed: %w", err)
	}

	return &node, nil
}
