package rules

import (
	"context"
	"fmt"
	"log/slog"
)

// ResultStore persists per-(rule node, user) evaluation results for the
// incremental path. The found flag distinguishes "never evaluated" from a
// cached false.
type ResultStore interface {
	Result(ctx context.Context, ruleUUID, userID string) (value, found bool, err error)
	SaveResult(ctx context.Context, ruleUUID, userID string, value bool) error
}

// Matcher is the incremental counterpart to Registry.Check: instead of
// re-scanning a user's whole event history on every check, it reacts to one
// arriving event, re-evaluates only the event wrappers referencing that
// event's name whose cached result is still false, and walks newly satisfied
// results up to the tree root. Per-event cost is proportional to the number
// of rules naming the event, not to the user's total event count.
type Matcher struct {
	registry *Registry
	store    ResultStore
	logger   *slog.Logger
}

func NewMatcher(registry *Registry, store ResultStore, logger *slog.Logger) *Matcher {
	return &Matcher{
		registry: registry,
		store:    store,
		logger:   logger.With("module", "rule_matcher"),
	}
}

// OnEvent applies one event for one user against a set of rule trees and
// returns the root UUIDs that became satisfied.
func (m *Matcher) OnEvent(ctx context.Context, userID string, user map[string]any, event EventInput, roots []*Node) ([]string, error) {
	var satisfied []string

	for _, root := range roots {
		if root == nil {
			continue
		}

		rootDone, found, err := m.store.Result(ctx, root.UUID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load cached result for rule %s: %w", root.UUID, err)
		}

		if found && rootDone {
			continue
		}

		became, err := m.applyEvent(ctx, userID, user, event, root)
		if err != nil {
			return nil, err
		}

		if became {
			m.logger.InfoContext(ctx, "Rule satisfied",
				"rule_uuid", root.UUID,
				"user_id", userID,
				"event", event.Name,
			)

			satisfied = append(satisfied, root.UUID)
		}
	}

	return satisfied, nil
}

// applyEvent flips matching event wrappers within one tree and ascends
// through their parents. Returns whether the root became satisfied.
func (m *Matcher) applyEvent(ctx context.Context, userID string, user map[string]any, event EventInput, root *Node) (bool, error) {
	parents := parentIndex(root)

	var flipped []*Node

	var findWrappers func(n *Node)

	findWrappers = func(n *Node) {
		if n.IsEventWrapper() && n.EventName() == event.Name {
			flipped = append(flipped, n)

			return
		}

		for _, child := range n.Children {
			findWrappers(child)
		}
	}

	findWrappers(root)

	rootSatisfied := false

	for _, wrapper := range flipped {
		cached, found, err := m.store.Result(ctx, wrapper.UUID, userID)
		if err != nil {
			return false, fmt.Errorf("failed to load cached result for rule %s: %w", wrapper.UUID, err)
		}

		if found && cached {
			continue
		}

		// Evaluate the wrapper against this single event only.
		result, err := m.registry.Check(Input{User: user, Events: []EventInput{event}}, wrapper)
		if err != nil {
			return false, err
		}

		if !result {
			continue
		}

		if err := m.store.SaveResult(ctx, wrapper.UUID, userID, true); err != nil {
			return false, fmt.Errorf("failed to save result for rule %s: %w", wrapper.UUID, err)
		}

		m.logger.DebugContext(ctx, "Event wrapper satisfied",
			"rule_uuid", wrapper.UUID,
			"user_id", userID,
			"event", event.Name,
		)

		became, err := m.ascend(ctx, userID, user, wrapper, parents)
		if err != nil {
			return false, err
		}

		if became {
			rootSatisfied = true
		}
	}

	return rootSatisfied, nil
}

// ascend re-checks each ancestor wrapper with cached leaves; the climb stops
// at the first unsatisfied ancestor.
func (m *Matcher) ascend(ctx context.Context, userID string, user map[string]any, from *Node, parents map[string]*Node) (bool, error) {
	node := parents[from.UUID]

	for node != nil {
		result, err := m.evalCached(ctx, userID, user, node)
		if err != nil {
			return false, err
		}

		if !result {
			return false, nil
		}

		if err := m.store.SaveResult(ctx, node.UUID, userID, true); err != nil {
			return false, fmt.Errorf("failed to save result for rule %s: %w", node.UUID, err)
		}

		parent := parents[node.UUID]
		if parent == nil {
			// Reached the root with everything satisfied.
			return true, nil
		}

		node = parent
	}

	// The flipped wrapper was itself the root.
	return true, nil
}

// evalCached evaluates a node where event wrappers read their cached result
// instead of scanning events, and everything else evaluates live against the
// user's current attributes.
func (m *Matcher) evalCached(ctx context.Context, userID string, user map[string]any, node *Node) (bool, error) {
	if node.IsEventWrapper() {
		value, found, err := m.store.Result(ctx, node.UUID, userID)
		if err != nil {
			return false, err
		}

		return found && value, nil
	}

	if node.IsWrapper() {
		if len(node.Children) == 0 {
			return true, nil
		}

		results := make([]bool, 0, len(node.Children))

		for _, child := range node.Children {
			result, err := m.evalCached(ctx, userID, user, child)
			if err != nil {
				return false, err
			}

			results = append(results, result)
		}

		return combine(node.Operator, results), nil
	}

	return m.registry.Check(Input{User: user}, node)
}

func parentIndex(root *Node) map[string]*Node {
	parents := make(map[string]*Node)

	root.Walk(func(n *Node) {
		for _, child := range n.Children {
			parents[child.UUID] = n
		}
	})

	return parents
}
