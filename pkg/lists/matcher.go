// Package lists maintains audience membership: full rule-driven population
// sweeps and the per-event incremental re-qualification path.
package lists

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/persistence"
	"github.com/embarkhq/embark/pkg/rules"
)

// JobPopulate re-populates one dynamic list's membership, fired by the
// scheduler's sweep.
const JobPopulate = "list.populate"

// Matcher decides which lists a user belongs to. Two evaluation paths exist:
// a full check against a user's complete event history, and an incremental
// per-event path backed by cached node results.
type Matcher struct {
	persistence persistence.Persistence
	rules       *rules.Registry
	incremental *rules.Matcher
	logger      *slog.Logger
}

func NewMatcher(persist persistence.Persistence, registry *rules.Registry, logger *slog.Logger) *Matcher {
	return &Matcher{
		persistence: persist,
		rules:       registry,
		incremental: rules.NewMatcher(registry, persist.RuleResults(), logger),
		logger:      logger.With("module", "list_matcher"),
	}
}

// Requalify re-checks every dynamic list of the user's project against the
// user's current attributes and full event history. It returns the lists the
// user newly joined. Membership is only ever added here; removal happens
// through population sweeps.
func (m *Matcher) Requalify(ctx context.Context, user *models.User) ([]*models.List, error) {
	candidates, err := m.persistence.Lists().ByProject(ctx, user.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project lists: %w", err)
	}

	input, err := m.input(ctx, user)
	if err != nil {
		return nil, err
	}

	var joined []*models.List

	for _, list := range candidates {
		if !list.IsDynamic() {
			continue
		}

		matched, err := m.rules.Check(input, list.Rule)
		if err != nil {
			return nil, fmt.Errorf("list %s rule evaluation failed: %w", list.ID, err)
		}

		if !matched {
			continue
		}

		newly, err := m.add(ctx, list.ID, user.ID, time.Now().UnixNano())
		if err != nil {
			return nil, err
		}

		if newly {
			joined = append(joined, list)
		}
	}

	return joined, nil
}

// OnEvent runs the incremental path: only rule nodes affected by the event
// are re-evaluated, everything else is read from the cached results. It
// returns the lists the user newly joined.
func (m *Matcher) OnEvent(ctx context.Context, user *models.User, event *models.Event) ([]*models.List, error) {
	candidates, err := m.persistence.Lists().ByProject(ctx, user.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project lists: %w", err)
	}

	var (
		dynamic []*models.List
		roots   []*rules.Node
	)

	for _, list := range candidates {
		if list.IsDynamic() {
			dynamic = append(dynamic, list)
			roots = append(roots, list.Rule)
		}
	}

	if len(dynamic) == 0 {
		return nil, nil
	}

	satisfied, err := m.incremental.OnEvent(ctx, user.ID, user.Attributes, rules.EventInput{
		Name:       event.Name,
		Properties: event.Properties,
	}, roots)
	if err != nil {
		return nil, fmt.Errorf("incremental list match failed: %w", err)
	}

	matched := make(map[string]bool, len(satisfied))
	for _, uuid := range satisfied {
		matched[uuid] = true
	}

	var joined []*models.List

	for _, list := range dynamic {
		if !matched[list.Rule.UUID] {
			continue
		}

		newly, err := m.add(ctx, list.ID, user.ID, time.Now().UnixNano())
		if err != nil {
			return nil, err
		}

		if newly {
			joined = append(joined, list)
		}
	}

	return joined, nil
}

// Populate runs a full membership sweep over every user of the list's
// project. Rows written by the sweep share one version; rows older than it
// are deleted afterwards, so users who no longer qualify drop out. It
// returns the ids of users who newly joined.
func (m *Matcher) Populate(ctx context.Context, list *models.List) ([]string, error) {
	if !list.IsDynamic() {
		return nil, fmt.Errorf("list %s is not dynamic", list.ID)
	}

	users, err := m.persistence.Users().ByProject(ctx, list.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project users: %w", err)
	}

	version := time.Now().UnixNano()

	var joined []string

	for _, user := range users {
		input, err := m.input(ctx, user)
		if err != nil {
			return nil, err
		}

		matched, err := m.rules.Check(input, list.Rule)
		if err != nil {
			return nil, fmt.Errorf("list %s rule evaluation failed for user %s: %w", list.ID, user.ID, err)
		}

		if !matched {
			continue
		}

		newly, err := m.add(ctx, list.ID, user.ID, version)
		if err != nil {
			return nil, err
		}

		if newly {
			joined = append(joined, user.ID)
		}
	}

	if err := m.persistence.Lists().DeleteStaleMembers(ctx, list.ID, version); err != nil {
		return nil, fmt.Errorf("failed to delete stale members: %w", err)
	}

	m.logger.InfoContext(ctx, "Populated list",
		"list_id", list.ID,
		"newly_joined", len(joined),
	)

	return joined, nil
}

func (m *Matcher) add(ctx context.Context, listID, userID string, version int64) (bool, error) {
	newly, err := m.persistence.Lists().AddMember(ctx, &models.ListMember{
		ListID:  listID,
		UserID:  userID,
		Version: version,
	})
	if err != nil {
		return false, fmt.Errorf("failed to add list member: %w", err)
	}

	return newly, nil
}

// input bundles the user's attributes and event history, restricted to the
// event names any of the project's list rules actually reference.
func (m *Matcher) input(ctx context.Context, user *models.User) (rules.Input, error) {
	candidates, err := m.persistence.Lists().ByProject(ctx, user.ProjectID)
	if err != nil {
		return rules.Input{}, fmt.Errorf("failed to load project lists: %w", err)
	}

	seen := make(map[string]bool)

	var names []string

	for _, list := range candidates {
		if !list.IsDynamic() {
			continue
		}

		for _, name := range list.Rule.EventNames() {
			if !seen[name] {
				seen[name] = true

				names = append(names, name)
			}
		}
	}

	input := rules.Input{User: user.Attributes}

	if len(names) == 0 {
		return input, nil
	}

	rows, err := m.persistence.Events().ByUser(ctx, user.ID, names)
	if err != nil {
		return rules.Input{}, fmt.Errorf("failed to load user events: %w", err)
	}

	for _, row := range rows {
		input.Events = append(input.Events, rules.EventInput{
			Name:       row.Name,
			Properties: row.Properties,
		})
	}

	return input, nil
}
