package lists

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/persistence/file"
	"github.com/embarkhq/embark/pkg/rules"
)

func newTestMatcher(t *testing.T) (*Matcher, *file.Persistence) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := rules.NewRegistry()

	return NewMatcher(persist, registry, logger), persist
}

func proPlanList(id string) *models.List {
	list := &models.List{
		ID:        id,
		ProjectID: "p1",
		Name:      "Pro users",
		Type:      models.ListTypeDynamic,
		Rule: &rules.Node{
			Type:     rules.NodeTypeString,
			Group:    rules.GroupUser,
			Path:     "plan",
			Operator: rules.OperatorEquals,
			Value:    "pro",
		},
	}
	rules.Flatten(list.Rule)

	return list
}

func purchaserList(id string) *models.List {
	list := &models.List{
		ID:        id,
		ProjectID: "p1",
		Name:      "Purchasers",
		Type:      models.ListTypeDynamic,
		Rule: &rules.Node{
			Type:     rules.NodeTypeWrapper,
			Group:    rules.GroupEvent,
			Path:     rules.EventNamePath,
			Operator: rules.OperatorAnd,
			Value:    "purchase",
		},
	}
	rules.Flatten(list.Rule)

	return list
}

func saveUser(t *testing.T, persist *file.Persistence, id string, attrs map[string]any) *models.User {
	t.Helper()

	user := &models.User{ID: id, ProjectID: "p1", Attributes: attrs}
	require.NoError(t, persist.Users().Save(context.Background(), user))

	return user
}

func TestRequalifyAddsMatchingUser(t *testing.T) {
	ctx := context.Background()
	matcher, persist := newTestMatcher(t)

	list := proPlanList("pros")
	require.NoError(t, persist.Lists().Save(ctx, list))

	user := saveUser(t, persist, "u1", map[string]any{"plan": "pro"})

	joined, err := matcher.Requalify(ctx, user)
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Equal(t, "pros", joined[0].ID)

	member, err := persist.Lists().IsMember(ctx, "pros", "u1")
	require.NoError(t, err)
	assert.True(t, member)

	// Re-running reports nothing new.
	joined, err = matcher.Requalify(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, joined)
}

func TestRequalifySkipsNonMatchingUser(t *testing.T) {
	ctx := context.Background()
	matcher, persist := newTestMatcher(t)

	require.NoError(t, persist.Lists().Save(ctx, proPlanList("pros")))

	user := saveUser(t, persist, "u1", map[string]any{"plan": "free"})

	joined, err := matcher.Requalify(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, joined)

	member, err := persist.Lists().IsMember(ctx, "pros", "u1")
	require.NoError(t, err)
	assert.False(t, member)
}

func TestOnEventJoinsEventDrivenList(t *testing.T) {
	ctx := context.Background()
	matcher, persist := newTestMatcher(t)

	require.NoError(t, persist.Lists().Save(ctx, purchaserList("buyers")))

	user := saveUser(t, persist, "u1", nil)

	joined, err := matcher.OnEvent(ctx, user, &models.Event{
		ProjectID: "p1",
		UserID:    "u1",
		Name:      "page_view",
	})
	require.NoError(t, err)
	assert.Empty(t, joined)

	joined, err = matcher.OnEvent(ctx, user, &models.Event{
		ProjectID: "p1",
		UserID:    "u1",
		Name:      "purchase",
	})
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Equal(t, "buyers", joined[0].ID)
}

func TestPopulateSweepsStaleMembers(t *testing.T) {
	ctx := context.Background()
	matcher, persist := newTestMatcher(t)

	list := proPlanList("pros")
	require.NoError(t, persist.Lists().Save(ctx, list))

	saveUser(t, persist, "u1", map[string]any{"plan": "pro"})
	saveUser(t, persist, "u2", map[string]any{"plan": "free"})

	// u2 was added by an earlier sweep and no longer qualifies.
	_, err := persist.Lists().AddMember(ctx, &models.ListMember{
		ListID: "pros", UserID: "u2", Version: time.Now().Add(-time.Hour).UnixNano(),
	})
	require.NoError(t, err)

	joined, err := matcher.Populate(ctx, list)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, joined)

	member, err := persist.Lists().IsMember(ctx, "pros", "u1")
	require.NoError(t, err)
	assert.True(t, member)

	member, err = persist.Lists().IsMember(ctx, "pros", "u2")
	require.NoError(t, err)
	assert.False(t, member)
}

func TestPopulateRejectsStaticList(t *testing.T) {
	matcher, _ := newTestMatcher(t)

	_, err := matcher.Populate(context.Background(), &models.List{
		ID: "manual", ProjectID: "p1", Type: models.ListTypeStatic,
	})
	assert.Error(t, err)
}
