package journey

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/rules"
	"github.com/embarkhq/embark/pkg/steps"
)

func reactiveJourney(eventName string) *models.Journey {
	j := linearJourney()
	j.Steps[0].Data = map[string]any{"event_name": eventName}

	return j
}

func TestTrackEventStartsReactiveEntrance(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)
	j := eng.saveJourney(t, reactiveJourney("signup"))

	err := eng.service.TrackEvent(ctx, &models.Event{
		ProjectID:  "p1",
		UserID:     "u1",
		Name:       "signup",
		Properties: map[string]any{"source": "web"},
	})
	require.NoError(t, err)

	// The user profile is created on first sight.
	user, err := eng.persist.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "p1", user.ProjectID)

	entrance, err := eng.persist.UserSteps().ActiveEntrance(ctx, j.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, entrance)

	// The triggering event is snapshotted onto the entrance.
	snapshot, _ := entrance.Data["event"].(map[string]any)
	require.NotNil(t, snapshot)
	assert.Equal(t, "signup", snapshot["name"])

	// A resume job is queued rather than executed inline.
	jobs := eng.queue.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, steps.JobResume, jobs[0].Name)
	assert.Equal(t, entrance.ID, jobs[0].String("entrance_id"))

	require.NoError(t, eng.queue.Drain(ctx))
	assert.True(t, eng.reload(t, entrance.ID).Ended())
}

func TestTrackEventIgnoresNonMatchingName(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)
	j := eng.saveJourney(t, reactiveJourney("signup"))

	require.NoError(t, eng.service.TrackEvent(ctx, &models.Event{
		ProjectID: "p1",
		UserID:    "u1",
		Name:      "page_view",
	}))

	entrance, err := eng.persist.UserSteps().ActiveEntrance(ctx, j.ID, "u1")
	require.NoError(t, err)
	assert.Nil(t, entrance)
}

func TestTrackEventIgnoresUnpublishedJourney(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	j := reactiveJourney("signup")
	j.Status = models.JourneyStatusDraft
	eng.saveJourney(t, j)

	require.NoError(t, eng.service.TrackEvent(ctx, &models.Event{
		ProjectID: "p1",
		UserID:    "u1",
		Name:      "signup",
	}))

	entrance, err := eng.persist.UserSteps().ActiveEntrance(ctx, j.ID, "u1")
	require.NoError(t, err)
	assert.Nil(t, entrance)
}

func TestActiveEntranceDeduplicates(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	// A delay keeps the entrance live across events.
	j := eng.saveJourney(t, &models.Journey{
		Steps: []*models.JourneyStep{
			{ID: "e1", Type: models.StepTypeEntrance, ExternalID: "start", Data: map[string]any{
				"event_name": "signup",
			}},
			{ID: "d1", Type: models.StepTypeDelay, ExternalID: "wait", Data: map[string]any{
				"amount": float64(1), "unit": "day",
			}},
		},
		Children: []*models.JourneyStepChild{
			{StepID: "e1", ChildID: "d1", Priority: 0},
		},
	})

	require.NoError(t, eng.service.TrackEvent(ctx, &models.Event{
		ProjectID: "p1", UserID: "u1", Name: "signup",
	}))
	require.NoError(t, eng.queue.Drain(ctx))

	require.NoError(t, eng.service.TrackEvent(ctx, &models.Event{
		ProjectID: "p1", UserID: "u1", Name: "signup",
	}))
	require.NoError(t, eng.queue.Drain(ctx))

	rows, err := eng.persist.UserSteps().ByJourney(ctx, j.ID)
	require.NoError(t, err)

	entrances := 0
	for _, row := range rows {
		if row.IsEntrance() {
			entrances++
		}
	}

	assert.Equal(t, 1, entrances)
}

func TestUpdateUserJoinsDynamicListAndStartsEntrance(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	list := &models.List{
		ID:        "vips",
		ProjectID: "p1",
		Name:      "VIPs",
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
	require.NoError(t, eng.persist.Lists().Save(ctx, list))

	j := linearJourney()
	j.Steps[0].Data = map[string]any{"list_id": "vips"}
	eng.saveJourney(t, j)

	user, err := eng.service.UpdateUser(ctx, &models.User{
		ID:         "u1",
		ProjectID:  "p1",
		Attributes: map[string]any{"plan": "pro"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pro", user.Attributes["plan"])

	member, err := eng.persist.Lists().IsMember(ctx, "vips", "u1")
	require.NoError(t, err)
	assert.True(t, member)

	entrance, err := eng.persist.UserSteps().ActiveEntrance(ctx, j.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, entrance)

	// A second qualifying update must not re-admit the user.
	_, err = eng.service.UpdateUser(ctx, &models.User{
		ID:         "u1",
		ProjectID:  "p1",
		Attributes: map[string]any{"plan": "pro"},
	})
	require.NoError(t, err)

	rows, err := eng.persist.UserSteps().ByJourney(ctx, j.ID)
	require.NoError(t, err)

	entrances := 0
	for _, row := range rows {
		if row.IsEntrance() {
			entrances++
		}
	}

	assert.Equal(t, 1, entrances)
}

func TestUpdateUserMergesProfileFields(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)
	eng.saveUser(t, &models.User{
		ID:         "u1",
		Email:      "old@example.com",
		Attributes: map[string]any{"plan": "free", "city": "Lisbon"},
	})

	user, err := eng.service.UpdateUser(ctx, &models.User{
		ID:         "u1",
		ProjectID:  "p1",
		Email:      "new@example.com",
		Attributes: map[string]any{"plan": "pro"},
	})
	require.NoError(t, err)

	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, "pro", user.Attributes["plan"])
	assert.Equal(t, "Lisbon", user.Attributes["city"])
}

func TestStartJourneyUnknownJourneyIsNoop(t *testing.T) {
	eng := newEngine(t)

	assert.NoError(t, eng.service.StartJourney(context.Background(), "missing", "u1", nil))
}

func TestBatchEnroll(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	list := &models.List{ID: "beta", ProjectID: "p1", Name: "Beta", Type: models.ListTypeStatic}
	require.NoError(t, eng.persist.Lists().Save(ctx, list))

	for _, userID := range []string{"u1", "u2", "u3"} {
		eng.saveUser(t, &models.User{ID: userID})

		_, err := eng.persist.Lists().AddMember(ctx, &models.ListMember{
			ListID: "beta", UserID: userID, Version: 1,
		})
		require.NoError(t, err)
	}

	j := linearJourney()
	j.Steps[0].Data = map[string]any{"list_id": "beta"}
	eng.saveJourney(t, j)

	enrolled, err := eng.service.BatchEnroll(ctx, j.ID, "e1")
	require.NoError(t, err)
	assert.Equal(t, 3, enrolled)

	require.NoError(t, eng.queue.Drain(ctx))

	rows, err := eng.persist.UserSteps().ByJourney(ctx, j.ID)
	require.NoError(t, err)

	ended := 0
	for _, row := range rows {
		if row.IsEntrance() && row.Ended() {
			ended++
		}
	}

	assert.Equal(t, 3, ended)
}

func TestBatchEnrollRejectsNonEntranceStep(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)
	j := eng.saveJourney(t, linearJourney())

	_, err := eng.service.BatchEnroll(ctx, j.ID, "m1")
	assert.Error(t, err)
}

func TestJourneyStats(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)
	eng.saveUser(t, &models.User{ID: "u1"})
	eng.saveUser(t, &models.User{ID: "u2"})

	j := eng.saveJourney(t, &models.Journey{
		Steps: []*models.JourneyStep{
			{ID: "e1", Type: models.StepTypeEntrance, ExternalID: "start"},
			{ID: "d1", Type: models.StepTypeDelay, ExternalID: "wait", Data: map[string]any{
				"amount": float64(1), "unit": "day",
			}},
		},
		Children: []*models.JourneyStepChild{
			{StepID: "e1", ChildID: "d1", Priority: 0},
		},
	})

	// u1 waits at the delay, u2 never gets resumed.
	first := eng.enter(t, j, "u1", nil)
	require.NoError(t, eng.state.Resume(ctx, first.ID))
	eng.enter(t, j, "u2", nil)

	stats, err := eng.service.JourneyStats(ctx, j.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalEntrances)
	assert.Equal(t, 2, stats.ActiveEntrances)
	assert.Equal(t, 0, stats.EndedEntrances)

	byExternal := make(map[string]*StepStats)
	for _, entry := range stats.Steps {
		byExternal[entry.ExternalID] = entry
	}

	require.Contains(t, byExternal, "start")
	require.Contains(t, byExternal, "wait")
	assert.Equal(t, 1, byExternal["start"].Completed)
	assert.Equal(t, 1, byExternal["start"].Waiting)
	assert.Equal(t, 1, byExternal["wait"].Waiting)
}
