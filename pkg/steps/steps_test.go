package steps

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/embarkhq/embark/pkg/campaign"
	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/persistence"
	"github.com/embarkhq/embark/pkg/queue"
	"github.com/embarkhq/embark/pkg/rules"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// delayedJob pairs a collected job with its scheduled delay.
type delayedJob struct {
	job   *queue.Job
	delay time.Duration
}

// fakeRun is an in-memory Run for exercising step behaviors in isolation.
type fakeRun struct {
	journey      *models.Journey
	user         *models.User
	entrance     *models.JourneyUserStep
	triggerEvent map[string]any
	history      []*models.JourneyUserStep
	events       []rules.EventInput
	stepData     map[string]map[string]any
	registry     *rules.Registry
	users        *fakeUserRepo
	lists        *fakeListRepo
	deliveries   *fakeDeliveryRepo
	sender       *fakeSender
	jobs         []*queue.Job
	delayed      []delayedJob
	now          time.Time
}

func newFakeRun(journey *models.Journey) *fakeRun {
	user := &models.User{
		ID:         "u1",
		ProjectID:  "p1",
		Attributes: map[string]any{"plan": "pro"},
	}

	return &fakeRun{
		journey:    journey,
		user:       user,
		entrance:   &models.JourneyUserStep{ID: "entrance-1", UserID: user.ID, JourneyID: journey.ID},
		stepData:   make(map[string]map[string]any),
		registry:   rules.NewRegistry(rules.WithClock(func() time.Time { return testNow })),
		users:      &fakeUserRepo{saved: make(map[string]*models.User)},
		lists:      &fakeListRepo{members: make(map[string]bool)},
		deliveries: &fakeDeliveryRepo{rows: make(map[string]*models.Delivery)},
		sender:     &fakeSender{},
		now:        testNow,
	}
}

func (r *fakeRun) Journey() *models.Journey                   { return r.journey }
func (r *fakeRun) User() *models.User                         { return r.user }
func (r *fakeRun) Entrance() *models.JourneyUserStep          { return r.entrance }
func (r *fakeRun) TriggerEvent() map[string]any               { return r.triggerEvent }
func (r *fakeRun) History() []*models.JourneyUserStep         { return r.history }
func (r *fakeRun) StepData() map[string]map[string]any        { return r.stepData }
func (r *fakeRun) Location() *time.Location                   { return time.UTC }
func (r *fakeRun) Rules() *rules.Registry                     { return r.registry }
func (r *fakeRun) Users() persistence.UserRepository          { return r.users }
func (r *fakeRun) Lists() persistence.ListRepository          { return r.lists }
func (r *fakeRun) Deliveries() persistence.DeliveryRepository { return r.deliveries }
func (r *fakeRun) Sender() campaign.Sender                    { return r.sender }
func (r *fakeRun) Now() time.Time                             { return r.now }

func (r *fakeRun) RelevantEvents(_ context.Context) ([]rules.EventInput, error) {
	return r.events, nil
}

func (r *fakeRun) Enqueue(job *queue.Job) {
	r.jobs = append(r.jobs, job)
}

func (r *fakeRun) EnqueueDelayed(job *queue.Job, delay time.Duration) {
	r.delayed = append(r.delayed, delayedJob{job: job, delay: delay})
}

var _ Run = (*fakeRun)(nil)

func newRow(stepID string) *models.JourneyUserStep {
	return &models.JourneyUserStep{
		ID:         uuid.New().String(),
		UserID:     "u1",
		StepID:     stepID,
		EntranceID: "entrance-1",
		Type:       models.UserStepTypePending,
		CreatedAt:  testNow,
	}
}

type fakeUserRepo struct {
	saved map[string]*models.User
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.saved[id]
	if !ok {
		return nil, persistence.ErrUserNotFound
	}

	return u, nil
}

func (f *fakeUserRepo) Save(_ context.Context, user *models.User) error {
	f.saved[user.ID] = user

	return nil
}

func (f *fakeUserRepo) ByProject(_ context.Context, _ string) ([]*models.User, error) {
	return nil, nil
}

type fakeListRepo struct {
	members map[string]bool // listID:userID
}

func (f *fakeListRepo) GetByID(_ context.Context, _ string) (*models.List, error) {
	return nil, persistence.ErrListNotFound
}

func (f *fakeListRepo) Save(_ context.Context, _ *models.List) error { return nil }

func (f *fakeListRepo) ByProject(_ context.Context, _ string) ([]*models.List, error) {
	return nil, nil
}

func (f *fakeListRepo) AddMember(_ context.Context, member *models.ListMember) (bool, error) {
	key := member.ListID + ":" + member.UserID
	existed := f.members[key]
	f.members[key] = true

	return !existed, nil
}

func (f *fakeListRepo) IsMember(_ context.Context, listID, userID string) (bool, error) {
	return f.members[listID+":"+userID], nil
}

func (f *fakeListRepo) Members(_ context.Context, _ string) ([]*models.ListMember, error) {
	return nil, nil
}

func (f *fakeListRepo) DeleteStaleMembers(_ context.Context, _ string, _ int64) error {
	return nil
}

type fakeDeliveryRepo struct {
	rows map[string]*models.Delivery
}

func deliveryKey(campaignID, userID, reference string) string {
	return campaignID + ":" + userID + ":" + reference
}

func (f *fakeDeliveryRepo) Save(_ context.Context, delivery *models.Delivery) error {
	f.rows[deliveryKey(delivery.CampaignID, delivery.UserID, delivery.Reference)] = delivery

	return nil
}

func (f *fakeDeliveryRepo) Find(_ context.Context, campaignID, userID, reference string) (*models.Delivery, error) {
	d, ok := f.rows[deliveryKey(campaignID, userID, reference)]
	if !ok {
		return nil, persistence.ErrDeliveryNotFound
	}

	return d, nil
}

type fakeSender struct {
	requests []campaign.SendRequest
	err      error
}

func (f *fakeSender) SendCampaign(_ context.Context, req campaign.SendRequest) error {
	if f.err != nil {
		return f.err
	}

	f.requests = append(f.requests, req)

	return nil
}
