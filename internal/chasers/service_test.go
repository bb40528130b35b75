package chasers

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchaser/internal/content"
	"docchaser/internal/events"
	"docchaser/internal/llm"
	"docchaser/internal/schedule"
	"docchaser/internal/shared/telemetry"
	"docchaser/internal/timing"
)

func TestMain(m *testing.M) {
	telemetry.SetOutput(io.Discard)
	m.Run()
}

type fakeSender struct {
	calls []int
	err   error
}

func (f *fakeSender) SendAttempt(ctx context.Context, caseID string, number int) error {
	f.calls = append(f.calls, number)
	return f.err
}

type fakeDirectory struct {
	id  string
	err error
}

func (f *fakeDirectory) FindOrCreate(ctx context.Context, name, email, phone string) (string, error) {
	return f.id, f.err
}

type fakeTracker struct {
	documents map[string]string
}

func (f *fakeTracker) TrackDocuments(ctx context.Context, caseID, documents string) error {
	if f.documents == nil {
		f.documents = map[string]string{}
	}
	f.documents[caseID] = documents
	return nil
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.Event) error {
	p.events = append(p.events, ev)
	return nil
}

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestService() (*Service, *MemoryRepo, *fakeSender, *recordingPublisher) {
	repo := NewMemoryRepo()
	svc := NewService(repo, schedule.NewGenerator(timing.NewStore(nil)), content.NewResolver(llm.Disabled{}, false))
	sender := &fakeSender{}
	pub := &recordingPublisher{}
	svc.Sender = sender
	svc.Events = pub
	svc.Now = func() time.Time { return fixedNow }
	return svc, repo, sender, pub
}

func mediumInput() CreateInput {
	return CreateInput{
		Task:         "Annual accounts",
		Documents:    "Bank statements\nPayroll summary",
		Who:          "Ana Lee",
		Urgency:      "Medium",
		ContactEmail: "ana@example.com",
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	svc, repo, _, _ := newTestService()
	_, err := svc.Create(context.Background(), CreateInput{Task: "x", Who: "y"})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "documents")
	assert.Contains(t, err.Error(), "urgency")

	cases, err := repo.ListCases(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestCreateBuildsScheduleAndResolvesFirstAttempt(t *testing.T) {
	svc, _, sender, _ := newTestService()
	dir := &fakeDirectory{id: "cust-1"}
	tracker := &fakeTracker{}
	svc.Customers = dir
	svc.Documents = tracker

	c, err := svc.Create(context.Background(), mediumInput())
	require.NoError(t, err)

	assert.Equal(t, StatusScheduled, c.Status)
	assert.Equal(t, "Email", c.ChannelPreference)
	assert.Equal(t, "cust-1", c.CustomerID)
	require.Len(t, c.Attempts, 4)
	assert.Equal(t, 4, c.MaxAttempts)

	wantOffsets := []float64{1, 4, 11, 25}
	wantChannels := []string{"email", "email", "email", "call"}
	for i, a := range c.Attempts {
		assert.Equal(t, fixedNow.Add(time.Duration(wantOffsets[i]*24)*time.Hour), a.ScheduledFor)
		assert.Equal(t, wantChannels[i], a.Channel)
		assert.Equal(t, AttemptPending, a.Status)
	}
	assert.NotEmpty(t, c.Attempts[0].Content)
	assert.NotEmpty(t, c.Attempts[0].Subject)
	assert.Empty(t, c.Attempts[1].Content)
	require.NotNil(t, c.NextOutreachAt)
	assert.Equal(t, c.Attempts[0].ScheduledFor, *c.NextOutreachAt)

	assert.Empty(t, sender.calls, "a future first attempt is left to the loop")
	assert.Equal(t, "Bank statements\nPayroll summary", tracker.documents[c.ID])
}

func TestCreateSendsDueEmailImmediately(t *testing.T) {
	svc, _, sender, _ := newTestService()
	in := mediumInput()
	in.Urgency = "Urgent"

	_, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, sender.calls)
}

func TestCreateSurvivesImmediateSendFailure(t *testing.T) {
	svc, _, sender, _ := newTestService()
	sender.err = errors.New("gmail unavailable")
	in := mediumInput()
	in.Urgency = "urgent"

	c, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, AttemptPending, c.Attempts[0].Status)
}

func TestCreateSkipsImmediateSendForCalls(t *testing.T) {
	svc, _, sender, _ := newTestService()
	in := mediumInput()
	in.Urgency = "Urgent"
	in.ChannelPreference = "Call"

	_, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, sender.calls)
}

func TestCreateWithEmptyPolicyCompletesImmediately(t *testing.T) {
	svc, _, _, _ := newTestService()
	p := timing.Default()
	p.Tiers = map[string]timing.Tier{}
	store := timing.NewStore(p)
	svc.Schedules = schedule.NewGenerator(store)

	c, err := svc.Create(context.Background(), mediumInput())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, c.Status)
	assert.Empty(t, c.Attempts)
	assert.Nil(t, c.NextOutreachAt)
}

func TestCreateUsesWhoAsEmailAddress(t *testing.T) {
	svc, _, _, _ := newTestService()
	in := mediumInput()
	in.ContactEmail = ""
	in.Who = "bart@example.com"

	c, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "bart@example.com", c.Recipient(timing.ChannelEmail))
}

func TestUpdateStatus(t *testing.T) {
	svc, _, _, pub := newTestService()
	c, err := svc.Create(context.Background(), mediumInput())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), c.ID, "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	updated, err := svc.UpdateStatus(context.Background(), c.ID, "Completed")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeCaseCompleted, pub.events[0].Type)

	_, err = svc.UpdateStatus(context.Background(), "missing", StatusFailed)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWebhookReplyCompletesCase(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, pub := newTestService()
	c, err := svc.Create(ctx, mediumInput())
	require.NoError(t, err)
	_, err = repo.MarkAttemptSent(ctx, c.Attempts[0].ID, SentUpdate{SentAt: fixedNow, MessageID: "<m1@example.com>"})
	require.NoError(t, err)

	a, err := svc.HandleWebhook(ctx, WebhookEvent{Type: "reply", MessageID: "<m1@example.com>"})
	require.NoError(t, err)
	assert.Equal(t, AttemptResponded, a.Status)
	assert.True(t, a.ResponseReceived)

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Nil(t, got.NextOutreachAt)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeCaseResponded, pub.events[0].Type)

	due, err := repo.ListDue(ctx, fixedNow.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestWebhookEngagementAndDelivery(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newTestService()
	c, err := svc.Create(ctx, mediumInput())
	require.NoError(t, err)
	_, err = repo.MarkAttemptSent(ctx, c.Attempts[0].ID, SentUpdate{SentAt: fixedNow, MessageID: "<m1@example.com>"})
	require.NoError(t, err)

	a, err := svc.HandleWebhook(ctx, WebhookEvent{Type: "delivered", CaseID: c.ID, AttemptNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, AttemptDelivered, a.Status)

	a, err = svc.HandleWebhook(ctx, WebhookEvent{Type: "opened", CaseID: c.ID})
	require.NoError(t, err)
	assert.NotNil(t, a.Metadata.OpenedAt)

	_, err = svc.HandleWebhook(ctx, WebhookEvent{Type: "bounced", CaseID: c.ID, AttemptNumber: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.HandleWebhook(ctx, WebhookEvent{Type: "reply"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
