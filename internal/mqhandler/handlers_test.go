package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"teamboard/contracts/mq"
	"teamboard/internal/model"
)

type fakeNotificationStore struct {
	inserted  []*model.Notification
	insertErr error
}

func (f *fakeNotificationStore) Insert(_ context.Context, n *model.Notification) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	n.ID = len(f.inserted) + 1
	f.inserted = append(f.inserted, n)
	return nil
}

type fakeDeduper struct {
	seen     map[string]bool
	released []string
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: make(map[string]bool)}
}

func (f *fakeDeduper) AcquireOnce(_ context.Context, handler, eventID string) bool {
	key := handler + ":" + eventID
	if f.seen[key] {
		return false
	}
	f.seen[key] = true
	return true
}

func (f *fakeDeduper) Release(_ context.Context, handler, eventID string) {
	key := handler + ":" + eventID
	delete(f.seen, key)
	f.released = append(f.released, key)
}

type pushed struct {
	userID  int
	msgType string
}

type fakePusher struct {
	pushes []pushed
}

func (f *fakePusher) Push(userID int, msgType string, _ any) {
	f.pushes = append(f.pushes, pushed{userID: userID, msgType: msgType})
}

type handlerFixture struct {
	notifications *fakeNotificationStore
	deduper       *fakeDeduper
	hub           *fakePusher
}

func newHandlerFixture() *handlerFixture {
	return &handlerFixture{
		notifications: &fakeNotificationStore{},
		deduper:       newFakeDeduper(),
		hub:           &fakePusher{},
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestInvitationCreatedNotifiesInvitee(t *testing.T) {
	f := newHandlerFixture()
	h := NewInvitationCreatedHandler(f.notifications, f.deduper, f.hub, zap.NewNop())

	raw := mustJSON(t, mq.InvitationCreatedPayload{
		EventID:     "evt-1",
		ProjectID:   3,
		ProjectName: "Apollo",
		InviteeID:   7,
		InviterID:   2,
		InviterName: "Alice",
		Role:        "member",
	})
	require.NoError(t, h.Handle(context.Background(), raw))

	require.Len(t, f.notifications.inserted, 1)
	n := f.notifications.inserted[0]
	assert.Equal(t, 7, n.UserID)
	assert.Equal(t, mq.RoutingKeyInvitationCreated, n.Kind)
	assert.Equal(t, "Alice invited you to join Apollo as member", n.Message)
	require.NotNil(t, n.ProjectID)
	assert.Equal(t, 3, *n.ProjectID)

	require.Len(t, f.hub.pushes, 1)
	assert.Equal(t, pushed{userID: 7, msgType: "notification"}, f.hub.pushes[0])
}

func TestInvitationResolutionNotifiesInviter(t *testing.T) {
	f := newHandlerFixture()
	accepted := NewInvitationAcceptedHandler(f.notifications, f.deduper, f.hub, zap.NewNop())
	declined := NewInvitationDeclinedHandler(f.notifications, f.deduper, f.hub, zap.NewNop())

	require.NoError(t, accepted.Handle(context.Background(), mustJSON(t, mq.InvitationAcceptedPayload{
		EventID:     "evt-a",
		ProjectID:   3,
		ProjectName: "Apollo",
		InviteeID:   7,
		InviteeName: "Bob",
		InviterID:   2,
	})))
	require.NoError(t, declined.Handle(context.Background(), mustJSON(t, mq.InvitationDeclinedPayload{
		EventID:     "evt-d",
		ProjectID:   3,
		ProjectName: "Apollo",
		InviteeID:   7,
		InviteeName: "Bob",
		InviterID:   2,
	})))

	require.Len(t, f.notifications.inserted, 2)
	assert.Equal(t, 2, f.notifications.inserted[0].UserID)
	assert.Equal(t, "Bob accepted your invitation to Apollo", f.notifications.inserted[0].Message)
	assert.Equal(t, 2, f.notifications.inserted[1].UserID)
	assert.Equal(t, "Bob declined your invitation to Apollo", f.notifications.inserted[1].Message)
}

func TestMalformedPayloadIsDropped(t *testing.T) {
	f := newHandlerFixture()
	h := NewTaskAssignedHandler(f.notifications, f.deduper, f.hub, zap.NewNop())

	// nil means ack: a broken payload never gets better on redelivery.
	require.NoError(t, h.Handle(context.Background(), json.RawMessage(`{not json`)))

	assert.Empty(t, f.notifications.inserted)
	assert.Empty(t, f.hub.pushes)
}

func TestDuplicateEventIsSkipped(t *testing.T) {
	f := newHandlerFixture()
	h := NewMemberRemovedHandler(f.notifications, f.deduper, f.hub, zap.NewNop())

	raw := mustJSON(t, mq.MemberRemovedPayload{
		EventID:     "evt-dup",
		ProjectID:   3,
		ProjectName: "Apollo",
		UserID:      7,
		RemovedBy:   2,
	})
	require.NoError(t, h.Handle(context.Background(), raw))
	require.NoError(t, h.Handle(context.Background(), raw))

	assert.Len(t, f.notifications.inserted, 1)
	assert.Len(t, f.hub.pushes, 1)
}

func TestRetryableInsertFailureRequeuesAndReleasesDedup(t *testing.T) {
	f := newHandlerFixture()
	f.notifications.insertErr = errors.New("connection refused")
	h := NewTaskAssignedHandler(f.notifications, f.deduper, f.hub, zap.NewNop())

	raw := mustJSON(t, mq.TaskAssignedPayload{
		EventID:     "evt-retry",
		TaskID:      12,
		ProjectID:   3,
		ProjectName: "Apollo",
		Title:       "Ship it",
		AssigneeID:  7,
		AssignerID:  2,
	})
	require.Error(t, h.Handle(context.Background(), raw))
	assert.Len(t, f.deduper.released, 1)
	assert.Empty(t, f.hub.pushes)

	// The freed dedup slot lets the redelivery go through.
	f.notifications.insertErr = nil
	require.NoError(t, h.Handle(context.Background(), raw))
	assert.Len(t, f.notifications.inserted, 1)
}

func TestNonRetryableInsertFailureIsAcked(t *testing.T) {
	f := newHandlerFixture()
	f.notifications.insertErr = errors.New("duplicate key value violates unique constraint")
	h := NewTaskAssignedHandler(f.notifications, f.deduper, f.hub, zap.NewNop())

	raw := mustJSON(t, mq.TaskAssignedPayload{
		EventID:    "evt-done",
		TaskID:     12,
		ProjectID:  3,
		Title:      "Ship it",
		AssigneeID: 7,
		AssignerID: 2,
	})
	require.NoError(t, h.Handle(context.Background(), raw))
	assert.Empty(t, f.notifications.inserted)
	assert.Empty(t, f.hub.pushes)
}

func TestTaskAssignedSkipsSelfAssignment(t *testing.T) {
	f := newHandlerFixture()
	h := NewTaskAssignedHandler(f.notifications, f.deduper, f.hub, zap.NewNop())

	require.NoError(t, h.Handle(context.Background(), mustJSON(t, mq.TaskAssignedPayload{
		EventID:    "evt-self",
		TaskID:     12,
		ProjectID:  3,
		Title:      "Ship it",
		AssigneeID: 7,
		AssignerID: 7,
	})))
	assert.Empty(t, f.notifications.inserted)

	require.NoError(t, h.Handle(context.Background(), mustJSON(t, mq.TaskAssignedPayload{
		EventID:     "evt-other",
		TaskID:      12,
		ProjectID:   3,
		ProjectName: "Apollo",
		Title:       "Ship it",
		AssigneeID:  7,
		AssignerID:  2,
	})))
	require.Len(t, f.notifications.inserted, 1)
	assert.Equal(t, 7, f.notifications.inserted[0].UserID)
	assert.Equal(t, `You were assigned "Ship it" in Apollo`, f.notifications.inserted[0].Message)
}

func TestCommentCreatedSkipRules(t *testing.T) {
	f := newHandlerFixture()
	h := NewCommentCreatedHandler(f.notifications, f.deduper, f.hub, zap.NewNop())

	base := mq.CommentCreatedPayload{
		CommentID:  5,
		TaskID:     12,
		TaskTitle:  "Ship it",
		ProjectID:  3,
		AuthorID:   2,
		AuthorName: "Alice",
	}

	unassigned := base
	unassigned.EventID = "evt-c1"
	unassigned.AssigneeID = 0
	require.NoError(t, h.Handle(context.Background(), mustJSON(t, unassigned)))

	ownTask := base
	ownTask.EventID = "evt-c2"
	ownTask.AssigneeID = 2
	require.NoError(t, h.Handle(context.Background(), mustJSON(t, ownTask)))

	assert.Empty(t, f.notifications.inserted)

	other := base
	other.EventID = "evt-c3"
	other.AssigneeID = 7
	require.NoError(t, h.Handle(context.Background(), mustJSON(t, other)))

	require.Len(t, f.notifications.inserted, 1)
	n := f.notifications.inserted[0]
	assert.Equal(t, 7, n.UserID)
	assert.Equal(t, `Alice commented on "Ship it"`, n.Message)
}

func TestMemberRemovedCarriesNoProjectLink(t *testing.T) {
	f := newHandlerFixture()
	h := NewMemberRemovedHandler(f.notifications, f.deduper, f.hub, zap.NewNop())

	require.NoError(t, h.Handle(context.Background(), mustJSON(t, mq.MemberRemovedPayload{
		EventID:     "evt-rm",
		ProjectID:   3,
		ProjectName: "Apollo",
		UserID:      7,
		RemovedBy:   2,
	})))

	require.Len(t, f.notifications.inserted, 1)
	n := f.notifications.inserted[0]
	assert.Equal(t, 7, n.UserID)
	assert.Equal(t, "You were removed from Apollo", n.Message)
	assert.Nil(t, n.ProjectID)
}
