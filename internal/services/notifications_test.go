package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campusride/campusride-backend/internal/models"
	"github.com/campusride/campusride-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	repository.NotificationStore
	failFor   uint
	deleteErr map[uint]error
}

func (f *failingStore) Create(ctx context.Context, n *models.Notification) error {
	if n.RecipientID == f.failFor {
		return errors.New("disk full")
	}
	return f.NotificationStore.Create(ctx, n)
}

func (f *failingStore) Delete(ctx context.Context, id uint) error {
	if err, ok := f.deleteErr[id]; ok {
		return err
	}
	return f.NotificationStore.Delete(ctx, id)
}

func TestNotifyPersistsAndPushes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.notifier.Notify(ctx, []NotificationEvent{
		{RecipientID: 2, SenderID: 1, Type: models.NotificationEtaChange, Title: "ETA", Message: "5 min", Data: map[string]interface{}{"rideId": uint(4)}},
		{RecipientID: 0, Type: models.NotificationEtaChange, Title: "dropped"},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	n := created[0]
	assert.False(t, n.IsRead)
	assert.Nil(t, n.ReadAt)
	assert.Equal(t, models.CategoryRide, n.Category)
	assert.Equal(t, models.PriorityNormal, n.Priority)

	require.Len(t, h.fanout.events, 1)
	ev := h.fanout.events[0]
	assert.Equal(t, uint(2), ev.UserID)
	assert.Equal(t, EventNewNotification, ev.Event)
	payload := ev.Payload.(models.NotificationPayload)
	assert.Equal(t, n.ID, payload.ID)
	assert.Equal(t, "5 min", payload.Message)
	assert.Equal(t, uint(4), payload.Data["rideId"])
}

func TestNotifyContinuesPastStoreFailure(t *testing.T) {
	store := &failingStore{NotificationStore: repository.NewMemoryNotificationStore(), failFor: 2}
	fanout := &recordingFanOut{}
	svc := NewNotificationService(store, repository.NewMemoryRideStore(), repository.NewMemoryDirectory(), fanout, discardLogger())

	created, err := svc.Notify(context.Background(), []NotificationEvent{
		{RecipientID: 2, Type: models.NotificationRideCompletion, Title: "a"},
		{RecipientID: 3, Type: models.NotificationRideCompletion, Title: "b"},
	})
	assert.Error(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, uint(3), created[0].RecipientID)
	assert.Equal(t, []uint{3}, fanout.recipients(), "failed writes are not pushed")
}

func TestFriendBroadcastReportsPartialFailure(t *testing.T) {
	store := &failingStore{NotificationStore: repository.NewMemoryNotificationStore(), failFor: 3}
	directory := repository.NewMemoryDirectory()
	directory.AddFriendship(1, 2)
	directory.AddFriendship(1, 3)
	svc := NewNotificationService(store, repository.NewMemoryRideStore(), directory, &recordingFanOut{}, discardLogger())

	sent, err := svc.SendSOS(context.Background(), 1, SOSAlert{Message: "help"})
	assert.ErrorIs(t, err, ErrPartialBroadcast)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Equal(t, 1, sent)

	store.failFor = 0
	sent, err = svc.BroadcastStatusChange(context.Background(), 1, "home")
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
}

func TestCleanupOrphanedToleratesDeleteFailure(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemoryNotificationStore()
	store := &failingStore{NotificationStore: mem, deleteErr: map[uint]error{}}
	svc := NewNotificationService(store, repository.NewMemoryRideStore(), repository.NewMemoryDirectory(), nil, discardLogger())

	for i := 0; i < 3; i++ {
		require.NoError(t, mem.Create(ctx, &models.Notification{RecipientID: 1, Type: models.NotificationRideRequest, Data: map[string]interface{}{"rideId": float64(50 + i)}}))
	}
	store.deleteErr[1] = errors.New("connection reset")

	deleted, err := svc.CleanupOrphaned(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	left, err := mem.RideLinked(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, uint(1), left[0].ID)
}

func TestReadState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.notifier.Notify(ctx, []NotificationEvent{
		{RecipientID: 2, Type: models.NotificationRideRequest, Title: "a"},
		{RecipientID: 2, Type: models.NotificationFriendRequest, Title: "b"},
		{RecipientID: 2, Type: models.NotificationStatusChange, Title: "c"},
		{RecipientID: 3, Type: models.NotificationRideRequest, Title: "d"},
	})
	require.NoError(t, err)

	_, err = h.notifier.MarkAsRead(ctx, created[0].ID, 3)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := h.notifier.MarkAsRead(ctx, created[0].ID, 2)
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	require.NotNil(t, n.ReadAt)
	assert.Equal(t, testNow, *n.ReadAt)

	count, err := h.notifier.GetUnreadCount(ctx, 2, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	marked, err := h.notifier.MarkAllAsRead(ctx, 2, models.CategorySocial)
	require.NoError(t, err)
	assert.EqualValues(t, 2, marked)

	count, err = h.notifier.GetUnreadCount(ctx, 2, "")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = h.notifier.GetUnreadCount(ctx, 3, models.CategoryRide)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	assert.ErrorIs(t, h.notifier.DeleteNotification(ctx, created[3].ID, 2), ErrNotFound)
	require.NoError(t, h.notifier.DeleteNotification(ctx, created[3].ID, 3))
	assert.ErrorIs(t, h.notifier.DeleteNotification(ctx, created[3].ID, 3), ErrNotFound)
}

func TestGetUserNotificationsPaging(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	clock := testNow
	h.notifier.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	events := make([]NotificationEvent, 0, 130)
	for i := 0; i < 130; i++ {
		events = append(events, NotificationEvent{RecipientID: 2, Type: models.NotificationRideRequest, Title: "r"})
	}
	_, err := h.notifier.Notify(ctx, events)
	require.NoError(t, err)

	page, err := h.notifier.GetUserNotifications(ctx, 2, NotificationFilter{})
	require.NoError(t, err)
	assert.Equal(t, DefaultNotificationLimit, page.Limit)
	assert.Len(t, page.Notifications, DefaultNotificationLimit)
	assert.EqualValues(t, 130, page.Total)
	assert.True(t, page.Notifications[0].CreatedAt.After(page.Notifications[1].CreatedAt), "newest first")

	page, err = h.notifier.GetUserNotifications(ctx, 2, NotificationFilter{Limit: 500, Offset: 100})
	require.NoError(t, err)
	assert.Equal(t, MaxNotificationLimit, page.Limit)
	assert.Len(t, page.Notifications, 30)

	unread := false
	page, err = h.notifier.GetUserNotifications(ctx, 2, NotificationFilter{IsRead: &unread, Priority: models.PriorityNormal})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	_, err = h.notifier.GetUserNotifications(ctx, 2, NotificationFilter{Offset: -1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFriendBroadcasts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.directory.AddFriendship(1, 2)
	h.directory.AddFriendship(3, 1)

	sent, err := h.notifier.BroadcastStatusChange(ctx, 1, "in class")
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.ElementsMatch(t, []uint{2, 3}, h.fanout.recipients())

	_, err = h.notifier.BroadcastStatusChange(ctx, 1, "")
	assert.ErrorIs(t, err, ErrValidation)

	h.fanout.reset()
	sent, err = h.notifier.SendSOS(ctx, 1, SOSAlert{Location: "Parking lot B"})
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	page, err := h.notifier.GetUserNotifications(ctx, 2, NotificationFilter{Category: models.CategoryEmergency})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	sos := page.Notifications[0]
	assert.Equal(t, models.NotificationSOS, sos.Type)
	assert.Equal(t, models.PriorityUrgent, sos.Priority)
	assert.Equal(t, "Parking lot B", sos.Data["location"])

	sent, err = h.notifier.SendSOS(ctx, 42, SOSAlert{Message: "help"})
	require.NoError(t, err)
	assert.Zero(t, sent, "no friends, no alerts")
}
