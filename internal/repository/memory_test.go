package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campusride/campusride-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestMemoryRideStoreMutateIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRideStore()

	ride := &models.RideOffer{OwnerID: 1, AvailableSeats: 2, Status: models.RideStatusPending}
	require.NoError(t, store.Create(ctx, ride))
	require.NotZero(t, ride.ID)

	t.Run("failed mutation leaves state untouched", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := store.Mutate(ctx, ride.ID, func(r *models.RideOffer) error {
			r.Status = models.RideStatusCancelled
			r.ConfirmedRiders = append(r.ConfirmedRiders, models.Confirmation{UserID: 2, SeatCount: 1})
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, err := store.Get(ctx, ride.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RideStatusPending, got.Status)
		assert.Empty(t, got.ConfirmedRiders)
	})

	t.Run("returned copies do not alias the store", func(t *testing.T) {
		got, err := store.Get(ctx, ride.ID)
		require.NoError(t, err)
		got.RequestedRiders = append(got.RequestedRiders, models.SeatRequest{UserID: 9, SeatCount: 1})

		again, err := store.Get(ctx, ride.ID)
		require.NoError(t, err)
		assert.Empty(t, again.RequestedRiders)
	})

	t.Run("missing ride", func(t *testing.T) {
		_, err := store.Mutate(ctx, 999, func(*models.RideOffer) error { return nil })
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, 999), ErrNotFound)
	})
}

func TestMemoryRideStoreSearchAndList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRideStore()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	early := &models.RideOffer{OwnerID: 1, DepartureTime: base, AvailableSeats: 1, Status: models.RideStatusPending}
	late := &models.RideOffer{OwnerID: 2, DepartureTime: base.Add(2 * time.Hour), AvailableSeats: 1, Status: models.RideStatusPending,
		RequestedRiders: []models.SeatRequest{{RequestID: "r1", UserID: 1, SeatCount: 1}}}
	done := &models.RideOffer{OwnerID: 3, DepartureTime: base.Add(time.Hour), AvailableSeats: 1, Status: models.RideStatusCompleted}
	for _, r := range []*models.RideOffer{late, early, done} {
		require.NoError(t, store.Create(ctx, r))
	}

	pending, err := store.Search(ctx, RideQuery{Status: models.RideStatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, early.ID, pending[0].ID)
	assert.Equal(t, late.ID, pending[1].ID)

	window, err := store.Search(ctx, RideQuery{DepartureFrom: base.Add(30 * time.Minute), DepartureTo: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, done.ID, window[0].ID)

	mine, err := store.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, late.ID, mine[0].ID, "newest departure first")

	ids, err := store.ExistingIDs(ctx, []uint{early.ID, 42})
	require.NoError(t, err)
	assert.True(t, ids[early.ID])
	assert.False(t, ids[42])
}

func TestMemoryNotificationStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryNotificationStore()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		category := models.CategoryRide
		if i%2 == 1 {
			category = models.CategorySocial
		}
		n := &models.Notification{
			RecipientID: 7,
			Type:        models.NotificationRideRequest,
			Title:       "t",
			Category:    category,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			Data:        datatypes.JSONMap{"rideId": uint(i + 1)},
		}
		require.NoError(t, store.Create(ctx, n))
	}
	require.NoError(t, store.Create(ctx, &models.Notification{RecipientID: 8, Title: "other", CreatedAt: base}))

	page, total, err := store.List(ctx, NotificationQuery{RecipientID: 7, Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))
	assert.Equal(t, base.Add(3*time.Minute), page[0].CreatedAt)

	_, err = store.MarkRead(ctx, 1, 8, base)
	assert.ErrorIs(t, err, ErrNotFound, "only the recipient can mark read")

	n, err := store.MarkRead(ctx, 1, 7, base)
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	require.NotNil(t, n.ReadAt)

	count, err := store.UnreadCount(ctx, 7, models.CategoryRide)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	marked, err := store.MarkAllRead(ctx, 7, "", base)
	require.NoError(t, err)
	assert.EqualValues(t, 4, marked)

	linked, err := store.RideLinked(ctx)
	require.NoError(t, err)
	assert.Len(t, linked, 5)
}

func TestMemoryDirectoryFriends(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()
	dir.AddUser(models.User{ID: 1, Name: "Ada", Gender: "female"})
	dir.AddFriendship(1, 2)
	dir.AddFriendship(3, 1)
	dir.AddFriendship(2, 1)

	friends, err := dir.AcceptedFriends(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{2, 3}, friends)

	users, err := dir.Users(ctx, []uint{1, 5})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, "female", users[1].Gender)
}
