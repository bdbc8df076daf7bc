package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/campusride/campusride-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	desired := MatchRequest{StartLocation: "North Dorms", EndLocation: "Library", DepartureTime: testNow}

	tests := []struct {
		name string
		ride models.RideOffer
		want int
	}{
		{
			name: "exact time no route match",
			ride: models.RideOffer{DepartureTime: testNow, StartLocation: "Stadium", EndLocation: "Gym"},
			want: 100,
		},
		{
			name: "ten minutes late",
			ride: models.RideOffer{DepartureTime: testNow.Add(10 * time.Minute), StartLocation: "Stadium", EndLocation: "Gym"},
			want: 80,
		},
		{
			name: "far off in time with route match",
			ride: models.RideOffer{DepartureTime: testNow.Add(-3 * time.Hour), StartLocation: "dorms", EndLocation: "Main Library"},
			want: 40,
		},
		{
			name: "ratings add ten per star",
			ride: models.RideOffer{
				DepartureTime: testNow.Add(45 * time.Minute), StartLocation: "Stadium", EndLocation: "Gym",
				Ratings: []models.Rating{{Score: 4}, {Score: 5}},
			},
			want: 55,
		},
		{
			name: "capped at one hundred",
			ride: models.RideOffer{DepartureTime: testNow, StartLocation: "north dorms", EndLocation: "library"},
			want: 100,
		},
		{
			name: "rounds half minutes",
			ride: models.RideOffer{DepartureTime: testNow.Add(90 * time.Second), StartLocation: "Stadium", EndLocation: "Gym"},
			want: 97,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(&tt.ride, desired))
		})
	}
}

func TestMatchPrefersCloserDeparture(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.directory.AddUser(models.User{ID: 1, Gender: "female"})
	h.directory.AddUser(models.User{ID: 2, Gender: "male"})

	later, err := h.engine.CreateOffer(ctx, CreateOfferInput{OwnerID: 1, DepartureTime: testNow.Add(10 * time.Minute), StartLocation: "Stadium", EndLocation: "Gym", AvailableSeats: 1})
	require.NoError(t, err)
	onTime, err := h.engine.CreateOffer(ctx, CreateOfferInput{OwnerID: 2, DepartureTime: testNow, StartLocation: "Stadium", EndLocation: "Gym", AvailableSeats: 1})
	require.NoError(t, err)

	list, err := h.matcher.Match(ctx, MatchRequest{StartLocation: "Library", EndLocation: "Gate 2", DepartureTime: testNow})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, onTime.ID, list[0].ID)
	assert.Equal(t, later.ID, list[1].ID)
	assert.Greater(t, list[0].MatchScore, list[1].MatchScore)
	assert.Equal(t, "male", list[0].OwnerGender)
	assert.Equal(t, "female", list[1].OwnerGender)
}

func TestMatchFiltersAndKeepsTieOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.directory.AddUser(models.User{ID: 1, Gender: "female"})

	var ids []uint
	for i := 0; i < 3; i++ {
		r, err := h.engine.CreateOffer(ctx, CreateOfferInput{OwnerID: 1, DepartureTime: testNow.Add(time.Hour), StartLocation: "A", EndLocation: "B", AvailableSeats: 2})
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	_, err := h.engine.CreateOffer(ctx, CreateOfferInput{OwnerID: 99, DepartureTime: testNow, StartLocation: "A", EndLocation: "B", AvailableSeats: 1})
	require.NoError(t, err, "owner 99 has no profile")

	cancelled, err := h.engine.CreateOffer(ctx, CreateOfferInput{OwnerID: 1, DepartureTime: testNow, StartLocation: "A", EndLocation: "B", AvailableSeats: 1})
	require.NoError(t, err)
	_, err = h.engine.CancelRide(ctx, cancelled.ID, 1, "")
	require.NoError(t, err)

	list, err := h.matcher.Match(ctx, MatchRequest{StartLocation: "A", EndLocation: "B", DepartureTime: testNow})
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, c := range list {
		assert.Equal(t, ids[i], c.ID)
		assert.Equal(t, list[0].MatchScore, c.MatchScore)
	}

	_, err = h.matcher.Match(ctx, MatchRequest{StartLocation: "A"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMatchStreamPushesOnChangeAndReleasesSubscription(t *testing.T) {
	h := newHarness(t)
	h.directory.AddUser(models.User{ID: 1, Gender: "female"})
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var pushes [][]MatchCandidate
	done := make(chan error, 1)
	go func() {
		done <- h.matcher.Stream(ctx, MatchRequest{StartLocation: "Library", EndLocation: "Gate", DepartureTime: testNow}, func(list []MatchCandidate) error {
			mu.Lock()
			defer mu.Unlock()
			pushes = append(pushes, list)
			return nil
		})
	}()

	pushCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(pushes)
	}

	require.Eventually(t, func() bool { return pushCount() == 1 && h.feed.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	h.offer(t, 1, 2)
	require.Eventually(t, func() bool { return pushCount() >= 2 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	first, last := pushes[0], pushes[len(pushes)-1]
	mu.Unlock()
	assert.Empty(t, first)
	require.Len(t, last, 1)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after cancel")
	}
	assert.Eventually(t, func() bool { return h.feed.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}
