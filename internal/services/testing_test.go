package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/campusride/campusride-backend/internal/models"
	"github.com/campusride/campusride-backend/internal/repository"
)

var testNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) // a Wednesday

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type emitted struct {
	UserID  uint
	Event   string
	Payload interface{}
}

type recordingFanOut struct {
	mu     sync.Mutex
	events []emitted
}

func (f *recordingFanOut) EmitToUser(userID uint, event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{UserID: userID, Event: event, Payload: payload})
}

func (f *recordingFanOut) recipients() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.UserID)
	}
	return out
}

func (f *recordingFanOut) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

type harness struct {
	rides         *repository.MemoryRideStore
	notifications *repository.MemoryNotificationStore
	directory     *repository.MemoryDirectory
	fanout        *recordingFanOut
	feed          *LocalFeed
	notifier      *NotificationService
	engine        *RideService
	matcher       *Matcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		rides:         repository.NewMemoryRideStore(),
		notifications: repository.NewMemoryNotificationStore(),
		directory:     repository.NewMemoryDirectory(),
		fanout:        &recordingFanOut{},
		feed:          NewLocalFeed(),
	}
	logger := discardLogger()
	h.notifier = NewNotificationService(h.notifications, h.rides, h.directory, h.fanout, logger)
	h.notifier.now = func() time.Time { return testNow }
	h.engine = NewRideService(h.rides, h.notifier, h.feed, logger, RideOptions{Now: func() time.Time { return testNow }})
	h.matcher = NewMatcher(h.rides, h.directory, h.feed, logger)
	t.Cleanup(h.engine.Wait)
	return h
}

func (h *harness) offer(t *testing.T, owner uint, seats int) *models.RideOffer {
	t.Helper()
	ride, err := h.engine.CreateOffer(context.Background(), CreateOfferInput{
		OwnerID:        owner,
		DepartureTime:  testNow.Add(time.Hour),
		StartLocation:  "Library",
		EndLocation:    "Gate 2",
		AvailableSeats: seats,
	})
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	return ride
}
