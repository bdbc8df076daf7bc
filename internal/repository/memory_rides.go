package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campusride/campusride-backend/internal/models"
)

// MemoryRideStore is the in-process ride store used in dev mode and tests.
// The store lock is held for the whole of Mutate, which serializes writers.
type MemoryRideStore struct {
	mu     sync.Mutex
	rides  map[uint]*models.RideOffer
	nextID uint
	now    func() time.Time
}

func NewMemoryRideStore() *MemoryRideStore {
	return &MemoryRideStore{
		rides: make(map[uint]*models.RideOffer),
		now:   time.Now,
	}
}

func (s *MemoryRideStore) Create(_ context.Context, ride *models.RideOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	ride.ID = s.nextID
	now := s.now()
	if ride.CreatedAt.IsZero() {
		ride.CreatedAt = now
	}
	ride.UpdatedAt = now
	s.rides[ride.ID] = ride.Clone()
	return nil
}

func (s *MemoryRideStore) Get(_ context.Context, id uint) (*models.RideOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ride, ok := s.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ride.Clone(), nil
}

func (s *MemoryRideStore) Delete(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rides[id]; !ok {
		return ErrNotFound
	}
	delete(s.rides, id)
	return nil
}

func (s *MemoryRideStore) Mutate(_ context.Context, id uint, fn func(ride *models.RideOffer) error) (*models.RideOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = s.now()
	s.rides[id] = working
	return working.Clone(), nil
}

func (s *MemoryRideStore) Search(_ context.Context, q RideQuery) ([]models.RideOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.RideOffer, 0)
	for _, ride := range s.rides {
		if q.Status != "" && ride.Status != q.Status {
			continue
		}
		if !q.DepartureFrom.IsZero() && ride.DepartureTime.Before(q.DepartureFrom) {
			continue
		}
		if !q.DepartureTo.IsZero() && ride.DepartureTime.After(q.DepartureTo) {
			continue
		}
		out = append(out, *ride.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepartureTime.Equal(out[j].DepartureTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].DepartureTime.Before(out[j].DepartureTime)
	})
	return out, nil
}

func (s *MemoryRideStore) ListForUser(_ context.Context, userID uint) ([]models.RideOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.RideOffer, 0)
	for _, ride := range s.rides {
		if ride.OwnerID == userID || ride.HasRequested(userID) || ride.IsConfirmed(userID) {
			out = append(out, *ride.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepartureTime.Equal(out[j].DepartureTime) {
			return out[i].ID > out[j].ID
		}
		return out[i].DepartureTime.After(out[j].DepartureTime)
	})
	return out, nil
}

func (s *MemoryRideStore) ExistingIDs(_ context.Context, ids []uint) (map[uint]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.rides[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}
