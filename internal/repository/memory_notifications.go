package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campusride/campusride-backend/internal/models"
)

type MemoryNotificationStore struct {
	mu     sync.RWMutex
	items  map[uint]models.Notification
	nextID uint
	now    func() time.Time
}

func NewMemoryNotificationStore() *MemoryNotificationStore {
	return &MemoryNotificationStore{
		items: make(map[uint]models.Notification),
		now:   time.Now,
	}
}

func (s *MemoryNotificationStore) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	n.ID = s.nextID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.items[n.ID] = *n
	return nil
}

func (s *MemoryNotificationStore) Get(_ context.Context, id uint) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (s *MemoryNotificationStore) matching(recipientID uint, keep func(models.Notification) bool) []models.Notification {
	out := make([]models.Notification, 0)
	for _, n := range s.items {
		if n.RecipientID == recipientID && keep(n) {
			out = append(out, n)
		}
	}
	return out
}

func (s *MemoryNotificationStore) List(_ context.Context, q NotificationQuery) ([]models.Notification, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.matching(q.RecipientID, func(n models.Notification) bool {
		if q.Category != "" && n.Category != q.Category {
			return false
		}
		if q.Priority != "" && n.Priority != q.Priority {
			return false
		}
		return q.IsRead == nil || n.IsRead == *q.IsRead
	})
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	total := int64(len(list))
	if q.Offset >= len(list) {
		return []models.Notification{}, total, nil
	}
	list = list[q.Offset:]
	if q.Limit > 0 && q.Limit < len(list) {
		list = list[:q.Limit]
	}
	return list, total, nil
}

func (s *MemoryNotificationStore) MarkRead(_ context.Context, id, recipientID uint, at time.Time) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.items[id]
	if !ok || n.RecipientID != recipientID {
		return nil, ErrNotFound
	}
	if !n.IsRead {
		n.IsRead = true
		n.ReadAt = &at
		s.items[id] = n
	}
	return &n, nil
}

func (s *MemoryNotificationStore) MarkAllRead(_ context.Context, recipientID uint, category string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, n := range s.items {
		if n.RecipientID != recipientID || n.IsRead {
			continue
		}
		if category != "" && n.Category != category {
			continue
		}
		n.IsRead = true
		readAt := at
		n.ReadAt = &readAt
		s.items[id] = n
		count++
	}
	return count, nil
}

func (s *MemoryNotificationStore) UnreadCount(_ context.Context, recipientID uint, category string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unread := s.matching(recipientID, func(n models.Notification) bool {
		return !n.IsRead && (category == "" || n.Category == category)
	})
	return int64(len(unread)), nil
}

func (s *MemoryNotificationStore) RideLinked(_ context.Context) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Notification, 0)
	for _, n := range s.items {
		if _, ok := n.Data["rideId"]; ok {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryNotificationStore) Delete(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}
