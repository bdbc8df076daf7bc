package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/campusride/campusride-backend/internal/models"
	"github.com/campusride/campusride-backend/internal/repository"
	"gorm.io/datatypes"
)

const (
	EventNewNotification = "new_notification"

	DefaultNotificationLimit = 20
	MaxNotificationLimit     = 100
)

// FanOut is the realtime channel notifications are pushed through.
type FanOut interface {
	EmitToUser(userID uint, event string, payload interface{})
}

type rideLookup interface {
	ExistingIDs(ctx context.Context, ids []uint) (map[uint]bool, error)
}

// NotificationEvent is one notification to persist and push.
type NotificationEvent struct {
	RecipientID uint
	SenderID    uint
	Type        models.NotificationType
	Title       string
	Message     string
	Data        map[string]interface{}
}

// NotificationFilter selects a page of a user's notifications.
type NotificationFilter struct {
	Limit    int
	Offset   int
	Category string
	Priority string
	IsRead   *bool
}

type NotificationPage struct {
	Notifications []models.Notification `json:"notifications"`
	Total         int64                 `json:"total"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

// ErrPartialBroadcast marks a friend broadcast where some recipients could not
// be notified. The returned count covers the ones that were.
var ErrPartialBroadcast = errors.New("some friends could not be notified")

// SOSAlert is the body of an emergency broadcast.
type SOSAlert struct {
	Message  string
	Location string
}

type NotificationService struct {
	store   repository.NotificationStore
	rides   rideLookup
	friends repository.FriendLister
	fanout  FanOut
	logger  *slog.Logger
	now     func() time.Time
}

func NewNotificationService(store repository.NotificationStore, rides rideLookup, friends repository.FriendLister, fanout FanOut, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		store:   store,
		rides:   rides,
		friends: friends,
		fanout:  fanout,
		logger:  logger,
		now:     time.Now,
	}
}

// Notify persists each event and pushes it to the recipient's room. A failed
// write skips that event and is reported in the joined error; the push is
// fire-and-forget.
func (s *NotificationService) Notify(ctx context.Context, events []NotificationEvent) ([]models.Notification, error) {
	created := make([]models.Notification, 0, len(events))
	var errs []error

	for _, ev := range events {
		if ev.RecipientID == 0 {
			continue
		}
		n := models.Notification{
			RecipientID: ev.RecipientID,
			SenderID:    ev.SenderID,
			Type:        ev.Type,
			Title:       ev.Title,
			Message:     ev.Message,
			Data:        datatypes.JSONMap(ev.Data),
			Category:    ev.Type.Category(),
			Priority:    ev.Type.Priority(),
			CreatedAt:   s.now(),
		}
		if n.Data == nil {
			n.Data = datatypes.JSONMap{}
		}

		if err := s.store.Create(ctx, &n); err != nil {
			NotificationsTotal.WithLabelValues(string(ev.Type), "error").Inc()
			s.logger.Error("notification write failed",
				"recipient_id", ev.RecipientID, "type", ev.Type, "error", err)
			errs = append(errs, fmt.Errorf("notify %d: %w", ev.RecipientID, err))
			continue
		}
		NotificationsTotal.WithLabelValues(string(ev.Type), "ok").Inc()

		if s.fanout != nil {
			s.fanout.EmitToUser(n.RecipientID, EventNewNotification, n.Payload())
		}
		created = append(created, n)
	}

	return created, errors.Join(errs...)
}

func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uint) (*models.Notification, error) {
	n, err := s.store.MarkRead(ctx, id, userID, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("notification %d not found", id)
	}
	return n, err
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint, category string) (int64, error) {
	return s.store.MarkAllRead(ctx, userID, category, s.now())
}

func (s *NotificationService) GetUserNotifications(ctx context.Context, userID uint, f NotificationFilter) (NotificationPage, error) {
	if f.Offset < 0 {
		return NotificationPage{}, validationError("offset must not be negative")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultNotificationLimit
	case f.Limit > MaxNotificationLimit:
		f.Limit = MaxNotificationLimit
	}

	list, total, err := s.store.List(ctx, repository.NotificationQuery{
		RecipientID: userID,
		Category:    f.Category,
		Priority:    f.Priority,
		IsRead:      f.IsRead,
		Limit:       f.Limit,
		Offset:      f.Offset,
	})
	if err != nil {
		return NotificationPage{}, err
	}
	return NotificationPage{Notifications: list, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (s *NotificationService) GetUnreadCount(ctx context.Context, userID uint, category string) (int64, error) {
	return s.store.UnreadCount(ctx, userID, category)
}

// DeleteNotification removes a notification owned by userID.
func (s *NotificationService) DeleteNotification(ctx context.Context, id, userID uint) error {
	n, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && n.RecipientID != userID) {
		return notFound("notification %d not found", id)
	}
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("notification %d not found", id)
		}
		return err
	}
	return nil
}

// CleanupOrphaned deletes ride notifications whose ride no longer exists and
// returns how many were removed. A failed delete is logged and skipped.
func (s *NotificationService) CleanupOrphaned(ctx context.Context) (int, error) {
	linked, err := s.store.RideLinked(ctx)
	if err != nil {
		return 0, fmt.Errorf("list ride notifications: %w", err)
	}
	if len(linked) == 0 {
		return 0, nil
	}

	ids := make([]uint, 0, len(linked))
	seen := make(map[uint]bool)
	for i := range linked {
		if id, ok := linked[i].RideID(); ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	existing, err := s.rides.ExistingIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("resolve rides: %w", err)
	}

	deleted := 0
	for i := range linked {
		n := &linked[i]
		if id, ok := n.RideID(); ok && existing[id] {
			continue
		}
		if err := s.store.Delete(ctx, n.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("orphan cleanup: delete failed", "notification_id", n.ID, "error", err)
			continue
		}
		deleted++
	}

	OrphanedNotificationsDeleted.Add(float64(deleted))
	return deleted, nil
}

// BroadcastStatusChange tells every accepted friend of userID about a new
// status and returns how many were notified.
func (s *NotificationService) BroadcastStatusChange(ctx context.Context, userID uint, status string) (int, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return 0, validationError("status is required")
	}
	return s.toFriends(ctx, userID, func(friendID uint) NotificationEvent {
		return NotificationEvent{
			RecipientID: friendID,
			SenderID:    userID,
			Type:        models.NotificationStatusChange,
			Title:       "Status update",
			Message:     fmt.Sprintf("Your friend is now %s", status),
			Data:        map[string]interface{}{"userId": userID, "status": status},
		}
	})
}

// SendSOS sends an urgent alert to every accepted friend of userID.
func (s *NotificationService) SendSOS(ctx context.Context, userID uint, alert SOSAlert) (int, error) {
	message := strings.TrimSpace(alert.Message)
	if message == "" {
		message = "Your friend needs help"
	}
	return s.toFriends(ctx, userID, func(friendID uint) NotificationEvent {
		return NotificationEvent{
			RecipientID: friendID,
			SenderID:    userID,
			Type:        models.NotificationSOS,
			Title:       "SOS alert",
			Message:     message,
			Data:        map[string]interface{}{"userId": userID, "location": alert.Location},
		}
	})
}

func (s *NotificationService) toFriends(ctx context.Context, userID uint, build func(friendID uint) NotificationEvent) (int, error) {
	friends, err := s.friends.AcceptedFriends(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list friends: %w", err)
	}
	events := make([]NotificationEvent, 0, len(friends))
	for _, id := range friends {
		events = append(events, build(id))
	}
	created, err := s.Notify(ctx, events)
	if err != nil {
		return len(created), fmt.Errorf("%w: %d of %d: %w", ErrPartialBroadcast, len(events)-len(created), len(events), err)
	}
	return len(created), nil
}
