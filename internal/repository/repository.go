package repository

import (
	"context"
	"errors"
	"time"

	"github.com/campusride/campusride-backend/internal/models"
)

// ErrNotFound is returned when the addressed record does not exist.
var ErrNotFound = errors.New("record not found")

// RideQuery filters ride offers. Zero values disable a filter.
type RideQuery struct {
	Status        models.RideStatus
	DepartureFrom time.Time
	DepartureTo   time.Time
}

// RideStore persists ride offers. Mutate is the only write path for an
// existing ride and runs fn while holding an exclusive hold on that ride.
type RideStore interface {
	Create(ctx context.Context, ride *models.RideOffer) error
	Get(ctx context.Context, id uint) (*models.RideOffer, error)
	Delete(ctx context.Context, id uint) error
	Mutate(ctx context.Context, id uint, fn func(ride *models.RideOffer) error) (*models.RideOffer, error)
	Search(ctx context.Context, q RideQuery) ([]models.RideOffer, error)
	ListForUser(ctx context.Context, userID uint) ([]models.RideOffer, error)
	ExistingIDs(ctx context.Context, ids []uint) (map[uint]bool, error)
}

// NotificationQuery selects a page of a user's notifications.
type NotificationQuery struct {
	RecipientID uint
	Category    string
	Priority    string
	IsRead      *bool
	Limit       int
	Offset      int
}

// NotificationStore persists per-recipient notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	Get(ctx context.Context, id uint) (*models.Notification, error)
	List(ctx context.Context, q NotificationQuery) ([]models.Notification, int64, error)
	MarkRead(ctx context.Context, id, recipientID uint, at time.Time) (*models.Notification, error)
	MarkAllRead(ctx context.Context, recipientID uint, category string, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, recipientID uint, category string) (int64, error)
	// RideLinked returns every notification whose payload carries a rideId.
	RideLinked(ctx context.Context) ([]models.Notification, error)
	Delete(ctx context.Context, id uint) error
}

// UserDirectory resolves profile records owned by the account service.
type UserDirectory interface {
	Users(ctx context.Context, ids []uint) (map[uint]models.User, error)
}

// FriendLister is the friend-graph collaborator.
type FriendLister interface {
	AcceptedFriends(ctx context.Context, userID uint) ([]uint, error)
}
