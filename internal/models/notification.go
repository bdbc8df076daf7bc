package models

import (
	"encoding/json"
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// NotificationType identifies the event a notification was created for.
type NotificationType string

const (
	NotificationRideRequest      NotificationType = "ride_request"
	NotificationRideConfirmation NotificationType = "ride_confirmation"
	NotificationRideCancellation NotificationType = "ride_cancellation"
	NotificationEtaChange        NotificationType = "eta_change"
	NotificationRideCompletion   NotificationType = "ride_completion"
	NotificationFriendRequest    NotificationType = "friend_request"
	NotificationStatusChange     NotificationType = "status_change"
	NotificationSOS              NotificationType = "sos"
)

const (
	CategoryRide      = "ride"
	CategorySocial    = "social"
	CategoryEmergency = "emergency"
	CategoryGeneral   = "general"
)

const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// Category returns the category a notification of this type is filed under.
func (t NotificationType) Category() string {
	switch t {
	case NotificationRideRequest, NotificationRideConfirmation, NotificationRideCancellation,
		NotificationEtaChange, NotificationRideCompletion:
		return CategoryRide
	case NotificationFriendRequest, NotificationStatusChange:
		return CategorySocial
	case NotificationSOS:
		return CategoryEmergency
	default:
		return CategoryGeneral
	}
}

// Priority returns the default delivery priority for this type.
func (t NotificationType) Priority() string {
	switch t {
	case NotificationSOS:
		return PriorityUrgent
	case NotificationRideRequest, NotificationRideCancellation:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

// Notification is a persisted per-recipient message. Data.rideId is a weak
// reference to a RideOffer and may dangle after the ride is deleted.
type Notification struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	RecipientID uint              `gorm:"not null;index:idx_notifications_recipient" json:"recipientId"`
	SenderID    uint              `json:"senderId"`
	Type        NotificationType  `gorm:"type:varchar(32);not null;index" json:"type"`
	Title       string            `gorm:"not null" json:"title"`
	Message     string            `json:"message"`
	Data        datatypes.JSONMap `gorm:"type:jsonb" json:"data"`
	Category    string            `gorm:"type:varchar(32);index" json:"category"`
	Priority    string            `gorm:"type:varchar(16)" json:"priority"`
	IsRead      bool              `gorm:"not null;default:false;index:idx_notifications_recipient" json:"isRead"`
	ReadAt      *time.Time        `json:"readAt,omitempty"`
	CreatedAt   time.Time         `gorm:"index" json:"createdAt"`
}

// TableName specifies the table name
func (Notification) TableName() string {
	return "notifications"
}

// RideID extracts data.rideId. Values decoded from jsonb arrive as float64,
// values set in-process keep their Go type.
func (n *Notification) RideID() (uint, bool) {
	if n.Data == nil {
		return 0, false
	}
	switch v := n.Data["rideId"].(type) {
	case uint:
		return v, v != 0
	case int:
		return uint(v), v > 0
	case int64:
		return uint(v), v > 0
	case float64:
		return uint(v), v > 0
	case json.Number:
		id, err := strconv.ParseUint(v.String(), 10, 64)
		return uint(id), err == nil && id > 0
	case string:
		id, err := strconv.ParseUint(v, 10, 64)
		return uint(id), err == nil && id > 0
	default:
		return 0, false
	}
}

// NotificationPayload is the body of a live `new_notification` event.
type NotificationPayload struct {
	ID        uint              `json:"id"`
	Type      NotificationType  `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Data      datatypes.JSONMap `json:"data"`
	IsRead    bool              `json:"isRead"`
	CreatedAt time.Time         `json:"createdAt"`
}

func (n *Notification) Payload() NotificationPayload {
	return NotificationPayload{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
