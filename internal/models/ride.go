package models

import (
	"time"
)

// RideStatus is the lifecycle state of a ride offer.
type RideStatus string

const (
	RideStatusPending   RideStatus = "pending"
	RideStatusConfirmed RideStatus = "confirmed"
	RideStatusCancelled RideStatus = "cancelled"
	RideStatusCompleted RideStatus = "completed"
)

// IsTerminal reports whether no further lifecycle transitions are allowed.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCancelled || s == RideStatusCompleted
}

// Recurrence describes how a recurring offer was expanded.
type Recurrence struct {
	Days      []string `json:"days"`
	Frequency string   `json:"frequency"`
	Hour      int      `json:"hour"`
	Minute    int      `json:"minute"`
}

// SeatRequest is a pending ask for seats on a ride.
type SeatRequest struct {
	RequestID   string    `json:"requestId"`
	UserID      uint      `json:"userId"`
	SeatCount   int       `json:"seatCount"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Confirmation is a seat request the owner accepted.
type Confirmation struct {
	UserID      uint      `json:"userId"`
	SeatCount   int       `json:"seatCount"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

// Rating is post-ride feedback attached to the ride.
type Rating struct {
	RiderID   uint      `json:"riderId"`
	RaterID   uint      `json:"raterId"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment,omitempty"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RideOffer is a published trip. Seat requests, confirmations and ratings
// are stored inline on the row so a single row lock covers every seat
// mutation.
type RideOffer struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	OwnerID         uint           `gorm:"not null;index" json:"ownerId"`
	DepartureTime   time.Time      `gorm:"not null;index" json:"departureTime"`
	StartLocation   string         `gorm:"not null" json:"startLocation"`
	EndLocation     string         `gorm:"not null" json:"endLocation"`
	AvailableSeats  int            `gorm:"not null;check:available_seats >= 1" json:"availableSeats"`
	Status          RideStatus     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Recurring       *Recurrence    `gorm:"serializer:json;type:jsonb" json:"recurring,omitempty"`
	RequestedRiders []SeatRequest  `gorm:"serializer:json;type:jsonb" json:"requestedRiders"`
	ConfirmedRiders []Confirmation `gorm:"serializer:json;type:jsonb" json:"confirmedRiders"`
	Ratings         []Rating       `gorm:"serializer:json;type:jsonb" json:"ratings"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// TableName specifies the table name
func (RideOffer) TableName() string {
	return "ride_offers"
}

// SeatsCommitted sums the seats held by confirmed riders.
func (r *RideOffer) SeatsCommitted() int {
	total := 0
	for _, c := range r.ConfirmedRiders {
		total += c.SeatCount
	}
	return total
}

// SeatsRemaining is always derived from the current confirmations.
func (r *RideOffer) SeatsRemaining() int {
	return r.AvailableSeats - r.SeatsCommitted()
}

// FindRequest locates the pending request matching every non-zero
// criterion. With no criteria nothing matches.
func (r *RideOffer) FindRequest(userID uint, requestID string) (int, bool) {
	if userID == 0 && requestID == "" {
		return -1, false
	}
	for i, req := range r.RequestedRiders {
		if requestID != "" && req.RequestID != requestID {
			continue
		}
		if userID != 0 && req.UserID != userID {
			continue
		}
		return i, true
	}
	return -1, false
}

func (r *RideOffer) HasRequested(userID uint) bool {
	_, ok := r.FindRequest(userID, "")
	return ok
}

func (r *RideOffer) IsConfirmed(userID uint) bool {
	for _, c := range r.ConfirmedRiders {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// IsParticipant reports whether userID owns the ride or holds a confirmed seat.
func (r *RideOffer) IsParticipant(userID uint) bool {
	return r.OwnerID == userID || r.IsConfirmed(userID)
}

// Participants returns the owner followed by confirmed riders in order.
func (r *RideOffer) Participants() []uint {
	ids := make([]uint, 0, len(r.ConfirmedRiders)+1)
	ids = append(ids, r.OwnerID)
	for _, c := range r.ConfirmedRiders {
		ids = append(ids, c.UserID)
	}
	return ids
}

// AverageRating returns the mean score and false when the ride has no ratings.
func (r *RideOffer) AverageRating() (float64, bool) {
	if len(r.Ratings) == 0 {
		return 0, false
	}
	sum := 0
	for _, rt := range r.Ratings {
		sum += rt.Score
	}
	return float64(sum) / float64(len(r.Ratings)), true
}

// Clone returns a deep copy safe to hand out of a store.
func (r *RideOffer) Clone() *RideOffer {
	out := *r
	if r.Recurring != nil {
		rec := *r.Recurring
		rec.Days = append([]string(nil), r.Recurring.Days...)
		out.Recurring = &rec
	}
	out.RequestedRiders = append(make([]SeatRequest, 0, len(r.RequestedRiders)), r.RequestedRiders...)
	out.ConfirmedRiders = append(make([]Confirmation, 0, len(r.ConfirmedRiders)), r.ConfirmedRiders...)
	out.Ratings = append(make([]Rating, 0, len(r.Ratings)), r.Ratings...)
	return &out
}
