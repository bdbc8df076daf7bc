package models

import (
	"time"
)

// User is the slice of the profile record the ride core reads. Profiles are
// owned by the account service; this table is read-only here.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"column:name" json:"name"`
	Email     string    `gorm:"column:email;uniqueIndex;not null" json:"email"`
	Gender    string    `gorm:"column:gender" json:"gender"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
)

// Friendship is one edge of the friend graph. An accepted edge makes both
// users friends regardless of direction.
type Friendship struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"userId"`
	FriendID  uint      `gorm:"not null;index" json:"friendId"`
	Status    string    `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name
func (Friendship) TableName() string {
	return "friendships"
}
