package repository

import (
	"context"
	"sync"

	"github.com/campusride/campusride-backend/internal/models"
	"gorm.io/gorm"
)

// GormDirectory reads users and friendships from the shared database.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) Users(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var users []models.User
	if err := d.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (d *GormDirectory) AcceptedFriends(ctx context.Context, userID uint) ([]uint, error) {
	var edges []models.Friendship
	err := d.db.WithContext(ctx).
		Where("status = ? AND (user_id = ? OR friend_id = ?)", models.FriendshipAccepted, userID, userID).
		Order("id ASC").
		Find(&edges).Error
	if err != nil {
		return nil, err
	}
	return otherSides(userID, edges), nil
}

func otherSides(userID uint, edges []models.Friendship) []uint {
	seen := make(map[uint]bool, len(edges))
	out := make([]uint, 0, len(edges))
	for _, e := range edges {
		other := e.FriendID
		if e.FriendID == userID {
			other = e.UserID
		}
		if other == userID || seen[other] {
			continue
		}
		seen[other] = true
		out = append(out, other)
	}
	return out
}

// MemoryDirectory is an in-process user directory and friend graph.
type MemoryDirectory struct {
	mu      sync.RWMutex
	users   map[uint]models.User
	edges   []models.Friendship
	nextEID uint
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[uint]models.User)}
}

// AddUser inserts or replaces a profile.
func (d *MemoryDirectory) AddUser(u models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

// AddFriendship records an accepted edge between two users.
func (d *MemoryDirectory) AddFriendship(userID, friendID uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextEID++
	d.edges = append(d.edges, models.Friendship{
		ID:       d.nextEID,
		UserID:   userID,
		FriendID: friendID,
		Status:   models.FriendshipAccepted,
	})
}

func (d *MemoryDirectory) Users(_ context.Context, ids []uint) (map[uint]models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[uint]models.User, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (d *MemoryDirectory) AcceptedFriends(_ context.Context, userID uint) ([]uint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	edges := make([]models.Friendship, 0)
	for _, e := range d.edges {
		if e.Status == models.FriendshipAccepted && (e.UserID == userID || e.FriendID == userID) {
			edges = append(edges, e)
		}
	}
	return otherSides(userID, edges), nil
}
