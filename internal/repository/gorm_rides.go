package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusride/campusride-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRideStore keeps ride offers in Postgres. Seat lists live in jsonb
// columns on the ride row, so SELECT ... FOR UPDATE serializes every
// read-modify-write on one ride.
type GormRideStore struct {
	db *gorm.DB
}

func NewGormRideStore(db *gorm.DB) *GormRideStore {
	return &GormRideStore{db: db}
}

func (s *GormRideStore) Create(ctx context.Context, ride *models.RideOffer) error {
	return s.db.WithContext(ctx).Create(ride).Error
}

func (s *GormRideStore) Get(ctx context.Context, id uint) (*models.RideOffer, error) {
	var ride models.RideOffer
	if err := s.db.WithContext(ctx).First(&ride, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ride, nil
}

func (s *GormRideStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.RideOffer{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormRideStore) Mutate(ctx context.Context, id uint, fn func(ride *models.RideOffer) error) (*models.RideOffer, error) {
	var ride models.RideOffer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ride, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := fn(&ride); err != nil {
			return err
		}
		return tx.Save(&ride).Error
	})
	if err != nil {
		return nil, err
	}
	return &ride, nil
}

func (s *GormRideStore) Search(ctx context.Context, q RideQuery) ([]models.RideOffer, error) {
	tx := s.db.WithContext(ctx).Model(&models.RideOffer{})
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if !q.DepartureFrom.IsZero() {
		tx = tx.Where("departure_time >= ?", q.DepartureFrom)
	}
	if !q.DepartureTo.IsZero() {
		tx = tx.Where("departure_time <= ?", q.DepartureTo)
	}

	var rides []models.RideOffer
	if err := tx.Order("departure_time ASC, id ASC").Find(&rides).Error; err != nil {
		return nil, err
	}
	return rides, nil
}

func (s *GormRideStore) ListForUser(ctx context.Context, userID uint) ([]models.RideOffer, error) {
	member := fmt.Sprintf(`[{"userId":%d}]`, userID)

	var rides []models.RideOffer
	err := s.db.WithContext(ctx).
		Where("owner_id = ? OR requested_riders @> ?::jsonb OR confirmed_riders @> ?::jsonb", userID, member, member).
		Order("departure_time DESC, id DESC").
		Find(&rides).Error
	if err != nil {
		return nil, err
	}
	return rides, nil
}

func (s *GormRideStore) ExistingIDs(ctx context.Context, ids []uint) (map[uint]bool, error) {
	found := make(map[uint]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	var existing []uint
	if err := s.db.WithContext(ctx).Model(&models.RideOffer{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
		return nil, err
	}
	for _, id := range existing {
		found[id] = true
	}
	return found, nil
}
