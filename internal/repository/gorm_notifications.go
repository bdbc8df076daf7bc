package repository

import (
	"context"
	"errors"
	"time"

	"github.com/campusride/campusride-backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GormNotificationStore struct {
	db *gorm.DB
}

func NewGormNotificationStore(db *gorm.DB) *GormNotificationStore {
	return &GormNotificationStore{db: db}
}

func (s *GormNotificationStore) Create(ctx context.Context, n *models.Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *GormNotificationStore) Get(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.WithContext(ctx).First(&n, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (s *GormNotificationStore) List(ctx context.Context, q NotificationQuery) ([]models.Notification, int64, error) {
	tx := s.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", q.RecipientID)
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	if q.Priority != "" {
		tx = tx.Where("priority = ?", q.Priority)
	}
	if q.IsRead != nil {
		tx = tx.Where("is_read = ?", *q.IsRead)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []models.Notification
	err := tx.Order("created_at DESC, id DESC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *GormNotificationStore) MarkRead(ctx context.Context, id, recipientID uint, at time.Time) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND recipient_id = ?", id, recipientID).First(&n).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if n.IsRead {
			return nil
		}
		n.IsRead = true
		n.ReadAt = &at
		return tx.Model(&n).Updates(map[string]interface{}{"is_read": true, "read_at": at}).Error
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *GormNotificationStore) MarkAllRead(ctx context.Context, recipientID uint, category string, at time.Time) (int64, error) {
	tx := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false)
	if category != "" {
		tx = tx.Where("category = ?", category)
	}
	res := tx.Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (s *GormNotificationStore) UnreadCount(ctx context.Context, recipientID uint, category string) (int64, error) {
	tx := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false)
	if category != "" {
		tx = tx.Where("category = ?", category)
	}
	var count int64
	err := tx.Count(&count).Error
	return count, err
}

func (s *GormNotificationStore) RideLinked(ctx context.Context) ([]models.Notification, error) {
	var list []models.Notification
	err := s.db.WithContext(ctx).
		Where(datatypes.JSONQuery("data").HasKey("rideId")).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

func (s *GormNotificationStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Notification{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
