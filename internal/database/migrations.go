package database

import (
	"github.com/campusride/campusride-backend/internal/models"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.Friendship{},
		&models.RideOffer{},
		&models.Notification{},
	)
	if err != nil {
		return err
	}

	// Seat lists are stored inline; default them so containment queries
	// never see NULL.
	statements := []string{
		`ALTER TABLE ride_offers ALTER COLUMN requested_riders SET DEFAULT '[]'::jsonb`,
		`ALTER TABLE ride_offers ALTER COLUMN confirmed_riders SET DEFAULT '[]'::jsonb`,
		`ALTER TABLE ride_offers ALTER COLUMN ratings SET DEFAULT '[]'::jsonb`,
		`CREATE INDEX IF NOT EXISTS idx_ride_offers_requested ON ride_offers USING GIN (requested_riders jsonb_path_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_ride_offers_confirmed ON ride_offers USING GIN (confirmed_riders jsonb_path_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_ride ON notifications ((data->>'rideId')) WHERE data->>'rideId' IS NOT NULL`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}
