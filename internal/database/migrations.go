package database

import (
	"gorm.io/gorm"

	"github.com/scolarix/scolarix/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.UserAccount{},
		&models.Invitation{},
		&models.ImportBatch{},
		&models.ExamResult{},
		&models.StatsSnapshot{},
	)
}
