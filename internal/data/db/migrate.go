package db

import (
	types "github.com/yungbote/wayfarer-backend/internal/domain"
	"gorm.io/gorm"
)

// AutoMigrateAll creates or updates feedback_record, model_version,
// training_run and training_lock, including the partial unique index on
// model_version.is_active.
func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.All()...)
}
