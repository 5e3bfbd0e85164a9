package storage

import (
	"time"

	"chat-guard/internal/models"

	"gorm.io/gorm"
)

// ModerationRepository handles database operations for ModerationRecord
type ModerationRepository struct {
	db *gorm.DB
}

// NewModerationRepository creates a new ModerationRepository
func NewModerationRepository(db *gorm.DB) *ModerationRepository {
	return &ModerationRepository{db: db}
}

// MigrateTable ensures the ModerationRecord table exists
func (r *ModerationRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.ModerationRecord{})
}

// Create inserts a new ModerationRecord
func (r *ModerationRepository) Create(record *models.ModerationRecord) error {
	return r.db.Create(record).Error
}

// ListByUser returns the most recent records of a user in a group, newest first
func (r *ModerationRepository) ListByUser(groupID, userID string, limit int) ([]*models.ModerationRecord, error) {
	var records []*models.ModerationRecord
	result := r.db.Where("group_id = ? AND user_id = ?", groupID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&records)
	return records, result.Error
}

// CountSince counts the records of one action in a group created after since
func (r *ModerationRepository) CountSince(groupID, action string, since time.Time) (int64, error) {
	var count int64
	result := r.db.Model(&models.ModerationRecord{}).
		Where("group_id = ? AND action = ? AND created_at >= ?", groupID, action, since).
		Count(&count)
	return count, result.Error
}

// DeleteBefore removes records older than before and returns how many were removed
func (r *ModerationRepository) DeleteBefore(before time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", before).Delete(&models.ModerationRecord{})
	return result.RowsAffected, result.Error
}
