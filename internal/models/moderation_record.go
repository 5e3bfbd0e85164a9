package models

import "time"

// Moderation actions recorded in the audit log
const (
	ActionWarn   = "warn"
	ActionRecall = "recall"
	ActionMute   = "mute"
)

// ModerationRecord stores one moderation decision that was carried out,
// which rules matched and what the bot did about it.
type ModerationRecord struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Adapter     string `gorm:"type:varchar(32);not null"`
	GroupID     string `gorm:"type:varchar(32);index:idx_group_user;not null"`
	UserID      string `gorm:"type:varchar(32);index:idx_group_user;not null"`
	MessageID   string `gorm:"type:varchar(64)"`
	Action      string `gorm:"type:varchar(16);index;not null"`
	Patterns    string `gorm:"type:text"`
	Violations  int    `gorm:"default:0"`
	MuteSeconds int    `gorm:"default:0"`
	Deleted     bool   `gorm:"default:false"`
	CreatedAt   time.Time
}

// TableName pins the table name
func (ModerationRecord) TableName() string {
	return "moderation_records"
}
