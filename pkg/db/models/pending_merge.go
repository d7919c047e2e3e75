package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PendingMerge records a guest cart whose merge into a user cart was deferred
// because stock could not be verified.
type PendingMerge struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AnonymousKey  string    `gorm:"column:anonymous_key;not null;uniqueIndex"`
	SessionID     string    `gorm:"column:session_id;not null"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	Attempts      int       `gorm:"column:attempts;not null;default:0"`
	LastError     *string   `gorm:"column:last_error"`
	NextAttemptAt time.Time `gorm:"column:next_attempt_at;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PendingMerge) BeforeCreate(*gorm.DB) error { return assignID(&p.ID) }
