package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
)

const maxDLQErrorLen = 1024

// ErrNotDeadLettered is returned by Requeue when the event has no DLQ entry.
var ErrNotDeadLettered = errors.New("event is not dead-lettered")

type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncateRunes(*entry.ErrorMessage, maxDLQErrorLen)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// FindByEventID returns nil without error when eventID was never
// dead-lettered.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Requeue hands a dead-lettered event back to the publisher: the outbox row
// gets a fresh attempt budget and the DLQ entry is removed.
func (r *DLQRepository) Requeue(ctx context.Context, eventID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("event_id = ?", eventID).Delete(&models.OutboxDLQ{})
		if res.Error != nil {
			return fmt.Errorf("delete dlq entry: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotDeadLettered
		}
		res = tx.Model(&models.OutboxEvent{}).
			Where("id = ? AND published_at IS NULL", eventID).
			Updates(map[string]any{"attempt_count": 0, "last_error": nil})
		if res.Error != nil {
			return fmt.Errorf("reset outbox row: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("outbox row %s missing or already published", eventID)
		}
		return nil
	})
}

// PruneFailedBefore drops up to limit DLQ entries that failed before cutoff,
// together with the parked outbox rows they point at.
func (r *DLQRepository) PruneFailedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	var pruned int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var eventIDs []uuid.UUID
		if err := tx.Model(&models.OutboxDLQ{}).
			Where("failed_at < ?", cutoff).
			Order("failed_at ASC").
			Limit(limit).
			Pluck("event_id", &eventIDs).Error; err != nil {
			return fmt.Errorf("select expired dlq entries: %w", err)
		}
		if len(eventIDs) == 0 {
			return nil
		}
		res := tx.Where("event_id IN ?", eventIDs).Delete(&models.OutboxDLQ{})
		if res.Error != nil {
			return fmt.Errorf("delete dlq entries: %w", res.Error)
		}
		pruned = res.RowsAffected
		if err := tx.Where("id IN ? AND published_at IS NULL", eventIDs).Delete(&models.OutboxEvent{}).Error; err != nil {
			return fmt.Errorf("delete parked outbox rows: %w", err)
		}
		return nil
	})
	return pruned, err
}

func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := 0
	for i := range s {
		if i > max {
			break
		}
		cut = i
	}
	return s[:cut]
}
