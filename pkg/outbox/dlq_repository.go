package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

const maxDLQErrorLen = 1024

// DLQRepository stores outbox rows the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// DeadLetterTx copies the row into outbox_dlq. A second dead-letter for the
// same event is ignored, so a publisher retrying after a crash between the
// insert and the terminal mark does not fail the batch.
func (r *DLQRepository) DeadLetterTx(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, failedAt time.Time) error {
	if tx == nil {
		return errTxRequired
	}
	if !reason.IsValid() {
		return errors.New("invalid dlq reason " + string(reason))
	}
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		AttemptCount:  event.AttemptCount,
		FailedAt:      failedAt.UTC(),
	}
	if cause != nil {
		msg := truncateDLQError(cause.Error())
		entry.ErrorMessage = &msg
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&entry).Error
}

func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var dlq models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&dlq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &dlq, nil
}

// DLQBacklog counts dead-lettered rows for one event type and reason.
type DLQBacklog struct {
	EventType enums.OutboxEventType
	Reason    enums.OutboxDLQErrorReason
	Count     int64
	Oldest    time.Time
}

// Backlog groups the DLQ by event type and reason.
func (r *DLQRepository) Backlog(ctx context.Context) ([]DLQBacklog, error) {
	type row struct {
		EventType   enums.OutboxEventType
		ErrorReason enums.OutboxDLQErrorReason
		Total       int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.OutboxDLQ{}).
		Select("event_type, error_reason, COUNT(*) AS total").
		Group("event_type, error_reason").
		Order("event_type ASC").
		Order("error_reason ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]DLQBacklog, 0, len(rows))
	for _, row := range rows {
		var oldest models.OutboxDLQ
		err := r.db.WithContext(ctx).
			Where("event_type = ? AND error_reason = ?", row.EventType, row.ErrorReason).
			Order("failed_at ASC").
			First(&oldest).Error
		if err != nil {
			return nil, err
		}
		out = append(out, DLQBacklog{
			EventType: row.EventType,
			Reason:    row.ErrorReason,
			Count:     row.Total,
			Oldest:    oldest.FailedAt,
		})
	}
	return out, nil
}

func truncateDLQError(message string) string {
	if len(message) <= maxDLQErrorLen {
		return message
	}
	return message[:maxDLQErrorLen]
}
