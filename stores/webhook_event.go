package stores

import (
	"context"
	"time"

	"github.com/playgrid/fieldbook/models"
	"gorm.io/gorm"
)

type WebhookEventStore struct {
	BaseStore
}

func CreateWebhookEventStore(db *gorm.DB) *WebhookEventStore {
	return &WebhookEventStore{BaseStore: BaseStore{db: db}}
}

func (s *WebhookEventStore) Create(ctx context.Context, event *models.WebhookEvent) error {
	return s.GetDB(ctx).Create(event).Error
}

func (s *WebhookEventStore) GetByEventID(ctx context.Context, gateway, eventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := s.GetDB(ctx).Where("gateway = ? AND event_id = ?", gateway, eventID).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *WebhookEventStore) GetPendingEvents(ctx context.Context, limit int) ([]*models.WebhookEvent, error) {
	var events []*models.WebhookEvent
	now := time.Now()

	err := s.GetDB(ctx).
		Where("status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?) AND attempts < max_attempts",
			[]string{string(models.WebhookEventStatusPending), string(models.WebhookEventStatusRetrying)}, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error

	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *WebhookEventStore) MarkProcessing(ctx context.Context, id string) error {
	now := time.Now()
	return s.GetDB(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          models.WebhookEventStatusProcessing,
			"last_attempt_at": now,
			"attempts":        gorm.Expr("attempts + 1"),
		}).Error
}

func (s *WebhookEventStore) MarkCompleted(ctx context.Context, id string) error {
	now := time.Now()
	return s.GetDB(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.WebhookEventStatusCompleted,
			"processed_at": now,
		}).Error
}

func (s *WebhookEventStore) MarkFailed(ctx context.Context, id string, errMsg string, scheduleRetry bool) error {
	updates := map[string]interface{}{
		"error_message": errMsg,
	}

	if scheduleRetry {
		updates["status"] = models.WebhookEventStatusRetrying
		updates["next_attempt_at"] = s.nextAttemptAt(ctx, id)
	} else {
		updates["status"] = models.WebhookEventStatusFailed
	}

	return s.GetDB(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (s *WebhookEventStore) nextAttemptAt(ctx context.Context, id string) time.Time {
	var event models.WebhookEvent
	s.GetDB(ctx).Select("attempts").First(&event, "id = ?", id)

	delays := []time.Duration{
		1 * time.Minute,
		5 * time.Minute,
		30 * time.Minute,
		2 * time.Hour,
		24 * time.Hour,
	}

	idx := event.Attempts
	if idx >= len(delays) {
		idx = len(delays) - 1
	}

	return time.Now().Add(delays[idx])
}

func (s *WebhookEventStore) CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := s.GetDB(ctx).
		Where("created_at < ? AND status = ?", cutoff, models.WebhookEventStatusCompleted).
		Delete(&models.WebhookEvent{})
	return result.RowsAffected, result.Error
}
