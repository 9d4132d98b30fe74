package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/playgrid/fieldbook/gateway"
	"github.com/playgrid/fieldbook/models"
	"github.com/playgrid/fieldbook/stores"
	"github.com/playgrid/fieldbook/utils"
	"gorm.io/gorm"
)

var (
	ErrUnknownGateway = errors.New("unknown gateway")
	ErrBadSignature   = errors.New("webhook signature validation failed")
	ErrBadPayload     = errors.New("webhook payload could not be parsed")
)

// WebhookService receives raw gateway deliveries, authenticates and dedupes
// them, persists them for replay, and hands the normalized event to the
// lifecycle state machine. Processing failures leave the event in the retry
// queue; ProcessPendingEvents re-drives it later.
type WebhookService struct {
	events    *stores.WebhookEventStore
	lifecycle *LifecycleService
	gateways  map[string]gateway.PaymentGateway
	log       *utils.Logger
}

func CreateWebhookService(
	events *stores.WebhookEventStore,
	lifecycle *LifecycleService,
	gateways map[string]gateway.PaymentGateway,
) *WebhookService {
	return &WebhookService{
		events:    events,
		lifecycle: lifecycle,
		gateways:  gateways,
		log:       utils.NewLogger("webhooks"),
	}
}

// ProcessEvent handles one raw inbound delivery end to end. The returned
// error means the delivery could not be accepted at all (bad signature,
// unknown gateway, unparseable payload); a processing failure after the
// event is persisted returns nil so the gateway stops redelivering and the
// retry queue takes over.
func (s *WebhookService) ProcessEvent(ctx context.Context, gatewayName string, payload []byte, signature string) error {
	gw, ok := s.gateways[gatewayName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownGateway, gatewayName)
	}

	if err := gw.ValidateWebhookSignature(payload, signature); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	event, err := gw.ParseEvent(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	if event.Type == models.GatewayEventUnknown {
		s.log.Debug(ctx, "ignoring unhandled gateway event", map[string]interface{}{
			"gateway": gatewayName,
		})
		return nil
	}

	if event.EventID != "" {
		existing, err := s.events.GetByEventID(ctx, gatewayName, event.EventID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if existing != nil && existing.Status == models.WebhookEventStatusCompleted {
			s.log.Debug(ctx, "duplicate delivery, already processed", map[string]interface{}{
				"gateway":  gatewayName,
				"event_id": event.EventID,
			})
			return nil
		}
		if existing != nil {
			return s.drive(ctx, existing, event)
		}
	}

	record := &models.WebhookEvent{
		ID:          uuid.NewString(),
		Gateway:     gatewayName,
		EventType:   string(event.Type),
		EventID:     event.EventID,
		BookingID:   event.BookingID,
		Payload:     payloadJSON(payload),
		Status:      models.WebhookEventStatusPending,
		MaxAttempts: 5,
	}
	if err := s.events.Create(ctx, record); err != nil {
		return err
	}

	return s.drive(ctx, record, event)
}

// drive runs one processing attempt for a persisted event.
func (s *WebhookService) drive(ctx context.Context, record *models.WebhookEvent, event *models.GatewayEvent) error {
	if err := s.events.MarkProcessing(ctx, record.ID); err != nil {
		return err
	}
	record.Attempts++

	if err := s.lifecycle.ApplyGatewayEvent(ctx, event); err != nil {
		retry := record.Attempts < record.MaxAttempts
		if markErr := s.events.MarkFailed(ctx, record.ID, err.Error(), retry); markErr != nil {
			s.log.Error(ctx, "failed to record webhook failure", map[string]interface{}{
				"webhook_event_id": record.ID,
				"error":            markErr.Error(),
			})
		}
		s.log.Error(ctx, "webhook processing failed", map[string]interface{}{
			"webhook_event_id": record.ID,
			"gateway":          record.Gateway,
			"attempts":         record.Attempts,
			"will_retry":       retry,
			"error":            err.Error(),
		})
		// event is persisted; the retry queue owns it now
		return nil
	}

	return s.events.MarkCompleted(ctx, record.ID)
}

// ProcessPendingEvents re-drives events whose earlier attempts failed.
// Intended to run on a ticker alongside the stale-pending sweep.
func (s *WebhookService) ProcessPendingEvents(ctx context.Context, limit int) (int, error) {
	pending, err := s.events.GetPendingEvents(ctx, limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, record := range pending {
		gw, ok := s.gateways[record.Gateway]
		if !ok {
			if err := s.events.MarkFailed(ctx, record.ID, "gateway no longer registered", false); err != nil {
				s.log.Error(ctx, "failed to fail orphaned webhook", map[string]interface{}{
					"webhook_event_id": record.ID,
					"error":            err.Error(),
				})
			}
			continue
		}

		raw, err := json.Marshal(map[string]interface{}(record.Payload))
		if err != nil {
			s.log.Error(ctx, "stored payload unmarshalable", map[string]interface{}{
				"webhook_event_id": record.ID,
				"error":            err.Error(),
			})
			continue
		}

		event, err := gw.ParseEvent(raw)
		if err != nil {
			if markErr := s.events.MarkFailed(ctx, record.ID, err.Error(), false); markErr != nil {
				s.log.Error(ctx, "failed to fail unparseable webhook", map[string]interface{}{
					"webhook_event_id": record.ID,
					"error":            markErr.Error(),
				})
			}
			continue
		}

		if err := s.drive(ctx, record, event); err != nil {
			s.log.Error(ctx, "retry drive failed", map[string]interface{}{
				"webhook_event_id": record.ID,
				"error":            err.Error(),
			})
			continue
		}
		processed++
	}
	return processed, nil
}

// CleanupProcessed prunes completed events older than the retention window.
func (s *WebhookService) CleanupProcessed(ctx context.Context, retention time.Duration) (int64, error) {
	return s.events.CleanupOld(ctx, retention)
}

func payloadJSON(raw []byte) models.JSON {
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return models.JSON{"raw": string(raw)}
	}
	return models.JSON(m)
}
