package models

import (
	"time"
)

type WebhookEventStatus string

const (
	WebhookEventStatusPending    WebhookEventStatus = "pending"
	WebhookEventStatusProcessing WebhookEventStatus = "processing"
	WebhookEventStatusCompleted  WebhookEventStatus = "completed"
	WebhookEventStatusFailed     WebhookEventStatus = "failed"
	WebhookEventStatusRetrying   WebhookEventStatus = "retrying"
)

// Gateway event types after normalization. Every gateway adapter maps its own
// vocabulary onto these before the event reaches the lifecycle service.
type GatewayEventType string

const (
	GatewayEventPaymentSucceeded GatewayEventType = "payment_succeeded"
	GatewayEventPaymentFailed    GatewayEventType = "payment_failed"
	GatewayEventSessionExpired   GatewayEventType = "session_expired"
	GatewayEventUnknown          GatewayEventType = "unknown"
)

// WebhookEvent records one inbound gateway delivery. Deliveries are
// at-least-once; the (gateway, event_id) pair dedupes redeliveries.
type WebhookEvent struct {
	ID            string             `json:"id" gorm:"primaryKey;type:uuid"`
	Gateway       string             `json:"gateway" gorm:"not null;index:idx_webhook_events_gateway_event"`
	EventType     string             `json:"event_type" gorm:"not null"`
	EventID       string             `json:"event_id" gorm:"index:idx_webhook_events_gateway_event"`
	BookingID     string             `json:"booking_id" gorm:"index"`
	Payload       JSON               `json:"payload" gorm:"type:jsonb;not null"`
	Status        WebhookEventStatus `json:"status" gorm:"not null;default:'pending'"`
	Attempts      int                `json:"attempts" gorm:"default:0"`
	MaxAttempts   int                `json:"max_attempts" gorm:"default:5"`
	LastAttemptAt *time.Time         `json:"last_attempt_at"`
	NextAttemptAt *time.Time         `json:"next_attempt_at"`
	ProcessedAt   *time.Time         `json:"processed_at"`
	ErrorMessage  string             `json:"error_message"`
	CreatedAt     time.Time          `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time          `json:"updated_at" gorm:"autoUpdateTime"`
}

// GatewayEvent is the normalized form handed to the state machine.
type GatewayEvent struct {
	Type           GatewayEventType
	Gateway        string
	EventID        string
	BookingID      string
	GatewayTxnID   string
	SessionID      string
	AmountReceived int64
}
