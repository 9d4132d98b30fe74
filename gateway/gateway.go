package gateway

import (
	"context"

	"github.com/playgrid/fieldbook/models"
)

// PaymentGateway is the slice of an external payment provider the booking
// core depends on: validating and normalizing inbound events, and issuing
// refund instructions. Checkout sessions and card processing live entirely
// on the provider's side.
type PaymentGateway interface {
	Name() string

	// ValidateWebhookSignature authenticates a raw inbound delivery.
	ValidateWebhookSignature(payload []byte, signature string) error

	// ParseEvent normalizes a raw delivery into a GatewayEvent. Event types
	// outside the booking vocabulary come back as GatewayEventUnknown and
	// are acknowledged without processing.
	ParseEvent(payload []byte) (*models.GatewayEvent, error)

	// Refund instructs the provider to return funds for a transaction.
	Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error)
}

type RefundRequest struct {
	GatewayTxnID string
	Amount       int64
	Currency     string
	Reason       string
}

type RefundResponse struct {
	RefundID string
	Status   string
}
