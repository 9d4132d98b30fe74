package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/playgrid/fieldbook/models"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/webhook"
)

type StripeGateway struct {
	apiKey        string
	webhookSecret string
}

func CreateStripeGateway(apiKey, webhookSecret string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
	}
}

func (g *StripeGateway) Name() string {
	return "stripe"
}

func (g *StripeGateway) ValidateWebhookSignature(payload []byte, signature string) error {
	if g.webhookSecret == "" {
		return fmt.Errorf("stripe webhook secret not configured")
	}
	if _, err := webhook.ConstructEvent(payload, signature, g.webhookSecret); err != nil {
		return fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return nil
}

func (g *StripeGateway) ParseEvent(payload []byte) (*models.GatewayEvent, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("invalid stripe payload: %w", err)
	}

	eventType, _ := raw["type"].(string)
	eventID, _ := raw["id"].(string)

	object := map[string]interface{}{}
	if data, ok := raw["data"].(map[string]interface{}); ok {
		if obj, ok := data["object"].(map[string]interface{}); ok {
			object = obj
		}
	}

	event := &models.GatewayEvent{
		Gateway: g.Name(),
		EventID: eventID,
	}

	if id, ok := object["id"].(string); ok {
		event.GatewayTxnID = id
	}
	if metadata, ok := object["metadata"].(map[string]interface{}); ok {
		if bookingID, ok := metadata["booking_id"].(string); ok {
			event.BookingID = bookingID
		}
	}

	switch eventType {
	case "payment_intent.succeeded", "checkout.session.completed":
		event.Type = models.GatewayEventPaymentSucceeded
		if amount, ok := object["amount_received"].(float64); ok {
			event.AmountReceived = int64(amount)
		} else if amount, ok := object["amount_total"].(float64); ok {
			event.AmountReceived = int64(amount)
		}
	case "payment_intent.payment_failed":
		event.Type = models.GatewayEventPaymentFailed
	case "checkout.session.expired":
		event.Type = models.GatewayEventSessionExpired
		event.SessionID = event.GatewayTxnID
	default:
		event.Type = models.GatewayEventUnknown
	}

	if eventType == "checkout.session.completed" {
		event.SessionID = event.GatewayTxnID
		if pi, ok := object["payment_intent"].(string); ok {
			event.GatewayTxnID = pi
		}
	}

	return event, nil
}

func (g *StripeGateway) Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.GatewayTxnID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if req.Amount > 0 {
		params.Amount = stripe.Int64(req.Amount)
	}
	if req.Reason != "" {
		params.AddMetadata("cancel_reason", req.Reason)
	}

	ref, err := refund.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe refund failed: %w", err)
	}

	return &RefundResponse{
		RefundID: ref.ID,
		Status:   string(ref.Status),
	}, nil
}
