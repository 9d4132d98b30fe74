package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/playgrid/fieldbook/models"
	xendit "github.com/xendit/xendit-go/v6"
	refund "github.com/xendit/xendit-go/v6/refund"
)

type XenditGateway struct {
	webhookSecret string
	client        *xendit.APIClient
}

func CreateXenditGateway(apiKey, webhookSecret string) *XenditGateway {
	return &XenditGateway{
		webhookSecret: webhookSecret,
		client:        xendit.NewClient(apiKey),
	}
}

func (g *XenditGateway) Name() string {
	return "xendit"
}

func (g *XenditGateway) ValidateWebhookSignature(payload []byte, signature string) error {
	if g.webhookSecret == "" {
		return fmt.Errorf("xendit webhook secret not configured")
	}

	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return fmt.Errorf("xendit webhook signature verification failed")
	}
	return nil
}

func (g *XenditGateway) ParseEvent(payload []byte) (*models.GatewayEvent, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("invalid xendit payload: %w", err)
	}

	eventType, _ := raw["event"].(string)

	data := raw
	if d, ok := raw["data"].(map[string]interface{}); ok {
		data = d
	}

	event := &models.GatewayEvent{
		Gateway: g.Name(),
	}
	if id, ok := raw["webhook_id"].(string); ok {
		event.EventID = id
	} else if id, ok := raw["id"].(string); ok {
		event.EventID = id
	}
	if id, ok := data["id"].(string); ok {
		event.GatewayTxnID = id
	}
	// external_id carries the booking id the checkout session was created with
	if externalID, ok := data["external_id"].(string); ok {
		event.BookingID = externalID
	} else if metadata, ok := data["metadata"].(map[string]interface{}); ok {
		if bookingID, ok := metadata["booking_id"].(string); ok {
			event.BookingID = bookingID
		}
	}

	switch eventType {
	case "invoice.paid", "payment.succeeded", "capture.succeeded":
		event.Type = models.GatewayEventPaymentSucceeded
		if amount, ok := data["paid_amount"].(float64); ok {
			event.AmountReceived = int64(amount)
		} else if amount, ok := data["amount"].(float64); ok {
			event.AmountReceived = int64(amount)
		}
	case "invoice.expired":
		event.Type = models.GatewayEventSessionExpired
		event.SessionID = event.GatewayTxnID
	case "payment.failed":
		event.Type = models.GatewayEventPaymentFailed
	default:
		event.Type = models.GatewayEventUnknown
	}

	return event, nil
}

func (g *XenditGateway) Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	refundData := refund.NewCreateRefund()
	refundData.SetInvoiceId(req.GatewayTxnID)
	refundData.SetAmount(float64(req.Amount))
	refundData.SetReason(req.Reason)

	ref, _, err := g.client.RefundApi.CreateRefund(ctx).CreateRefund(*refundData).Execute()
	if err != nil {
		return nil, fmt.Errorf("xendit refund failed: %w", err)
	}

	return &RefundResponse{
		RefundID: ref.GetId(),
		Status:   "succeeded",
	}, nil
}
