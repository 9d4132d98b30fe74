package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/playgrid/fieldbook/gateway"
	"github.com/playgrid/fieldbook/locks"
	"github.com/playgrid/fieldbook/models"
	"github.com/playgrid/fieldbook/resilience"
	"github.com/playgrid/fieldbook/stores"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:fieldbook_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(
		&models.Booking{},
		&models.PaymentRecord{},
		&models.Slot{},
		&models.WebhookEvent{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newTestExecutor() *resilience.OperationExecutor {
	cfg := resilience.DefaultExecutorConfig()
	cfg.RetryConfig.BaseDelay = time.Millisecond
	cfg.RetryConfig.MaxDelay = 5 * time.Millisecond
	cfg.BreakerConfig.MaxFailures = 100
	cfg.BreakerConfig.Cooldown = time.Second
	return resilience.CreateOperationExecutor(cfg)
}

// fakeGateway is an in-memory PaymentGateway. Payloads are plain JSON so
// tests can hand-craft deliveries without provider SDKs.
type fakeGateway struct {
	name        string
	refundErr   error
	refundCalls int64
}

type fakePayload struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	BookingID string `json:"booking_id"`
	TxnID     string `json:"txn_id"`
	Amount    int64  `json:"amount"`
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) ValidateWebhookSignature(_ []byte, signature string) error {
	if signature != "valid" {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

func (g *fakeGateway) ParseEvent(payload []byte) (*models.GatewayEvent, error) {
	var p fakePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}

	eventType := models.GatewayEventType(p.Type)
	switch eventType {
	case models.GatewayEventPaymentSucceeded, models.GatewayEventPaymentFailed, models.GatewayEventSessionExpired:
	default:
		eventType = models.GatewayEventUnknown
	}

	return &models.GatewayEvent{
		Type:           eventType,
		Gateway:        g.name,
		EventID:        p.EventID,
		BookingID:      p.BookingID,
		GatewayTxnID:   p.TxnID,
		AmountReceived: p.Amount,
	}, nil
}

func (g *fakeGateway) Refund(_ context.Context, req *gateway.RefundRequest) (*gateway.RefundResponse, error) {
	atomic.AddInt64(&g.refundCalls, 1)
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &gateway.RefundResponse{RefundID: "re_" + req.GatewayTxnID, Status: "succeeded"}, nil
}

// testEnv wires the full service stack over an in-memory database, without
// redis: the locker is in-process and the availability cache is disabled.
type testEnv struct {
	db          *gorm.DB
	bookings    *stores.BookingStore
	slots       *stores.SlotStore
	payments    *stores.PaymentStore
	events      *stores.WebhookEventStore
	gateway     *fakeGateway
	locker      *locks.LocalLocker
	reservation *ReservationService
	lifecycle   *LifecycleService
	webhooks    *WebhookService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithExecutor(t, newTestExecutor())
}

func newTestEnvWithExecutor(t *testing.T, executor *resilience.OperationExecutor) *testEnv {
	t.Helper()

	db := openTestDB(t)

	env := &testEnv{
		db:       db,
		bookings: stores.CreateBookingStore(db),
		slots:    stores.CreateSlotStore(db),
		payments: stores.CreatePaymentStore(db),
		events:   stores.CreateWebhookEventStore(db),
		gateway:  &fakeGateway{name: "fake"},
		locker:   locks.CreateLocalLocker(),
	}
	gateways := map[string]gateway.PaymentGateway{"fake": env.gateway}

	env.reservation = CreateReservationService(
		env.bookings, env.slots, env.payments, env.locker, executor, nil,
		ReservationServiceConfig{},
	)
	env.lifecycle = CreateLifecycleService(
		env.bookings, env.slots, env.payments, gateways, executor, nil, nil,
	)
	env.webhooks = CreateWebhookService(env.events, env.lifecycle, gateways)
	return env
}

func testRequest(contact string, ranges ...models.TimeRange) *models.ReservationRequest {
	if len(ranges) == 0 {
		ranges = []models.TimeRange{{Start: "10:00", End: "11:00"}}
	}
	return &models.ReservationRequest{
		FieldID:      "field-a",
		Date:         "2030-06-15",
		Ranges:       ranges,
		ContactEmail: contact,
		TotalAmount:  150000,
		Currency:     "IDR",
		Gateway:      "fake",
	}
}

// reserveConfirmed drives a reservation through payment confirmation.
func reserveConfirmed(t *testing.T, env *testEnv, contact string, ranges ...models.TimeRange) *models.Booking {
	t.Helper()
	ctx := context.Background()

	booking, err := env.reservation.Reserve(ctx, testRequest(contact, ranges...))
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	err = env.lifecycle.ApplyGatewayEvent(ctx, &models.GatewayEvent{
		Type:         models.GatewayEventPaymentSucceeded,
		Gateway:      "fake",
		EventID:      "evt_" + booking.ID,
		BookingID:    booking.ID,
		GatewayTxnID: "txn_" + booking.ID,
	})
	if err != nil {
		t.Fatalf("confirmation event failed: %v", err)
	}

	confirmed, err := env.bookings.GetByID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	return confirmed
}
