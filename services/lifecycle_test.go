package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/playgrid/fieldbook/models"
	"github.com/playgrid/fieldbook/resilience"
	"github.com/playgrid/fieldbook/utils"
)

func TestPaymentSucceededConfirmsBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	booking := reserveConfirmed(t, env, "alice@example.com")

	if booking.Phase() != models.PhaseConfirmed {
		t.Fatalf("expected phase CONFIRMED, got %s", booking.Phase())
	}

	record, err := env.payments.GetByBookingID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("payment record missing: %v", err)
	}
	if record.Status != models.PaymentStatusSucceeded {
		t.Errorf("expected payment succeeded, got %s", record.Status)
	}
	if record.GatewayTxnID != "txn_"+booking.ID {
		t.Errorf("gateway txn id not recorded: %q", record.GatewayTxnID)
	}
}

func TestPaymentSucceededIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	booking := reserveConfirmed(t, env, "alice@example.com")

	// redelivery of the same confirmation
	err := env.lifecycle.ApplyGatewayEvent(ctx, &models.GatewayEvent{
		Type:         models.GatewayEventPaymentSucceeded,
		Gateway:      "fake",
		EventID:      "evt_redelivery",
		BookingID:    booking.ID,
		GatewayTxnID: "txn_" + booking.ID,
	})
	if err != nil {
		t.Fatalf("redelivered confirmation should succeed: %v", err)
	}

	reloaded, err := env.bookings.GetByID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if reloaded.Phase() != models.PhaseConfirmed {
		t.Errorf("expected phase CONFIRMED after redelivery, got %s", reloaded.Phase())
	}
}

func TestExpiryAfterConfirmationDoesNotDowngrade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	booking := reserveConfirmed(t, env, "alice@example.com")

	err := env.lifecycle.ApplyGatewayEvent(ctx, &models.GatewayEvent{
		Type:      models.GatewayEventSessionExpired,
		Gateway:   "fake",
		EventID:   "evt_late_expiry",
		BookingID: booking.ID,
	})
	if err != nil {
		t.Fatalf("late expiry should be acknowledged: %v", err)
	}

	reloaded, err := env.bookings.GetByID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if reloaded.Phase() != models.PhaseConfirmed {
		t.Errorf("expected phase CONFIRMED, got %s", reloaded.Phase())
	}

	slots, err := env.slots.ListByBooking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("failed to list slots: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("confirmed booking lost its slots")
	}
	for _, slot := range slots {
		if slot.Status != models.SlotStatusBooked {
			t.Errorf("slot %s status = %s, want booked", slot.ID, slot.Status)
		}
	}
}

func TestSessionExpiredReleasesSlots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	booking, err := env.reservation.Reserve(ctx, testRequest("alice@example.com"))
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	err = env.lifecycle.ApplyGatewayEvent(ctx, &models.GatewayEvent{
		Type:      models.GatewayEventSessionExpired,
		Gateway:   "fake",
		EventID:   "evt_expired",
		BookingID: booking.ID,
	})
	if err != nil {
		t.Fatalf("expiry failed: %v", err)
	}

	reloaded, err := env.bookings.GetByID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if reloaded.Phase() != models.PhaseExpiredOrFailed {
		t.Errorf("expected phase EXPIRED_OR_FAILED, got %s", reloaded.Phase())
	}

	occupied, err := env.slots.ListOccupied(ctx, "field-a", "2030-06-15")
	if err != nil {
		t.Fatalf("failed to list occupied: %v", err)
	}
	if len(occupied) != 0 {
		t.Errorf("expected no occupied slots after expiry, got %d", len(occupied))
	}

	// the freed range is immediately bookable again
	if _, err := env.reservation.Reserve(ctx, testRequest("bob@example.com")); err != nil {
		t.Fatalf("rebooking freed range failed: %v", err)
	}
}

func TestPaymentSucceededAfterExpiryIgnored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	booking, err := env.reservation.Reserve(ctx, testRequest("alice@example.com"))
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	expire := &models.GatewayEvent{
		Type:      models.GatewayEventSessionExpired,
		Gateway:   "fake",
		BookingID: booking.ID,
	}
	if err := env.lifecycle.ApplyGatewayEvent(ctx, expire); err != nil {
		t.Fatalf("expiry failed: %v", err)
	}

	// a straggling success after the terminal expiry is acknowledged but
	// does not resurrect the booking
	late := &models.GatewayEvent{
		Type:         models.GatewayEventPaymentSucceeded,
		Gateway:      "fake",
		BookingID:    booking.ID,
		GatewayTxnID: "txn_late",
	}
	if err := env.lifecycle.ApplyGatewayEvent(ctx, late); err != nil {
		t.Fatalf("late success should be acknowledged: %v", err)
	}

	reloaded, err := env.bookings.GetByID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if reloaded.Phase() != models.PhaseExpiredOrFailed {
		t.Errorf("expected phase EXPIRED_OR_FAILED, got %s", reloaded.Phase())
	}
}

func TestCancelRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("reason required", func(t *testing.T) {
		_, err := env.lifecycle.Cancel(ctx, "whatever", "")
		if !errors.Is(err, utils.ErrReasonRequired) {
			t.Fatalf("expected reason-required error, got %v", err)
		}
	})

	t.Run("unknown booking", func(t *testing.T) {
		_, err := env.lifecycle.Cancel(ctx, "missing-id", "change of plans")
		if !errors.Is(err, utils.ErrBookingNotFound) {
			t.Fatalf("expected not-found error, got %v", err)
		}
	})

	t.Run("pending is protected", func(t *testing.T) {
		booking, err := env.reservation.Reserve(ctx, testRequest("pending@example.com",
			models.TimeRange{Start: "08:00", End: "09:00"}))
		if err != nil {
			t.Fatalf("reserve failed: %v", err)
		}

		_, err = env.lifecycle.Cancel(ctx, booking.ID, "change of plans")
		if !errors.Is(err, utils.ErrPaymentPendingProtected) {
			t.Fatalf("expected pending-protected error, got %v", err)
		}
	})

	t.Run("completed cannot be cancelled", func(t *testing.T) {
		booking := reserveConfirmed(t, env, "done@example.com",
			models.TimeRange{Start: "09:00", End: "10:00"})
		if err := env.lifecycle.MarkCompleted(ctx, booking.ID); err != nil {
			t.Fatalf("mark completed failed: %v", err)
		}

		_, err := env.lifecycle.Cancel(ctx, booking.ID, "too late")
		if !errors.Is(err, utils.ErrInvalidTransition) {
			t.Fatalf("expected invalid-transition error, got %v", err)
		}
	})
}

func TestCancelConfirmedReleasesSlotsAndRefunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	booking := reserveConfirmed(t, env, "alice@example.com")

	result, err := env.lifecycle.Cancel(ctx, booking.ID, "change of plans")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if !result.Cancelled {
		t.Error("expected cancelled result")
	}
	// the slot date is years out, so the top refund tier applies
	if result.RefundAmount != booking.TotalAmount {
		t.Errorf("expected full refund %d, got %d", booking.TotalAmount, result.RefundAmount)
	}
	if !result.RefundAttempted || !result.RefundSucceeded {
		t.Errorf("expected successful refund, got attempted=%v succeeded=%v error=%q",
			result.RefundAttempted, result.RefundSucceeded, result.RefundError)
	}

	reloaded, err := env.bookings.GetByID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if reloaded.Phase() != models.PhaseCancelled {
		t.Errorf("expected phase CANCELLED, got %s", reloaded.Phase())
	}

	record, err := env.payments.GetByBookingID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("payment record missing: %v", err)
	}
	if record.Status != models.PaymentStatusRefunded {
		t.Errorf("expected payment refunded, got %s", record.Status)
	}
	if record.RefundedAmount != booking.TotalAmount {
		t.Errorf("expected refunded amount %d, got %d", booking.TotalAmount, record.RefundedAmount)
	}

	occupied, err := env.slots.ListOccupied(ctx, "field-a", "2030-06-15")
	if err != nil {
		t.Fatalf("failed to list occupied: %v", err)
	}
	if len(occupied) != 0 {
		t.Errorf("expected slots released, %d still occupied", len(occupied))
	}
}

func TestCancelRefundFailureIsPartialSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	booking := reserveConfirmed(t, env, "alice@example.com")
	env.gateway.refundErr = errors.New("gateway unreachable")

	result, err := env.lifecycle.Cancel(ctx, booking.ID, "change of plans")
	if err != nil {
		t.Fatalf("cancellation must stand despite refund failure: %v", err)
	}

	if !result.Cancelled {
		t.Error("expected cancelled result")
	}
	if !result.RefundAttempted || result.RefundSucceeded {
		t.Errorf("expected failed refund attempt, got attempted=%v succeeded=%v",
			result.RefundAttempted, result.RefundSucceeded)
	}
	if result.RefundError == "" {
		t.Error("expected refund error to be reported")
	}

	reloaded, err := env.bookings.GetByID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if reloaded.Phase() != models.PhaseCancelled {
		t.Errorf("cancellation must persist, got phase %s", reloaded.Phase())
	}

	// refund never landed, so the payment record keeps its succeeded state
	record, err := env.payments.GetByBookingID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("payment record missing: %v", err)
	}
	if record.Status != models.PaymentStatusSucceeded {
		t.Errorf("expected payment to stay succeeded, got %s", record.Status)
	}

	if _, err := env.lifecycle.Cancel(ctx, booking.ID, "again"); !errors.Is(err, utils.ErrAlreadyCancelled) {
		t.Fatalf("expected already-cancelled on repeat, got %v", err)
	}
}

func TestCancelForMaintenanceParksSlots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	booking := reserveConfirmed(t, env, "alice@example.com")

	result, err := env.lifecycle.CancelForMaintenance(ctx, booking.ID, "pitch resurfacing")
	if err != nil {
		t.Fatalf("maintenance cancel failed: %v", err)
	}
	if result.RefundAmount != booking.TotalAmount {
		t.Errorf("maintenance cancel refunds in full, got %d", result.RefundAmount)
	}

	slots, err := env.slots.ListByBooking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("failed to list slots: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("maintenance slots must keep their booking link")
	}
	for _, slot := range slots {
		if slot.Status != models.SlotStatusMaintenance {
			t.Errorf("slot %s status = %s, want maintenance", slot.ID, slot.Status)
		}
	}

	// parked slots still block new reservations
	_, err = env.reservation.Reserve(ctx, testRequest("bob@example.com"))
	if !utils.IsConflict(err) {
		t.Fatalf("maintenance slots should conflict, got %v", err)
	}
}

func TestMarkCompleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	booking := reserveConfirmed(t, env, "alice@example.com")

	if err := env.lifecycle.MarkCompleted(ctx, booking.ID); err != nil {
		t.Fatalf("mark completed failed: %v", err)
	}
	// repeat is a no-op
	if err := env.lifecycle.MarkCompleted(ctx, booking.ID); err != nil {
		t.Fatalf("repeat mark completed failed: %v", err)
	}

	reloaded, err := env.bookings.GetByID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if reloaded.Phase() != models.PhaseCompleted {
		t.Errorf("expected phase COMPLETED, got %s", reloaded.Phase())
	}
}

func TestExpireStalePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	booking, err := env.reservation.Reserve(ctx, testRequest("alice@example.com"))
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	// age the booking past the sweep cutoff
	stale := time.Now().Add(-2 * time.Hour)
	err = env.db.Model(&models.Booking{}).Where("id = ?", booking.ID).
		Update("created_at", stale).Error
	if err != nil {
		t.Fatalf("failed to age booking: %v", err)
	}

	expired, err := env.lifecycle.ExpireStalePending(ctx, time.Hour, 10)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired booking, got %d", expired)
	}

	reloaded, err := env.bookings.GetByID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if reloaded.Phase() != models.PhaseExpiredOrFailed {
		t.Errorf("expected phase EXPIRED_OR_FAILED, got %s", reloaded.Phase())
	}
}

// Rejected lifecycle operations are business outcomes, not infrastructure
// failures: a run of them must leave the shared database breaker closed so
// valid work keeps flowing.
func TestDomainErrorsDoNotTripBreaker(t *testing.T) {
	cfg := resilience.DefaultExecutorConfig()
	cfg.RetryConfig.BaseDelay = time.Millisecond
	cfg.RetryConfig.MaxDelay = 5 * time.Millisecond
	cfg.BreakerConfig.MaxFailures = 2
	cfg.BreakerConfig.Cooldown = time.Minute
	env := newTestEnvWithExecutor(t, resilience.CreateOperationExecutor(cfg))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := env.lifecycle.Cancel(ctx, "no-such-booking", "change of plans")
		if !errors.Is(err, utils.ErrBookingNotFound) {
			t.Fatalf("cancel attempt %d: expected ErrBookingNotFound, got %v", i, err)
		}
	}

	booking, err := env.reservation.Reserve(ctx, testRequest("alice@example.com"))
	if err != nil {
		t.Fatalf("reserve after unknown-booking cancels failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		_, err := env.lifecycle.Cancel(ctx, booking.ID, "too late")
		if !errors.Is(err, utils.ErrPaymentPendingProtected) {
			t.Fatalf("cancel attempt %d: expected ErrPaymentPendingProtected, got %v", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		err := env.lifecycle.MarkCompleted(ctx, booking.ID)
		if !errors.Is(err, utils.ErrInvalidTransition) {
			t.Fatalf("complete attempt %d: expected ErrInvalidTransition, got %v", i, err)
		}
	}

	_, err = env.reservation.Reserve(ctx,
		testRequest("bob@example.com", models.TimeRange{Start: "12:00", End: "13:00"}))
	if err != nil {
		t.Fatalf("valid reservation rejected after domain rejections: %v", err)
	}
}
