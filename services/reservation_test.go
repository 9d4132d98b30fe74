package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/playgrid/fieldbook/locks"
	"github.com/playgrid/fieldbook/models"
	"github.com/playgrid/fieldbook/utils"
)

func TestReserveCreatesBookingPaymentAndSlots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	booking, err := env.reservation.Reserve(ctx, testRequest("alice@example.com",
		models.TimeRange{Start: "10:00", End: "11:00"},
		models.TimeRange{Start: "11:00", End: "12:00"},
	))
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	if booking.Phase() != models.PhasePending {
		t.Errorf("expected phase PENDING, got %s", booking.Phase())
	}

	record, err := env.payments.GetByBookingID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("payment record missing: %v", err)
	}
	if record.Status != models.PaymentStatusPending {
		t.Errorf("expected payment pending, got %s", record.Status)
	}
	if record.Amount != booking.TotalAmount {
		t.Errorf("payment amount %d does not match booking %d", record.Amount, booking.TotalAmount)
	}

	slots, err := env.slots.ListByBooking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("failed to list slots: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	for _, slot := range slots {
		if slot.Status != models.SlotStatusBooked {
			t.Errorf("slot %s status = %s, want booked", slot.ID, slot.Status)
		}
		if slot.BookingID == nil || *slot.BookingID != booking.ID {
			t.Errorf("slot %s not linked to booking", slot.ID)
		}
	}
}

func TestReserveOverlapConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.reservation.Reserve(ctx, testRequest("alice@example.com",
		models.TimeRange{Start: "10:00", End: "11:00"})); err != nil {
		t.Fatalf("first reserve failed: %v", err)
	}

	_, err := env.reservation.Reserve(ctx, testRequest("bob@example.com",
		models.TimeRange{Start: "10:30", End: "11:30"}))

	var conflict *utils.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if len(conflict.Conflicts) != 1 || conflict.Conflicts[0].String() != "10:00-11:00" {
		t.Errorf("conflict should name the occupied range, got %v", conflict.Conflicts)
	}
}

func TestReserveBackToBackRangesDoNotConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.reservation.Reserve(ctx, testRequest("alice@example.com",
		models.TimeRange{Start: "10:00", End: "11:00"})); err != nil {
		t.Fatalf("first reserve failed: %v", err)
	}

	if _, err := env.reservation.Reserve(ctx, testRequest("bob@example.com",
		models.TimeRange{Start: "11:00", End: "12:00"})); err != nil {
		t.Fatalf("adjacent reserve should succeed: %v", err)
	}
}

func TestReserveLockCollision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := testRequest("alice@example.com")
	key := locks.ReservationKey(req.FieldID, req.Date, req.ContactEmail, req.TotalAmount)
	granted, err := env.locker.Acquire(ctx, key, defaultLockTTL)
	if err != nil || !granted {
		t.Fatalf("failed to pre-acquire lock: granted=%v err=%v", granted, err)
	}

	if _, err := env.reservation.Reserve(ctx, req); !errors.Is(err, utils.ErrLockDenied) {
		t.Fatalf("expected lock denial, got %v", err)
	}
}

func TestReserveDedupWindowReturnsExistingBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.reservation.Reserve(ctx, testRequest("alice@example.com"))
	if err != nil {
		t.Fatalf("first reserve failed: %v", err)
	}

	second, err := env.reservation.Reserve(ctx, testRequest("alice@example.com"))
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("resubmit created a new booking %s instead of returning %s", second.ID, first.ID)
	}
}

func TestReserveConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			req := testRequest(contact(n))
			_, err := env.reservation.Reserve(ctx, req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case utils.IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("expected exactly one winner, got %d", succeeded)
	}
	if conflicts != attempts-1 {
		t.Errorf("expected %d conflicts, got %d", attempts-1, conflicts)
	}

	occupied, err := env.slots.ListOccupied(ctx, "field-a", "2030-06-15")
	if err != nil {
		t.Fatalf("failed to list occupied slots: %v", err)
	}
	if len(occupied) != 1 {
		t.Errorf("expected 1 booked slot, got %d", len(occupied))
	}
}

func TestReserveValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*models.ReservationRequest)
	}{
		{"missing field", func(r *models.ReservationRequest) { r.FieldID = "" }},
		{"bad date", func(r *models.ReservationRequest) { r.Date = "15/06/2030" }},
		{"bad email", func(r *models.ReservationRequest) { r.ContactEmail = "not-an-email" }},
		{"zero amount", func(r *models.ReservationRequest) { r.TotalAmount = 0 }},
		{"no ranges", func(r *models.ReservationRequest) { r.Ranges = nil }},
		{"inverted range", func(r *models.ReservationRequest) {
			r.Ranges = []models.TimeRange{{Start: "11:00", End: "10:00"}}
		}},
		{"self-overlapping ranges", func(r *models.ReservationRequest) {
			r.Ranges = []models.TimeRange{
				{Start: "10:00", End: "11:00"},
				{Start: "10:30", End: "11:30"},
			}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := testRequest("alice@example.com")
			tc.mutate(req)

			_, err := env.reservation.Reserve(ctx, req)
			var verrs utils.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected validation errors, got %v", err)
			}
		})
	}
}

func TestCheckAvailabilityReportsConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.reservation.Reserve(ctx, testRequest("alice@example.com",
		models.TimeRange{Start: "14:00", End: "15:00"})); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	result, err := env.reservation.CheckAvailability(ctx, "field-a", "2030-06-15",
		[]models.TimeRange{{Start: "14:30", End: "15:30"}})
	if err != nil {
		t.Fatalf("availability check failed: %v", err)
	}
	if result.IsAvailable {
		t.Error("expected slot to be unavailable")
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].String() != "14:00-15:00" {
		t.Errorf("unexpected conflicts: %v", result.Conflicts)
	}

	free, err := env.reservation.CheckAvailability(ctx, "field-a", "2030-06-15",
		[]models.TimeRange{{Start: "15:00", End: "16:00"}})
	if err != nil {
		t.Fatalf("availability check failed: %v", err)
	}
	if !free.IsAvailable {
		t.Errorf("adjacent range should be available, conflicts: %v", free.Conflicts)
	}
}

func contact(n int) string {
	return string(rune('a'+n%26)) + "@example.com"
}
