package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playgrid/fieldbook/cache"
	"github.com/playgrid/fieldbook/gateway"
	"github.com/playgrid/fieldbook/models"
	"github.com/playgrid/fieldbook/observability"
	"github.com/playgrid/fieldbook/resilience"
	"github.com/playgrid/fieldbook/stores"
	"github.com/playgrid/fieldbook/utils"
	"github.com/playgrid/fieldbook/webhooks"
	"gorm.io/gorm"
)

// Notifier receives booking lifecycle events for outbound fan-out.
// Deliveries are fire-and-forget; transitions never wait on them.
type Notifier interface {
	Notify(ctx context.Context, eventType string, data map[string]interface{})
}

// LifecycleService is the authoritative booking/payment state machine. Every
// transition re-reads the booking under a row lock inside the transaction
// that writes the new status, so concurrent transitions on the same booking
// are serialized and a confirmed booking can never be downgraded.
type LifecycleService struct {
	bookings *stores.BookingStore
	slots    *stores.SlotStore
	payments *stores.PaymentStore
	gateways map[string]gateway.PaymentGateway
	executor *resilience.OperationExecutor
	refunds  RefundPolicy
	avail    *cache.RedisCache
	notifier Notifier
	metrics  *observability.MetricsCollector
	log      *utils.Logger
}

func CreateLifecycleService(
	bookings *stores.BookingStore,
	slots *stores.SlotStore,
	payments *stores.PaymentStore,
	gateways map[string]gateway.PaymentGateway,
	executor *resilience.OperationExecutor,
	refunds RefundPolicy,
	avail *cache.RedisCache,
) *LifecycleService {
	if refunds == nil {
		refunds = CreateHoursBeforeRefundPolicy(nil)
	}

	return &LifecycleService{
		bookings: bookings,
		slots:    slots,
		payments: payments,
		gateways: gateways,
		executor: executor,
		refunds:  refunds,
		avail:    avail,
		log:      utils.NewLogger("lifecycle"),
	}
}

func (s *LifecycleService) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *LifecycleService) SetMetrics(mc *observability.MetricsCollector) {
	s.metrics = mc
}

func (s *LifecycleService) count(name string) {
	if s.metrics != nil {
		s.metrics.Increment(name, nil)
	}
}

func (s *LifecycleService) notify(ctx context.Context, eventType, bookingID, fieldID, date string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, eventType, map[string]interface{}{
		"booking_id": bookingID,
		"field_id":   fieldID,
		"date":       date,
	})
}

// ApplyGatewayEvent drives the state machine from an inbound gateway event.
// Deliveries are at-least-once and unordered: every handler re-derives the
// correct outcome from the event content plus the persisted status, and a
// redelivered or out-of-order event lands as a no-op, not an error.
func (s *LifecycleService) ApplyGatewayEvent(ctx context.Context, event *models.GatewayEvent) error {
	if event.BookingID == "" && event.GatewayTxnID != "" {
		// some gateways omit the external reference on redeliveries; the
		// transaction id recorded at confirmation can still resolve it
		record, err := s.payments.GetByGatewayTxnID(ctx, event.GatewayTxnID)
		if err == nil {
			event.BookingID = record.BookingID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	if event.BookingID == "" {
		s.log.Warn(ctx, "gateway event without booking reference", map[string]interface{}{
			"gateway":    event.Gateway,
			"event_type": string(event.Type),
		})
		return nil
	}

	switch event.Type {
	case models.GatewayEventPaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, event)
	case models.GatewayEventSessionExpired, models.GatewayEventPaymentFailed:
		return s.handlePaymentNotCompleted(ctx, event)
	default:
		return nil
	}
}

func (s *LifecycleService) handlePaymentSucceeded(ctx context.Context, event *models.GatewayEvent) error {
	var fieldID, date string

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.RetryableCheck = resilience.IsRetryableDBError

	err := s.executor.ExecuteWithOptions(ctx, dbContext, retryCfg, func() error {
		return s.bookings.WithTransaction(ctx, func(txCtx context.Context) error {
			booking, err := s.bookings.GetByIDForUpdate(txCtx, event.BookingID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					s.log.Warn(txCtx, "payment event for unknown booking", map[string]interface{}{
						"booking_id": event.BookingID,
					})
					return nil
				}
				return err
			}

			if booking.Phase() == models.PhaseConfirmed {
				// gateways redeliver; confirming a confirmed booking is success
				return nil
			}
			if !models.CanTransition(booking.Phase(), models.PhaseConfirmed) {
				s.log.Warn(txCtx, "payment succeeded event ignored in current phase", map[string]interface{}{
					"booking_id": booking.ID,
					"phase":      string(booking.Phase()),
				})
				return nil
			}

			booking.Status = models.BookingStatusConfirmed
			booking.PaymentStatus = models.BookingPaymentPaid
			if err := s.bookings.Update(txCtx, booking); err != nil {
				return err
			}

			updates := map[string]interface{}{}
			if event.GatewayTxnID != "" {
				updates["gateway_txn_id"] = event.GatewayTxnID
			}
			if event.SessionID != "" {
				updates["gateway_session_id"] = event.SessionID
			}
			if err := s.payments.UpdateStatus(txCtx, booking.ID, models.PaymentStatusSucceeded, updates); err != nil {
				return err
			}

			fieldID, date = booking.FieldID, booking.Date
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("confirm transition failed: %w", err)
	}

	if fieldID != "" {
		s.invalidateAvailability(ctx, fieldID, date)
		s.notify(ctx, webhooks.EventBookingConfirmed, event.BookingID, fieldID, date)
		s.count(observability.MetricBookingsConfirmed)
		s.log.Info(ctx, "booking confirmed", map[string]interface{}{
			"booking_id": event.BookingID,
		})
	}
	return nil
}

// handlePaymentNotCompleted covers both session expiry and payment failure:
// the only path that frees slots reserved by a payment that never completed.
func (s *LifecycleService) handlePaymentNotCompleted(ctx context.Context, event *models.GatewayEvent) error {
	var fieldID, date string

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.RetryableCheck = resilience.IsRetryableDBError

	err := s.executor.ExecuteWithOptions(ctx, dbContext, retryCfg, func() error {
		return s.bookings.WithTransaction(ctx, func(txCtx context.Context) error {
			booking, err := s.bookings.GetByIDForUpdate(txCtx, event.BookingID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}

			if booking.Phase() == models.PhaseExpiredOrFailed {
				// redelivery of an already-applied terminal event
				return nil
			}
			if !models.CanTransition(booking.Phase(), models.PhaseExpiredOrFailed) {
				// no-downgrade: a confirmed booking stays confirmed even when
				// a late expiry event straggles in
				s.log.Warn(txCtx, "expiry event ignored in current phase", map[string]interface{}{
					"booking_id": booking.ID,
					"phase":      string(booking.Phase()),
				})
				return nil
			}

			now := time.Now()
			booking.Status = models.BookingStatusCancelled
			if event.Type == models.GatewayEventPaymentFailed {
				booking.PaymentStatus = models.BookingPaymentFailed
			} else {
				booking.PaymentStatus = models.BookingPaymentExpired
			}
			booking.CancelledAt = &now
			if err := s.bookings.Update(txCtx, booking); err != nil {
				return err
			}

			if err := s.payments.UpdateStatus(txCtx, booking.ID, models.PaymentStatusFailed, nil); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			if _, err := s.slots.ReleaseByBooking(txCtx, booking.ID); err != nil {
				return err
			}

			fieldID, date = booking.FieldID, booking.Date
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("expire transition failed: %w", err)
	}

	if fieldID != "" {
		s.invalidateAvailability(ctx, fieldID, date)
		s.notify(ctx, webhooks.EventBookingExpired, event.BookingID, fieldID, date)
		s.count(observability.MetricBookingsExpired)
		s.log.Info(ctx, "booking expired, slots released", map[string]interface{}{
			"booking_id": event.BookingID,
		})
	}
	return nil
}

// Cancel moves a confirmed booking to cancelled, releases its slots, and
// issues the refund instruction. The refund leg is fire-and-forget: its
// failure is reported in the result, never rolled into the transaction.
func (s *LifecycleService) Cancel(ctx context.Context, bookingID, reason string) (*models.CancellationResult, error) {
	return s.cancel(ctx, bookingID, reason, false)
}

// CancelForMaintenance takes a confirmed booking off the calendar and parks
// its slots in maintenance instead of releasing them, refunding in full.
func (s *LifecycleService) CancelForMaintenance(ctx context.Context, bookingID, reason string) (*models.CancellationResult, error) {
	return s.cancel(ctx, bookingID, reason, true)
}

func (s *LifecycleService) cancel(ctx context.Context, bookingID, reason string, maintenance bool) (*models.CancellationResult, error) {
	if reason == "" {
		return nil, utils.ErrReasonRequired
	}

	var (
		result    *models.CancellationResult
		booking   *models.Booking
		fieldID   string
		date      string
		domainErr error
	)

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.RetryableCheck = resilience.IsRetryableDBError

	// rejections below are business outcomes, not operation failures; they
	// are carried outside the error path so the breaker never counts them
	err := s.executor.ExecuteWithOptions(ctx, dbContext, retryCfg, func() error {
		result, booking, domainErr = nil, nil, nil
		return s.bookings.WithTransaction(ctx, func(txCtx context.Context) error {
			var err error
			booking, err = s.bookings.GetByIDForUpdate(txCtx, bookingID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					domainErr = utils.ErrBookingNotFound
					return nil
				}
				return err
			}

			switch booking.Phase() {
			case models.PhasePending:
				// awaiting payment: it either completes or expires
				domainErr = utils.ErrPaymentPendingProtected
				return nil
			case models.PhaseCancelled, models.PhaseExpiredOrFailed:
				domainErr = utils.ErrAlreadyCancelled
				return nil
			}
			if !models.CanTransition(booking.Phase(), models.PhaseCancelled) {
				domainErr = utils.ErrInvalidTransition
				return nil
			}

			refundAmount, err := s.computeRefund(txCtx, booking, maintenance)
			if err != nil {
				return err
			}

			now := time.Now()
			booking.Status = models.BookingStatusCancelled
			booking.PaymentStatus = models.BookingPaymentCancelled
			booking.CancelReason = reason
			booking.CancelledAt = &now
			if err := s.bookings.Update(txCtx, booking); err != nil {
				return err
			}

			if maintenance {
				if _, err := s.slots.MarkMaintenanceByBooking(txCtx, booking.ID); err != nil {
					return err
				}
			} else {
				if _, err := s.slots.ReleaseByBooking(txCtx, booking.ID); err != nil {
					return err
				}
			}

			fieldID, date = booking.FieldID, booking.Date
			result = &models.CancellationResult{
				BookingID:    booking.ID,
				Cancelled:    true,
				RefundAmount: refundAmount,
				CancelledAt:  now,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if domainErr != nil {
		return nil, domainErr
	}

	s.invalidateAvailability(ctx, fieldID, date)
	s.notify(ctx, webhooks.EventBookingCancelled, result.BookingID, fieldID, date)

	if result.RefundAmount > 0 {
		s.issueRefund(ctx, booking, reason, result)
	}

	s.log.Info(ctx, "booking cancelled", map[string]interface{}{
		"booking_id":       result.BookingID,
		"maintenance":      maintenance,
		"refund_amount":    result.RefundAmount,
		"refund_succeeded": result.RefundSucceeded,
	})
	return result, nil
}

func (s *LifecycleService) computeRefund(ctx context.Context, booking *models.Booking, maintenance bool) (int64, error) {
	if maintenance {
		// maintenance cancellations always refund a paid booking in full
		return FullRefundPolicy{}.RefundAmount(booking, time.Time{}, time.Time{}), nil
	}

	slots, err := s.slots.ListByBooking(ctx, booking.ID)
	if err != nil {
		return 0, err
	}

	slotStart := firstSlotStart(booking.Date, slots)
	return s.refunds.RefundAmount(booking, slotStart, time.Now()), nil
}

// issueRefund calls the gateway outside the cancellation transaction. A
// failed refund surfaces in the result so the caller can retry or escalate;
// the cancellation itself stands.
func (s *LifecycleService) issueRefund(ctx context.Context, booking *models.Booking, reason string, result *models.CancellationResult) {
	record, err := s.payments.GetByBookingID(ctx, booking.ID)
	if err != nil {
		result.RefundError = fmt.Sprintf("payment record lookup failed: %v", err)
		return
	}

	gw, ok := s.gateways[record.GatewayName]
	if !ok {
		result.RefundError = fmt.Sprintf("no gateway registered for %q", record.GatewayName)
		return
	}

	result.RefundAttempted = true

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.RetryableCheck = resilience.IsRetryableGatewayError

	var resp *gateway.RefundResponse
	err = s.executor.ExecuteWithOptions(ctx, gw.Name(), retryCfg, func() error {
		var opErr error
		resp, opErr = gw.Refund(ctx, &gateway.RefundRequest{
			GatewayTxnID: record.GatewayTxnID,
			Amount:       result.RefundAmount,
			Currency:     record.Currency,
			Reason:       reason,
		})
		return opErr
	})
	if err != nil {
		result.RefundError = err.Error()
		s.log.Error(ctx, "refund failed, cancellation stands", map[string]interface{}{
			"booking_id": booking.ID,
			"error":      err.Error(),
		})
		return
	}

	result.RefundSucceeded = true

	// best-effort bookkeeping; the refund already went through
	err = s.payments.UpdateStatus(ctx, booking.ID, models.PaymentStatusRefunded, map[string]interface{}{
		"refunded_amount": result.RefundAmount,
	})
	if err != nil {
		s.log.Warn(ctx, "refund bookkeeping failed", map[string]interface{}{
			"booking_id": booking.ID,
			"refund_id":  resp.RefundID,
			"error":      err.Error(),
		})
		return
	}

	booking.PaymentStatus = models.BookingPaymentRefunded
	if err := s.bookings.Update(ctx, booking); err != nil {
		s.log.Warn(ctx, "refund status update failed", map[string]interface{}{
			"booking_id": booking.ID,
			"error":      err.Error(),
		})
	}
}

// MarkCompleted retires a confirmed booking whose slots have been played.
// Invoked by the same sweep that expires stale pending bookings.
func (s *LifecycleService) MarkCompleted(ctx context.Context, bookingID string) error {
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.RetryableCheck = resilience.IsRetryableDBError

	var domainErr error
	err := s.executor.ExecuteWithOptions(ctx, dbContext, retryCfg, func() error {
		domainErr = nil
		return s.bookings.WithTransaction(ctx, func(txCtx context.Context) error {
			booking, err := s.bookings.GetByIDForUpdate(txCtx, bookingID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					domainErr = utils.ErrBookingNotFound
					return nil
				}
				return err
			}

			if booking.Phase() == models.PhaseCompleted {
				return nil
			}
			if !models.CanTransition(booking.Phase(), models.PhaseCompleted) {
				domainErr = utils.ErrInvalidTransition
				return nil
			}

			booking.Status = models.BookingStatusCompleted
			return s.bookings.Update(txCtx, booking)
		})
	})
	if err != nil {
		return err
	}
	return domainErr
}

// ExpireStalePending is the external sweep for PENDING bookings that never
// received a terminal gateway event. It reuses the expiry transition, which
// is idempotent and safe to invoke late.
func (s *LifecycleService) ExpireStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	var bookings []*models.Booking
	err := s.executor.Execute(ctx, dbContext, func() error {
		var opErr error
		bookings, opErr = s.bookings.ListPendingOlderThan(ctx, olderThan, limit)
		return opErr
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, booking := range bookings {
		event := &models.GatewayEvent{
			Type:      models.GatewayEventSessionExpired,
			Gateway:   "sweep",
			BookingID: booking.ID,
		}
		if err := s.ApplyGatewayEvent(ctx, event); err != nil {
			s.log.Error(ctx, "stale pending sweep failed for booking", map[string]interface{}{
				"booking_id": booking.ID,
				"error":      err.Error(),
			})
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *LifecycleService) invalidateAvailability(ctx context.Context, fieldID, date string) {
	if s.avail == nil || fieldID == "" {
		return
	}
	if err := s.avail.Delete(ctx, availabilityKey(fieldID, date)); err != nil {
		s.log.Debug(ctx, "availability cache invalidation failed", map[string]interface{}{
			"field_id": fieldID,
			"error":    err.Error(),
		})
	}
}

// firstSlotStart resolves the earliest slot of the booking to a wall-clock
// instant for the refund computation.
func firstSlotStart(date string, slots []*models.Slot) time.Time {
	earliest := ""
	for _, slot := range slots {
		if earliest == "" || slot.StartTime < earliest {
			earliest = slot.StartTime
		}
	}
	if earliest == "" {
		earliest = "00:00"
	}

	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+earliest, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
