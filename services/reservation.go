package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/playgrid/fieldbook/cache"
	"github.com/playgrid/fieldbook/locks"
	"github.com/playgrid/fieldbook/models"
	"github.com/playgrid/fieldbook/resilience"
	"github.com/playgrid/fieldbook/stores"
	"github.com/playgrid/fieldbook/utils"
	"github.com/playgrid/fieldbook/webhooks"
)

const (
	dbContext = "database"

	defaultLockTTL     = 15 * time.Second
	defaultDedupWindow = 30 * time.Second
)

// ReservationService answers availability questions and performs the atomic
// reservation: booking, payment record, and slots commit together or not at
// all. Conflicting attempts for the same field and date are serialized by the
// transactional row lock; exactly one wins.
type ReservationService struct {
	bookings *stores.BookingStore
	slots    *stores.SlotStore
	payments *stores.PaymentStore
	locker   locks.Locker
	executor *resilience.OperationExecutor
	avail    *cache.RedisCache

	lockTTL     time.Duration
	dedupWindow time.Duration
	notifier    Notifier
	log         *utils.Logger
}

type ReservationServiceConfig struct {
	LockTTL     time.Duration
	DedupWindow time.Duration
}

func CreateReservationService(
	bookings *stores.BookingStore,
	slots *stores.SlotStore,
	payments *stores.PaymentStore,
	locker locks.Locker,
	executor *resilience.OperationExecutor,
	avail *cache.RedisCache,
	cfg ReservationServiceConfig,
) *ReservationService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = defaultDedupWindow
	}

	return &ReservationService{
		bookings:    bookings,
		slots:       slots,
		payments:    payments,
		locker:      locker,
		executor:    executor,
		avail:       avail,
		lockTTL:     cfg.LockTTL,
		dedupWindow: cfg.DedupWindow,
		log:         utils.NewLogger("reservation"),
	}
}

func (s *ReservationService) SetNotifier(n Notifier) {
	s.notifier = n
}

// CheckAvailability is the read-only pre-flight check. The same overlap logic
// runs again under row locks inside Reserve; this variant exists so clients
// can probe without contending for locks.
func (s *ReservationService) CheckAvailability(ctx context.Context, fieldID, date string, ranges []models.TimeRange) (*models.AvailabilityResult, error) {
	if err := utils.ValidateDate(date, "date"); err != nil {
		return nil, err
	}
	if errs := utils.ValidateRanges(ranges, "ranges"); len(errs) > 0 {
		return nil, errs
	}

	occupiedRanges, ok := s.cachedOccupied(ctx, fieldID, date)
	if !ok {
		var occupied []*models.Slot
		err := s.executor.Execute(ctx, dbContext, func() error {
			var opErr error
			occupied, opErr = s.slots.ListOccupied(ctx, fieldID, date)
			return opErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read occupied slots: %w", err)
		}

		occupiedRanges = make([]models.TimeRange, 0, len(occupied))
		for _, slot := range occupied {
			occupiedRanges = append(occupiedRanges, slot.Range())
		}
		s.storeOccupied(ctx, fieldID, date, occupiedRanges)
	}

	conflicts := findConflicts(ranges, occupiedRanges)
	return &models.AvailabilityResult{
		FieldID:     fieldID,
		Date:        date,
		IsAvailable: len(conflicts) == 0,
		Conflicts:   conflicts,
	}, nil
}

// Reserve runs the whole reservation path: lock, dedup lookup, then the
// atomic check-then-write transaction through the executor. Conflicts are
// business facts and are never retried; only transient storage errors are.
func (s *ReservationService) Reserve(ctx context.Context, req *models.ReservationRequest) (*models.Booking, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	key := locks.ReservationKey(req.FieldID, req.Date, req.ContactEmail, req.TotalAmount)
	granted, err := s.locker.Acquire(ctx, key, s.lockTTL)
	if err != nil {
		// lock store trouble is advisory; the transaction still arbitrates
		s.log.Warn(ctx, "lock acquire failed, proceeding unlocked", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	} else if !granted {
		return nil, utils.ErrLockDenied
	} else {
		defer func() {
			if releaseErr := s.locker.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
				s.log.Warn(ctx, "lock release failed", map[string]interface{}{
					"key":   key,
					"error": releaseErr.Error(),
				})
			}
		}()
	}

	// resubmits that slipped past the lock get the original booking back
	var existing *models.Booking
	err = s.executor.Execute(ctx, dbContext, func() error {
		var opErr error
		existing, opErr = s.bookings.FindRecentDuplicate(ctx, req.FieldID, req.Date, req.ContactEmail, req.TotalAmount, s.dedupWindow)
		return opErr
	})
	if err != nil {
		return nil, fmt.Errorf("duplicate lookup failed: %w", err)
	}
	if existing != nil {
		s.log.Info(ctx, "returning recent duplicate booking", map[string]interface{}{
			"booking_id": existing.ID,
		})
		return existing, nil
	}

	booking, err := s.reserveAtomically(ctx, req)
	if err != nil {
		return nil, err
	}

	s.invalidateAvailability(ctx, req.FieldID, req.Date)
	if s.notifier != nil {
		s.notifier.Notify(ctx, webhooks.EventBookingCreated, map[string]interface{}{
			"booking_id": booking.ID,
			"field_id":   booking.FieldID,
			"date":       booking.Date,
		})
	}
	s.log.Info(ctx, "booking created", map[string]interface{}{
		"booking_id": booking.ID,
		"field_id":   booking.FieldID,
		"date":       booking.Date,
	})
	return booking, nil
}

func (s *ReservationService) reserveAtomically(ctx context.Context, req *models.ReservationRequest) (*models.Booking, error) {
	var (
		booking  *models.Booking
		conflict *utils.ConflictError
	)

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.RetryableCheck = resilience.IsRetryableDBError

	err := s.executor.ExecuteWithOptions(ctx, dbContext, retryCfg, func() error {
		booking, conflict = nil, nil
		return s.bookings.WithTransaction(ctx, func(txCtx context.Context) error {
			// re-check under row locks: this closes the race the pre-flight
			// check cannot
			occupied, err := s.slots.ListOccupiedForUpdate(txCtx, req.FieldID, req.Date)
			if err != nil {
				return err
			}

			// a conflict is a business outcome, not an operation failure; it
			// is carried outside the error path so the breaker never counts it
			if conflicts := findConflicts(req.Ranges, slotRanges(occupied)); len(conflicts) > 0 {
				conflict = utils.NewConflictError(req.FieldID, req.Date, conflicts)
				return nil
			}

			booking = buildBooking(req)
			if err := s.bookings.Create(txCtx, booking); err != nil {
				return err
			}

			record := &models.PaymentRecord{
				ID:          uuid.NewString(),
				BookingID:   booking.ID,
				GatewayName: req.Gateway,
				Amount:      req.TotalAmount,
				Currency:    booking.Currency,
				Status:      models.PaymentStatusPending,
			}
			if err := s.payments.Create(txCtx, record); err != nil {
				return err
			}

			slots := make([]*models.Slot, 0, len(req.Ranges))
			for _, r := range req.Ranges {
				slots = append(slots, &models.Slot{
					ID:        uuid.NewString(),
					FieldID:   req.FieldID,
					Date:      req.Date,
					StartTime: r.Start,
					EndTime:   r.End,
					Status:    models.SlotStatusBooked,
					BookingID: &booking.ID,
				})
			}
			return s.slots.CreateBatch(txCtx, slots)
		})
	})

	if err != nil {
		// the storage-level unique constraint is the last line of defense
		// against a missed race; it is a conflict, not an infra failure
		if resilience.IsUniqueViolation(err) {
			return nil, utils.NewConflictError(req.FieldID, req.Date, req.Ranges)
		}
		return nil, err
	}
	if conflict != nil {
		return nil, conflict
	}

	return booking, nil
}

func (s *ReservationService) validateRequest(req *models.ReservationRequest) error {
	var errs utils.ValidationErrors

	if req.FieldID == "" {
		errs = append(errs, utils.ValidationError{Field: "field_id", Message: "is required"})
	}
	if err := utils.ValidateDate(req.Date, "date"); err != nil {
		errs = append(errs, *err)
	}
	if err := utils.ValidateEmail(req.ContactEmail, "contact_email"); err != nil {
		errs = append(errs, *err)
	}
	if err := utils.ValidateAmount(req.TotalAmount, "total_amount"); err != nil {
		errs = append(errs, *err)
	}
	errs = append(errs, utils.ValidateRanges(req.Ranges, "ranges")...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (s *ReservationService) invalidateAvailability(ctx context.Context, fieldID, date string) {
	if s.avail == nil {
		return
	}
	if err := s.avail.Delete(ctx, availabilityKey(fieldID, date)); err != nil {
		s.log.Warn(ctx, "availability cache invalidation failed", map[string]interface{}{
			"field_id": fieldID,
			"date":     date,
			"error":    err.Error(),
		})
	}
}

func availabilityKey(fieldID, date string) string {
	return "avail:" + fieldID + ":" + date
}

func buildBooking(req *models.ReservationRequest) *models.Booking {
	currency := req.Currency
	if currency == "" {
		currency = "IDR"
	}

	metadata := models.JSON{
		"field_id": req.FieldID,
		"date":     req.Date,
		"ranges":   rangeStrings(req.Ranges),
	}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	return &models.Booking{
		ID:            uuid.NewString(),
		FieldID:       req.FieldID,
		Date:          req.Date,
		CustomerID:    req.CustomerID,
		ContactEmail:  req.ContactEmail,
		TotalAmount:   req.TotalAmount,
		Currency:      currency,
		Status:        models.BookingStatusPaymentPending,
		PaymentStatus: models.BookingPaymentPending,
		Metadata:      metadata,
	}
}

func rangeStrings(ranges []models.TimeRange) []string {
	out := make([]string, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, r.String())
	}
	return out
}

// findConflicts reports every occupied range overlapping any requested range,
// preserving slot order so the first colliding range is stable.
func findConflicts(requested, occupied []models.TimeRange) []models.TimeRange {
	var conflicts []models.TimeRange
	seen := make(map[string]bool)

	for _, occ := range occupied {
		for _, r := range requested {
			if r.Overlaps(occ) && !seen[occ.String()] {
				seen[occ.String()] = true
				conflicts = append(conflicts, occ)
				break
			}
		}
	}
	return conflicts
}

func slotRanges(slots []*models.Slot) []models.TimeRange {
	out := make([]models.TimeRange, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slot.Range())
	}
	return out
}

// cachedOccupied serves the pre-flight check from the short-TTL availability
// cache. The atomic path never reads it; only the locked transactional read
// decides a reservation.
func (s *ReservationService) cachedOccupied(ctx context.Context, fieldID, date string) ([]models.TimeRange, bool) {
	if s.avail == nil {
		return nil, false
	}

	raw, err := s.avail.Get(ctx, availabilityKey(fieldID, date))
	if err != nil {
		return nil, false
	}

	var ranges []models.TimeRange
	if err := json.Unmarshal([]byte(raw), &ranges); err != nil {
		return nil, false
	}
	return ranges, true
}

func (s *ReservationService) storeOccupied(ctx context.Context, fieldID, date string, ranges []models.TimeRange) {
	if s.avail == nil {
		return
	}

	data, err := json.Marshal(ranges)
	if err != nil {
		return
	}
	if err := s.avail.Set(ctx, availabilityKey(fieldID, date), data); err != nil {
		s.log.Debug(ctx, "availability cache store failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
