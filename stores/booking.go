package stores

import (
	"context"
	"errors"
	"time"

	"github.com/playgrid/fieldbook/models"
	"gorm.io/gorm"
)

type BookingStore struct {
	BaseStore
}

func CreateBookingStore(db *gorm.DB) *BookingStore {
	return &BookingStore{BaseStore: BaseStore{db: db}}
}

func (s *BookingStore) Create(ctx context.Context, booking *models.Booking) error {
	return s.GetDB(ctx).Create(booking).Error
}

func (s *BookingStore) Update(ctx context.Context, booking *models.Booking) error {
	return s.GetDB(ctx).Save(booking).Error
}

func (s *BookingStore) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	if err := s.GetDB(ctx).Preload("Slots").First(&booking, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetByIDForUpdate reads the booking under a row lock. Every lifecycle
// transition goes through this read so concurrent transitions on the same
// booking are serialized and evaluated against the persisted status.
func (s *BookingStore) GetByIDForUpdate(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	if err := forUpdate(s.GetDB(ctx)).First(&booking, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindRecentDuplicate looks for a booking with the same field, date, contact
// and amount created inside the dedup window. Resubmits that slip past the
// lock manager get the original booking back instead of a second one.
func (s *BookingStore) FindRecentDuplicate(ctx context.Context, fieldID, date, contact string, amount int64, window time.Duration) (*models.Booking, error) {
	var booking models.Booking
	cutoff := time.Now().Add(-window)

	err := s.GetDB(ctx).
		Where("field_id = ? AND date = ? AND contact_email = ? AND total_amount = ? AND created_at >= ?",
			fieldID, date, contact, amount, cutoff).
		Where("status = ?", models.BookingStatusPaymentPending).
		Order("created_at DESC").
		First(&booking).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListPendingOlderThan feeds the external expiry sweep: PENDING bookings whose
// payment session should long since have resolved.
func (s *BookingStore) ListPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*models.Booking, error) {
	var bookings []*models.Booking
	cutoff := time.Now().Add(-age)

	err := s.GetDB(ctx).
		Where("status = ? AND payment_status = ? AND created_at < ?",
			models.BookingStatusPaymentPending, models.BookingPaymentPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&bookings).Error

	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *BookingStore) ListByContact(ctx context.Context, contact string, limit int) ([]*models.Booking, error) {
	var bookings []*models.Booking
	query := s.GetDB(ctx).Where("contact_email = ?", contact).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}
