package stores

import (
	"context"

	"github.com/playgrid/fieldbook/models"
	"gorm.io/gorm"
)

type SlotStore struct {
	BaseStore
}

func CreateSlotStore(db *gorm.DB) *SlotStore {
	return &SlotStore{BaseStore: BaseStore{db: db}}
}

var occupiedStatuses = []models.SlotStatus{
	models.SlotStatusBooked,
	models.SlotStatusMaintenance,
}

// ListOccupied reads the booked and maintenance slots for (field, date)
// without locking; used by the read-only pre-flight availability check.
func (s *SlotStore) ListOccupied(ctx context.Context, fieldID, date string) ([]*models.Slot, error) {
	var slots []*models.Slot
	err := s.GetDB(ctx).
		Where("field_id = ? AND date = ? AND status IN ?", fieldID, date, occupiedStatuses).
		Order("start_time ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// ListOccupiedForUpdate is the same read under row locks scoped to
// (field, date), so two concurrent reservations for overlapping ranges
// cannot both pass the conflict check before either commits.
func (s *SlotStore) ListOccupiedForUpdate(ctx context.Context, fieldID, date string) ([]*models.Slot, error) {
	var slots []*models.Slot
	err := forUpdate(s.GetDB(ctx)).
		Where("field_id = ? AND date = ? AND status IN ?", fieldID, date, occupiedStatuses).
		Order("start_time ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *SlotStore) CreateBatch(ctx context.Context, slots []*models.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	return s.GetDB(ctx).Create(slots).Error
}

func (s *SlotStore) ListByBooking(ctx context.Context, bookingID string) ([]*models.Slot, error) {
	var slots []*models.Slot
	err := s.GetDB(ctx).
		Where("booking_id = ?", bookingID).
		Order("start_time ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// ReleaseByBooking frees a booking's slots for rebooking: status back to
// available, booking reference cleared. Returns the number of rows touched.
func (s *SlotStore) ReleaseByBooking(ctx context.Context, bookingID string) (int64, error) {
	result := s.GetDB(ctx).
		Model(&models.Slot{}).
		Where("booking_id = ?", bookingID).
		Updates(map[string]interface{}{
			"status":     models.SlotStatusAvailable,
			"booking_id": gorm.Expr("NULL"),
		})
	return result.RowsAffected, result.Error
}

// MarkMaintenanceByBooking parks a cancelled booking's slots in maintenance
// instead of freeing them, keeping the ranges off the market. The booking
// reference stays on the rows so operators can trace which cancellation
// parked them.
func (s *SlotStore) MarkMaintenanceByBooking(ctx context.Context, bookingID string) (int64, error) {
	result := s.GetDB(ctx).
		Model(&models.Slot{}).
		Where("booking_id = ?", bookingID).
		Update("status", models.SlotStatusMaintenance)
	return result.RowsAffected, result.Error
}
