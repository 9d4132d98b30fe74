package analytics

import (
	"context"
	"time"

	"github.com/playgrid/fieldbook/models"
	"gorm.io/gorm"
)

type RevenueReport struct {
	FieldID        string  `json:"field_id,omitempty"`
	From           string  `json:"from"`
	To             string  `json:"to"`
	BookingCount   int64   `json:"booking_count"`
	ConfirmedCount int64   `json:"confirmed_count"`
	CancelledCount int64   `json:"cancelled_count"`
	GrossRevenue   int64   `json:"gross_revenue"`
	RefundedAmount int64   `json:"refunded_amount"`
	NetRevenue     int64   `json:"net_revenue"`
	AverageAmount  float64 `json:"average_amount"`
}

type UtilizationReport struct {
	FieldID          string `json:"field_id"`
	Date             string `json:"date"`
	BookedSlots      int64  `json:"booked_slots"`
	MaintenanceSlots int64  `json:"maintenance_slots"`
	BookedMinutes    int64  `json:"booked_minutes"`
}

// Reporter answers operational questions about booking volume and revenue
// straight from the primary tables. Reads go through the replica-safe
// default connection; nothing here mutates state.
type Reporter struct {
	db *gorm.DB
}

func CreateReporter(db *gorm.DB) *Reporter {
	return &Reporter{db: db}
}

// GetRevenueReport aggregates bookings whose date falls inside [from, to].
// An empty fieldID covers all fields.
func (r *Reporter) GetRevenueReport(ctx context.Context, fieldID, from, to string) (*RevenueReport, error) {
	report := &RevenueReport{FieldID: fieldID, From: from, To: to}

	base := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("date >= ? AND date <= ?", from, to)
	if fieldID != "" {
		base = base.Where("field_id = ?", fieldID)
	}

	if err := base.Session(&gorm.Session{}).Count(&report.BookingCount).Error; err != nil {
		return nil, err
	}

	err := base.Session(&gorm.Session{}).
		Where("status = ?", models.BookingStatusConfirmed).
		Count(&report.ConfirmedCount).Error
	if err != nil {
		return nil, err
	}

	err = base.Session(&gorm.Session{}).
		Where("status = ?", models.BookingStatusCancelled).
		Count(&report.CancelledCount).Error
	if err != nil {
		return nil, err
	}

	var gross struct{ Total int64 }
	err = base.Session(&gorm.Session{}).
		Select("COALESCE(SUM(total_amount), 0) AS total").
		Where("status IN ?", []models.BookingStatus{models.BookingStatusConfirmed, models.BookingStatusCompleted}).
		Scan(&gross).Error
	if err != nil {
		return nil, err
	}
	report.GrossRevenue = gross.Total

	var refunded struct{ Total int64 }
	refundQuery := r.db.WithContext(ctx).Model(&models.PaymentRecord{}).
		Select("COALESCE(SUM(payment_records.refunded_amount), 0) AS total").
		Joins("JOIN bookings ON bookings.id = payment_records.booking_id").
		Where("bookings.date >= ? AND bookings.date <= ?", from, to)
	if fieldID != "" {
		refundQuery = refundQuery.Where("bookings.field_id = ?", fieldID)
	}
	if err := refundQuery.Scan(&refunded).Error; err != nil {
		return nil, err
	}
	report.RefundedAmount = refunded.Total

	report.NetRevenue = report.GrossRevenue - report.RefundedAmount
	if report.ConfirmedCount > 0 {
		report.AverageAmount = float64(report.GrossRevenue) / float64(report.ConfirmedCount)
	}

	return report, nil
}

// GetUtilization summarizes how much of a field's day is taken.
func (r *Reporter) GetUtilization(ctx context.Context, fieldID, date string) (*UtilizationReport, error) {
	report := &UtilizationReport{FieldID: fieldID, Date: date}

	var slots []*models.Slot
	err := r.db.WithContext(ctx).
		Where("field_id = ? AND date = ? AND status IN ?",
			fieldID, date,
			[]models.SlotStatus{models.SlotStatusBooked, models.SlotStatusMaintenance}).
		Find(&slots).Error
	if err != nil {
		return nil, err
	}

	for _, slot := range slots {
		switch slot.Status {
		case models.SlotStatusBooked:
			report.BookedSlots++
			report.BookedMinutes += rangeMinutes(slot.StartTime, slot.EndTime)
		case models.SlotStatusMaintenance:
			report.MaintenanceSlots++
		}
	}

	return report, nil
}

func rangeMinutes(start, end string) int64 {
	s, err := time.Parse("15:04", start)
	if err != nil {
		return 0
	}
	e, err := time.Parse("15:04", end)
	if err != nil {
		return 0
	}
	return int64(e.Sub(s).Minutes())
}
