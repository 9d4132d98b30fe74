package models

import (
	"time"
)

type SlotStatus string

const (
	SlotStatusAvailable   SlotStatus = "available"
	SlotStatusBooked      SlotStatus = "booked"
	SlotStatusMaintenance SlotStatus = "maintenance"
)

// Slot is one contiguous time range on one field on one date. Times are
// zero-padded "HH:MM" strings so lexicographic comparison matches
// chronological order.
type Slot struct {
	ID        string     `json:"id" gorm:"primaryKey;type:uuid"`
	FieldID   string     `json:"field_id" gorm:"not null;index:idx_slots_field_date"`
	Date      string     `json:"date" gorm:"not null;index:idx_slots_field_date"`
	StartTime string     `json:"start_time" gorm:"not null"`
	EndTime   string     `json:"end_time" gorm:"not null"`
	Status    SlotStatus `json:"status" gorm:"not null;default:'available'"`
	BookingID *string    `json:"booking_id" gorm:"index"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (r TimeRange) String() string {
	return r.Start + "-" + r.End
}

// Overlaps uses half-open interval comparison: two ranges conflict when
// start < otherEnd && end > otherStart. Back-to-back ranges do not overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start < other.End && r.End > other.Start
}

func (s *Slot) Range() TimeRange {
	return TimeRange{Start: s.StartTime, End: s.EndTime}
}
