package models

import (
	"time"
)

type BookingStatus string

const (
	BookingStatusPaymentPending BookingStatus = "payment_pending"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusCancelled      BookingStatus = "cancelled"
	BookingStatusCompleted      BookingStatus = "completed"
)

type BookingPaymentStatus string

const (
	BookingPaymentPending   BookingPaymentStatus = "pending"
	BookingPaymentPaid      BookingPaymentStatus = "paid"
	BookingPaymentFailed    BookingPaymentStatus = "failed"
	BookingPaymentRefunded  BookingPaymentStatus = "refunded"
	BookingPaymentExpired   BookingPaymentStatus = "expired"
	BookingPaymentCancelled BookingPaymentStatus = "cancelled"
)

// BookingPhase collapses the (status, payment_status) pair into the effective
// lifecycle phase the transition table is written against.
type BookingPhase string

const (
	PhasePending         BookingPhase = "PENDING"
	PhaseConfirmed       BookingPhase = "CONFIRMED"
	PhaseExpiredOrFailed BookingPhase = "EXPIRED_OR_FAILED"
	PhaseCancelled       BookingPhase = "CANCELLED"
	PhaseCompleted       BookingPhase = "COMPLETED"
	PhaseUnknown         BookingPhase = "UNKNOWN"
)

type Booking struct {
	ID            string               `json:"id" gorm:"primaryKey;type:uuid"`
	FieldID       string               `json:"field_id" gorm:"not null;index:idx_bookings_field_date"`
	Date          string               `json:"date" gorm:"not null;index:idx_bookings_field_date"`
	CustomerID    *string              `json:"customer_id" gorm:"index"`
	ContactEmail  string               `json:"contact_email" gorm:"not null;index"`
	TotalAmount   int64                `json:"total_amount" gorm:"not null"`
	Currency      string               `json:"currency" gorm:"not null;default:'IDR'"`
	Status        BookingStatus        `json:"status" gorm:"not null;default:'payment_pending'"`
	PaymentStatus BookingPaymentStatus `json:"payment_status" gorm:"not null;default:'pending'"`
	CancelReason  string               `json:"cancel_reason"`
	Metadata      JSON                 `json:"metadata" gorm:"type:jsonb"`
	Slots         []Slot               `json:"slots,omitempty" gorm:"foreignKey:BookingID"`
	CreatedAt     time.Time            `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time            `json:"updated_at" gorm:"autoUpdateTime"`
	CancelledAt   *time.Time           `json:"cancelled_at"`
}

func (b *Booking) Phase() BookingPhase {
	return PhaseOf(b.Status, b.PaymentStatus)
}

func PhaseOf(status BookingStatus, payment BookingPaymentStatus) BookingPhase {
	switch status {
	case BookingStatusPaymentPending:
		if payment == BookingPaymentPending {
			return PhasePending
		}
	case BookingStatusConfirmed:
		if payment == BookingPaymentPaid {
			return PhaseConfirmed
		}
	case BookingStatusCancelled:
		switch payment {
		case BookingPaymentExpired, BookingPaymentFailed:
			return PhaseExpiredOrFailed
		case BookingPaymentCancelled, BookingPaymentRefunded:
			return PhaseCancelled
		}
	case BookingStatusCompleted:
		return PhaseCompleted
	}
	return PhaseUnknown
}

// transitions is the closed set of legal phase moves. Anything not listed is
// rejected; callers never drive the lifecycle with raw status strings.
var transitions = map[BookingPhase][]BookingPhase{
	PhasePending:   {PhaseConfirmed, PhaseExpiredOrFailed},
	PhaseConfirmed: {PhaseCancelled, PhaseCompleted},
}

func CanTransition(from, to BookingPhase) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
