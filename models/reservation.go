package models

import (
	"time"
)

// ReservationRequest is the normalized reservation submission handed to the
// reservation engine by the transport layer.
type ReservationRequest struct {
	FieldID      string      `json:"field_id"`
	Date         string      `json:"date"`
	Ranges       []TimeRange `json:"ranges"`
	CustomerID   *string     `json:"customer_id,omitempty"`
	ContactEmail string      `json:"contact_email"`
	TotalAmount  int64       `json:"total_amount"`
	Currency     string      `json:"currency,omitempty"`
	Gateway      string      `json:"gateway,omitempty"`
	Metadata     JSON        `json:"metadata,omitempty"`
}

type AvailabilityResult struct {
	FieldID     string      `json:"field_id"`
	Date        string      `json:"date"`
	IsAvailable bool        `json:"is_available"`
	Conflicts   []TimeRange `json:"conflicts,omitempty"`
}

// CancellationResult reports the outcome of a cancellation, including the
// refund leg. A failed refund does not undo the cancellation; RefundError
// carries what went wrong so the caller can surface it.
type CancellationResult struct {
	BookingID       string    `json:"booking_id"`
	Cancelled       bool      `json:"cancelled"`
	RefundAmount    int64     `json:"refund_amount"`
	RefundAttempted bool      `json:"refund_attempted"`
	RefundSucceeded bool      `json:"refund_succeeded"`
	RefundError     string    `json:"refund_error,omitempty"`
	CancelledAt     time.Time `json:"cancelled_at"`
}
