package utils

import (
	"errors"
	"fmt"

	"github.com/playgrid/fieldbook/models"
)

// Domain sentinels. These are business facts, never retried and never
// swallowed; the transport layer maps them onto response codes.
var (
	ErrBookingNotFound         = errors.New("booking not found")
	ErrLockDenied              = errors.New("reservation already in flight")
	ErrInvalidTransition       = errors.New("invalid booking transition")
	ErrAlreadyCancelled        = errors.New("booking already cancelled")
	ErrPaymentPendingProtected = errors.New("booking awaiting payment cannot be cancelled")
	ErrReasonRequired          = errors.New("cancellation reason required")
)

// ConflictError identifies the requested ranges that collide with existing
// booked or maintenance slots. It is returned both by the pre-flight
// availability check and by the in-transaction re-check.
type ConflictError struct {
	FieldID   string             `json:"field_id"`
	Date      string             `json:"date"`
	Conflicts []models.TimeRange `json:"conflicts"`
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) > 0 {
		return fmt.Sprintf("slot conflict on field %s %s: %s", e.FieldID, e.Date, e.Conflicts[0].String())
	}
	return fmt.Sprintf("slot conflict on field %s %s", e.FieldID, e.Date)
}

func NewConflictError(fieldID, date string, conflicts []models.TimeRange) *ConflictError {
	return &ConflictError{FieldID: fieldID, Date: date, Conflicts: conflicts}
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	msg := ve[0].Error()
	for _, err := range ve[1:] {
		msg += "; " + err.Error()
	}
	return msg
}
