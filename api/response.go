package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/playgrid/fieldbook/resilience"
	"github.com/playgrid/fieldbook/utils"
)

const maxPageLimit = 100

type ErrorResponse struct {
	Error     string      `json:"error"`
	Details   interface{} `json:"details,omitempty"`
	Conflicts interface{} `json:"conflicts,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// writeError maps service errors onto HTTP statuses. Conflicts and lock
// denials are 409 so clients know to re-check availability; an open circuit
// or exhausted retries surface as 503.
func writeError(w http.ResponseWriter, err error) {
	var verrs utils.ValidationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: verrs})
		return
	}

	var conflict *utils.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:     "requested time ranges are no longer available",
			Conflicts: conflict.Conflicts,
		})
		return
	}

	switch {
	case errors.Is(err, utils.ErrLockDenied):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "an identical reservation is already in flight"})
	case errors.Is(err, utils.ErrBookingNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "booking not found"})
	case errors.Is(err, utils.ErrReasonRequired):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "cancellation reason is required"})
	case errors.Is(err, utils.ErrAlreadyCancelled):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "booking is already cancelled"})
	case errors.Is(err, utils.ErrPaymentPendingProtected):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "booking is awaiting payment and cannot be cancelled"})
	case errors.Is(err, utils.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "booking state does not allow this operation"})
	case errors.Is(err, resilience.ErrCircuitOpen):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "service temporarily unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}
