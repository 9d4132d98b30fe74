package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/playgrid/fieldbook/observability"
	"github.com/playgrid/fieldbook/services"
	"github.com/playgrid/fieldbook/stores"
	"gorm.io/gorm"
)

type BookingHandler struct {
	bookings         *stores.BookingStore
	lifecycleService *services.LifecycleService
	metrics          *observability.MetricsCollector
}

func CreateBookingHandler(bookings *stores.BookingStore, lifecycleService *services.LifecycleService, metrics *observability.MetricsCollector) *BookingHandler {
	return &BookingHandler{
		bookings:         bookings,
		lifecycleService: lifecycleService,
		metrics:          metrics,
	}
}

func (h *BookingHandler) HandleGetBooking(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	booking, err := h.bookings.GetByID(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "booking not found"})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) HandleListBookings(w http.ResponseWriter, r *http.Request) {
	contact := r.URL.Query().Get("contact")
	if contact == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "contact query parameter is required"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	limit = clampLimit(limit)

	bookings, err := h.bookings.ListByContact(r.Context(), contact, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bookings)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.lifecycleService.Cancel(r.Context(), vars["id"], req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	h.metrics.Increment(observability.MetricBookingsCancelled, nil)
	if result.RefundAttempted && !result.RefundSucceeded {
		h.metrics.Increment(observability.MetricRefundsFailed, nil)
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleMaintenanceCancel is the operator path: slots are parked in
// maintenance instead of released, and the refund is unconditional.
func (h *BookingHandler) HandleMaintenanceCancel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.lifecycleService.CancelForMaintenance(r.Context(), vars["id"], req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	h.metrics.Increment(observability.MetricBookingsCancelled, map[string]string{"kind": "maintenance"})
	if result.RefundAttempted && !result.RefundSucceeded {
		h.metrics.Increment(observability.MetricRefundsFailed, nil)
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *BookingHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.lifecycleService.MarkCompleted(r.Context(), vars["id"]); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (h *BookingHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/bookings", h.HandleListBookings).Methods("GET")
	router.HandleFunc("/bookings/{id}", h.HandleGetBooking).Methods("GET")
	router.HandleFunc("/bookings/{id}/cancel", h.HandleCancel).Methods("POST")
	router.HandleFunc("/bookings/{id}/maintenance-cancel", h.HandleMaintenanceCancel).Methods("POST")
	router.HandleFunc("/bookings/{id}/complete", h.HandleComplete).Methods("POST")
}
