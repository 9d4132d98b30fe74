package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/playgrid/fieldbook/models"
	"github.com/playgrid/fieldbook/observability"
	"github.com/playgrid/fieldbook/services"
	"github.com/playgrid/fieldbook/utils"
)

type ReservationHandler struct {
	reservationService *services.ReservationService
	metrics            *observability.MetricsCollector
}

func CreateReservationHandler(reservationService *services.ReservationService, metrics *observability.MetricsCollector) *ReservationHandler {
	return &ReservationHandler{
		reservationService: reservationService,
		metrics:            metrics,
	}
}

func (h *ReservationHandler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	var req models.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	booking, err := h.reservationService.Reserve(r.Context(), &req)
	if err != nil {
		h.countFailure(err)
		writeError(w, err)
		return
	}

	h.metrics.Increment(observability.MetricReservationsCreated, nil)
	writeJSON(w, http.StatusCreated, booking)
}

type availabilityRequest struct {
	Ranges []models.TimeRange `json:"ranges"`
}

func (h *ReservationHandler) HandleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	fieldID := vars["fieldID"]
	date := r.URL.Query().Get("date")

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.reservationService.CheckAvailability(r.Context(), fieldID, date, req.Ranges)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *ReservationHandler) countFailure(err error) {
	switch {
	case utils.IsConflict(err):
		h.metrics.Increment(observability.MetricReservationConflicts, nil)
	case err == utils.ErrLockDenied:
		h.metrics.Increment(observability.MetricLockDenials, nil)
	}
}

func (h *ReservationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/reservations", h.HandleReserve).Methods("POST")
	router.HandleFunc("/fields/{fieldID}/availability", h.HandleCheckAvailability).Methods("POST")
}
