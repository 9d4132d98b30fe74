package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/playgrid/fieldbook/webhooks"
)

// NotificationHandler manages the outbound endpoints that receive booking
// lifecycle events.
type NotificationHandler struct {
	notifier *webhooks.Notifier
}

func CreateNotificationHandler(notifier *webhooks.Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

type registerEndpointRequest struct {
	URL        string   `json:"url"`
	Events     []string `json:"events"`
	RetryCount int      `json:"retry_count"`
}

func (h *NotificationHandler) HandleRegisterEndpoint(w http.ResponseWriter, r *http.Request) {
	var req registerEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	endpoint := &webhooks.Endpoint{
		URL:        req.URL,
		Events:     req.Events,
		RetryCount: req.RetryCount,
		IsActive:   true,
	}
	if err := h.notifier.RegisterEndpoint(endpoint); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, endpoint)
}

func (h *NotificationHandler) HandleListEndpoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.notifier.Endpoints())
}

func (h *NotificationHandler) HandleDeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.notifier.RemoveEndpoint(vars["id"]); err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/notification-endpoints", h.HandleRegisterEndpoint).Methods("POST")
	router.HandleFunc("/notification-endpoints", h.HandleListEndpoints).Methods("GET")
	router.HandleFunc("/notification-endpoints/{id}", h.HandleDeleteEndpoint).Methods("DELETE")
}
