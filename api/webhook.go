package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/playgrid/fieldbook/observability"
	"github.com/playgrid/fieldbook/services"
)

// signatureHeaders maps each gateway to the header carrying its delivery
// signature.
var signatureHeaders = map[string]string{
	"stripe": "Stripe-Signature",
	"xendit": "x-callback-token",
}

type WebhookHandler struct {
	webhookService *services.WebhookService
	metrics        *observability.MetricsCollector
}

func CreateWebhookHandler(webhookService *services.WebhookService, metrics *observability.MetricsCollector) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		metrics:        metrics,
	}
}

func (h *WebhookHandler) HandleGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	gatewayName := vars["gateway"]

	header, ok := signatureHeaders[gatewayName]
	if !ok {
		http.Error(w, "Unknown gateway", http.StatusNotFound)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read webhook payload", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get(header)
	if signature == "" {
		h.metrics.Increment(observability.MetricWebhooksRejected, map[string]string{"gateway": gatewayName})
		http.Error(w, "Missing signature", http.StatusUnauthorized)
		return
	}

	if err := h.webhookService.ProcessEvent(r.Context(), gatewayName, payload, signature); err != nil {
		h.metrics.Increment(observability.MetricWebhooksRejected, map[string]string{"gateway": gatewayName})
		switch {
		case errors.Is(err, services.ErrBadSignature):
			http.Error(w, "Invalid webhook signature", http.StatusUnauthorized)
		case errors.Is(err, services.ErrBadPayload):
			http.Error(w, "Invalid webhook payload", http.StatusBadRequest)
		case errors.Is(err, services.ErrUnknownGateway):
			http.Error(w, "Unknown gateway", http.StatusNotFound)
		default:
			http.Error(w, "Webhook processing failed", http.StatusInternalServerError)
		}
		return
	}

	h.metrics.Increment(observability.MetricWebhooksProcessed, map[string]string{"gateway": gatewayName})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"received":  true,
		"timestamp": time.Now(),
	})
}

func (h *WebhookHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/webhooks/{gateway}", h.HandleGatewayWebhook).Methods("POST")
}
