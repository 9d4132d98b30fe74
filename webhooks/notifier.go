package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playgrid/fieldbook/utils"
)

// Booking lifecycle notifications pushed to subscribed endpoints. Delivery
// is best-effort; the booking transitions never wait on it.
const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingExpired   = "booking.expired"
	EventBookingCancelled = "booking.cancelled"
)

type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	CreatedAt time.Time              `json:"created_at"`
}

type Endpoint struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Events        []string   `json:"events"`
	Secret        string     `json:"-"`
	IsActive      bool       `json:"is_active"`
	RetryCount    int        `json:"retry_count"`
	CreatedAt     time.Time  `json:"created_at"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
}

// Notifier fans booking events out to subscribed endpoints with HMAC-signed
// payloads and per-endpoint retries.
type Notifier struct {
	endpoints map[string]*Endpoint
	client    *http.Client
	log       *utils.Logger
	mu        sync.RWMutex
}

func CreateNotifier() *Notifier {
	return &Notifier{
		endpoints: make(map[string]*Endpoint),
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       utils.NewLogger("notifier"),
	}
}

func (n *Notifier) RegisterEndpoint(endpoint *Endpoint) error {
	if endpoint.URL == "" {
		return fmt.Errorf("endpoint url is required")
	}
	if endpoint.ID == "" {
		endpoint.ID = uuid.NewString()
	}

	if endpoint.Secret == "" {
		secret, err := generateSecret()
		if err != nil {
			return err
		}
		endpoint.Secret = secret
	}

	endpoint.CreatedAt = time.Now()

	n.mu.Lock()
	n.endpoints[endpoint.ID] = endpoint
	n.mu.Unlock()

	return nil
}

func (n *Notifier) RemoveEndpoint(id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.endpoints[id]; !exists {
		return fmt.Errorf("endpoint not found")
	}
	delete(n.endpoints, id)
	return nil
}

func (n *Notifier) Endpoints() []*Endpoint {
	n.mu.RLock()
	defer n.mu.RUnlock()

	result := make([]*Endpoint, 0, len(n.endpoints))
	for _, endpoint := range n.endpoints {
		result = append(result, endpoint)
	}
	return result
}

// Notify dispatches one event to every subscribed endpoint asynchronously.
func (n *Notifier) Notify(ctx context.Context, eventType string, data map[string]interface{}) {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Data:      data,
		CreatedAt: time.Now(),
	}

	n.mu.RLock()
	targets := make([]*Endpoint, 0, len(n.endpoints))
	for _, endpoint := range n.endpoints {
		if endpoint.IsActive && subscribed(endpoint, eventType) {
			targets = append(targets, endpoint)
		}
	}
	n.mu.RUnlock()

	for _, endpoint := range targets {
		go n.deliver(context.WithoutCancel(ctx), endpoint, event)
	}
}

func subscribed(endpoint *Endpoint, eventType string) bool {
	for _, event := range endpoint.Events {
		if event == eventType || event == "*" {
			return true
		}
	}
	return false
}

func (n *Notifier) deliver(ctx context.Context, endpoint *Endpoint, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	signature := sign(payload, endpoint.Secret)

	now := time.Now()
	n.mu.Lock()
	endpoint.LastTriggered = &now
	n.mu.Unlock()

	for attempt := 0; attempt <= endpoint.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		if n.send(ctx, endpoint.URL, payload, signature) {
			return
		}
	}

	n.log.Warn(ctx, "notification delivery exhausted retries", map[string]interface{}{
		"endpoint_id": endpoint.ID,
		"event_type":  event.Type,
	})
}

func (n *Notifier) send(ctx context.Context, url string, payload []byte, signature string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return false
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))

	resp, err := n.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
