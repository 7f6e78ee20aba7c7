package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hrygo/strawbean/store"
)

// Notifier delivers a fired reminder to its owner. It does not decide how the
// reminder is stored afterwards.
type Notifier interface {
	Notify(ctx context.Context, reminder *store.Reminder) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, reminder *store.Reminder) error

func (f NotifierFunc) Notify(ctx context.Context, reminder *store.Reminder) error {
	return f(ctx, reminder)
}

// Notification is the payload sent for a fired reminder.
type Notification struct {
	Event     string    `json:"event"`
	OwnerID   string    `json:"owner_id"`
	UID       string    `json:"uid"`
	Number    int       `json:"number"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	FireAt    time.Time `json:"fire_at"`
	Recurring bool      `json:"recurring"`
	Interval  string    `json:"interval,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewNotification builds the payload for r.
func NewNotification(r *store.Reminder) Notification {
	n := Notification{
		Event:     "reminder.fired",
		OwnerID:   r.OwnerID,
		UID:       r.UID,
		Number:    r.DisplayNumber(),
		Name:      r.Name,
		Content:   r.Content,
		FireAt:    r.FireTime(),
		Recurring: r.IsRecurring(),
		Timestamp: time.Now().UTC(),
	}
	if r.IsRecurring() {
		n.Interval = r.Interval().String()
	}
	return n
}

// LogNotifier writes fired reminders to a structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier logging to logger, or slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, r *store.Reminder) error {
	n.logger.InfoContext(ctx, "reminder fired",
		slog.String("owner_id", r.OwnerID),
		slog.Int("number", r.DisplayNumber()),
		slog.String("name", r.Name),
		slog.Time("fire_at", r.FireTime()),
		slog.Bool("recurring", r.IsRecurring()),
	)
	return nil
}

// WebhookConfig holds webhook configuration.
type WebhookConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
	Headers map[string]string
}

// WebhookNotifier posts fired reminders as JSON.
type WebhookNotifier struct {
	config     WebhookConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(config WebhookConfig) *WebhookNotifier {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: slog.Default(),
	}
}

// Notify sends the reminder. Each attempt carries a fresh delivery ID so
// receivers can tell retries apart; the reminder UID identifies the reminder.
func (n *WebhookNotifier) Notify(ctx context.Context, r *store.Reminder) error {
	body, err := json.Marshal(NewNotification(r))
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	deliveryID := ulid.Make().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Strawbean-Delivery", deliveryID)
	if n.config.Secret != "" {
		req.Header.Set("X-Webhook-Secret", n.config.Secret)
	}
	for k, v := range n.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("webhook request failed", "url", n.config.URL, "error", err)
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		n.logger.Error("webhook returned error",
			"url", n.config.URL,
			"status", resp.StatusCode,
			"response", string(respBody),
		)
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.Debug("webhook notification sent",
		"owner_id", r.OwnerID,
		"delivery_id", deliveryID,
		"status", resp.StatusCode,
	)
	return nil
}

// MultiNotifier fans a reminder out to several notifiers. Delivery succeeds
// only when every notifier succeeds.
type MultiNotifier struct {
	mu        sync.RWMutex
	notifiers []Notifier
}

// NewMultiNotifier creates a fan-out notifier.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Register adds a notifier.
func (m *MultiNotifier) Register(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

func (m *MultiNotifier) Notify(ctx context.Context, r *store.Reminder) error {
	m.mu.RLock()
	notifiers := append([]Notifier(nil), m.notifiers...)
	m.mu.RUnlock()

	var errs []error
	for _, n := range notifiers {
		if err := n.Notify(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d notifiers failed: %w", len(errs), len(notifiers), errs[0])
	}
	return nil
}
