package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hrygo/strawbean/store"
)

// MockNotifier records notifications for tests.
type MockNotifier struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	ShouldFail   bool
	// Delay blocks each call until it elapses or the context ends.
	Delay time.Duration
}

// SentMessage represents a delivered reminder.
type SentMessage struct {
	OwnerID  string
	RemoveID int32
	Name     string
	FireAt   time.Time
}

// NewMockNotifier creates a new mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		SentMessages: make([]SentMessage, 0),
	}
}

// SetShouldFail toggles failure.
func (n *MockNotifier) SetShouldFail(fail bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ShouldFail = fail
}

func (n *MockNotifier) Notify(ctx context.Context, r *store.Reminder) error {
	n.mu.Lock()
	delay, fail := n.Delay, n.ShouldFail
	n.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail {
		return fmt.Errorf("mock notifier failure")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.SentMessages = append(n.SentMessages, SentMessage{
		OwnerID:  r.OwnerID,
		RemoveID: r.RemoveID,
		Name:     r.Name,
		FireAt:   r.FireTime(),
	})
	return nil
}

// GetSentCount returns the number of delivered reminders.
func (n *MockNotifier) GetSentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.SentMessages)
}

// Sent returns a copy of the delivered reminders.
func (n *MockNotifier) Sent() []SentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SentMessage(nil), n.SentMessages...)
}
