package forms

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/kafka"
)

// Publisher announces accepted submissions. *kafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// SubmissionEvent is the value written to the form-submissions topic.
// Message bodies are left out; consumers fetch them from the store.
type SubmissionEvent struct {
	Form      string    `json:"form"`
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Category  string    `json:"category,omitempty"`
	Interests []string  `json:"interests,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	RequestID string    `json:"requestId,omitempty"`
}

const publishTimeout = 2 * time.Second

// announce publishes ev without letting a broker problem reach the
// client: failures are logged and dropped.
func (h *Handler) announce(ctx context.Context, ev SubmissionEvent) {
	if h.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := h.events.Publish(ctx, kafka.Event{Key: ev.ID, Value: ev}); err != nil {
		h.logger.Warn("failed to publish submission event",
			"form", ev.Form,
			"id", ev.ID,
			"error", err,
		)
	}
}
