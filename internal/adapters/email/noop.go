package email

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// NoopSender logs sends but does not deliver them. Used when no provider key is configured.
type NoopSender struct{}

// NewNoopSender creates a new NoopSender.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// Send logs the email but does not deliver it.
// POST: Returns a synthetic message ID without actual delivery
func (s *NoopSender) Send(_ context.Context, req SendRequest) (SendResult, error) {
	slog.Info("email_event", "event", "noop_send", "to", req.To, "subject", req.Subject)
	return SendResult{
		MessageID: "noop-" + uuid.NewString(),
		SentAt:    time.Now(),
	}, nil
}
