// Package notify informs callers about finished verification work.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kycflow/internal/domain"
	"kycflow/internal/storage"
)

// Notifier delivers a completion message to a user. Implementations
// must be fail-soft: a lost notification never rolls back a
// verification result.
type Notifier interface {
	Notify(ctx context.Context, userID, subject, body string)
}

// StoreNotifier persists notifications for the caller to poll.
type StoreNotifier struct {
	store  storage.NotificationStore
	logger *slog.Logger
}

func NewStoreNotifier(store storage.NotificationStore, logger *slog.Logger) *StoreNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreNotifier{store: store, logger: logger}
}

func (n *StoreNotifier) Notify(ctx context.Context, userID, subject, body string) {
	if userID == "" || userID == domain.ActorAnonymous {
		return
	}
	note := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now(),
	}
	if err := n.store.Save(ctx, note); err != nil {
		n.logger.Error("notification save failed", "user_id", userID, "error", err)
	}
}

func (n *StoreNotifier) ListByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	return n.store.ListByUser(ctx, userID)
}

// Discard drops notifications; useful in tests and self-service flows.
type Discard struct{}

func (Discard) Notify(context.Context, string, string, string) {}
