package ws

import (
	"context"

	"chat-server/internal/database"
	"chat-server/internal/models"
	"chat-server/pkg/logger"
)

// PresenceWriter flips the advisory status marker on the user row.
// Both operations are idempotent; failures are logged and swallowed.
type PresenceWriter struct {
	store database.Store
}

func NewPresenceWriter(store database.Store) *PresenceWriter {
	return &PresenceWriter{store: store}
}

func (p *PresenceWriter) MarkOnline(ctx context.Context, userID string) {
	if err := p.store.SetStatus(ctx, userID, models.StatusOnline); err != nil {
		logger.Error("Failed to mark user %s online: %v", userID, err)
	}
}

func (p *PresenceWriter) MarkOffline(ctx context.Context, userID string) {
	if err := p.store.SetStatus(ctx, userID, models.StatusOffline); err != nil {
		logger.Error("Failed to mark user %s offline: %v", userID, err)
	}
}
