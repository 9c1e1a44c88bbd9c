package ws

import (
	"context"
	"slices"

	"chat-server/internal/database"
	"chat-server/internal/registry"
	"chat-server/pkg/logger"
)

// Broadcaster fans a serialized payload out to every live session of every
// member of a room. Delivery is best-effort and membership-gated.
type Broadcaster struct {
	store    database.Store
	registry *registry.Registry
}

func NewBroadcaster(store database.Store, reg *registry.Registry) *Broadcaster {
	return &Broadcaster{store: store, registry: reg}
}

// Broadcast delivers payload to all members of roomID, including the
// sender's own sessions. If the sender is not a member, nothing is
// delivered. A failed room lookup aborts the fan-out; any store write the
// caller performed has already committed.
func (b *Broadcaster) Broadcast(ctx context.Context, payload []byte, roomID, senderID string) {
	room, err := b.store.GetRoom(ctx, roomID)
	if err != nil {
		logger.Error("Broadcast aborted, failed to load room %s: %v", roomID, err)
		return
	}

	// Membership gate: a client cannot inject into a room it is not in.
	if !slices.Contains(room.Members, senderID) {
		return
	}

	for _, member := range room.Members {
		for _, handle := range b.registry.HandlesFor(member) {
			// Each recipient gets its own copy of the payload.
			buf := make([]byte, len(payload))
			copy(buf, payload)
			handle.Deliver(buf)
		}
	}
}
