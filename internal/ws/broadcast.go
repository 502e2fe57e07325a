package ws

import (
	"log/slog"

	"github.com/edulive/collab/internal/metrics"
)

// Broadcaster fans an event out to every live connection of a set of
// users. Enqueueing is in-memory and non-blocking, so callers may invoke
// it inside a room's critical section; the per-connection write pumps do
// the actual socket I/O.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Broadcast delivers data to every connection of every listed user.
// A connection that cannot accept the event is deregistered and closed;
// delivery to the rest always continues.
func (b *Broadcaster) Broadcast(userIDs []string, data []byte) {
	for _, userID := range userIDs {
		for _, h := range b.registry.ConnectionsFor(userID) {
			b.deliver(h, data)
		}
	}
	metrics.EventsBroadcast.Add(float64(len(userIDs)))
}

// ToUser delivers data to every connection of a single user.
func (b *Broadcaster) ToUser(userID string, data []byte) {
	for _, h := range b.registry.ConnectionsFor(userID) {
		b.deliver(h, data)
	}
}

func (b *Broadcaster) deliver(h Handle, data []byte) {
	if err := h.Enqueue(data); err != nil {
		metrics.BroadcastFailures.Inc()
		slog.Warn("dropping broken connection", "user_id", h.UserID(), "error", err)
		b.registry.Unregister(h)
		if cerr := h.Close(); cerr != nil {
			slog.Debug("close after delivery failure", "user_id", h.UserID(), "error", cerr)
		}
	}
}
