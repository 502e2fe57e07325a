package redisc

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

const roomChannelPrefix = "collab:room:"

// BusEvent crosses process boundaries when the engine runs as more than
// one instance. Origin lets a subscriber skip events it published itself.
type BusEvent struct {
	Origin  string          `json:"origin"`
	RoomID  string          `json:"room_id"`
	Payload json.RawMessage `json:"payload"`
}

// PublishRoom fans an already-encoded event out to other processes.
func (m *Mirror) PublishRoom(ctx context.Context, origin, roomID string, payload []byte) error {
	data, err := json.Marshal(BusEvent{Origin: origin, RoomID: roomID, Payload: payload})
	if err != nil {
		return err
	}
	return m.client.Publish(ctx, roomChannelPrefix+roomID, data).Err()
}

// SubscribeRooms invokes handler for every room event on the bus until
// ctx is cancelled.
func (m *Mirror) SubscribeRooms(ctx context.Context, handler func(ev BusEvent)) {
	pubsub := m.client.PSubscribe(ctx, roomChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev BusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.Warn("malformed bus event", "channel", msg.Channel, "error", err)
				continue
			}
			if ev.RoomID == "" {
				ev.RoomID = strings.TrimPrefix(msg.Channel, roomChannelPrefix)
			}
			handler(ev)
		}
	}
}
