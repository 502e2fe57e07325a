package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edulive/collab/internal/presence"
	"github.com/edulive/collab/internal/room"
	"github.com/edulive/collab/internal/ws"
)

const (
	mirrorTTL    = 24 * time.Hour
	publishWait  = 5 * time.Second
	publishQueue = 1024
	defaultRate  = 25.0
	defaultBurst = 75
)

// SharedStore is the external durable/shared store collaborator: a
// key-value mirror with expiry plus a per-room topic bus for running the
// engine as more than one process.
type SharedStore interface {
	SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	PublishRoom(ctx context.Context, origin, roomID string, payload []byte) error
}

// Archiver persists closed sessions to the platform's relational store.
type Archiver interface {
	SaveSession(ctx context.Context, rec ArchiveRecord, history []room.Message) error
}

// Engine is the single per-process context tying every component
// together. Nothing in this package keeps package-level state; tests get
// full isolation by building their own Engine.
type Engine struct {
	rooms       *room.Store
	registry    *ws.Registry
	broadcaster *ws.Broadcaster
	presence    *presence.Tracker
	shared      SharedStore
	archiver    Archiver

	// origin identifies this process on the shared bus.
	origin string

	// pollIndex resolves a poll id to its owning room.
	pollMu    sync.RWMutex
	pollIndex map[string]string

	// pub feeds the single publisher goroutine, which drains events to
	// the bus in enqueue order.
	pub chan busOut

	eventRate  float64
	eventBurst int
}

type busOut struct {
	roomID string
	data   []byte
	mirror bool
}

func NewEngine(rooms *room.Store, registry *ws.Registry, tracker *presence.Tracker, shared SharedStore, archiver Archiver) *Engine {
	if shared == nil {
		shared = noopStore{}
	}
	e := &Engine{
		rooms:       rooms,
		registry:    registry,
		broadcaster: ws.NewBroadcaster(registry),
		presence:    tracker,
		shared:      shared,
		archiver:    archiver,
		origin:      uuid.NewString(),
		pollIndex:   make(map[string]string),
		pub:         make(chan busOut, publishQueue),
		eventRate:   defaultRate,
		eventBurst:  defaultBurst,
	}
	go e.publishLoop()
	return e
}

func (e *Engine) Registry() *ws.Registry      { return e.registry }
func (e *Engine) Rooms() *room.Store          { return e.rooms }
func (e *Engine) Presence() *presence.Tracker { return e.presence }

// fanout enqueues data to every participant's connections except the
// excluded user, then mirrors the event onto the shared bus. Safe to
// call inside a room's critical section: enqueueing never blocks and
// the bus publish happens on its own goroutine.
func (e *Engine) fanout(r *room.Room, except string, data []byte) {
	ids := r.ParticipantIDs()
	if except != "" {
		filtered := ids[:0]
		for _, id := range ids {
			if id != except {
				filtered = append(filtered, id)
			}
		}
		ids = filtered
	}
	e.broadcaster.Broadcast(ids, data)
	e.publish(r.ID, data)
}

// publish queues an event for the bus without blocking the caller's
// critical section. A single drainer keeps bus order equal to the order
// the room's critical sections completed in; a full queue drops the
// event rather than stall a room lock holder.
func (e *Engine) publish(roomID string, data []byte) {
	select {
	case e.pub <- busOut{roomID: roomID, data: data}:
	default:
		slog.Warn("bus queue full, dropping event", "room_id", roomID)
	}
}

// publishLoop runs for the life of the engine. Mirror writes share the
// queue so the stored snapshot is always the newest one enqueued.
func (e *Engine) publishLoop() {
	for out := range e.pub {
		ctx, cancel := context.WithTimeout(context.Background(), publishWait)
		var err error
		if out.mirror {
			err = e.shared.SetWithExpiry(ctx, roomKey(out.roomID), out.data, mirrorTTL)
		} else {
			err = e.shared.PublishRoom(ctx, e.origin, out.roomID, out.data)
		}
		if err != nil {
			slog.Debug("bus write failed", "room_id", out.roomID, "mirror", out.mirror, "error", err)
		}
		cancel()
	}
}

// DeliverRemote fans out an event published by another process. Events
// this process originated are skipped so local delivery stays
// at-most-once.
func (e *Engine) DeliverRemote(origin, roomID string, data []byte) {
	if origin == e.origin {
		return
	}
	r, err := e.rooms.Get(roomID)
	if err != nil {
		return
	}
	e.broadcaster.Broadcast(r.ParticipantIDs(), data)
}

// mirrorRoom queues a fresh snapshot of the room for the shared store,
// best-effort and always outside the room lock.
func (e *Engine) mirrorRoom(roomID string) {
	var snap ws.RoomStatePayload
	err := e.rooms.WithRoom(roomID, func(r *room.Room) error {
		snap = roomState(r)
		return nil
	})
	if err != nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	select {
	case e.pub <- busOut{roomID: roomID, data: data, mirror: true}:
	default:
		slog.Warn("bus queue full, dropping mirror write", "room_id", roomID)
	}
}

// restoreRoom rebuilds a room from its shared-store mirror, the crash
// recovery path after a process restart: the in-memory store is empty
// but the mirror still holds every room the sweeper has not torn down.
// Restored participants come back offline until they reconnect.
func (e *Engine) restoreRoom(roomID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), publishWait)
	defer cancel()
	data, err := e.shared.Get(ctx, roomKey(roomID))
	if err != nil || data == nil {
		return false
	}
	var snap ws.RoomStatePayload
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("malformed room mirror", "room_id", roomID, "error", err)
		return false
	}
	if _, err := e.rooms.Restore(snap.RoomID, snap.Name, snap.CourseID, snap.Capacity, snap.Kind, snap.Participants, snap.History); err != nil {
		return false
	}
	slog.Info("room restored from mirror", "room_id", roomID,
		"participants", len(snap.Participants), "messages", len(snap.History))
	return true
}

func roomKey(roomID string) string { return "collab:room:" + roomID }

func roomState(r *room.Room) ws.RoomStatePayload {
	return ws.RoomStatePayload{
		RoomID:       r.ID,
		Name:         r.Name,
		CourseID:     r.CourseID,
		Kind:         r.Kind,
		Capacity:     r.Capacity,
		Participants: r.Participants(),
		History:      r.History(),
	}
}

// event marshals an outbound envelope, logging instead of failing: a
// broadcast that cannot be encoded is a bug, not a caller error.
func event(eventType, roomID string, payload any) []byte {
	data, err := ws.NewEvent(eventType, roomID, payload)
	if err != nil {
		slog.Error("failed to encode event", "type", eventType, "room_id", roomID, "error", err)
		return nil
	}
	return data
}

type noopStore struct{}

func (noopStore) SetWithExpiry(context.Context, string, []byte, time.Duration) error { return nil }
func (noopStore) Get(context.Context, string) ([]byte, error)                        { return nil, nil }
func (noopStore) Delete(context.Context, string) error                               { return nil }
func (noopStore) PublishRoom(context.Context, string, string, []byte) error          { return nil }
