package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/edulive/collab/internal/metrics"
	"github.com/edulive/collab/internal/presence"
	"github.com/edulive/collab/internal/room"
	"github.com/edulive/collab/internal/ws"
)

// ArchiveRecord is the closed-session summary handed to the Archiver.
type ArchiveRecord struct {
	ID           string
	Name         string
	CourseID     string
	CreatorID    string
	Kind         room.Kind
	ParentID     string
	Capacity     int
	MessageCount int
	CreatedAt    time.Time
}

// RemoveRoom tears a room down: snapshot, drop from the store, archive
// the session and clear the shared mirror. Idempotent.
func (e *Engine) RemoveRoom(ctx context.Context, roomID string) {
	var rec ArchiveRecord
	var history []room.Message
	err := e.rooms.WithRoom(roomID, func(r *room.Room) error {
		rec = ArchiveRecord{
			ID:           r.ID,
			Name:         r.Name,
			CourseID:     r.CourseID,
			CreatorID:    r.CreatorID,
			Kind:         r.Kind,
			ParentID:     r.ParentID,
			Capacity:     r.Capacity,
			MessageCount: r.HistoryLen(),
			CreatedAt:    r.CreatedAt,
		}
		history = r.History()
		return nil
	})
	if err != nil {
		return
	}

	e.rooms.Remove(roomID)

	e.pollMu.Lock()
	for pollID, rid := range e.pollIndex {
		if rid == roomID {
			delete(e.pollIndex, pollID)
		}
	}
	e.pollMu.Unlock()

	if e.archiver != nil {
		if err := e.archiver.SaveSession(ctx, rec, history); err != nil {
			slog.Error("failed to archive session", "room_id", roomID, "error", err)
		}
	}
	if err := e.shared.Delete(ctx, roomKey(roomID)); err != nil {
		slog.Debug("mirror delete failed", "room_id", roomID, "error", err)
	}
	slog.Info("room removed", "room_id", roomID, "messages", rec.MessageCount)
}

// ReapIdleRooms removes rooms that are empty, older than maxAge or past
// their own expiry, and closes any polls past their duration. One room
// lock at a time; a sweep never blocks operations on other rooms.
func (e *Engine) ReapIdleRooms(ctx context.Context, maxAge time.Duration) int {
	now := time.Now()
	removed := 0
	for _, r := range e.rooms.All() {
		idle := false
		var closed []*room.Poll
		err := e.rooms.WithRoom(r.ID, func(r *room.Room) error {
			closed = r.ReapExpiredPolls(now)
			for _, p := range closed {
				e.fanout(r, "", event(ws.TypePollState, r.ID, pollState(p)))
			}
			idle = r.Idle(now, maxAge)
			return nil
		})
		if err != nil {
			continue
		}
		if len(closed) > 0 {
			e.pollMu.Lock()
			for _, p := range closed {
				delete(e.pollIndex, p.ID)
			}
			e.pollMu.Unlock()
		}
		if idle {
			e.RemoveRoom(ctx, r.ID)
			removed++
			metrics.RoomsSwept.Inc()
		}
	}
	return removed
}

// DecayPresence demotes stale presence records and announces the changes
// to each affected user's rooms.
func (e *Engine) DecayPresence(awayAfter, offlineAfter time.Duration) int {
	changed := e.presence.Decay(time.Now(), awayAfter, offlineAfter)
	for _, rec := range changed {
		e.announcePresence(rec)
	}
	return len(changed)
}

func (e *Engine) announcePresence(rec presence.Record) {
	data := event(ws.TypePresenceUpdate, "", ws.PresencePayload{
		UserID:       rec.UserID,
		Status:       rec.Status,
		LastActivity: rec.LastActivity,
	})
	for _, summary := range e.UserRooms(rec.UserID) {
		_ = e.rooms.WithRoom(summary.RoomID, func(r *room.Room) error {
			e.broadcaster.Broadcast(r.ParticipantIDs(), data)
			return nil
		})
	}
}

type statsSnapshot struct {
	ActiveRooms    int       `json:"active_rooms"`
	ConnectedUsers int       `json:"connected_users"`
	Connections    int       `json:"connections"`
	Online         int       `json:"online"`
	Away           int       `json:"away"`
	ComputedAt     time.Time `json:"computed_at"`
}

// PublishStats recomputes the aggregate counters, exposes them as
// Prometheus gauges and mirrors a snapshot into the shared store.
func (e *Engine) PublishStats(ctx context.Context) {
	counts := e.presence.Counts()
	snap := statsSnapshot{
		ActiveRooms:    e.rooms.Len(),
		ConnectedUsers: e.registry.ConnectedUsers(),
		Connections:    e.registry.TotalConnections(),
		Online:         counts[presence.StatusOnline],
		Away:           counts[presence.StatusAway],
		ComputedAt:     time.Now(),
	}

	metrics.ActiveRooms.Set(float64(snap.ActiveRooms))
	metrics.ConnectedUsers.Set(float64(snap.ConnectedUsers))
	metrics.Connections.Set(float64(snap.Connections))
	for status, n := range counts {
		metrics.PresenceByStatus.WithLabelValues(string(status)).Set(float64(n))
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := e.shared.SetWithExpiry(ctx, "collab:stats", data, 5*time.Minute); err != nil {
		slog.Debug("stats mirror failed", "error", err)
	}
}
